package iterator

import (
	"bufio"
	"context"
	"strings"

	"github.com/kbukum/iterpipe/errors"
	"github.com/kbukum/iterpipe/message"
	"github.com/kbukum/iterpipe/scope"
)

const defaultMaxLineSize = 1024 * 1024

type linesConfig struct {
	trim        bool
	skipEmpty   bool
	maxLineSize int
	opts        []message.Option
}

// LinesOption configures the line splitter.
type LinesOption func(*linesConfig)

// TrimSpace strips leading and trailing white space from every line.
func TrimSpace() LinesOption {
	return func(c *linesConfig) { c.trim = true }
}

// SkipEmpty drops lines that are empty (after trimming, if enabled).
func SkipEmpty() LinesOption {
	return func(c *linesConfig) { c.skipEmpty = true }
}

// MaxLineSize bounds the length of a single line. Longer lines fail the
// iteration. n <= 0 keeps the 1 MiB default.
func MaxLineSize(n int) LinesOption {
	return func(c *linesConfig) {
		if n > 0 {
			c.maxLineSize = n
		}
	}
}

// WithElementOptions sets the Context of every produced element.
func WithElementOptions(opts ...message.Option) LinesOption {
	return func(c *linesConfig) { c.opts = opts }
}

// Lines returns a Splitter producing one text Message per line of the input.
// Null or empty input yields no iterator.
func Lines(opts ...LinesOption) Splitter[*message.Message] {
	cfg := linesConfig{maxLineSize: defaultMaxLineSize}
	for _, opt := range opts {
		opt(&cfg)
	}
	return SplitterFunc[*message.Message](func(_ context.Context, msg *message.Message, _ *scope.Scope) (DataIterator[*message.Message], error) {
		if msg == nil || msg.IsNull() || msg.Size() == 0 {
			return nil, nil
		}
		r, err := msg.AsTextReader()
		if err != nil {
			return nil, errors.Iteration("cannot read input message", err)
		}
		sc := bufio.NewScanner(r)
		sc.Buffer(make([]byte, 0, min(64*1024, cfg.maxLineSize)), cfg.maxLineSize)

		return FromPull(func(context.Context) (*message.Message, bool, error) {
			for sc.Scan() {
				line := sc.Text()
				if cfg.trim {
					line = strings.TrimSpace(line)
				}
				if cfg.skipEmpty && line == "" {
					continue
				}
				return message.FromString(line, cfg.opts...), true, nil
			}
			if err := sc.Err(); err != nil {
				return nil, false, err
			}
			return nil, false, nil
		}, nil), nil
	})
}
