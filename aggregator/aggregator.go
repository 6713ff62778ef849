package aggregator

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/kbukum/iterpipe/errors"
	"github.com/kbukum/iterpipe/message"
)

// Mode selects the output representation.
type Mode int

const (
	// ModeResults renders a counted list of <result> entries.
	ModeResults Mode = iota
	// ModeConcatenate joins the results without structure.
	ModeConcatenate
	// ModeCountOnly renders only the number of results.
	ModeCountOnly
)

func (m Mode) String() string {
	switch m {
	case ModeConcatenate:
		return "concatenate"
	case ModeCountOnly:
		return "count"
	default:
		return "results"
	}
}

// Options configures rendering.
type Options struct {
	Mode Mode
	// Prefix and Suffix replace the default <result item="i"> tag pair.
	Prefix string
	Suffix string
	// Escape XML-escapes every result (and input).
	Escape bool
	// AddInput renders the element input before its result.
	AddInput bool
	// RemoveXMLDeclaration strips a leading <?xml ...?> from each result.
	RemoveXMLDeclaration bool
}

// Wrapped reports whether element wrapping replaces the default tags.
func (o Options) Wrapped() bool {
	return o.Prefix != "" || o.Suffix != ""
}

type slot struct {
	filled bool
	input  string
	result string
	err    error
}

// Aggregator collects per-element outcomes into index-addressed slots and
// renders them in index order. Completions may arrive in any order and
// from any goroutine.
type Aggregator struct {
	opts Options

	mu    sync.Mutex
	slots []slot
}

// New creates an empty Aggregator.
func New(opts Options) *Aggregator {
	return &Aggregator{opts: opts}
}

// Options returns the rendering options.
func (a *Aggregator) Options() Options { return a.opts }

// Reserve grows the slot table to hold at least n elements.
func (a *Aggregator) Reserve(n int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if n <= len(a.slots) {
		return
	}
	if n > cap(a.slots) {
		grown := make([]slot, len(a.slots), max(n, 2*cap(a.slots)))
		copy(grown, a.slots)
		a.slots = grown
	}
	a.slots = a.slots[:n]
}

// Len returns the number of reserved slots.
func (a *Aggregator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.slots)
}

// Complete stores the outcome of element index (1-based).
func (a *Aggregator) Complete(index int, input, result string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	s, err := a.slotLocked(index)
	if err != nil {
		return err
	}
	s.filled = true
	s.result = result
	if a.opts.AddInput {
		s.input = input
	}
	return nil
}

// Fail marks element index (1-based) as failed.
func (a *Aggregator) Fail(index int, cause error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	s, err := a.slotLocked(index)
	if err != nil {
		return
	}
	s.filled = true
	s.err = cause
}

func (a *Aggregator) slotLocked(index int) (*slot, error) {
	if index < 1 || index > len(a.slots) {
		return nil, errors.New(errors.ErrCodeDispatch, fmt.Sprintf("item [%d] has no reserved slot", index)).
			WithDetail(errors.DetailItem, index)
	}
	s := &a.slots[index-1]
	if s.filled {
		return nil, errors.New(errors.ErrCodeDispatch, fmt.Sprintf("item [%d] completed twice", index)).
			WithDetail(errors.DetailItem, index)
	}
	return s, nil
}

// Err returns the failure with the lowest index, or nil.
func (a *Aggregator) Err() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := range a.slots {
		if a.slots[i].err != nil {
			return a.slots[i].err
		}
	}
	return nil
}

// FailedIndex returns the lowest failed index, or 0.
func (a *Aggregator) FailedIndex() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := range a.slots {
		if a.slots[i].err != nil {
			return i + 1
		}
	}
	return 0
}

// Result returns the stored result of index (1-based) when it completed successfully.
func (a *Aggregator) Result(index int) (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if index < 1 || index > len(a.slots) {
		return "", false
	}
	s := a.slots[index-1]
	return s.result, s.filled && s.err == nil
}

// FirstUnfilled returns the lowest index without an outcome, or 0.
func (a *Aggregator) FirstUnfilled() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := range a.slots {
		if !a.slots[i].filled {
			return i + 1
		}
	}
	return 0
}

// Truncate drops every slot after index n.
func (a *Aggregator) Truncate(n int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if n < 0 {
		n = 0
	}
	if n < len(a.slots) {
		clear(a.slots[n:])
		a.slots = a.slots[:n]
	}
}

// Results returns the ordered results. It fails if any slot failed or is unfilled.
func (a *Aggregator) Results() ([]string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.checkLocked(); err != nil {
		return nil, err
	}
	out := make([]string, len(a.slots))
	for i := range a.slots {
		out[i] = a.slots[i].result
	}
	return out, nil
}

// Partial returns the results of the leading run of successful slots.
// After a failure at index k it holds at most k-1 entries.
func (a *Aggregator) Partial() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []string
	for i := range a.slots {
		s := a.slots[i]
		if !s.filled || s.err != nil {
			break
		}
		out = append(out, s.result)
	}
	return out
}

func (a *Aggregator) checkLocked() error {
	for i := range a.slots {
		if a.slots[i].err != nil {
			return a.slots[i].err
		}
	}
	for i := range a.slots {
		if !a.slots[i].filled {
			return errors.New(errors.ErrCodeDispatch, fmt.Sprintf("item [%d] has no result", i+1)).
				WithDetail(errors.DetailItem, i+1)
		}
	}
	return nil
}

// Render serializes every slot in index order into one Message.
func (a *Aggregator) Render() (*message.Message, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.checkLocked(); err != nil {
		return nil, err
	}

	n := len(a.slots)
	switch a.opts.Mode {
	case ModeCountOnly:
		return message.FromString(`<results count="`+strconv.Itoa(n)+`"/>`, message.WithMimeType(message.MimeTextXML)), nil
	case ModeConcatenate:
		b := message.NewBuilder()
		for i := range a.slots {
			a.writeElement(b, i+1, a.slots[i])
		}
		return b.Build(), nil
	default:
		b := message.NewBuilder(message.WithMimeType(message.MimeTextXML))
		fmt.Fprintf(b, "<results count=\"%d\">\n", n)
		for i := range a.slots {
			a.writeElement(b, i+1, a.slots[i])
		}
		_, _ = b.WriteString("</results>")
		return b.Build(), nil
	}
}

func (a *Aggregator) writeElement(b *message.Builder, index int, s slot) {
	result := a.prepare(s.result)
	if a.opts.Wrapped() {
		_, _ = b.WriteString(a.opts.Prefix)
		a.writeInput(b, s)
		_, _ = b.WriteString(result)
		_, _ = b.WriteString(a.opts.Suffix)
		if a.opts.Mode == ModeResults {
			_, _ = b.WriteString("\n")
		}
		return
	}
	if a.opts.Mode == ModeConcatenate {
		a.writeInput(b, s)
		_, _ = b.WriteString(result)
		return
	}
	fmt.Fprintf(b, "<result item=\"%d\">\n", index)
	a.writeInput(b, s)
	_, _ = b.WriteString(result)
	_, _ = b.WriteString("\n</result>\n")
}

func (a *Aggregator) writeInput(b *message.Builder, s slot) {
	if !a.opts.AddInput {
		return
	}
	_, _ = b.WriteString("<input>")
	_, _ = b.WriteString(a.prepare(s.input))
	_, _ = b.WriteString("</input>\n")
}

func (a *Aggregator) prepare(s string) string {
	if a.opts.RemoveXMLDeclaration {
		s = RemoveXMLDeclaration(s)
	}
	if a.opts.Escape {
		s = Escape(s)
	}
	return s
}

// RemoveXMLDeclaration strips a leading <?xml ...?> declaration and the
// white space that follows it.
func RemoveXMLDeclaration(s string) string {
	trimmed := strings.TrimLeft(s, " \t\r\n\ufeff")
	if !strings.HasPrefix(trimmed, "<?xml") {
		return s
	}
	end := strings.Index(trimmed, "?>")
	if end < 0 {
		return s
	}
	return strings.TrimLeft(trimmed[end+2:], " \t\r\n")
}
