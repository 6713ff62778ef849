package sender

import (
	"context"

	"github.com/kbukum/iterpipe/message"
	"github.com/kbukum/iterpipe/scope"
)

// Simple sends each element independently.
type Simple interface {
	Send(ctx context.Context, msg *message.Message, sc *scope.Scope) (*message.Message, error)
}

// Handle is the sender-owned state of one open block.
type Handle any

// BlockEnabled amortizes one open/close pair over all elements of a block.
// OpenBlock precedes every SendInBlock of the block and CloseBlock follows
// the last one, also when a send failed.
type BlockEnabled interface {
	OpenBlock(ctx context.Context, sc *scope.Scope) (Handle, error)
	SendInBlock(ctx context.Context, h Handle, msg *message.Message, sc *scope.Scope) (*message.Message, error)
	CloseBlock(ctx context.Context, h Handle, sc *scope.Scope) error
}

// SimpleFunc adapts a function to Simple.
type SimpleFunc func(ctx context.Context, msg *message.Message, sc *scope.Scope) (*message.Message, error)

// Send calls f.
func (f SimpleFunc) Send(ctx context.Context, msg *message.Message, sc *scope.Scope) (*message.Message, error) {
	return f(ctx, msg, sc)
}

// Kind is the capability a Dispatcher was configured with.
type Kind int

const (
	KindSimple Kind = iota
	KindBlockEnabled
)

func (k Kind) String() string {
	if k == KindBlockEnabled {
		return "block"
	}
	return "simple"
}

// Dispatcher is a sender tagged with its capability at setup time.
type Dispatcher struct {
	kind             Kind
	name             string
	simple           Simple
	block            BlockEnabled
	concurrentHandle bool
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithName names the sender in logs, spans and metrics.
func WithName(name string) Option {
	return func(d *Dispatcher) { d.name = name }
}

// WithConcurrentHandle declares that one block handle may be used by
// several goroutines at once. Without it, parallel sends within a block
// are serialized.
func WithConcurrentHandle() Option {
	return func(d *Dispatcher) { d.concurrentHandle = true }
}

// AsSimple wraps s as a Simple dispatcher.
func AsSimple(s Simple, opts ...Option) *Dispatcher {
	d := &Dispatcher{kind: KindSimple, name: "sender", simple: s}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// AsBlockEnabled wraps b as a BlockEnabled dispatcher.
func AsBlockEnabled(b BlockEnabled, opts ...Option) *Dispatcher {
	d := &Dispatcher{kind: KindBlockEnabled, name: "sender", block: b}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Kind returns the configured capability.
func (d *Dispatcher) Kind() Kind { return d.kind }

// Name returns the sender name.
func (d *Dispatcher) Name() string { return d.name }

// Simple returns the Simple sender, or nil for a BlockEnabled dispatcher.
func (d *Dispatcher) Simple() Simple { return d.simple }

// BlockEnabled returns the BlockEnabled sender, or nil for a Simple dispatcher.
func (d *Dispatcher) BlockEnabled() BlockEnabled { return d.block }

// ConcurrentHandle reports whether block handles may be shared by goroutines.
func (d *Dispatcher) ConcurrentHandle() bool { return d.concurrentHandle }

// Valid reports whether the dispatcher wraps a sender of its kind.
func (d *Dispatcher) Valid() bool {
	if d == nil {
		return false
	}
	switch d.kind {
	case KindSimple:
		return d.simple != nil
	case KindBlockEnabled:
		return d.block != nil
	}
	return false
}

type itemKey struct{}

// ContextWithItem records the 1-based index of the element being sent.
func ContextWithItem(ctx context.Context, index int) context.Context {
	return context.WithValue(ctx, itemKey{}, index)
}

// ItemFromContext returns the index stored by ContextWithItem.
func ItemFromContext(ctx context.Context) (int, bool) {
	i, ok := ctx.Value(itemKey{}).(int)
	return i, ok
}
