package sender

import (
	"context"

	"github.com/kbukum/iterpipe/message"
	"github.com/kbukum/iterpipe/scope"
)

// Operations observed by an Interceptor.
const (
	OpSend  = "send"
	OpOpen  = "open"
	OpClose = "close"
)

// Call describes one sender invocation.
type Call struct {
	Op      string
	Sender  string
	Kind    Kind
	Message *message.Message
}

// Interceptor wraps one sender call. It must call next exactly once.
type Interceptor func(ctx context.Context, call Call, next func(ctx context.Context) (*message.Message, error)) (*message.Message, error)

// Intercept returns a copy of d whose calls pass through ic.
func Intercept(d *Dispatcher, ic Interceptor) *Dispatcher {
	out := *d
	switch d.kind {
	case KindSimple:
		out.simple = &interceptedSimple{inner: d.simple, name: d.name, ic: ic}
	case KindBlockEnabled:
		out.block = &interceptedBlock{inner: d.block, name: d.name, ic: ic}
	}
	return &out
}

type interceptedSimple struct {
	inner Simple
	name  string
	ic    Interceptor
}

func (s *interceptedSimple) Send(ctx context.Context, msg *message.Message, sc *scope.Scope) (*message.Message, error) {
	call := Call{Op: OpSend, Sender: s.name, Kind: KindSimple, Message: msg}
	return s.ic(ctx, call, func(ctx context.Context) (*message.Message, error) {
		return s.inner.Send(ctx, msg, sc)
	})
}

type interceptedBlock struct {
	inner BlockEnabled
	name  string
	ic    Interceptor
}

func (b *interceptedBlock) OpenBlock(ctx context.Context, sc *scope.Scope) (Handle, error) {
	var h Handle
	_, err := b.ic(ctx, Call{Op: OpOpen, Sender: b.name, Kind: KindBlockEnabled}, func(ctx context.Context) (*message.Message, error) {
		var err error
		h, err = b.inner.OpenBlock(ctx, sc)
		return nil, err
	})
	return h, err
}

func (b *interceptedBlock) SendInBlock(ctx context.Context, h Handle, msg *message.Message, sc *scope.Scope) (*message.Message, error) {
	call := Call{Op: OpSend, Sender: b.name, Kind: KindBlockEnabled, Message: msg}
	return b.ic(ctx, call, func(ctx context.Context) (*message.Message, error) {
		return b.inner.SendInBlock(ctx, h, msg, sc)
	})
}

func (b *interceptedBlock) CloseBlock(ctx context.Context, h Handle, sc *scope.Scope) error {
	_, err := b.ic(ctx, Call{Op: OpClose, Sender: b.name, Kind: KindBlockEnabled}, func(ctx context.Context) (*message.Message, error) {
		return nil, b.inner.CloseBlock(ctx, h, sc)
	})
	return err
}
