package message

import "strings"

// Builder accumulates text and produces a single text Message.
type Builder struct {
	sb   strings.Builder
	opts []Option
}

// NewBuilder creates a Builder whose Message will carry opts.
func NewBuilder(opts ...Option) *Builder {
	return &Builder{opts: opts}
}

// WriteString appends s.
func (b *Builder) WriteString(s string) (int, error) {
	return b.sb.WriteString(s)
}

// Write appends p.
func (b *Builder) Write(p []byte) (int, error) {
	return b.sb.Write(p)
}

// Len returns the number of accumulated bytes.
func (b *Builder) Len() int { return b.sb.Len() }

// Build returns the accumulated text as a Message.
func (b *Builder) Build() *Message {
	return FromString(b.sb.String(), b.opts...)
}
