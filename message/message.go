package message

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/kbukum/iterpipe/errors"
	"github.com/kbukum/iterpipe/scope"
)

var (
	// ErrClosed is returned by every read after Close.
	ErrClosed = errors.New(errors.ErrCodeResource, "message is closed")
	// ErrConsumed is returned when the stream of a reader-backed message is requested twice.
	ErrConsumed = errors.New(errors.ErrCodeResource, "message stream already consumed")
)

type kind int

const (
	kindNull kind = iota
	kindText
	kindBytes
	kindReader
)

func (k kind) String() string {
	switch k {
	case kindText:
		return "text"
	case kindBytes:
		return "bytes"
	case kindReader:
		return "reader"
	default:
		return "null"
	}
}

// Message wraps a text, byte or stream payload with its Context.
// Reads are cached: once a stream has been materialized, later reads
// return the buffered form. A Message is safe for concurrent use.
type Message struct {
	id string

	mu       sync.Mutex
	kind     kind
	text     string
	data     []byte
	hasText  bool
	reader   io.Reader
	consumed bool
	closed   bool
	ctx      Context

	// ownerMu is separate from mu: a closed Scope closes the message
	// from inside Schedule.
	ownerMu sync.Mutex
	owner   *scope.Scope
}

func newMessage(k kind, opts []Option) *Message {
	return &Message{id: uuid.NewString(), kind: k, ctx: newContext(opts)}
}

// Null returns a message without payload.
func Null(opts ...Option) *Message {
	return newMessage(kindNull, opts)
}

// FromString creates a text message.
func FromString(s string, opts ...Option) *Message {
	m := newMessage(kindText, opts)
	m.text = s
	m.hasText = true
	return m
}

// FromBytes creates a binary message. b is not copied.
func FromBytes(b []byte, opts ...Option) *Message {
	if b == nil {
		return Null(opts...)
	}
	m := newMessage(kindBytes, opts)
	m.data = b
	return m
}

// FromReader creates a stream-backed message. If r implements io.Closer
// it is closed when the message is closed or fully materialized.
func FromReader(r io.Reader, opts ...Option) *Message {
	if r == nil {
		return Null(opts...)
	}
	m := newMessage(kindReader, opts)
	m.reader = r
	return m
}

// ID returns the unique identifier of the message.
func (m *Message) ID() string { return m.id }

// Context returns a copy of the message metadata.
func (m *Message) Context() Context {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ctx.clone()
}

// IsNull reports whether the message carries no payload.
func (m *Message) IsNull() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.kind == kindNull
}

// IsBinary reports whether the payload is bytes or a raw stream.
func (m *Message) IsBinary() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.kind == kindBytes || m.kind == kindReader
}

// IsRepeatable reports whether the payload can be read more than once.
func (m *Message) IsRepeatable() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.kind != kindReader
}

// Size returns the payload length in bytes when known, else SizeUnknown.
func (m *Message) Size() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.kind {
	case kindNull:
		return 0
	case kindBytes:
		return int64(len(m.data))
	case kindText:
		if m.ctx.Size != SizeUnknown {
			return m.ctx.Size
		}
		return int64(len(m.text))
	default:
		return m.ctx.Size
	}
}

// AsText returns the payload as a string, decoding bytes with the context charset.
func (m *Message) AsText() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return "", ErrClosed
	}
	if m.hasText {
		return m.text, nil
	}
	switch m.kind {
	case kindNull:
		return "", nil
	case kindReader:
		if err := m.materializeLocked(); err != nil {
			return "", err
		}
	}
	s, err := decode(m.data, m.ctx.Charset)
	if err != nil {
		return "", err
	}
	m.text = s
	m.hasText = true
	return s, nil
}

// AsBytes returns the payload as bytes, encoding text with the context charset.
func (m *Message) AsBytes() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	switch m.kind {
	case kindNull:
		return nil, nil
	case kindText:
		if m.data == nil {
			b, err := encode(m.text, m.ctx.Charset)
			if err != nil {
				return nil, err
			}
			m.data = b
		}
		return m.data, nil
	case kindReader:
		if err := m.materializeLocked(); err != nil {
			return nil, err
		}
	}
	return m.data, nil
}

// AsReader returns a reader over the payload. Text and byte payloads get a
// fresh reader on each call; a stream is handed out once.
func (m *Message) AsReader() (io.Reader, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	switch m.kind {
	case kindNull:
		return strings.NewReader(""), nil
	case kindText:
		return strings.NewReader(m.text), nil
	case kindBytes:
		return bytes.NewReader(m.data), nil
	default:
		if m.consumed {
			return nil, ErrConsumed
		}
		m.consumed = true
		return m.reader, nil
	}
}

// AsTextReader is AsReader with binary payloads decoded from the context charset.
func (m *Message) AsTextReader() (io.Reader, error) {
	r, err := m.AsReader()
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	binary, charset := m.kind != kindText, m.ctx.Charset
	m.mu.Unlock()
	if !binary {
		return r, nil
	}
	enc, err := lookup(charset)
	if err != nil {
		return nil, err
	}
	return transform.NewReader(r, unicode.BOMOverride(enc.NewDecoder())), nil
}

// Preserve buffers a stream payload in memory so it can be read repeatedly.
func (m *Message) Preserve() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if m.kind != kindReader {
		return nil
	}
	return m.materializeLocked()
}

// materializeLocked reads the stream fully and releases it.
func (m *Message) materializeLocked() error {
	if m.consumed {
		return ErrConsumed
	}
	m.consumed = true
	data, err := io.ReadAll(m.reader)
	cerr := closeReader(m.reader)
	m.reader = nil
	if err != nil {
		return errors.Resource("message stream", err)
	}
	if cerr != nil {
		return errors.Resource("message stream", cerr)
	}
	m.data = data
	m.kind = kindBytes
	return nil
}

// ScheduleCloseOn registers the message for close when sc tears down.
// A message has at most one owning Scope: scheduling on another Scope
// moves it off the previous one.
func (m *Message) ScheduleCloseOn(sc *scope.Scope, requester string) error {
	m.ownerMu.Lock()
	defer m.ownerMu.Unlock()
	if prev := m.owner; prev != nil && prev != sc {
		prev.Unschedule(m)
	}
	m.owner = sc
	return sc.Schedule(m, requester)
}

// UnscheduleFrom removes the message from the close registry of sc.
func (m *Message) UnscheduleFrom(sc *scope.Scope) bool {
	m.ownerMu.Lock()
	defer m.ownerMu.Unlock()
	if m.owner == sc {
		m.owner = nil
	}
	return sc.Unschedule(m)
}

// Owner returns the Scope the message is scheduled on, or nil.
func (m *Message) Owner() *scope.Scope {
	m.ownerMu.Lock()
	defer m.ownerMu.Unlock()
	if m.owner != nil && !m.owner.IsScheduled(m) {
		return nil
	}
	return m.owner
}

// IsScheduledOn reports whether the message is registered on sc.
func (m *Message) IsScheduledOn(sc *scope.Scope) bool {
	return sc.IsScheduled(m)
}

// Close releases the underlying stream. Calling Close more than once is a no-op.
func (m *Message) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	var err error
	if m.reader != nil {
		err = closeReader(m.reader)
		m.reader = nil
	}
	m.text, m.data, m.hasText = "", nil, false
	return err
}

// IsClosed reports whether Close has been called.
func (m *Message) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// String describes the message for logs without reading the payload.
func (m *Message) String() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fmt.Sprintf("Message[%s %s]", m.id, m.kind)
}

func closeReader(r io.Reader) error {
	if c, ok := r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// --- charset ---

func lookup(charset string) (encoding.Encoding, error) {
	if charset == "" {
		return unicode.UTF8, nil
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, errors.Configuration("charset", fmt.Sprintf("unsupported charset %q", charset)).WithCause(err)
	}
	return enc, nil
}

func decode(b []byte, charset string) (string, error) {
	enc, err := lookup(charset)
	if err != nil {
		return "", err
	}
	out, _, err := transform.Bytes(unicode.BOMOverride(enc.NewDecoder()), b)
	if err != nil {
		return "", errors.Resource("message payload", err)
	}
	return string(out), nil
}

func encode(s, charset string) ([]byte, error) {
	enc, err := lookup(charset)
	if err != nil {
		return nil, err
	}
	if enc == unicode.UTF8 {
		return []byte(s), nil
	}
	out, err := enc.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, errors.Resource("message payload", err)
	}
	return out, nil
}
