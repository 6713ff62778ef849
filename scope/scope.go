// Package scope provides the per-call context threaded through the engine.
//
// A Scope is an ordered key/value store that doubles as a registry of
// resources scheduled for deferred close. Everything registered and not
// unscheduled is closed exactly once, in registration order, when the
// Scope is closed.
package scope

import (
	stderrors "errors"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"

	"github.com/kbukum/iterpipe/errors"
	"github.com/kbukum/iterpipe/logger"
)

type closeEntry struct {
	closer    io.Closer
	requester string
}

// Scope is a thread-safe ordered key/value store with a deferred-close registry.
// Closers are matched by identity and must be comparable (pointers in practice).
type Scope struct {
	id string

	mu     sync.RWMutex
	keys   []string
	values map[string]any

	closeMu sync.Mutex
	entries []closeEntry
	closed  bool

	log *logger.Logger
}

// Option configures a Scope.
type Option func(*Scope)

// WithLogger sets the logger used to report close activity.
func WithLogger(l *logger.Logger) Option {
	return func(s *Scope) { s.log = l }
}

// WithValues seeds the Scope with values, in the order given by keys.
func WithValues(keys []string, values map[string]any) Option {
	return func(s *Scope) {
		for _, k := range keys {
			if v, ok := values[k]; ok {
				s.setLocked(k, v)
			}
		}
	}
}

// New creates an empty Scope.
func New(opts ...Option) *Scope {
	s := &Scope{
		id:     uuid.NewString(),
		values: make(map[string]any),
		log:    logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ID returns the unique identifier of this Scope.
func (s *Scope) ID() string { return s.id }

// --- values ---

// Get retrieves a value by key. Returns false if the key does not exist.
func (s *Scope) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// Set stores a value by key. New keys are appended to the key order.
func (s *Scope) Set(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setLocked(key, value)
}

func (s *Scope) setLocked(key string, value any) {
	if _, exists := s.values[key]; !exists {
		s.keys = append(s.keys, key)
	}
	s.values[key] = value
}

// Delete removes a key.
func (s *Scope) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.values[key]; !ok {
		return
	}
	delete(s.values, key)
	for i, k := range s.keys {
		if k == key {
			s.keys = append(s.keys[:i], s.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the keys in insertion order.
func (s *Scope) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.keys))
	copy(out, s.keys)
	return out
}

// Len returns the number of stored values.
func (s *Scope) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.keys)
}

// GetString returns the value for key formatted as a string, or def when absent.
func (s *Scope) GetString(key, def string) string {
	v, ok := s.Get(key)
	if !ok || v == nil {
		return def
	}
	if str, ok := v.(string); ok {
		return str
	}
	return fmt.Sprintf("%v", v)
}

// --- deferred close ---

// Schedule registers c to be closed when the Scope closes. Registering the
// same closer twice is a no-op. After teardown, c is closed immediately.
func (s *Scope) Schedule(c io.Closer, requester string) error {
	s.closeMu.Lock()
	if s.closed {
		s.closeMu.Unlock()
		s.log.Debug("scope already closed, closing resource immediately", logger.Fields(logger.FieldRequester, requester))
		if err := c.Close(); err != nil {
			return errors.Resource(requester, err)
		}
		return nil
	}
	defer s.closeMu.Unlock()
	if s.indexLocked(c) >= 0 {
		return nil
	}
	s.entries = append(s.entries, closeEntry{closer: c, requester: requester})
	return nil
}

// Unschedule removes c from the close registry. It reports whether c was registered.
func (s *Scope) Unschedule(c io.Closer) bool {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()
	i := s.indexLocked(c)
	if i < 0 {
		return false
	}
	s.entries = append(s.entries[:i], s.entries[i+1:]...)
	return true
}

// IsScheduled reports whether c is registered for close.
func (s *Scope) IsScheduled(c io.Closer) bool {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()
	return s.indexLocked(c) >= 0
}

// Pending returns the number of closers still registered.
func (s *Scope) Pending() int {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()
	return len(s.entries)
}

func (s *Scope) indexLocked(c io.Closer) int {
	for i, e := range s.entries {
		if e.closer == c {
			return i
		}
	}
	return -1
}

// Closed reports whether the Scope has been torn down.
func (s *Scope) Closed() bool {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()
	return s.closed
}

// Close tears the Scope down: every registered closer is closed once, in
// registration order. Failures do not stop the sweep; they are returned
// joined, each as a RESOURCE_ERROR. Subsequent calls return nil.
func (s *Scope) Close() error {
	s.closeMu.Lock()
	if s.closed {
		s.closeMu.Unlock()
		return nil
	}
	s.closed = true
	entries := s.entries
	s.entries = nil
	s.closeMu.Unlock()

	var errs []error
	for _, e := range entries {
		if err := e.closer.Close(); err != nil {
			fields := logger.ErrorFields("close", err)
			fields[logger.FieldRequester] = e.requester
			s.log.Warn("failed to close scoped resource", fields)
			errs = append(errs, errors.Resource(e.requester, err))
		}
	}
	s.log.Debug("scope closed", logger.Fields("scope", s.id, logger.FieldCount, len(entries)))
	return stderrors.Join(errs...)
}
