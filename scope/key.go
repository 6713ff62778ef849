package scope

import "fmt"

// Key is a compile-time typed accessor for Scope values.
type Key[T any] struct {
	Name string
}

// Read retrieves a typed value from the Scope.
// Returns an error if the key is missing or the type doesn't match.
func Read[T any](s *Scope, key Key[T]) (T, error) {
	var zero T
	raw, ok := s.Get(key.Name)
	if !ok {
		return zero, fmt.Errorf("scope: key %q not found", key.Name)
	}
	val, ok := raw.(T)
	if !ok {
		return zero, fmt.Errorf("scope: key %q: expected %T, got %T", key.Name, zero, raw)
	}
	return val, nil
}

// Write stores a typed value into the Scope.
func Write[T any](s *Scope, key Key[T], value T) {
	s.Set(key.Name, value)
}
