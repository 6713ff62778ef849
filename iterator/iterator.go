package iterator

import (
	"context"
	"sync"

	"github.com/kbukum/iterpipe/errors"
	"github.com/kbukum/iterpipe/message"
	"github.com/kbukum/iterpipe/scope"
)

// ErrNoSuchElement is returned by Next when the iterator is exhausted or closed.
var ErrNoSuchElement = errors.Iteration("no such element", nil)

// DataIterator is a single-owner cursor over a finite, non-restartable sequence.
// It must not be shared between goroutines.
type DataIterator[T any] interface {
	// HasNext reports whether Next will return an element.
	HasNext(ctx context.Context) (bool, error)
	// Next returns the next element, or ErrNoSuchElement when none remains.
	Next(ctx context.Context) (T, error)
	// Close releases the source. Calling Close more than once is a no-op.
	Close() error
}

// Splitter builds a DataIterator from an input Message.
// A nil iterator with a nil error means the input has no elements.
type Splitter[T any] interface {
	Iterate(ctx context.Context, msg *message.Message, sc *scope.Scope) (DataIterator[T], error)
}

// SplitterFunc adapts a function to Splitter.
type SplitterFunc[T any] func(ctx context.Context, msg *message.Message, sc *scope.Scope) (DataIterator[T], error)

// Iterate calls f.
func (f SplitterFunc[T]) Iterate(ctx context.Context, msg *message.Message, sc *scope.Scope) (DataIterator[T], error) {
	return f(ctx, msg, sc)
}

// --- Constructors ---

// FromSlice iterates over items.
func FromSlice[T any](items []T) DataIterator[T] {
	i := 0
	return FromPull(func(context.Context) (T, bool, error) {
		var zero T
		if i >= len(items) {
			return zero, false, nil
		}
		v := items[i]
		i++
		return v, true, nil
	}, nil)
}

// FromPull adapts a pull function returning (value, ok, err) to a DataIterator.
// next returns ok=false once exhausted. closer may be nil.
func FromPull[T any](next func(ctx context.Context) (T, bool, error), closer func() error) DataIterator[T] {
	return &pullIter[T]{next: next, closer: closer}
}

// Map converts each element of src with fn.
func Map[I, O any](src DataIterator[I], fn func(I) (O, error)) DataIterator[O] {
	return FromPull(func(ctx context.Context) (O, bool, error) {
		var zero O
		ok, err := src.HasNext(ctx)
		if err != nil || !ok {
			return zero, false, err
		}
		v, err := src.Next(ctx)
		if err != nil {
			return zero, false, err
		}
		out, err := fn(v)
		if err != nil {
			return zero, false, err
		}
		return out, true, nil
	}, src.Close)
}

// Drain pulls every remaining element into a slice and closes it.
func Drain[T any](ctx context.Context, it DataIterator[T]) ([]T, error) {
	defer it.Close()
	var out []T
	for {
		ok, err := it.HasNext(ctx)
		if err != nil {
			return out, err
		}
		if !ok {
			return out, nil
		}
		v, err := it.Next(ctx)
		if err != nil {
			return out, err
		}
		out = append(out, v)
	}
}

// pullIter adds one element of lookahead to a pull function.
type pullIter[T any] struct {
	next   func(ctx context.Context) (T, bool, error)
	closer func() error

	peeked bool
	val    T
	more   bool
	done   bool

	closeOnce sync.Once
	closeErr  error
}

func (it *pullIter[T]) HasNext(ctx context.Context) (bool, error) {
	if it.done {
		return false, nil
	}
	if it.peeked {
		return it.more, nil
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	v, ok, err := it.next(ctx)
	if err != nil {
		it.done = true
		if errors.IsAppError(err) {
			return false, err
		}
		return false, errors.Iteration("cannot read next element", err)
	}
	it.peeked, it.val, it.more = true, v, ok
	if !ok {
		it.done = true
	}
	return ok, nil
}

func (it *pullIter[T]) Next(ctx context.Context) (T, error) {
	var zero T
	ok, err := it.HasNext(ctx)
	if err != nil {
		return zero, err
	}
	if !ok {
		return zero, ErrNoSuchElement
	}
	v := it.val
	it.peeked, it.val = false, zero
	return v, nil
}

func (it *pullIter[T]) Close() error {
	it.closeOnce.Do(func() {
		it.done = true
		if it.closer != nil {
			it.closeErr = it.closer()
		}
	})
	return it.closeErr
}

// Distinct drops elements whose key was seen before. drop, when set,
// receives every discarded element.
func Distinct[T any](src DataIterator[T], key func(T) (string, error), drop func(T)) DataIterator[T] {
	seen := make(map[string]struct{})
	return FromPull(func(ctx context.Context) (T, bool, error) {
		var zero T
		for {
			ok, err := src.HasNext(ctx)
			if err != nil || !ok {
				return zero, false, err
			}
			v, err := src.Next(ctx)
			if err != nil {
				return zero, false, err
			}
			k, err := key(v)
			if err != nil {
				if drop != nil {
					drop(v)
				}
				return zero, false, err
			}
			if _, dup := seen[k]; dup {
				if drop != nil {
					drop(v)
				}
				continue
			}
			seen[k] = struct{}{}
			return v, true, nil
		}
	}, src.Close)
}
