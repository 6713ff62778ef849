package iterator

import (
	"context"
	"sync"
)

// Block is a bounded group of consecutive elements.
type Block[T any] struct {
	// Index is the 1-based position of the first element in the sequence.
	Index int
	Items []T
}

// Len returns the number of elements in the block.
func (b Block[T]) Len() int { return len(b.Items) }

// BlockReader groups the elements of a DataIterator into blocks of at most
// size elements, stopping after maxItems elements when maxItems > 0.
// It owns the source and closes it exactly once.
type BlockReader[T any] struct {
	src      DataIterator[T]
	size     int
	maxItems int

	pulled  int
	limited bool
	done    bool

	closeOnce sync.Once
	closeErr  error
}

// NewBlockReader creates a BlockReader. size < 1 is treated as 1.
func NewBlockReader[T any](src DataIterator[T], size, maxItems int) *BlockReader[T] {
	if size < 1 {
		size = 1
	}
	return &BlockReader[T]{src: src, size: size, maxItems: maxItems}
}

// Next returns the next block. ok is false once the source is exhausted
// or the item limit has been reached. On error the elements pulled before
// the failure are returned in the block so the caller can release them.
func (r *BlockReader[T]) Next(ctx context.Context) (Block[T], bool, error) {
	if r.done {
		return Block[T]{}, false, nil
	}
	b := Block[T]{Index: r.pulled + 1}
	for len(b.Items) < r.size {
		if r.maxItems > 0 && r.pulled >= r.maxItems {
			r.limited = true
			r.done = true
			break
		}
		ok, err := r.src.HasNext(ctx)
		if err != nil {
			r.done = true
			return b, false, err
		}
		if !ok {
			r.done = true
			break
		}
		v, err := r.src.Next(ctx)
		if err != nil {
			r.done = true
			return b, false, err
		}
		b.Items = append(b.Items, v)
		r.pulled++
	}
	if r.maxItems > 0 && r.pulled >= r.maxItems {
		r.limited = true
		r.done = true
	}
	if len(b.Items) == 0 {
		return Block[T]{}, false, nil
	}
	return b, true, nil
}

// Count returns the number of elements pulled so far.
func (r *BlockReader[T]) Count() int { return r.pulled }

// Truncated reports whether reading stopped because maxItems was reached.
func (r *BlockReader[T]) Truncated() bool { return r.limited }

// Close closes the source once; later calls return the first result.
func (r *BlockReader[T]) Close() error {
	r.closeOnce.Do(func() {
		r.done = true
		r.closeErr = r.src.Close()
	})
	return r.closeErr
}
