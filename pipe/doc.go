// Package pipe implements the iterating pipe: an input message is split
// into elements, the elements are dispatched to a sender in blocks and the
// per-element results are aggregated, in element order, into one message.
//
// A run moves through INIT, ITERATING, DISPATCHING_SEQUENTIAL or
// DISPATCHING_PARALLEL, AGGREGATING and ends in DONE or ERROR. The iterator
// and every block handle stay on the goroutine calling Run; parallel units
// only receive an already pulled element and its 1-based index.
//
// A run is all-or-nothing. The first failing element (the lowest failing
// index in parallel mode) aborts it, in-flight units are cancelled and
// awaited, and the iterator and any open block are closed exactly once.
//
//	p, err := pipe.New(iterator.Lines(), sender.AsSimple(s), pipe.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	sc := scope.New()
//	defer sc.Close()
//	res, err := p.Run(ctx, input, sc)
package pipe
