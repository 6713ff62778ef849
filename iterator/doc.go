// Package iterator defines the element source of the dispatch engine.
//
// A Splitter turns an input message.Message into a DataIterator, a lazy,
// single-owner, non-restartable cursor. BlockReader groups the elements
// into fixed-size blocks and enforces an optional item limit.
//
// Constructors:
//   - FromSlice: iterate over an in-memory slice
//   - FromPull: adapt a (value, ok, err) pull function
//   - Map: convert elements one by one
//   - Lines: split a message into one text message per line
package iterator
