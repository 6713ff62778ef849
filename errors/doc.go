// Package errors provides the structured error type used across iterpipe.
//
// Every failure surfaced by the engine is an *AppError carrying a
// machine-readable ErrorCode. The codes form a small taxonomy:
//
//   - CONFIGURATION_ERROR: invalid pipe settings, raised before any element is read
//   - ITERATION_ERROR: the data iterator could not be built or read
//   - DISPATCH_ERROR: a sender call failed for a specific element or block
//   - TIMEOUT: a parallel dispatch phase exceeded its deadline (a dispatch error)
//   - RESOURCE_ERROR: closing an iterator, block handle or message failed
//
// Dispatch and timeout errors carry the 1-based index of the failing item,
// retrievable with ItemIndex.
package errors
