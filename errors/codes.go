package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

const (
	// ErrCodeConfiguration indicates invalid settings detected at setup.
	ErrCodeConfiguration ErrorCode = "CONFIGURATION_ERROR"
	// ErrCodeIteration indicates the iterator could not be built or read.
	ErrCodeIteration ErrorCode = "ITERATION_ERROR"
	// ErrCodeDispatch indicates a sender call failed.
	ErrCodeDispatch ErrorCode = "DISPATCH_ERROR"
	// ErrCodeTimeout indicates a dispatch phase exceeded its deadline.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
	// ErrCodeResource indicates a failure while releasing a resource.
	ErrCodeResource ErrorCode = "RESOURCE_ERROR"
)

// dispatchCodes are the codes that describe a failed item.
var dispatchCodes = map[ErrorCode]bool{
	ErrCodeDispatch: true,
	ErrCodeTimeout:  true,
}

// IsDispatchCode reports whether code describes a failed dispatch.
// TIMEOUT is a dispatch failure.
func IsDispatchCode(code ErrorCode) bool {
	return dispatchCodes[code]
}
