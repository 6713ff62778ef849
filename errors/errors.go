package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// Detail keys set by the constructors.
const (
	DetailItem     = "item"
	DetailField    = "field"
	DetailResource = "resource"
	DetailTimeout  = "timeout"
	DetailOp       = "op"
)

// AppError is the unified error type.
type AppError struct {
	// Code is a machine-readable error code.
	Code ErrorCode `json:"code"`
	// Message is a human-readable error message.
	Message string `json:"message"`
	// Details contains additional context for the error.
	Details map[string]any `json:"details,omitempty"`
	// Cause is the underlying error that caused this error.
	Cause error `json:"-"`
	// Suppressed holds secondary failures (usually cleanup) that occurred
	// after this error and must not replace it.
	Suppressed []error `json:"-"`
}

// Error returns the string representation of the error.
func (e *AppError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Cause != nil {
		fmt.Fprintf(&b, " (cause: %v)", e.Cause)
	}
	if n := len(e.Suppressed); n > 0 {
		fmt.Fprintf(&b, " [%d suppressed]", n)
	}
	return b.String()
}

// Unwrap returns the underlying cause of the error.
func (e *AppError) Unwrap() error { return e.Cause }

// WithCause sets the underlying cause of the error and returns the receiver.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithDetail sets a single detail key-value pair and returns the receiver.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// Suppress records a secondary failure without changing Code or Cause.
func (e *AppError) Suppress(errs ...error) *AppError {
	for _, err := range errs {
		if err != nil {
			e.Suppressed = append(e.Suppressed, err)
		}
	}
	return e
}

// New creates a new AppError.
func New(code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// --- Constructors ---

// Configuration creates an error for an invalid setting.
func Configuration(field, reason string) *AppError {
	e := &AppError{
		Code:    ErrCodeConfiguration,
		Message: fmt.Sprintf("invalid configuration: %s", reason),
	}
	if field != "" {
		e.WithDetail(DetailField, field)
	}
	return e
}

// Iteration creates an error for an iterator that could not be built or read.
func Iteration(reason string, cause error) *AppError {
	return &AppError{
		Code:    ErrCodeIteration,
		Message: reason,
		Cause:   cause,
	}
}

// Dispatch creates an error for an item whose send failed. index is 1-based.
func Dispatch(index int, cause error) *AppError {
	return &AppError{
		Code:    ErrCodeDispatch,
		Message: fmt.Sprintf("item [%d] could not be dispatched", index),
		Details: map[string]any{DetailItem: index},
		Cause:   cause,
	}
}

// BlockDispatch creates an error for a block operation (open or close)
// that failed. index is the 1-based index of the first item of the block.
func BlockDispatch(index int, op string, cause error) *AppError {
	return &AppError{
		Code:    ErrCodeDispatch,
		Message: fmt.Sprintf("%s of block starting at item [%d] failed", op, index),
		Details: map[string]any{DetailItem: index, DetailOp: op},
		Cause:   cause,
	}
}

// Timeout creates an error for a dispatch phase that exceeded d.
// index is the lowest item still in flight when the deadline passed.
func Timeout(index int, d time.Duration) *AppError {
	return &AppError{
		Code:    ErrCodeTimeout,
		Message: fmt.Sprintf("item [%d] did not complete within %s", index, d),
		Details: map[string]any{DetailItem: index, DetailTimeout: d.String()},
	}
}

// SentinelResult creates an error for an item whose result matched a
// configured failure marker. code is ErrCodeTimeout or ErrCodeDispatch.
func SentinelResult(index int, code ErrorCode, result string) *AppError {
	return &AppError{
		Code:    code,
		Message: fmt.Sprintf("item [%d] returned failure result [%s]", index, result),
		Details: map[string]any{DetailItem: index},
	}
}

// Resource creates an error for a resource that failed to close.
func Resource(resource string, cause error) *AppError {
	return &AppError{
		Code:    ErrCodeResource,
		Message: fmt.Sprintf("cannot close %s", resource),
		Details: map[string]any{DetailResource: resource},
		Cause:   cause,
	}
}

// --- Inspection ---

// IsAppError checks if an error is an AppError.
func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

// AsAppError converts an error to an AppError if possible.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// HasCode reports whether err is an AppError with the given code.
func HasCode(err error, code ErrorCode) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Code == code
}

// IsDispatch reports whether err describes a failed dispatch, timeouts included.
func IsDispatch(err error) bool {
	appErr, ok := AsAppError(err)
	return ok && IsDispatchCode(appErr.Code)
}

// ItemIndex returns the 1-based item index carried by a dispatch error.
func ItemIndex(err error) (int, bool) {
	appErr, ok := AsAppError(err)
	if !ok || appErr.Details == nil {
		return 0, false
	}
	idx, ok := appErr.Details[DetailItem].(int)
	return idx, ok
}
