// Package errdefs classifies vectord errors and maps them onto the wire
// status embedded in every response.
//
// Every error raised by the compiler, codec, admission controller or an
// engine is an *Error that unwraps to one of the kind sentinels, so
// callers test the kind with errors.Is and the handler derives the wire
// code with Status.
package errdefs

import (
	"context"
	"errors"
	"fmt"

	apiv1 "github.com/fyrsmithlabs/vectord/pkg/api/v1"
)

// Error kinds.
var (
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrNotFound          = errors.New("not found")
	ErrInternal          = errors.New("internal error")
	ErrResourceExhausted = errors.New("resource exhausted")
	ErrCancelled         = errors.New("cancelled")
	ErrUnsupported       = errors.New("unsupported")
)

// Error is a classified error carrying a wire error code.
type Error struct {
	Kind error
	Code apiv1.ErrorCode
	Msg  string
}

func (e *Error) Error() string {
	return e.Msg
}

// Unwrap returns the kind sentinel.
func (e *Error) Unwrap() error {
	return e.Kind
}

func newError(kind error, code apiv1.ErrorCode, format string, args ...any) error {
	return &Error{Kind: kind, Code: code, Msg: fmt.Sprintf(format, args...)}
}

// InvalidArgument reports malformed client input.
func InvalidArgument(code apiv1.ErrorCode, format string, args ...any) error {
	return newError(ErrInvalidArgument, code, format, args...)
}

// NotFound reports an unknown collection, partition, index or segment.
func NotFound(code apiv1.ErrorCode, format string, args ...any) error {
	return newError(ErrNotFound, code, format, args...)
}

// Internal reports a failure that is not the client's fault.
func Internal(code apiv1.ErrorCode, format string, args ...any) error {
	return newError(ErrInternal, code, format, args...)
}

// ResourceExhausted reports an admission rejection or timeout.
func ResourceExhausted(format string, args ...any) error {
	return newError(ErrResourceExhausted, apiv1.ErrorCodeOutOfMemory, format, args...)
}

// Unsupported reports a verb the configured engine cannot serve.
func Unsupported(format string, args ...any) error {
	return newError(ErrUnsupported, apiv1.ErrorCodeUnexpectedError, format, args...)
}

// Code returns the wire code for err. Context errors map to
// CONNECT_FAILED; unclassified errors to UNEXPECTED_ERROR.
func Code(err error) apiv1.ErrorCode {
	if err == nil {
		return apiv1.ErrorCodeSuccess
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	if errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return apiv1.ErrorCodeConnectFailed
	}
	return apiv1.ErrorCodeUnexpectedError
}

// Status converts err into the embedded response status.
func Status(err error) *apiv1.Status {
	if err == nil {
		return &apiv1.Status{ErrorCode: apiv1.ErrorCodeSuccess}
	}
	code := Code(err)
	if code == apiv1.ErrorCodeConnectFailed {
		return &apiv1.Status{ErrorCode: code, Reason: ConnectionClosed}
	}
	return &apiv1.Status{ErrorCode: code, Reason: err.Error()}
}

// ConnectionClosed is the status reason reported for cancelled calls.
const ConnectionClosed = "connection closed"

// Cancelled wraps a context error observed at a cancellation checkpoint.
func Cancelled(ctx context.Context) error {
	if ctx.Err() == nil {
		return nil
	}
	return fmt.Errorf("%w: connection closed: %w", ErrCancelled, ctx.Err())
}

// IsInvalidArgument reports whether err is of kind ErrInvalidArgument.
func IsInvalidArgument(err error) bool { return errors.Is(err, ErrInvalidArgument) }

// IsNotFound reports whether err is of kind ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsInternal reports whether err is of kind ErrInternal.
func IsInternal(err error) bool { return errors.Is(err, ErrInternal) }
