package v1

import "errors"

// ErrorCode is the error kind embedded in every response status.
type ErrorCode int32

// Wire error codes.
const (
	ErrorCodeSuccess               ErrorCode = 0
	ErrorCodeUnexpectedError       ErrorCode = 1
	ErrorCodeConnectFailed         ErrorCode = 2
	ErrorCodePermissionDenied      ErrorCode = 3
	ErrorCodeCollectionNotExists   ErrorCode = 4
	ErrorCodeIllegalArgument       ErrorCode = 5
	ErrorCodeIllegalDimension      ErrorCode = 7
	ErrorCodeIllegalIndexType      ErrorCode = 8
	ErrorCodeIllegalCollectionName ErrorCode = 9
	ErrorCodeIllegalTopk           ErrorCode = 10
	ErrorCodeIllegalRowRecord      ErrorCode = 11
	ErrorCodeIllegalVectorID       ErrorCode = 12
	ErrorCodeIllegalSearchResult   ErrorCode = 13
	ErrorCodeFileNotFound          ErrorCode = 14
	ErrorCodeMetaFailed            ErrorCode = 15
	ErrorCodeCacheFailed           ErrorCode = 16
	ErrorCodeBuildIndexError       ErrorCode = 21
	ErrorCodeIllegalMetricType     ErrorCode = 23
	ErrorCodeOutOfMemory           ErrorCode = 24
)

var errorCodeNames = map[ErrorCode]string{
	ErrorCodeSuccess:               "SUCCESS",
	ErrorCodeUnexpectedError:       "UNEXPECTED_ERROR",
	ErrorCodeConnectFailed:         "CONNECT_FAILED",
	ErrorCodePermissionDenied:      "PERMISSION_DENIED",
	ErrorCodeCollectionNotExists:   "COLLECTION_NOT_EXISTS",
	ErrorCodeIllegalArgument:       "ILLEGAL_ARGUMENT",
	ErrorCodeIllegalDimension:      "ILLEGAL_DIMENSION",
	ErrorCodeIllegalIndexType:      "ILLEGAL_INDEX_TYPE",
	ErrorCodeIllegalCollectionName: "ILLEGAL_COLLECTION_NAME",
	ErrorCodeIllegalTopk:           "ILLEGAL_TOPK",
	ErrorCodeIllegalRowRecord:      "ILLEGAL_ROWRECORD",
	ErrorCodeIllegalVectorID:       "ILLEGAL_VECTOR_ID",
	ErrorCodeIllegalSearchResult:   "ILLEGAL_SEARCH_RESULT",
	ErrorCodeFileNotFound:          "FILE_NOT_FOUND",
	ErrorCodeMetaFailed:            "META_FAILED",
	ErrorCodeCacheFailed:           "CACHE_FAILED",
	ErrorCodeBuildIndexError:       "BUILD_INDEX_ERROR",
	ErrorCodeIllegalMetricType:     "ILLEGAL_METRIC_TYPE",
	ErrorCodeOutOfMemory:           "OUT_OF_MEMORY",
}

// String returns the upper-case wire name of the code.
func (c ErrorCode) String() string {
	if name, ok := errorCodeNames[c]; ok {
		return name
	}
	return "UNKNOWN"
}

// Status is embedded in every response. A non-success code means the
// call failed even though the transport reported success.
type Status struct {
	ErrorCode ErrorCode `json:"error_code"`
	Reason    string    `json:"reason,omitempty"`
}

// OK reports whether the status carries ErrorCodeSuccess. A nil status is OK.
func (s *Status) OK() bool {
	return s == nil || s.ErrorCode == ErrorCodeSuccess
}

// Err converts a failed status into a StatusError, or nil when OK.
func (s *Status) Err() error {
	if s.OK() {
		return nil
	}
	return &StatusError{Code: s.ErrorCode, Reason: s.Reason}
}

// StatusError is returned by Client when the server embedded a failure.
type StatusError struct {
	Code   ErrorCode
	Reason string
}

func (e *StatusError) Error() string {
	if e.Reason == "" {
		return e.Code.String()
	}
	return e.Code.String() + ": " + e.Reason
}

// Common client-side errors.
var (
	ErrNilRequest   = errors.New("request is nil")
	ErrNotConnected = errors.New("client not connected")
)
