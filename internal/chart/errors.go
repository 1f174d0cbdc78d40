package chart

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	CodeValidation       = "VALIDATION"
	CodeTargetNotFound   = "TARGET_NOT_FOUND"
	CodeEmptySeries      = "EMPTY_SERIES"
	CodeFetchFailed      = "FETCH_FAILED"
	CodeDecodeFailed     = "DECODE_FAILED"
	CodePlotFailed       = "PLOT_FAILED"
	CodeSuperseded       = "SUPERSEDED"
	CodeSeriesNotFound   = "SERIES_NOT_FOUND"
	CodeSnapshotNotFound = "SNAPSHOT_NOT_FOUND"
	CodeTabNotFound      = "TAB_NOT_FOUND"
	CodeCDPUnavailable   = "CDP_UNAVAILABLE"
	CodeEvalFailure      = "EVAL_FAILURE"
	CodeEvalTimeout      = "EVAL_TIMEOUT"
)

// CodedError is a typed error used for stable API mapping.
type CodedError struct {
	Code    string
	Message string
	Cause   error
}

func (e *CodedError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
}

func (e *CodedError) Unwrap() error { return e.Cause }

// NewError builds a CodedError. cause may be nil.
func NewError(code, msg string, cause error) error {
	return &CodedError{Code: code, Message: msg, Cause: cause}
}

// IsCode reports whether err wraps a CodedError carrying code.
func IsCode(err error, code string) bool {
	var coded *CodedError
	if !errors.As(err, &coded) {
		return false
	}
	return coded.Code == code
}

// CodeOf returns the code of the first CodedError in err's chain, or "".
func CodeOf(err error) string {
	var coded *CodedError
	if !errors.As(err, &coded) {
		return ""
	}
	return coded.Code
}

// StatusOf maps err to the HTTP status callers should see.
func StatusOf(err error) int {
	switch CodeOf(err) {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeTargetNotFound, CodeSeriesNotFound, CodeSnapshotNotFound, CodeTabNotFound:
		return http.StatusNotFound
	case CodeSuperseded:
		return http.StatusConflict
	case CodeEmptySeries:
		return http.StatusUnprocessableEntity
	case CodeFetchFailed, CodeCDPUnavailable:
		return http.StatusBadGateway
	case CodeEvalTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
