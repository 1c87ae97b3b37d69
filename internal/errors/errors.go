package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// StatusCSRFMismatch is the non-standard status used for rejected CSRF tokens.
const StatusCSRFMismatch = 419

// RazyError represents an error that can be returned to clients
type RazyError struct {
	Code       int    `json:"code"`
	Kind       string `json:"kind,omitempty"`
	Message    string `json:"message"`
	Details    string `json:"details,omitempty"`
	RequestID  string `json:"request_id,omitempty"`
	underlying error
}

func (e *RazyError) Error() string {
	if e.underlying != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.underlying)
	}
	return e.Message
}

func (e *RazyError) Unwrap() error {
	return e.underlying
}

// WriteJSON writes the error as JSON to the response.
// For base errors (no details/requestID), uses pre-serialized JSON to avoid allocations.
func (e *RazyError) WriteJSON(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.Code)
	if pre, ok := preSerialized[e]; ok {
		w.Write(pre)
		return
	}
	json.NewEncoder(w).Encode(e)
}

// Common request-time errors
var (
	ErrNotFound = &RazyError{
		Code:    http.StatusNotFound,
		Kind:    "ROUTE_NOT_FOUND",
		Message: "Not Found",
	}

	ErrCSRFMismatch = &RazyError{
		Code:    StatusCSRFMismatch,
		Kind:    "CSRF_MISMATCH",
		Message: "CSRF Token Mismatch",
	}

	ErrTooManyRequests = &RazyError{
		Code:    http.StatusTooManyRequests,
		Kind:    "RATE_LIMIT_EXCEEDED",
		Message: "Too Many Requests",
	}

	ErrShadowCycle = &RazyError{
		Code:    http.StatusInternalServerError,
		Kind:    "SHADOW_CYCLE",
		Message: "Shadow Route Cycle",
	}

	ErrAccessDenied = &RazyError{
		Code:    http.StatusForbidden,
		Kind:    "ACCESS_DENIED",
		Message: "Access Denied",
	}

	ErrInternalServer = &RazyError{
		Code:    http.StatusInternalServerError,
		Kind:    "INTERNAL_ERROR",
		Message: "Internal Server Error",
	}

	ErrBadRequest = &RazyError{
		Code:    http.StatusBadRequest,
		Kind:    "BAD_REQUEST",
		Message: "Bad Request",
	}
)

// Registration-time sentinels. These abort distributor boot.
var (
	ErrRouteConflict = errors.New("route conflict: duplicate method and pattern")
	ErrPatternSyntax = errors.New("invalid route pattern syntax")
	ErrRouteCycle    = errors.New("shadow route cycle")
)

// preSerialized holds JSON-encoded bytes for base error singletons.
var preSerialized map[*RazyError][]byte

func init() {
	bases := []*RazyError{
		ErrNotFound, ErrCSRFMismatch, ErrTooManyRequests,
		ErrShadowCycle, ErrAccessDenied, ErrInternalServer, ErrBadRequest,
	}
	preSerialized = make(map[*RazyError][]byte, len(bases))
	for _, e := range bases {
		b, _ := json.Marshal(e)
		b = append(b, '\n') // match json.Encoder behavior
		preSerialized[e] = b
	}
}

// New creates a new RazyError
func New(code int, message string) *RazyError {
	return &RazyError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an error with additional context
func Wrap(err error, code int, message string) *RazyError {
	return &RazyError{
		Code:       code,
		Message:    message,
		underlying: err,
	}
}

// WithDetails adds details to the error
func (e *RazyError) WithDetails(details string) *RazyError {
	return &RazyError{
		Code:       e.Code,
		Kind:       e.Kind,
		Message:    e.Message,
		Details:    details,
		RequestID:  e.RequestID,
		underlying: e.underlying,
	}
}

// WithRequestID adds a request ID to the error
func (e *RazyError) WithRequestID(requestID string) *RazyError {
	return &RazyError{
		Code:       e.Code,
		Kind:       e.Kind,
		Message:    e.Message,
		Details:    e.Details,
		RequestID:  requestID,
		underlying: e.underlying,
	}
}

// IsRazyError checks if an error is a RazyError
func IsRazyError(err error) (*RazyError, bool) {
	var re *RazyError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}
