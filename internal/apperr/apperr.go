// Package apperr is the gateway's error taxonomy and its mapping onto HTTP
// responses. Detailed diagnostics (raw backend bodies, parse errors) stay in
// internal logs; callers only ever see a sanitized message plus a
// machine-readable type tag.
package apperr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

type Kind string

const (
	// KindBackend: the outbound call failed, the backend returned a
	// non-success status, or its body was not parseable JSON.
	KindBackend Kind = "backend_error"
	// KindTransform: the backend body parsed but lacked the fields the
	// active provider requires.
	KindTransform Kind = "transform_error"
	// KindTimeout: the outbound call did not complete within the budget.
	KindTimeout Kind = "timeout_error"
	// KindInvalidRequest: the inbound request body could not be decoded.
	KindInvalidRequest Kind = "invalid_request_error"
	// KindRateLimited: the inbound request exceeded the admission budget.
	KindRateLimited Kind = "rate_limit_error"
)

type Error struct {
	Kind    Kind
	Message string // client-visible, sanitized
	Detail  string // internal diagnostics, logged but never echoed
	Status  int    // backend HTTP status when relevant
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Backend wraps an outbound transport or decode failure.
func Backend(detail string, err error) *Error {
	return &Error{
		Kind:    KindBackend,
		Message: "backend request failed",
		Detail:  detail,
		Err:     err,
	}
}

// BackendStatus records a non-success backend status. The body is kept as
// internal detail only.
func BackendStatus(status int, body string) *Error {
	return &Error{
		Kind:    KindBackend,
		Message: fmt.Sprintf("backend returned status %d", status),
		Detail:  body,
		Status:  status,
	}
}

// Transform records a backend payload that parsed but did not carry the
// fields a provider requires. The offending payload goes into Detail.
func Transform(detail string, err error) *Error {
	return &Error{
		Kind:    KindTransform,
		Message: "failed to transform backend response",
		Detail:  detail,
		Err:     err,
	}
}

// Timeout records an outbound call that exceeded the configured budget.
func Timeout(err error) *Error {
	return &Error{
		Kind:    KindTimeout,
		Message: "backend request timed out",
		Err:     err,
	}
}

func InvalidRequest(err error) *Error {
	return &Error{
		Kind:    KindInvalidRequest,
		Message: "invalid request body",
		Err:     err,
	}
}

func RateLimited() *Error {
	return &Error{
		Kind:    KindRateLimited,
		Message: "rate limit exceeded",
	}
}

// HTTPStatus maps an error kind to the status returned to the caller.
func HTTPStatus(err error) int {
	var e *Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError
	}
	switch e.Kind {
	case KindBackend:
		return http.StatusBadGateway
	case KindTimeout:
		return http.StatusGatewayTimeout
	case KindInvalidRequest:
		return http.StatusBadRequest
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

type errorBody struct {
	Error errorBodyInner `json:"error"`
}

type errorBodyInner struct {
	Message string `json:"message"`
	Type    Kind   `json:"type"`
}

// Write logs the full diagnostics and sends the sanitized error body.
func Write(w http.ResponseWriter, logger *zap.Logger, err error) {
	var e *Error
	if !errors.As(err, &e) {
		e = &Error{Kind: KindTransform, Message: "internal error", Err: err}
	}

	fields := []zap.Field{
		zap.String("error_type", string(e.Kind)),
		zap.String("message", e.Message),
	}
	if e.Status != 0 {
		fields = append(fields, zap.Int("backend_status", e.Status))
	}
	if e.Detail != "" {
		fields = append(fields, zap.String("detail", e.Detail))
	}
	if e.Err != nil {
		fields = append(fields, zap.Error(e.Err))
	}
	logger.Error("request failed", fields...)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(HTTPStatus(e))
	_ = json.NewEncoder(w).Encode(errorBody{
		Error: errorBodyInner{Message: e.Message, Type: e.Kind},
	})
}
