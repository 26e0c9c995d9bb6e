// Package apierror defines the error taxonomy shared by the key validation
// and rate limiting layers. Every rejection carries a machine-readable
// snake_case code, a fixed HTTP status and a human message.
package apierror

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

type Code string

const (
	CodeAuthenticationRequired Code = "authentication_required"
	CodeInvalidAPIKey          Code = "invalid_api_key"
	CodeAPIKeyRevoked          Code = "api_key_revoked"
	CodeAPIKeyExpired          Code = "api_key_expired"
	CodeAPIKeySuspended        Code = "api_key_suspended"
	CodeRateLimitExceeded      Code = "rate_limit_exceeded"
	CodeUnauthorized           Code = "unauthorized"
	CodeForbidden              Code = "forbidden"
	CodeInternalError          Code = "internal_error"
)

var statusByCode = map[Code]int{
	CodeAuthenticationRequired: http.StatusUnauthorized,
	CodeInvalidAPIKey:          http.StatusUnauthorized,
	CodeAPIKeyRevoked:          http.StatusUnauthorized,
	CodeAPIKeyExpired:          http.StatusUnauthorized,
	CodeAPIKeySuspended:        http.StatusForbidden,
	CodeRateLimitExceeded:      http.StatusTooManyRequests,
	CodeUnauthorized:           http.StatusUnauthorized,
	CodeForbidden:              http.StatusForbidden,
	CodeInternalError:          http.StatusInternalServerError,
}

type Error struct {
	Code    Code           `json:"error"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`

	// RetryAfter is set only on rate limit errors, in whole seconds.
	RetryAfter int `json:"retry_after,omitempty"`
}

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Status returns the HTTP status for the error's code. Unknown codes map to
// 500 so a taxonomy gap is loud rather than silently 200.
func (e *Error) Status() int {
	if s, ok := statusByCode[e.Code]; ok {
		return s
	}
	return http.StatusInternalServerError
}

func (e *Error) WithDetails(details map[string]any) *Error {
	e.Details = details
	return e
}

func (e *Error) WithRetryAfter(seconds int) *Error {
	if seconds < 0 {
		seconds = 0
	}
	e.RetryAfter = seconds
	return e
}

// Abort writes the error response and stops the gin handler chain. Rate
// limit errors also get a Retry-After header mirroring the body field.
func Abort(c *gin.Context, e *Error) {
	if e.Code == CodeRateLimitExceeded {
		c.Header("Retry-After", fmt.Sprintf("%d", e.RetryAfter))
	}
	c.AbortWithStatusJSON(e.Status(), e)
}
