// Package apierror converts raw failures from the completion API and the
// network into the closed domain.ErrorCode set, and carries the user-safe
// message next to the internal record for logging.
package apierror

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"regexp"
	"strings"

	"github.com/vietddude/rewriter/internal/core/domain"
)

type entry struct {
	Status      int
	Severity    domain.Severity
	UserMessage string
	LogMessage  string
}

// table holds the static per-code configuration. Not mutated at runtime.
var table = map[domain.ErrorCode]entry{
	domain.ErrInvalidPrompt: {
		Status:      http.StatusBadRequest,
		Severity:    domain.SeverityLow,
		UserMessage: "The prompt is missing or invalid. Please provide rewrite instructions.",
		LogMessage:  "invalid prompt received",
	},
	domain.ErrInvalidText: {
		Status:      http.StatusBadRequest,
		Severity:    domain.SeverityLow,
		UserMessage: "The selected text is missing or too large to rewrite.",
		LogMessage:  "invalid text received",
	},
	domain.ErrAPIUnavailable: {
		Status:      http.StatusServiceUnavailable,
		Severity:    domain.SeverityHigh,
		UserMessage: "The rewrite service is temporarily unavailable. Please try again shortly.",
		LogMessage:  "completion API unavailable",
	},
	domain.ErrRateLimited: {
		Status:      http.StatusTooManyRequests,
		Severity:    domain.SeverityMedium,
		UserMessage: "Too many requests. Please wait a moment and try again.",
		LogMessage:  "completion API rate limited",
	},
	domain.ErrTimeout: {
		Status:      http.StatusRequestTimeout,
		Severity:    domain.SeverityMedium,
		UserMessage: "The rewrite took too long. Please try again with a shorter text.",
		LogMessage:  "operation timed out",
	},
	domain.ErrInternal: {
		Status:      http.StatusInternalServerError,
		Severity:    domain.SeverityCritical,
		UserMessage: "Something went wrong. Please try again.",
		LogMessage:  "unclassified internal error",
	},
	domain.ErrMethodNotAllowed: {
		Status:      http.StatusMethodNotAllowed,
		Severity:    domain.SeverityLow,
		UserMessage: "This endpoint only accepts POST requests.",
		LogMessage:  "method not allowed",
	},
	domain.ErrQueueFull: {
		Status:      http.StatusServiceUnavailable,
		Severity:    domain.SeverityHigh,
		UserMessage: "The service is at capacity. Please try again in a moment.",
		LogMessage:  "request queue full",
	},
	domain.ErrQueueTimeout: {
		Status:      http.StatusServiceUnavailable,
		Severity:    domain.SeverityMedium,
		UserMessage: "The request waited too long in the queue. Please try again.",
		LogMessage:  "request timed out in queue",
	},
	domain.ErrExecutionTimeout: {
		Status:      http.StatusGatewayTimeout,
		Severity:    domain.SeverityMedium,
		UserMessage: "The rewrite took too long. Please try again.",
		LogMessage:  "request execution timed out",
	},
}

func lookup(code domain.ErrorCode) entry {
	if e, ok := table[code]; ok {
		return e
	}
	return table[domain.ErrInternal]
}

// Error is the single error type that crosses component boundaries.
// Message is user-safe; Err holds the sanitized raw cause for logging.
type Error struct {
	Code    domain.ErrorCode
	Status  int
	Message string
	Err     error
	Context *domain.RequestContext
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return string(e.Code)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an Error for a code, wrapping the raw cause (which may be nil).
func New(code domain.ErrorCode, raw error) *Error {
	ent := lookup(code)
	var wrapped error
	if raw != nil {
		wrapped = errors.New(Sanitize(raw.Error()))
	}
	return &Error{
		Code:    code,
		Status:  ent.Status,
		Message: ent.UserMessage,
		Err:     wrapped,
	}
}

// WithContext attaches request metadata for logging and returns the error.
func (e *Error) WithContext(rctx *domain.RequestContext) *Error {
	e.Context = rctx
	return e
}

// From performs the boundary conversion: an *Error passes through
// untouched, anything else is classified once and wrapped.
func From(err error) *Error {
	var aerr *Error
	if errors.As(err, &aerr) {
		return aerr
	}
	return New(Classify(err), err)
}

// CodeForStatus maps an HTTP status from the completion API to a code.
func CodeForStatus(status int) domain.ErrorCode {
	switch {
	case status == http.StatusBadRequest:
		return domain.ErrInvalidText
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return domain.ErrAPIUnavailable
	case status == http.StatusMethodNotAllowed:
		return domain.ErrMethodNotAllowed
	case status == http.StatusRequestTimeout:
		return domain.ErrTimeout
	case status == http.StatusTooManyRequests:
		return domain.ErrRateLimited
	case status >= 500:
		return domain.ErrAPIUnavailable
	default:
		return domain.ErrInternal
	}
}

// Classify maps a raw error to a code. Checked in order: an existing
// *Error, deadline/timeout errors, then transient network failures.
func Classify(err error) domain.ErrorCode {
	if err == nil {
		return domain.ErrInternal
	}

	var aerr *Error
	if errors.As(err, &aerr) {
		return aerr.Code
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return domain.ErrTimeout
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return domain.ErrTimeout
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "timed out"):
		return domain.ErrTimeout
	case strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "connection reset"),
		strings.Contains(msg, "no such host"),
		strings.Contains(msg, "broken pipe"),
		strings.Contains(msg, "unexpected eof"):
		return domain.ErrAPIUnavailable
	case strings.Contains(msg, "too many requests") || strings.Contains(msg, "rate limit"):
		return domain.ErrRateLimited
	default:
		return domain.ErrInternal
	}
}

// Retryable reports the default retryability of a code. The retry
// executor may widen this set per policy, never narrow it.
func Retryable(code domain.ErrorCode) bool {
	switch code {
	case domain.ErrTimeout, domain.ErrRateLimited, domain.ErrAPIUnavailable:
		return true
	default:
		return false
	}
}

// StatusFor returns the HTTP status recorded for a code.
func StatusFor(code domain.ErrorCode) int {
	return lookup(code).Status
}

// SeverityFor returns the logging severity recorded for a code.
func SeverityFor(code domain.ErrorCode) domain.Severity {
	return lookup(code).Severity
}

var sensitivePattern = regexp.MustCompile(
	`(?i)\b(api[_-]?key|key|token|password|secret|authorization|bearer)\b\s*[=:]?\s*(?:bearer\s+)?[^\s",}]+`)

// Sanitize strips credential-looking values from an error message so
// they never reach logs or attempt history.
func Sanitize(msg string) string {
	return sensitivePattern.ReplaceAllString(msg, "$1=[redacted]")
}

// Log routes an error to the logger at the severity recorded for its
// code. Critical errors carry an alert attribute as the alerting hook.
func Log(log *slog.Logger, e *Error) {
	ent := lookup(e.Code)
	attrs := []any{
		"code", string(e.Code),
		"status", e.Status,
	}
	if e.Err != nil {
		attrs = append(attrs, "error", e.Err.Error())
	}
	if e.Context != nil {
		attrs = append(attrs,
			"request_id", e.Context.RequestID,
			"endpoint", e.Context.Endpoint,
			"origin", e.Context.Origin,
			"user_agent", e.Context.UserAgent,
		)
	}

	switch ent.Severity {
	case domain.SeverityLow:
		log.Info(ent.LogMessage, attrs...)
	case domain.SeverityMedium:
		log.Warn(ent.LogMessage, attrs...)
	case domain.SeverityHigh:
		log.Error(ent.LogMessage, attrs...)
	case domain.SeverityCritical:
		log.Error(ent.LogMessage, append(attrs, "alert", true)...)
	default:
		log.Error(ent.LogMessage, attrs...)
	}
}
