package domain

// ErrorCode is the closed set of failure categories used throughout the
// gateway. Raw errors from the completion API or the network are mapped
// into this set exactly once, at the boundary; downstream components
// never inspect raw error shapes.
type ErrorCode string

const (
	ErrInvalidPrompt    ErrorCode = "INVALID_PROMPT"
	ErrInvalidText      ErrorCode = "INVALID_TEXT"
	ErrAPIUnavailable   ErrorCode = "API_UNAVAILABLE"
	ErrRateLimited      ErrorCode = "RATE_LIMITED"
	ErrTimeout          ErrorCode = "TIMEOUT"
	ErrInternal         ErrorCode = "INTERNAL_ERROR"
	ErrMethodNotAllowed ErrorCode = "METHOD_NOT_ALLOWED"

	// Scheduler-local codes.
	ErrQueueFull        ErrorCode = "QUEUE_FULL"
	ErrQueueTimeout     ErrorCode = "QUEUE_TIMEOUT"
	ErrExecutionTimeout ErrorCode = "EXECUTION_TIMEOUT"
)

// Severity controls how a classified error is logged.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)
