package errors

import (
	"context"
	"errors"
)

// ErrorSeverity indicates the severity of an error for UI presentation.
type ErrorSeverity int

const (
	SeverityInfo    ErrorSeverity = iota // User should know, not blocking
	SeverityWarning                      // Degraded functionality
	SeverityError                        // Operation failed, can retry
	SeverityFatal                        // Application must exit
)

// String returns the lower-case severity name.
func (s ErrorSeverity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// UIError wraps an error with UI-friendly presentation metadata.
type UIError struct {
	Err      error
	Severity ErrorSeverity
	Title    string   // Short user-facing title
	Message  string   // Detailed user-facing message
	Recovery []string // Suggested actions (bullet points)
	Details  string   // Technical details (collapsed by default)
}

func (e UIError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Title
}

// Unwrap returns the underlying error.
func (e UIError) Unwrap() error {
	return e.Err
}

// ClassifyError converts a standard error into a UIError with appropriate
// severity, title, message, and recovery suggestions.
func ClassifyError(err error) *UIError {
	if err == nil {
		return nil
	}

	// Check if already a UIError
	var uiErr *UIError
	if errors.As(err, &uiErr) {
		return uiErr
	}

	// Host errors carry a gRPC status
	if hostErr := classifyHostStatus(err); hostErr != nil {
		return hostErr
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &UIError{
			Err:      err,
			Severity: SeverityError,
			Title:    "Backend Timeout",
			Message:  "The backend took too long to reply.",
			Recovery: []string{"Try again", "Increase the timeout setting"},
		}

	case errors.Is(err, context.Canceled):
		return &UIError{
			Err:      err,
			Severity: SeverityInfo,
			Title:    "Cancelled",
			Message:  "The operation was cancelled.",
			Recovery: []string{},
		}

	case errors.Is(err, ErrDuplicateIndex):
		return &UIError{
			Err:      err,
			Severity: SeverityWarning,
			Title:    "Request Already Running",
			Message:  "A request with the same index is still waiting for its response.",
			Recovery: []string{"Wait for the response before sending again"},
			Details:  err.Error(),
		}

	case errors.Is(err, ErrTransportUnavailable):
		return &UIError{
			Err:      err,
			Severity: SeverityError,
			Title:    "Backend Unavailable",
			Message:  "Unable to reach the backend.",
			Recovery: []string{
				"Check that the backend is running",
				"Verify the backend address",
			},
			Details: err.Error(),
		}

	case errors.Is(err, ErrMalformedReply):
		return &UIError{
			Err:      err,
			Severity: SeverityError,
			Title:    "Unexpected Reply",
			Message:  "The backend reply could not be read.",
			Recovery: []string{"Check that the backend matches this version"},
			Details:  err.Error(),
		}
	}

	var inputErr UserInputError
	if errors.As(err, &inputErr) {
		return &UIError{
			Err:      err,
			Severity: SeverityWarning,
			Title:    "Invalid Input",
			Message:  inputErr.Message,
			Recovery: []string{"Correct the field value and try again"},
			Details:  inputErr.Error(),
		}
	}

	// Default fallback for unknown errors
	return &UIError{
		Err:      err,
		Severity: SeverityError,
		Title:    "Unexpected Error",
		Message:  "An unexpected error occurred.",
		Recovery: []string{"Try again"},
		Details:  err.Error(),
	}
}
