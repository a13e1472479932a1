package errors

import (
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// classifyHostStatus converts an error carrying a gRPC status from an
// embedded host connection into a UIError. It returns nil when err has no
// status attached.
func classifyHostStatus(err error) *UIError {
	st, ok := status.FromError(err)
	if !ok || st.Code() == codes.OK {
		return nil
	}

	details := fmt.Sprintf("host: %s - %s", st.Code(), st.Message())

	switch st.Code() {
	case codes.Unavailable:
		return &UIError{
			Err:      err,
			Severity: SeverityError,
			Title:    "Host Not Responding",
			Message:  "The embedded host process is not reachable.",
			Recovery: []string{
				"Check that the host process is running",
				"Verify the host socket address",
			},
			Details: details,
		}

	case codes.DeadlineExceeded:
		return &UIError{
			Err:      err,
			Severity: SeverityError,
			Title:    "Host Timeout",
			Message:  "The host took too long to reply.",
			Recovery: []string{"Try again"},
			Details:  details,
		}

	case codes.Unimplemented, codes.NotFound:
		return &UIError{
			Err:      err,
			Severity: SeverityWarning,
			Title:    "Command Not Available",
			Message:  "The host does not implement this command.",
			Recovery: []string{"Verify the host version"},
			Details:  details,
		}

	case codes.Canceled:
		return &UIError{
			Err:      err,
			Severity: SeverityInfo,
			Title:    "Cancelled",
			Message:  "The operation was cancelled.",
			Recovery: []string{},
			Details:  details,
		}

	case codes.Internal, codes.Unknown:
		return &UIError{
			Err:      err,
			Severity: SeverityError,
			Title:    "Host Error",
			Message:  st.Message(),
			Recovery: []string{"Check the host log"},
			Details:  details,
		}

	default:
		return &UIError{
			Err:      err,
			Severity: SeverityError,
			Title:    "Host Call Failed",
			Message:  st.Message(),
			Recovery: []string{"Try again"},
			Details:  details,
		}
	}
}
