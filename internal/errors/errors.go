package errors

import "errors"

// Sentinel errors for common failure modes.
var (
	ErrTransportUnavailable = errors.New("transport unavailable")
	ErrMalformedReply       = errors.New("malformed reply")
	ErrNoPushChannel        = errors.New("transport has no push channel")
	ErrDuplicateIndex       = errors.New("correlation index already in flight")
)

// UserInputError represents a value from the editor that could not be used.
type UserInputError struct {
	Field   string
	Value   string
	Message string
}

func (e UserInputError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// IsUserInput reports whether err is, or wraps, a UserInputError.
func IsUserInput(err error) bool {
	var uie UserInputError
	return errors.As(err, &uie)
}
