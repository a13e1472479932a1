package bridge

import (
	"strings"

	"github.com/shhac/bolt/internal/domain"
	apperrors "github.com/shhac/bolt/internal/errors"
)

// ParseMethod maps a selector such as "post" to its Method. Selectors are
// the lower-case method names.
func ParseMethod(selector string) (domain.Method, error) {
	for _, m := range domain.Methods {
		if selector == strings.ToLower(string(m)) {
			return m, nil
		}
	}
	return "", apperrors.UserInputError{
		Field:   "method",
		Value:   selector,
		Message: "invalid method",
	}
}
