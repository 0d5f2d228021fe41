package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/oakhurst-automation/stategate/internal/acl"
	"github.com/oakhurst-automation/stategate/internal/auth"
	"github.com/oakhurst-automation/stategate/internal/await"
	"github.com/oakhurst-automation/stategate/internal/coerce"
	"github.com/oakhurst-automation/stategate/internal/resolver"
	"github.com/oakhurst-automation/stategate/internal/store"
)

// errValidation tags missing or malformed required input (HTTP 422).
var errValidation = errors.New("invalid request")

// validationError wraps a message with the validation sentinel.
func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errValidation, fmt.Sprintf(format, args...))
}

// notFoundError tags a specific datapoint as unresolved, keeping the id in
// the outward-facing message.
func notFoundError(id string) error {
	return fmt.Errorf("%w: datapoint %q not found", resolver.ErrNotFound, id)
}

// statusFor maps an error to its HTTP status code.
//
// Permission denials are 403 across all commands; 401 is reserved for
// credential failures. Timeouts and malformed JSON are internal failures
// by contract.
func statusFor(err error) int {
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrUserDisabled):
		return http.StatusUnauthorized
	case errors.Is(err, acl.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, resolver.ErrNotFound), errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, coerce.ErrMalformedJSON), errors.Is(err, await.ErrTimeout):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
