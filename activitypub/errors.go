package activitypub

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/wren-social/wren/internal/httpx"
)

// A ValidationError reports a malformed or incomplete activity. It is
// detected before any storage mutation and is never retried.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// NewValidationError returns a ValidationError with the given reason.
func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// A NotFoundError reports that an actor or notice could not be resolved,
// locally or remotely.
type NotFoundError struct {
	Resource string
	Err      error
}

func (e *NotFoundError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s not found: %v", e.Resource, e.Err)
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

func (e *NotFoundError) Unwrap() error { return e.Err }

// An AuthorizationError reports an invalid signature, or an operation
// attempted by an actor that does not own the target.
type AuthorizationError struct {
	Reason string
}

func (e *AuthorizationError) Error() string {
	return e.Reason
}

// A DeliveryError reports one or more failed deliveries to remote
// inboxes. Delivery happens after the local mutation has committed, so a
// DeliveryError never implies the local state was rolled back.
type DeliveryError struct {
	// Failures maps the inbox URI to the reason its delivery failed.
	Failures map[string]error
}

func (e *DeliveryError) Error() string {
	var reasons []string
	for inbox, err := range e.Failures {
		reasons = append(reasons, fmt.Sprintf("%s: %v", inbox, err))
	}
	return fmt.Sprintf("delivery failed for %d inbox(es): %s", len(e.Failures), strings.Join(reasons, "; "))
}

// A ServerError reports an internal failure, typically key generation or
// persistence. It aborts the request.
type ServerError struct {
	Err error
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server error: %v", e.Err)
}

func (e *ServerError) Unwrap() error { return e.Err }

// httpError maps the error taxonomy onto HTTP status codes for the httpx
// handler adaptor. Errors that already carry a status pass through.
func httpError(err error) error {
	if err == nil {
		return nil
	}
	switch err.(type) {
	case *httpx.StatusError:
		return err
	case *ValidationError:
		return httpx.Error(http.StatusBadRequest, err)
	case *NotFoundError:
		return httpx.Error(http.StatusNotFound, err)
	case *AuthorizationError:
		return httpx.Error(http.StatusForbidden, err)
	case *DeliveryError:
		return httpx.Error(http.StatusBadGateway, err)
	case *ServerError:
		return httpx.Error(http.StatusInternalServerError, err)
	default:
		return err
	}
}
