package app

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ValidationError reports a missing or malformed request field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

type MethodNotAllowedError struct {
	Method string
}

func (e *MethodNotAllowedError) Error() string {
	return "Method Not Allowed"
}

// MsgProductNotOwned hides whether a listing is absent or owned by someone else.
const MsgProductNotOwned = "Product not found or not owned by this seller."

// NotFoundError covers both absent resources and ownership mismatches.
type NotFoundError struct {
	Resource string
	ID       string
	Message  string
}

func (e *NotFoundError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// ConfigurationError names a required environment setting that is absent.
type ConfigurationError struct {
	Missing []string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("Missing %s in environment variables.", strings.Join(e.Missing, " or "))
}

// BackendError wraps a failure of the data store, auth store or object storage.
type BackendError struct {
	Op     string
	Status int
	// Code is the database error code when the backend reported one.
	Code    string
	Details any
	Err     error
}

func (e *BackendError) Error() string {
	if e.Err == nil {
		return e.Op + " failed"
	}
	return e.Err.Error()
}

func (e *BackendError) Unwrap() error { return e.Err }

// Conflict reports whether the backend rejected the write as a duplicate.
func (e *BackendError) Conflict() bool {
	return e.Status == http.StatusConflict
}

// CheckFailed reports whether a database check or trigger rejected the write.
func (e *BackendError) CheckFailed() bool {
	return e.Code == "23514"
}

// RelayError wraps a failure of the email relay or the payment provider.
type RelayError struct {
	Relay   string
	Details any
	Err     error
}

func (e *RelayError) Error() string {
	if e.Err == nil {
		return e.Relay + " failed"
	}
	return e.Err.Error()
}

func (e *RelayError) Unwrap() error { return e.Err }

// StatusCode maps an error of the taxonomy to the HTTP status used for it.
// BackendError keeps the caller-chosen default.
func StatusCode(err error, backendDefault int) int {
	var (
		validation *ValidationError
		method     *MethodNotAllowedError
		notFound   *NotFoundError
		backend    *BackendError
	)
	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.As(err, &method):
		return http.StatusMethodNotAllowed
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &backend):
		return backendDefault
	}
	return http.StatusInternalServerError
}

// ErrUnauthenticated is returned when a request carries no valid session.
var ErrUnauthenticated = errors.New("authentication required")
