// Package errors provides the structured error taxonomy used across the
// pipeline: operations wrap a cause with enough context (component,
// resource) to log and classify without parsing strings everywhere else.
package errors

import (
	"fmt"
	"strings"
)

// OperationError describes a failed operation with optional component and
// resource context. It is the common currency returned by pipeline stages
// so callers can decide whether to retry, fail fast, or degrade.
type OperationError struct {
	Operation string
	Component string
	Resource  string
	Cause     error
}

func (e *OperationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "failed to %s", e.Operation)
	if e.Component != "" {
		fmt.Fprintf(&b, ", component: %s", e.Component)
	}
	if e.Resource != "" {
		fmt.Fprintf(&b, ", resource: %s", e.Resource)
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ", cause: %s", e.Cause.Error())
	}
	return b.String()
}

func (e *OperationError) Unwrap() error {
	return e.Cause
}

// FailedTo builds an OperationError for the common case of a bare action
// plus an optional cause.
func FailedTo(action string, cause error) error {
	return &OperationError{Operation: action, Cause: cause}
}

// FailedToWithDetails builds an OperationError with component and resource
// context attached.
func FailedToWithDetails(action, component, resource string, cause error) error {
	return &OperationError{
		Operation: action,
		Component: component,
		Resource:  resource,
		Cause:     cause,
	}
}

// Wrapf adds formatted context to err, or returns nil if err is nil.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	msg := fmt.Sprintf(format, args...)
	return fmt.Errorf("%s: %w", msg, err)
}

// DatabaseError builds an OperationError scoped to the "database" component.
func DatabaseError(operation string, cause error) error {
	return &OperationError{Operation: operation, Component: "database", Cause: cause}
}

// NetworkError builds an OperationError scoped to the "network" component,
// carrying the endpoint as the resource.
func NetworkError(operation, endpoint string, cause error) error {
	return &OperationError{Operation: operation, Component: "network", Resource: endpoint, Cause: cause}
}

// ValidationError reports a field-level validation failure.
type fieldError struct {
	field  string
	reason string
}

func (e *fieldError) Error() string {
	return fmt.Sprintf("validation failed for field %s: %s", e.field, e.reason)
}

func ValidationError(field, reason string) error {
	return &fieldError{field: field, reason: reason}
}

// ConfigurationError reports a bad configuration setting.
type configError struct {
	setting string
	reason  string
}

func (e *configError) Error() string {
	return fmt.Sprintf("configuration error for setting %s: %s", e.setting, e.reason)
}

func ConfigurationError(setting, reason string) error {
	return &configError{setting: setting, reason: reason}
}

// TimeoutError reports an operation that exceeded its deadline.
type timeoutError struct {
	operation string
	duration  string
}

func (e *timeoutError) Error() string {
	return fmt.Sprintf("timeout while %s after %s", e.operation, e.duration)
}

func TimeoutError(operation, duration string) error {
	return &timeoutError{operation: operation, duration: duration}
}

// AuthenticationError reports a failed authentication attempt.
type authnError struct {
	reason string
}

func (e *authnError) Error() string {
	return fmt.Sprintf("authentication failed: %s", e.reason)
}

func AuthenticationError(reason string) error {
	return &authnError{reason: reason}
}

// AuthorizationError reports an authorization failure for an action on a
// resource.
type authzError struct {
	action   string
	resource string
}

func (e *authzError) Error() string {
	return fmt.Sprintf("authorization failed: insufficient permissions to %s %s", e.action, e.resource)
}

func AuthorizationError(action, resource string) error {
	return &authzError{action: action, resource: resource}
}

// ParseError reports a failure to parse a resource as a given format.
func ParseError(resource, format string, cause error) error {
	return &OperationError{
		Operation: fmt.Sprintf("parse %s as %s", resource, format),
		Component: "parser",
		Cause:     cause,
	}
}

var retryableSubstrings = []string{
	"timeout",
	"connection refused",
	"unavailable",
	"temporarily",
	"reset by peer",
	"broken pipe",
	"deadline exceeded",
}

// IsRetryable reports whether err looks like a transient external failure
// worth retrying, based on common wording used by network/database clients.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, sub := range retryableSubstrings {
		if strings.Contains(msg, sub) {
			return true
		}
	}
	return false
}

// Chain combines multiple non-nil errors into one, or returns nil if none
// are set. A single error passes through unwrapped.
func Chain(errs ...error) error {
	var nonNil []error
	for _, e := range errs {
		if e != nil {
			nonNil = append(nonNil, e)
		}
	}
	switch len(nonNil) {
	case 0:
		return nil
	case 1:
		return nonNil[0]
	default:
		msgs := make([]string, len(nonNil))
		for i, e := range nonNil {
			msgs[i] = e.Error()
		}
		return fmt.Errorf("multiple errors: %s", strings.Join(msgs, "; "))
	}
}
