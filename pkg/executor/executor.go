// Package executor implements the four-phase remediation action lifecycle
// (validate, execute, dry-run short-circuit, rollback) against a container
// orchestrator, plus the identifier grammar that gates every outward call,
// per §4.10/§4.11.
package executor

import (
	"context"
	"regexp"
	"time"

	"github.com/sentinelops/sentinel/internal/errors"
	"github.com/sentinelops/sentinel/pkg/types"
)

// maxIdentifierLength is the Kubernetes DNS-1123 subdomain length cap.
const maxIdentifierLength = 253

// identifierPattern enforces: lowercase alphanumeric, '-', '.'; must
// start/end with alphanumeric.
var identifierPattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9\-.]*[a-z0-9])?$`)

// ValidateIdentifier enforces the orchestration-target identifier grammar
// before any outward call is permitted.
func ValidateIdentifier(id string) error {
	if id == "" {
		return errors.ValidationError("identifier", "must not be empty")
	}
	if len(id) > maxIdentifierLength {
		return errors.ValidationError("identifier", "exceeds maximum length of 253")
	}
	if !identifierPattern.MatchString(id) {
		return errors.ValidationError("identifier", "must be lowercase alphanumeric, '-', '.', starting and ending with alphanumeric")
	}
	return nil
}

// Target names the orchestration object an action operates on.
type Target struct {
	Namespace  string
	Deployment string
	PodName    string // optional, specific pod
}

// ExecutionResult is the four-phase lifecycle's output, §4.10 step 2.
type ExecutionResult struct {
	Status      types.ActionStatus
	Message     string
	StartedAt   time.Time
	CompletedAt time.Time
	Details     map[string]interface{}
	Error       string
	DryRun      bool
	Simulated   bool
}

// Duration returns the wall-clock execution time.
func (r ExecutionResult) Duration() time.Duration {
	return r.CompletedAt.Sub(r.StartedAt)
}

// Executor is the four-phase contract every concrete action type satisfies.
type Executor interface {
	// Validate checks target/parameter shape, identifier grammar, and
	// (outside dry-run) live-state preconditions.
	Validate(ctx context.Context, target Target, params map[string]interface{}, dryRun bool) error
	// Execute performs (or simulates, in dry-run) the action.
	Execute(ctx context.Context, target Target, params map[string]interface{}, dryRun bool) ExecutionResult
	// Rollback reverses a prior execution where applicable. ok=false means
	// rollback does not apply to this action type (e.g. pod restart).
	Rollback(ctx context.Context, target Target, prior ExecutionResult) (ExecutionResult, bool)
}

// Registry maps action type names to their Executor implementation, the
// named-action registry pattern the action selector dispatches through.
type Registry struct {
	executors map[string]Executor
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{executors: make(map[string]Executor)}
}

// Register adds an executor under actionType, overwriting any existing
// registration.
func (r *Registry) Register(actionType string, e Executor) {
	r.executors[actionType] = e
}

// Get looks up the executor for actionType.
func (r *Registry) Get(actionType string) (Executor, bool) {
	e, ok := r.executors[actionType]
	return e, ok
}
