package element

import (
	"context"

	"github.com/duragraph/duragraph/internal/domain/graph"
	"github.com/duragraph/duragraph/internal/domain/instance"
)

// Context is the per-step view a vertex's Run needs into its owning
// instance and the scheduler's collaborators (spec §4.3 "instance_ctx").
// Implemented by the scheduler; kept as a narrow interface so element
// behaviors stay unit-testable without a running scheduler.
type Context interface {
	// InstanceID returns the owning instance's id (needed by serviceTask's
	// id_instance override, spec §4.3 step 1).
	InstanceID() string

	// Variables returns the live, mutable variable map. Behaviors read and
	// write through it directly; the scheduler is responsible for
	// journaling the result once the step completes.
	Variables() map[string]interface{}

	// SystemVariables returns the immutable process-wide variables merged
	// into every service-task body (spec §4.3 step 2, §6).
	SystemVariables() map[string]interface{}

	// PendingCount reports how many tokens currently sit at vertexID,
	// including the one being processed right now.
	PendingCount(vertexID string) int

	// TakeDelivery returns (and consumes) the message just delivered to
	// vertexID this scheduler pass, if any.
	TakeDelivery(vertexID string) (instance.Message, bool)

	// InvokeConnector performs the HTTP call described by conn (spec §4.4),
	// merging params/body as already resolved by the caller. A connector id
	// that does not resolve against the configured datasources yields
	// (nil, nil) (spec §4.3 step 3: "else succeed with no side effect").
	InvokeConnector(ctx context.Context, conn graph.Connector, params, body map[string]interface{}) (map[string]interface{}, error)

	// InvokeCallActivity resolves calledElement, creates a fresh child
	// instance with childVars, and runs it to completion, returning the
	// child's final variables (spec §4.6 steps 1 and 3). The mapping
	// arithmetic around this call lives in this package, not here.
	InvokeCallActivity(ctx context.Context, calledElement string, deployment bool, childVars map[string]interface{}) (map[string]interface{}, error)
}
