package scheduler

import (
	"context"

	"github.com/duragraph/duragraph/internal/domain/graph"
	"github.com/duragraph/duragraph/internal/domain/instance"
)

// stepContext implements element.Context for one Scheduler.Run invocation,
// bridging a vertex behavior to its owning instance, model and the
// Scheduler's collaborators (spec §4.3 "instance_ctx").
type stepContext struct {
	inst  *instance.Instance
	model *graph.Model
	sched *Scheduler

	// delivered and deliverTarget carry the single inbox message being
	// offered to the vertex currently under evaluation, set fresh by Run
	// for each vertex in a round (spec §4.5 "deliver msg to vertex
	// msg.task_id in pending (if present); else drop").
	delivered     *instance.Message
	deliverTarget string

	// nextDelivery survives across Run's outer while-loop iterations: once
	// a message is popped off the inbox it is offered on the very next
	// round's pass over pending, not re-run within the same pass.
	nextDelivery *instance.Message
}

func (sc *stepContext) InstanceID() string { return sc.inst.ID() }

func (sc *stepContext) Variables() map[string]interface{} { return sc.inst.Variables() }

func (sc *stepContext) SystemVariables() map[string]interface{} { return sc.sched.systemVars }

func (sc *stepContext) PendingCount(vertexID string) int { return sc.inst.CountPending(vertexID) }

func (sc *stepContext) TakeDelivery(vertexID string) (instance.Message, bool) {
	if sc.delivered == nil || sc.deliverTarget != vertexID {
		return instance.Message{}, false
	}
	msg := *sc.delivered
	sc.delivered = nil
	return msg, true
}

func (sc *stepContext) InvokeConnector(ctx context.Context, conn graph.Connector, params, body map[string]interface{}) (map[string]interface{}, error) {
	if sc.sched.connector == nil {
		return nil, nil
	}
	return sc.sched.connector.Invoke(ctx, conn, params, body)
}

func (sc *stepContext) InvokeCallActivity(ctx context.Context, calledElement string, deployment bool, childVars map[string]interface{}) (map[string]interface{}, error) {
	return sc.sched.invokeCallActivity(ctx, sc.model, calledElement, childVars)
}
