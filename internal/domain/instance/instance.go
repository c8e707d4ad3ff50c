// Package instance is the Instance aggregate (spec §3): the unit of
// BPMN process execution, its variables, pending token set, inbox and
// status, together with the domain events needed to journal and replay it
// (spec §4.7).
package instance

import (
	"encoding/json"
	"reflect"
	"time"

	"github.com/duragraph/duragraph/internal/pkg/errors"
	"github.com/duragraph/duragraph/internal/pkg/eventbus"
	pkguuid "github.com/duragraph/duragraph/internal/pkg/uuid"
)

// Instance is a running (or finished/failed) BPMN process instance.
type Instance struct {
	id        string
	modelRef  string
	variables map[string]interface{}
	pending   []string // insertion-ordered set of vertex ids carrying a token
	status    Status
	inbox     []Message
	createdAt time.Time
	updatedAt time.Time

	events []eventbus.Event
}

// New creates a fresh instance with a newly minted id if id is empty, and
// journals instance_created (spec §4.8 create_instance).
func New(id, modelRef string, initialVars map[string]interface{}) (*Instance, error) {
	if modelRef == "" {
		return nil, errors.InvalidInput("model_ref", "model_ref is required")
	}
	if id == "" {
		id = pkguuid.New()
	}
	if initialVars == nil {
		initialVars = make(map[string]interface{})
	}

	now := time.Now()
	inst := &Instance{
		id:        id,
		modelRef:  modelRef,
		variables: initialVars,
		status:    StatusRunning,
		createdAt: now,
		updatedAt: now,
	}

	inst.recordEvent(Created{
		InstanceID: id,
		ModelRef:   modelRef,
		Variables:  initialVars,
		OccurredAt: now,
	})

	return inst, nil
}

// ID returns the instance id.
func (i *Instance) ID() string { return i.id }

// ModelRef returns the model this instance was created from.
func (i *Instance) ModelRef() string { return i.modelRef }

// Status returns the current status.
func (i *Instance) Status() Status { return i.status }

// Variables returns the live variable tree. Callers that need an isolated
// read must use Snapshot.
func (i *Instance) Variables() map[string]interface{} { return i.variables }

// Pending returns the live pending set in insertion order.
func (i *Instance) Pending() []string {
	out := make([]string, len(i.pending))
	copy(out, i.pending)
	return out
}

// InboxLen reports how many messages are queued.
func (i *Instance) InboxLen() int { return len(i.inbox) }

// CreatedAt returns the creation time.
func (i *Instance) CreatedAt() time.Time { return i.createdAt }

// UpdatedAt returns the last update time.
func (i *Instance) UpdatedAt() time.Time { return i.updatedAt }

// Snapshot returns a deep, independent copy of variables for read-only
// external inspection between scheduler steps (spec §5 "shared resources").
func (i *Instance) Snapshot() (map[string]interface{}, error) {
	return DeepCopyVars(i.variables)
}

// Enter adds vertexID to the pending set and journals Entered. Called by the
// scheduler before invoking a vertex's side-effecting run (spec §9
// "journaling before externalization").
func (i *Instance) Enter(vertexID string) {
	i.pending = append(i.pending, vertexID)
	now := time.Now()
	i.updatedAt = now
	i.recordEvent(Entered{InstanceID: i.id, VertexID: vertexID, OccurredAt: now})
}

// Complete removes vertexID from the pending set and journals Completed.
func (i *Instance) Complete(vertexID string) {
	i.removePending(vertexID)
	now := time.Now()
	i.updatedAt = now
	i.recordEvent(Completed{InstanceID: i.id, VertexID: vertexID, OccurredAt: now})
}

// removePending removes a single occurrence of vertexID (the first one),
// not every occurrence: the same vertex id can appear more than once in
// pending when several sequence flows converge on one parallel gateway
// before it joins, and each occurrence represents one distinct token.
func (i *Instance) removePending(vertexID string) {
	for idx, v := range i.pending {
		if v == vertexID {
			i.pending = append(i.pending[:idx], i.pending[idx+1:]...)
			return
		}
	}
}

// CompleteAll removes every pending occurrence of vertexID at once and
// journals one Completed event per occurrence. A parallel-gateway join
// fires on the token that brings its arrival count up to IncomingCount, but
// every prior absorbed token sitting in pending for that vertex belongs to
// the same cycle and must be consumed with it — consuming only the firing
// token (as Complete would) leaves the earlier arrivals stranded in
// pending forever (spec §4.3 "join counter... resets to incoming-edge
// count once it fires").
func (i *Instance) CompleteAll(vertexID string) {
	for i.HasPending(vertexID) {
		i.Complete(vertexID)
	}
}

// HasPending reports whether vertexID currently carries a token.
func (i *Instance) HasPending(vertexID string) bool {
	return i.CountPending(vertexID) > 0
}

// CountPending reports how many tokens currently sit at vertexID. A
// parallel gateway's join counter is exactly this count: each arrival
// appends one pending entry, and only CompleteAll (the join actually
// firing) removes them, so the count always reflects "arrivals since the
// gateway last fired" — an absorbed token that does not yet trigger the
// join must stay in pending, or the next arrival would see a count reset
// to zero and the join would never fire (spec §9's reset-on-fire fix falls
// out of this representation only if absorbed arrivals are preserved this
// way).
func (i *Instance) CountPending(vertexID string) int {
	n := 0
	for _, v := range i.pending {
		if v == vertexID {
			n++
		}
	}
	return n
}

// Enqueue appends msg to the inbox and journals message_received
// (undelivered). Spec §4.5 inbox is a plain FIFO queue.
func (i *Instance) Enqueue(msg Message) {
	i.inbox = append(i.inbox, msg)
	now := time.Now()
	i.updatedAt = now
	i.recordEvent(MessageReceived{InstanceID: i.id, Message: msg, Delivered: false, OccurredAt: now})
}

// PopInbox removes and returns the oldest queued message, if any.
func (i *Instance) PopInbox() (Message, bool) {
	if len(i.inbox) == 0 {
		return Message{}, false
	}
	msg := i.inbox[0]
	i.inbox = i.inbox[1:]
	return msg, true
}

// MarkDelivered journals that msg was handed to its target vertex (whether
// or not the vertex accepted it — spec §9: messages to a non-waiting vertex
// are dropped, not re-queued).
func (i *Instance) MarkDelivered(msg Message) {
	now := time.Now()
	i.updatedAt = now
	i.recordEvent(MessageReceived{InstanceID: i.id, Message: msg, Delivered: true, OccurredAt: now})
}

// UpdateVariables replaces the variable tree and journals a full snapshot.
func (i *Instance) UpdateVariables(vars map[string]interface{}) {
	i.variables = vars
	now := time.Now()
	i.updatedAt = now
	i.recordEvent(VariablesUpdated{InstanceID: i.id, Snapshot: vars, OccurredAt: now})
}

// TransitionTo moves the instance to newStatus, journaling Terminated if the
// new status is terminal.
func (i *Instance) TransitionTo(newStatus Status) error {
	if !i.status.CanTransitionTo(newStatus) {
		return errors.InvalidState(i.status.String(), "transition to "+newStatus.String())
	}
	i.status = newStatus
	now := time.Now()
	i.updatedAt = now
	if newStatus.IsTerminal() {
		i.recordEvent(Terminated{InstanceID: i.id, State: newStatus, OccurredAt: now})
	}
	return nil
}

// Events returns uncommitted domain events.
func (i *Instance) Events() []eventbus.Event { return i.events }

// ClearEvents clears uncommitted domain events.
func (i *Instance) ClearEvents() { i.events = nil }

func (i *Instance) recordEvent(event eventbus.Event) {
	i.events = append(i.events, event)
}

// Reconstruct rebuilds an instance purely by replaying its journal, per
// spec §4.7: rehydrate variables from the latest snapshot, replay Entered/
// Completed to restore pending, and requeue unconsumed MessageReceived
// entries. It never re-invokes vertex behavior (replay is state-only).
func Reconstruct(events []eventbus.Event) (*Instance, error) {
	if len(events) == 0 {
		return nil, errors.InvalidInput("events", "at least one event is required")
	}

	inst := &Instance{}
	for _, event := range events {
		if err := inst.apply(event); err != nil {
			return nil, err
		}
	}
	return inst, nil
}

func (i *Instance) apply(event eventbus.Event) error {
	switch e := event.(type) {
	case Created:
		i.id = e.InstanceID
		i.modelRef = e.ModelRef
		i.variables = e.Variables
		if i.variables == nil {
			i.variables = make(map[string]interface{})
		}
		i.status = StatusRunning
		i.createdAt = e.OccurredAt
		i.updatedAt = e.OccurredAt

	case Entered:
		i.pending = append(i.pending, e.VertexID)
		i.updatedAt = e.OccurredAt

	case Completed:
		i.removePending(e.VertexID)
		i.updatedAt = e.OccurredAt

	case MessageReceived:
		if !e.Delivered {
			i.inbox = append(i.inbox, e.Message)
		} else {
			i.removeInbox(e.Message)
		}
		i.updatedAt = e.OccurredAt

	case VariablesUpdated:
		i.variables = e.Snapshot
		i.updatedAt = e.OccurredAt

	case Terminated:
		i.status = e.State
		i.updatedAt = e.OccurredAt
	}
	return nil
}

func (i *Instance) removeInbox(msg Message) {
	for idx, m := range i.inbox {
		if m.Kind == msg.Kind && m.TaskID == msg.TaskID && reflect.DeepEqual(m.Payload, msg.Payload) {
			i.inbox = append(i.inbox[:idx], i.inbox[idx+1:]...)
			return
		}
	}
}

// DeepCopyVars returns a structural copy of vars, preserving nested maps
// and lists, via JSON round-trip (spec §9 "deep-copy of variables across
// sub-process boundaries").
func DeepCopyVars(vars map[string]interface{}) (map[string]interface{}, error) {
	data, err := json.Marshal(vars)
	if err != nil {
		return nil, errors.Internal("failed to marshal variables", err)
	}
	out := make(map[string]interface{})
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, errors.Internal("failed to unmarshal variables", err)
	}
	return out, nil
}
