package instance

import "time"

// Event type strings, one per journal event_kind in spec §3/§4.7.
const (
	EventTypeInstanceCreated  = "instance.created"
	EventTypeEntered          = "instance.entered"
	EventTypeCompleted        = "instance.completed"
	EventTypeMessageReceived  = "instance.message_received"
	EventTypeVariablesUpdated = "instance.variables_updated"
	EventTypeTerminated       = "instance.terminated"
)

// Created is recorded once, at instance birth.
type Created struct {
	InstanceID string                 `json:"instance_id"`
	ModelRef   string                 `json:"model_ref"`
	Variables  map[string]interface{} `json:"variables,omitempty"`
	OccurredAt time.Time              `json:"occurred_at"`
}

func (e Created) EventType() string     { return EventTypeInstanceCreated }
func (e Created) AggregateID() string   { return e.InstanceID }
func (e Created) AggregateType() string { return "instance" }

// Entered is recorded before a vertex's side-effecting run, so that replay
// can tell an in-flight step from a completed one (spec §9 "journaling
// before externalization").
type Entered struct {
	InstanceID string    `json:"instance_id"`
	VertexID   string    `json:"vertex_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (e Entered) EventType() string     { return EventTypeEntered }
func (e Entered) AggregateID() string   { return e.InstanceID }
func (e Entered) AggregateType() string { return "instance" }

// Completed is recorded only once a vertex's run succeeded.
type Completed struct {
	InstanceID string    `json:"instance_id"`
	VertexID   string    `json:"vertex_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (e Completed) EventType() string     { return EventTypeCompleted }
func (e Completed) AggregateID() string   { return e.InstanceID }
func (e Completed) AggregateType() string { return "instance" }

// MessageReceived is recorded when an inbox message is enqueued, and again
// implicitly consumed once delivered (tracked via Delivered on replay).
type MessageReceived struct {
	InstanceID string    `json:"instance_id"`
	Message    Message   `json:"message"`
	Delivered  bool      `json:"delivered"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (e MessageReceived) EventType() string     { return EventTypeMessageReceived }
func (e MessageReceived) AggregateID() string   { return e.InstanceID }
func (e MessageReceived) AggregateType() string { return "instance" }

// VariablesUpdated snapshots the full variable tree after a mutation.
type VariablesUpdated struct {
	InstanceID string                 `json:"instance_id"`
	Snapshot   map[string]interface{} `json:"snapshot"`
	OccurredAt time.Time              `json:"occurred_at"`
}

func (e VariablesUpdated) EventType() string     { return EventTypeVariablesUpdated }
func (e VariablesUpdated) AggregateID() string   { return e.InstanceID }
func (e VariablesUpdated) AggregateType() string { return "instance" }

// Terminated is recorded when the instance reaches a terminal state.
type Terminated struct {
	InstanceID string    `json:"instance_id"`
	State      Status    `json:"state"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (e Terminated) EventType() string     { return EventTypeTerminated }
func (e Terminated) AggregateID() string   { return e.InstanceID }
func (e Terminated) AggregateType() string { return "instance" }
