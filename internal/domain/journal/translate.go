package journal

import (
	"github.com/duragraph/duragraph/internal/domain/instance"
	"github.com/duragraph/duragraph/internal/pkg/eventbus"
)

// FromInstanceEvent converts one of instance's uncommitted domain events
// into the Entry shape a Repository persists. Seq is left zero; the
// Repository assigns it on append.
func FromInstanceEvent(event eventbus.Event) (Entry, bool) {
	switch e := event.(type) {
	case instance.Created:
		return Entry{
			InstanceID:        e.InstanceID,
			Timestamp:         e.OccurredAt,
			EventKind:         KindInstanceCreated,
			VariablesSnapshot: e.Variables,
			Payload:           map[string]interface{}{"model_ref": e.ModelRef},
		}, true

	case instance.Entered:
		return Entry{
			InstanceID: e.InstanceID,
			Timestamp:  e.OccurredAt,
			EventKind:  KindEntered,
			VertexID:   e.VertexID,
		}, true

	case instance.Completed:
		return Entry{
			InstanceID: e.InstanceID,
			Timestamp:  e.OccurredAt,
			EventKind:  KindCompleted,
			VertexID:   e.VertexID,
		}, true

	case instance.MessageReceived:
		return Entry{
			InstanceID: e.InstanceID,
			Timestamp:  e.OccurredAt,
			EventKind:  KindMessageReceived,
			VertexID:   e.Message.TaskID,
			Payload: map[string]interface{}{
				"kind":      string(e.Message.Kind),
				"task_id":   e.Message.TaskID,
				"payload":   e.Message.Payload,
				"delivered": e.Delivered,
			},
		}, true

	case instance.VariablesUpdated:
		return Entry{
			InstanceID:        e.InstanceID,
			Timestamp:         e.OccurredAt,
			EventKind:         KindVariablesUpdated,
			VariablesSnapshot: e.Snapshot,
		}, true

	case instance.Terminated:
		return Entry{
			InstanceID: e.InstanceID,
			Timestamp:  e.OccurredAt,
			EventKind:  KindTerminated,
			Payload:    map[string]interface{}{"state": e.State.String()},
		}, true

	default:
		return Entry{}, false
	}
}

// ToInstanceEvent converts a persisted Entry back into the domain event
// instance.Reconstruct understands (spec §4.7 replay).
func ToInstanceEvent(instanceID string, e Entry) (eventbus.Event, bool) {
	switch e.EventKind {
	case KindInstanceCreated:
		return instance.Created{
			InstanceID: instanceID,
			ModelRef:   stringField(e.Payload, "model_ref"),
			Variables:  e.VariablesSnapshot,
			OccurredAt: e.Timestamp,
		}, true

	case KindEntered:
		return instance.Entered{InstanceID: instanceID, VertexID: e.VertexID, OccurredAt: e.Timestamp}, true

	case KindCompleted:
		return instance.Completed{InstanceID: instanceID, VertexID: e.VertexID, OccurredAt: e.Timestamp}, true

	case KindMessageReceived:
		kind, _ := e.Payload["kind"].(string)
		taskID, _ := e.Payload["task_id"].(string)
		payload, _ := e.Payload["payload"].(map[string]interface{})
		delivered, _ := e.Payload["delivered"].(bool)
		return instance.MessageReceived{
			InstanceID: instanceID,
			Message:    instance.Message{Kind: instance.MessageKind(kind), TaskID: taskID, Payload: payload},
			Delivered:  delivered,
			OccurredAt: e.Timestamp,
		}, true

	case KindVariablesUpdated:
		return instance.VariablesUpdated{InstanceID: instanceID, Snapshot: e.VariablesSnapshot, OccurredAt: e.Timestamp}, true

	case KindTerminated:
		state, _ := e.Payload["state"].(string)
		return instance.Terminated{InstanceID: instanceID, State: instance.ParseStatus(state), OccurredAt: e.Timestamp}, true

	default:
		return nil, false
	}
}

func stringField(m map[string]interface{}, key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}
