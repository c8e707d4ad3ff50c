// Package journal is the append-only event log per instance (spec §4.7): a
// durability boundary distinct from the in-process instance.Event list
// (which is the uncommitted write-ahead buffer a Repository flushes here).
package journal

import "time"

// EventKind is the closed set of journal entry kinds (spec §3).
type EventKind string

const (
	KindInstanceCreated  EventKind = "instance_created"
	KindEntered          EventKind = "entered"
	KindCompleted        EventKind = "completed"
	KindMessageReceived  EventKind = "message_received"
	KindVariablesUpdated EventKind = "variables_updated"
	KindTerminated       EventKind = "terminated"
)

// Entry is one row of an instance's append-only journal.
type Entry struct {
	InstanceID        string
	Seq               int
	Timestamp         time.Time
	EventKind         EventKind
	VertexID          string
	Payload           map[string]interface{}
	VariablesSnapshot map[string]interface{}
}
