package instance

// MessageKind is the closed set of inbox message kinds (spec §3).
type MessageKind string

const (
	MessageUserForm MessageKind = "user_form"
	MessageReceive  MessageKind = "receive"
)

// Message is a tagged union: UserForm{task_id, payload} | Receive{task_id, payload}.
// Both variants target a specific vertex id.
type Message struct {
	Kind    MessageKind
	TaskID  string
	Payload map[string]interface{}
}

// NewUserForm builds a UserForm message targeting taskID.
func NewUserForm(taskID string, payload map[string]interface{}) Message {
	return Message{Kind: MessageUserForm, TaskID: taskID, Payload: payload}
}

// NewReceive builds a Receive message targeting taskID.
func NewReceive(taskID string, payload map[string]interface{}) Message {
	return Message{Kind: MessageReceive, TaskID: taskID, Payload: payload}
}
