// Package dto holds the wire shapes for the BPMN HTTP API (spec §6).
package dto

import "time"

// ErrorResponse is the uniform error body every handler returns.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// CreateInstanceRequest is the body of POST /model/{name}/instance.
type CreateInstanceRequest struct {
	InstanceID string                 `json:"instance_id,omitempty"`
	Variables  map[string]interface{} `json:"variables,omitempty"`
}

// InstanceResponse is returned by instance create/get/search routes.
type InstanceResponse struct {
	ID        string                 `json:"id"`
	ModelRef  string                 `json:"model_ref"`
	Status    string                 `json:"status"`
	Variables map[string]interface{} `json:"variables,omitempty"`
	Pending   []string               `json:"pending,omitempty"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// FormSubmission is the body of POST /instance/{iid}/task/{tid}/form.
type FormSubmission struct {
	Payload map[string]interface{} `json:"payload"`
}

// ReceiveSubmission is the body of POST /instance/{iid}/task/{tid}/receive
// and POST /model/{name}/task/{tid}/receive.
type ReceiveSubmission struct {
	Payload map[string]interface{} `json:"payload"`
}

// ModelListResponse is returned by GET /model.
type ModelListResponse struct {
	Models []string `json:"models"`
}
