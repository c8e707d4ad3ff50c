package query

import (
	"context"

	"github.com/duragraph/duragraph/internal/domain/element"
	"github.com/duragraph/duragraph/internal/infrastructure/registry"
	"github.com/duragraph/duragraph/internal/pkg/errors"
)

// GetTask query (spec §6 GET /instance/{iid}/task/{tid}): a task's
// external-inspection descriptor (form schema, expected output variables),
// as produced by element.GetInfo.
type GetTask struct {
	InstanceID string
	TaskID     string
}

// GetTaskHandler handles the GetTask query.
type GetTaskHandler struct {
	registry *registry.Registry
}

// NewGetTaskHandler builds a GetTaskHandler.
func NewGetTaskHandler(reg *registry.Registry) *GetTaskHandler {
	return &GetTaskHandler{registry: reg}
}

// Handle returns q.TaskID's descriptor within q.InstanceID's model, whether
// or not the vertex currently carries a token — a client polling a task
// before it becomes pending still needs its form schema to render a UI.
func (h *GetTaskHandler) Handle(ctx context.Context, q GetTask) (map[string]interface{}, error) {
	_, model, err := h.registry.GetOrLoadInstance(ctx, q.InstanceID)
	if err != nil {
		return nil, err
	}

	vertex, ok := model.Vertex(q.TaskID)
	if !ok {
		return nil, errors.NotFound("task", q.TaskID)
	}

	return element.GetInfo(vertex), nil
}
