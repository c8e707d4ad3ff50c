package query

import (
	"github.com/duragraph/duragraph/internal/infrastructure/registry"
	"github.com/duragraph/duragraph/internal/pkg/errors"
)

// GetModel query (spec §6 GET /model/{name}): returns the raw BPMN source a
// model was loaded from, matching the original server's raw-file serving.
type GetModel struct {
	ModelKey string
}

// GetModelHandler handles the GetModel query.
type GetModelHandler struct {
	registry *registry.Registry
}

// NewGetModelHandler builds a GetModelHandler.
func NewGetModelHandler(reg *registry.Registry) *GetModelHandler {
	return &GetModelHandler{registry: reg}
}

// Handle returns model key's raw XML source.
func (h *GetModelHandler) Handle(q GetModel) ([]byte, error) {
	source, ok := h.registry.ModelSource(q.ModelKey)
	if !ok {
		return nil, errors.NotFound("model", q.ModelKey)
	}
	return source, nil
}
