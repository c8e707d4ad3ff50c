package query

import (
	"github.com/duragraph/duragraph/internal/infrastructure/registry"
)

// ListModels query (spec §6 GET /model).
type ListModels struct{}

// ListModelsHandler handles the ListModels query.
type ListModelsHandler struct {
	registry *registry.Registry
}

// NewListModelsHandler builds a ListModelsHandler.
func NewListModelsHandler(reg *registry.Registry) *ListModelsHandler {
	return &ListModelsHandler{registry: reg}
}

// Handle returns every loaded model's key, sorted.
func (h *ListModelsHandler) Handle(_ ListModels) []string {
	return h.registry.ListModels()
}
