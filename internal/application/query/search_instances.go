package query

import (
	"context"

	"github.com/duragraph/duragraph/internal/infrastructure/registry"
)

// SearchInstances query (spec §6 GET /instance?q=attr:val,attr:val, §4.8
// registry.search).
type SearchInstances struct {
	Query string
}

// SearchInstancesHandler handles the SearchInstances query.
type SearchInstancesHandler struct {
	registry *registry.Registry
}

// NewSearchInstancesHandler builds a SearchInstancesHandler.
func NewSearchInstancesHandler(reg *registry.Registry) *SearchInstancesHandler {
	return &SearchInstancesHandler{registry: reg}
}

// Handle returns every live instance whose variables match every clause of
// q.Query, resolved through GetOrLoadInstance so the response carries full
// snapshot detail rather than a bare id list.
func (h *SearchInstancesHandler) Handle(ctx context.Context, q SearchInstances) ([]InstanceDTO, error) {
	ids := h.registry.Search(q.Query)

	out := make([]InstanceDTO, 0, len(ids))
	for _, id := range ids {
		inst, _, err := h.registry.GetOrLoadInstance(ctx, id)
		if err != nil {
			continue
		}
		vars, err := inst.Snapshot()
		if err != nil {
			continue
		}
		out = append(out, InstanceDTO{
			ID:        inst.ID(),
			ModelRef:  inst.ModelRef(),
			Status:    inst.Status().String(),
			Variables: vars,
			Pending:   inst.Pending(),
			UpdatedAt: inst.UpdatedAt(),
		})
	}
	return out, nil
}
