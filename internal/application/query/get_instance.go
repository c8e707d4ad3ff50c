package query

import (
	"context"
	"time"

	"github.com/duragraph/duragraph/internal/infrastructure/cache"
	"github.com/duragraph/duragraph/internal/infrastructure/persistence/postgres"
	"github.com/duragraph/duragraph/internal/infrastructure/registry"
	"github.com/duragraph/duragraph/internal/pkg/errors"
)

// GetInstance query (spec §6 GET /instance/{iid}).
type GetInstance struct {
	InstanceID string
}

// InstanceDTO represents an instance's externally visible state.
type InstanceDTO struct {
	ID        string                 `json:"id"`
	ModelRef  string                 `json:"model_ref"`
	Status    string                 `json:"status"`
	Variables map[string]interface{} `json:"variables,omitempty"`
	Pending   []string               `json:"pending,omitempty"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// GetInstanceHandler handles the GetInstance query, preferring a cached
// snapshot, then the live in-memory instance, then falling back to the
// Postgres projection for one this process has never touched (spec §4.8
// get_or_load_instance covers the live path; the projection covers pure
// read-only inspection without forcing a journal replay).
type GetInstanceHandler struct {
	registry *registry.Registry
	queries  *postgres.InstanceQueries
	cache    *cache.InstanceCache
}

// NewGetInstanceHandler builds a GetInstanceHandler. cache may be nil, in
// which case every call falls through to the live/Postgres paths.
func NewGetInstanceHandler(reg *registry.Registry, queries *postgres.InstanceQueries, instanceCache *cache.InstanceCache) *GetInstanceHandler {
	return &GetInstanceHandler{registry: reg, queries: queries, cache: instanceCache}
}

// Handle returns the instance's current externally visible state.
func (h *GetInstanceHandler) Handle(ctx context.Context, q GetInstance) (*InstanceDTO, error) {
	if h.cache != nil {
		if snap, ok, err := h.cache.Get(ctx, q.InstanceID); err == nil && ok {
			return &InstanceDTO{
				ID:        snap.ID,
				ModelRef:  snap.ModelRef,
				Status:    snap.Status,
				Variables: snap.Variables,
				UpdatedAt: snap.UpdatedAt,
			}, nil
		}
	}

	dtoOut, err := h.load(ctx, q.InstanceID)
	if err != nil {
		return nil, err
	}

	if h.cache != nil {
		_ = h.cache.Put(ctx, cache.InstanceSnapshot{
			ID:        dtoOut.ID,
			ModelRef:  dtoOut.ModelRef,
			Status:    dtoOut.Status,
			Variables: dtoOut.Variables,
			UpdatedAt: dtoOut.UpdatedAt,
		})
	}

	return dtoOut, nil
}

func (h *GetInstanceHandler) load(ctx context.Context, id string) (*InstanceDTO, error) {
	inst, _, err := h.registry.GetOrLoadInstance(ctx, id)
	if err == nil {
		vars, err := inst.Snapshot()
		if err != nil {
			return nil, err
		}
		return &InstanceDTO{
			ID:        inst.ID(),
			ModelRef:  inst.ModelRef(),
			Status:    inst.Status().String(),
			Variables: vars,
			Pending:   inst.Pending(),
			UpdatedAt: inst.UpdatedAt(),
		}, nil
	}
	if h.queries == nil {
		return nil, err
	}

	row, ok, qerr := h.queries.Get(ctx, id)
	if qerr != nil {
		return nil, qerr
	}
	if !ok {
		return nil, errors.NotFound("instance", id)
	}
	return &InstanceDTO{
		ID:        row.ID,
		ModelRef:  row.ModelPath,
		Status:    row.State,
		Variables: row.Variables,
		UpdatedAt: row.UpdatedAt,
	}, nil
}
