package command

import (
	"context"

	"github.com/duragraph/duragraph/internal/domain/instance"
	"github.com/duragraph/duragraph/internal/infrastructure/cache"
	"github.com/duragraph/duragraph/internal/infrastructure/registry"
)

// SubmitForm command (spec §6 POST /instance/{iid}/task/{tid}/form): delivers
// a userTask's form payload to a waiting instance.
type SubmitForm struct {
	InstanceID string
	TaskID     string
	Payload    map[string]interface{}
}

// SubmitFormHandler handles the SubmitForm command.
type SubmitFormHandler struct {
	registry *registry.Registry
	cache    *cache.InstanceCache
}

// NewSubmitFormHandler builds a SubmitFormHandler. instanceCache may be nil.
func NewSubmitFormHandler(reg *registry.Registry, instanceCache *cache.InstanceCache) *SubmitFormHandler {
	return &SubmitFormHandler{registry: reg, cache: instanceCache}
}

// Handle enqueues the form submission and re-enters the scheduler, then
// invalidates any cached snapshot so the next read reflects the new state.
func (h *SubmitFormHandler) Handle(ctx context.Context, cmd SubmitForm) error {
	if err := h.registry.DeliverMessage(ctx, cmd.InstanceID, instance.NewUserForm(cmd.TaskID, cmd.Payload)); err != nil {
		return err
	}
	if h.cache != nil {
		_ = h.cache.Invalidate(ctx, cmd.InstanceID)
	}
	return nil
}
