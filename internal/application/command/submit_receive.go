package command

import (
	"context"

	"github.com/duragraph/duragraph/internal/domain/instance"
	"github.com/duragraph/duragraph/internal/infrastructure/cache"
	"github.com/duragraph/duragraph/internal/infrastructure/registry"
)

// SubmitReceive command (spec §6 POST /instance/{iid}/task/{tid}/receive):
// delivers a receiveTask's message payload to a waiting instance.
type SubmitReceive struct {
	InstanceID string
	TaskID     string
	Payload    map[string]interface{}
}

// SubmitReceiveHandler handles the SubmitReceive command.
type SubmitReceiveHandler struct {
	registry *registry.Registry
	cache    *cache.InstanceCache
}

// NewSubmitReceiveHandler builds a SubmitReceiveHandler. instanceCache may
// be nil.
func NewSubmitReceiveHandler(reg *registry.Registry, instanceCache *cache.InstanceCache) *SubmitReceiveHandler {
	return &SubmitReceiveHandler{registry: reg, cache: instanceCache}
}

// Handle enqueues the receive message and re-enters the scheduler, then
// invalidates any cached snapshot so the next read reflects the new state.
func (h *SubmitReceiveHandler) Handle(ctx context.Context, cmd SubmitReceive) error {
	if err := h.registry.DeliverMessage(ctx, cmd.InstanceID, instance.NewReceive(cmd.TaskID, cmd.Payload)); err != nil {
		return err
	}
	if h.cache != nil {
		_ = h.cache.Invalidate(ctx, cmd.InstanceID)
	}
	return nil
}

// CreateAndReceive command (spec §6 POST /model/{name}/task/{tid}/receive):
// the original server's auto-receive route, which mints a fresh instance of
// model and immediately delivers a receiveTask message to it in one call —
// used when the message is itself what starts a model's only meaningful
// path (e.g. a webhook-triggered process with no separate create step).
type CreateAndReceive struct {
	ModelKey string
	TaskID   string
	Payload  map[string]interface{}
}

// CreateAndReceiveHandler handles the CreateAndReceive command.
type CreateAndReceiveHandler struct {
	registry *registry.Registry
}

// NewCreateAndReceiveHandler builds a CreateAndReceiveHandler.
func NewCreateAndReceiveHandler(reg *registry.Registry) *CreateAndReceiveHandler {
	return &CreateAndReceiveHandler{registry: reg}
}

// Handle creates a fresh instance of cmd.ModelKey, then enqueues the receive
// message and re-enters the scheduler so the new instance can consume it in
// the same round if its model makes the matching receiveTask immediately
// reachable from a start event.
func (h *CreateAndReceiveHandler) Handle(ctx context.Context, cmd CreateAndReceive) (*instance.Instance, error) {
	inst, err := h.registry.CreateInstance(ctx, cmd.ModelKey, "", nil)
	if err != nil {
		return nil, err
	}
	if err := h.registry.DeliverMessage(ctx, inst.ID(), instance.NewReceive(cmd.TaskID, cmd.Payload)); err != nil {
		return nil, err
	}
	return inst, nil
}
