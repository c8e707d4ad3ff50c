package command

import (
	"context"

	"github.com/duragraph/duragraph/internal/domain/instance"
	"github.com/duragraph/duragraph/internal/infrastructure/registry"
)

// CreateInstance command (spec §6 POST /model/{name}/instance).
type CreateInstance struct {
	ModelKey    string
	InstanceID  string // optional, minted if empty
	Variables   map[string]interface{}
}

// CreateInstanceHandler handles the CreateInstance command.
type CreateInstanceHandler struct {
	registry *registry.Registry
}

// NewCreateInstanceHandler builds a CreateInstanceHandler.
func NewCreateInstanceHandler(reg *registry.Registry) *CreateInstanceHandler {
	return &CreateInstanceHandler{registry: reg}
}

// Handle creates inst and drives it through the scheduler until it suspends
// or terminates, returning the instance it settled into (spec §4.8
// create_instance).
func (h *CreateInstanceHandler) Handle(ctx context.Context, cmd CreateInstance) (*instance.Instance, error) {
	return h.registry.CreateInstance(ctx, cmd.ModelKey, cmd.InstanceID, cmd.Variables)
}
