package element

import (
	"context"

	"github.com/duragraph/duragraph/internal/domain/graph"
)

// runUserTask blocks until a matching UserForm message arrives; then copies
// declared form-field values into variables and proceeds (spec §4.3).
func runUserTask(_ context.Context, v *graph.Vertex, m *graph.Model, ec Context) (Outcome, error) {
	msg, ok := ec.TakeDelivery(v.ID)
	if !ok {
		return Waiting(), nil
	}

	vars := ec.Variables()
	for key, value := range msg.Payload {
		if _, declared := v.FormFields[key]; declared {
			vars[key] = value
		}
	}

	return Immediate(m.Successors(v.ID)), nil
}

// runReceiveTask blocks until a matching Receive message arrives; then
// copies payload entries listed in output_variables into variables (spec
// §4.3).
func runReceiveTask(_ context.Context, v *graph.Vertex, m *graph.Model, ec Context) (Outcome, error) {
	msg, ok := ec.TakeDelivery(v.ID)
	if !ok {
		return Waiting(), nil
	}

	vars := ec.Variables()
	for key, value := range msg.Payload {
		if _, declared := v.OutputVariables[key]; declared {
			vars[key] = value
		}
	}

	return Immediate(m.Successors(v.ID)), nil
}
