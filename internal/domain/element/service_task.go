package element

import (
	"context"

	"github.com/duragraph/duragraph/internal/domain/expr"
	"github.com/duragraph/duragraph/internal/domain/graph"
)

// runServiceTask implements serviceTask, sendTask and businessRule, which
// all share the same request/response binding contract (spec §4.3 §step
// 1-5; businessRule's decisionRef is carried but left opaque, spec §3).
func runServiceTask(ctx context.Context, v *graph.Vertex, m *graph.Model, ec Context) (Outcome, error) {
	vars := ec.Variables()

	body := make(map[string]interface{}, len(v.InputVariables))
	for key, raw := range v.InputVariables {
		body[key] = expr.Evaluate(raw, vars)
	}
	if _, ok := v.InputVariables["id_instance"]; ok {
		body["id_instance"] = ec.InstanceID()
	}

	for key, val := range ec.SystemVariables() {
		body[key] = val
	}

	resp, err := ec.InvokeConnector(ctx, v.Connector, nil, body)
	if err != nil {
		return Outcome{}, err
	}

	for name, declExpr := range v.OutputVariables {
		if val := expr.Evaluate(declExpr, resp); val != nil {
			vars[name] = val
		}
		if direct, ok := resp[name]; ok {
			vars[name] = direct
		}
	}

	return Immediate(m.Successors(v.ID)), nil
}
