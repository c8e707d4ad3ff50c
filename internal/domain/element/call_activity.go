package element

import (
	"context"
	"strings"

	"github.com/duragraph/duragraph/internal/domain/expr"
	"github.com/duragraph/duragraph/internal/domain/graph"
	"github.com/duragraph/duragraph/internal/domain/instance"
)

// runCallActivity builds the child's input from the parent's variables,
// invokes the child instance to completion, and maps its output back into
// the parent (spec §4.6).
func runCallActivity(ctx context.Context, v *graph.Vertex, m *graph.Model, ec Context) (Outcome, error) {
	childVars, err := buildChildVariables(ec.Variables(), v.InMapping, v.InputVariables)
	if err != nil {
		return Outcome{}, err
	}

	childFinal, err := ec.InvokeCallActivity(ctx, v.CalledElement, v.Deployment, childVars)
	if err != nil {
		return Outcome{}, err
	}

	if err := applyChildOutput(ec.Variables(), childFinal, v.OutMapping, v.OutputVariables); err != nil {
		return Outcome{}, err
	}

	return Immediate(m.Successors(v.ID)), nil
}

// buildChildVariables deep-copies parent variables, applies in_mapping
// (spec §4.6 step 2: nested-path rename-and-remove, or flat rename), then
// retains only the keys named in input_variables.
func buildChildVariables(parentVars map[string]interface{}, inMapping map[string]string, inputVariables map[string]interface{}) (map[string]interface{}, error) {
	copied, err := instance.DeepCopyVars(parentVars)
	if err != nil {
		return nil, err
	}

	for src, dst := range inMapping {
		val, ok := lookupAndRemove(copied, src)
		if !ok {
			continue
		}
		copied[dst] = val
	}

	if len(inputVariables) == 0 {
		return copied, nil
	}

	retained := make(map[string]interface{}, len(inputVariables))
	for key := range inputVariables {
		if val, ok := copied[key]; ok {
			retained[key] = val
		}
	}
	return retained, nil
}

// applyChildOutput deep-copies the child's final variables, applies
// out_mapping the same way in_mapping works, and writes into parentVars
// only the keys named in output_variables that are present in the mapped
// result (spec §4.6 step 4).
func applyChildOutput(parentVars map[string]interface{}, childFinal map[string]interface{}, outMapping map[string]string, outputVariables map[string]interface{}) error {
	copied, err := instance.DeepCopyVars(childFinal)
	if err != nil {
		return err
	}

	for src, dst := range outMapping {
		val, ok := lookupAndRemove(copied, src)
		if !ok {
			continue
		}
		copied[dst] = val
	}

	for key := range outputVariables {
		if val, ok := copied[key]; ok {
			parentVars[key] = val
		}
	}
	return nil
}

// lookupAndRemove implements the in/out-mapping source resolution: a
// dotted src performs a nested lookup and removes only the top-level key
// (the source tree is a scratch copy, so a shallow delete is enough to
// keep the top-level namespace clean); a bare src is a simple rename.
func lookupAndRemove(m map[string]interface{}, src string) (interface{}, bool) {
	if idx := strings.IndexByte(src, '.'); idx >= 0 {
		top := src[:idx]
		val, ok := expr.NestedGet(m, src)
		if ok {
			delete(m, top)
		}
		return val, ok
	}

	val, ok := m[src]
	if ok {
		delete(m, src)
	}
	return val, ok
}
