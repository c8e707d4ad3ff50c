package element

import (
	"context"

	"github.com/duragraph/duragraph/internal/domain/graph"
	"github.com/duragraph/duragraph/internal/pkg/errors"
)

// runFunc is the per-kind execution behavior (spec §4.3 "run(instance_ctx)").
type runFunc func(ctx context.Context, v *graph.Vertex, m *graph.Model, ec Context) (Outcome, error)

// infoFunc is the per-kind external-inspection descriptor (spec §4.3
// "get_info()").
type infoFunc func(v *graph.Vertex) map[string]interface{}

// dispatch is the closed tag-to-behavior table (spec §9 REDESIGN FLAGS:
// replaces the source's decorator-registered global map with a parser-side
// constructor table — this one, populated once at init, never mutated).
var dispatch = map[graph.VertexKind]runFunc{
	graph.KindStartEvent:       runPassthrough,
	graph.KindTask:             runPassthrough,
	graph.KindManualTask:       runPassthrough,
	graph.KindEndEvent:         runEndEvent,
	graph.KindUserTask:         runUserTask,
	graph.KindReceiveTask:      runReceiveTask,
	graph.KindServiceTask:      runServiceTask,
	graph.KindSendTask:         runServiceTask,
	graph.KindBusinessRule:     runServiceTask,
	graph.KindCallActivity:     runCallActivity,
	graph.KindExclusiveGateway: runExclusiveGateway,
	graph.KindParallelGateway:  runParallelGateway,
	graph.KindInclusiveGateway: runExclusiveGateway,
}

var infoDispatch = map[graph.VertexKind]infoFunc{
	graph.KindUserTask: func(v *graph.Vertex) map[string]interface{} {
		return map[string]interface{}{
			"type":          string(v.Kind),
			"form_fields":   v.FormFields,
			"documentation": v.Documentation,
		}
	},
	graph.KindReceiveTask: func(v *graph.Vertex) map[string]interface{} {
		return map[string]interface{}{
			"type":             string(v.Kind),
			"output_variables": v.OutputVariables,
			"documentation":    v.Documentation,
		}
	},
}

// Run executes v for one token, dispatching on its kind.
func Run(ctx context.Context, v *graph.Vertex, m *graph.Model, ec Context) (Outcome, error) {
	fn, ok := dispatch[v.Kind]
	if !ok {
		return Outcome{}, errors.ParseError(m.ProcessID, "no behavior registered for kind "+string(v.Kind))
	}
	return fn(ctx, v, m, ec)
}

// GetInfo returns v's external inspection descriptor.
func GetInfo(v *graph.Vertex) map[string]interface{} {
	if fn, ok := infoDispatch[v.Kind]; ok {
		return fn(v)
	}
	return map[string]interface{}{"type": string(v.Kind)}
}

func runPassthrough(_ context.Context, v *graph.Vertex, m *graph.Model, _ Context) (Outcome, error) {
	return Immediate(m.Successors(v.ID)), nil
}

func runEndEvent(_ context.Context, v *graph.Vertex, m *graph.Model, _ Context) (Outcome, error) {
	return Immediate(nil), nil
}
