package element

import (
	"context"

	"github.com/duragraph/duragraph/internal/domain/graph"
	"github.com/duragraph/duragraph/internal/pkg/errors"
)

// runExclusiveGateway evaluates each outgoing edge's condition in
// declaration order and takes the first truthy one, falling back to the
// default edge; it also serves as the inclusiveGateway's minimum behavior
// (spec §4.3, §9 Open Questions).
func runExclusiveGateway(_ context.Context, v *graph.Vertex, m *graph.Model, ec Context) (Outcome, error) {
	out := m.Successors(v.ID)
	vars := ec.Variables()

	for _, e := range out {
		if e.Condition == "" {
			continue
		}
		if evalCondition(e.Condition, vars) {
			return Immediate([]*graph.Edge{e}), nil
		}
	}

	if v.DefaultEdge != "" {
		for _, e := range out {
			if e.ID == v.DefaultEdge {
				return Immediate([]*graph.Edge{e}), nil
			}
		}
	}

	return Outcome{}, errors.InvalidRouting(v.ID)
}

// runParallelGateway forks on every outgoing edge when it has at most one
// incoming edge; otherwise it joins, firing once exactly IncomingCount
// tokens have arrived since it last fired (spec §4.3, §9 counter-reset fix
// — see instance.Instance.CountPending).
func runParallelGateway(_ context.Context, v *graph.Vertex, m *graph.Model, ec Context) (Outcome, error) {
	if v.IncomingCount <= 1 {
		return Immediate(m.Successors(v.ID)), nil
	}

	if ec.PendingCount(v.ID) >= v.IncomingCount {
		return Immediate(m.Successors(v.ID)), nil
	}

	return Done(), nil
}
