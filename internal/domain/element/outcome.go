// Package element implements per-kind BPMN execution behavior (spec §4.3):
// a closed tagged variant of element kinds with a constructor table, in
// place of the decorator-registered class hierarchy the source language
// used (spec §9 REDESIGN FLAGS).
package element

import "github.com/duragraph/duragraph/internal/domain/graph"

// OutcomeKind tags the three shapes a vertex's run can return.
type OutcomeKind int

const (
	// OutcomeImmediate carries the set of outgoing edges to follow.
	OutcomeImmediate OutcomeKind = iota
	// OutcomeWaiting means the vertex is blocked on external input.
	OutcomeWaiting
	// OutcomeDone means the token was absorbed with no outgoing edge taken
	// (a parallel-gateway branch that did not trigger the join).
	OutcomeDone
)

// Outcome is the result of running a single vertex for one token (spec §4.3).
type Outcome struct {
	Kind            OutcomeKind
	ChosenOutgoing  []*graph.Edge
}

// Immediate builds an OutcomeImmediate carrying edges.
func Immediate(edges []*graph.Edge) Outcome {
	return Outcome{Kind: OutcomeImmediate, ChosenOutgoing: edges}
}

// Waiting builds an OutcomeWaiting.
func Waiting() Outcome {
	return Outcome{Kind: OutcomeWaiting}
}

// Done builds an OutcomeDone.
func Done() Outcome {
	return Outcome{Kind: OutcomeDone}
}
