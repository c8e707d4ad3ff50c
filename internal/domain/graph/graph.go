// Package graph is the in-memory BPMN process graph and element catalogue
// built by the (external) XML parser (spec §4.2).
package graph

import (
	"github.com/duragraph/duragraph/internal/pkg/errors"
)

// VertexKind is the closed set of BPMN element kinds this engine understands.
type VertexKind string

const (
	KindStartEvent       VertexKind = "startEvent"
	KindEndEvent         VertexKind = "endEvent"
	KindTask             VertexKind = "task"
	KindManualTask       VertexKind = "manualTask"
	KindUserTask         VertexKind = "userTask"
	KindReceiveTask      VertexKind = "receiveTask"
	KindServiceTask      VertexKind = "serviceTask"
	KindSendTask         VertexKind = "sendTask"
	KindBusinessRule     VertexKind = "businessRule"
	KindCallActivity     VertexKind = "callActivity"
	KindExclusiveGateway VertexKind = "exclusiveGateway"
	KindParallelGateway  VertexKind = "parallelGateway"
	KindInclusiveGateway VertexKind = "inclusiveGateway"
)

// FormField describes one field of a userTask's form schema.
type FormField struct {
	Type       string            `json:"type"`
	Label      string            `json:"label"`
	Properties map[string]string `json:"properties,omitempty"`
	Validation map[string]string `json:"validation,omitempty"`
}

// Connector describes a serviceTask/sendTask's outbound call: id resolves
// against a configured datasource to a base_url; url is the task-supplied
// path joined onto it (spec §4.3 step 3, §4.4).
type Connector struct {
	ID        string            `json:"id"`
	URL       string            `json:"url,omitempty"`
	Method    string            `json:"method,omitempty"`
	URLParams map[string]string `json:"url_params,omitempty"`
}

// Vertex is a single BPMN graph element. A single kind-tagged record is used
// in place of the original class hierarchy (Task → ServiceTask → SendTask /
// BusinessRule, Gateway → subtypes): shared attributes live on the struct,
// per-kind behavior lives in package element.
type Vertex struct {
	ID   string
	Name string
	Kind VertexKind

	// userTask
	FormFields    map[string]FormField
	Documentation string

	// receiveTask / serviceTask / sendTask / businessRule
	InputVariables  map[string]interface{}
	OutputVariables map[string]interface{}
	Connector       Connector

	// businessRule
	DecisionRef string

	// callActivity
	CalledElement string
	Deployment    bool
	InMapping     map[string]string
	OutMapping    map[string]string

	// exclusiveGateway
	DefaultEdge string

	// parallelGateway
	IncomingCount int
}

// Edge is a sequence flow, optionally guarded by a condition expression.
type Edge struct {
	ID        string
	Source    string
	Target    string
	Condition string
}

// Model is the parsed, immutable BPMN process graph (spec §3, §4.2).
type Model struct {
	ProcessID             string
	Name                  string
	IsMainInCollaboration bool

	Elements    map[string]*Vertex
	Flows       []*Edge
	StartEvents []string

	// SubProcesses holds nested process definitions keyed by process id,
	// used to resolve callActivity (spec §4.6 step 1).
	SubProcesses map[string]*Model

	successors   map[string][]*Edge
	predecessors map[string][]*Edge
}

// New builds a Model from its parsed elements and flows, validating the
// invariants the XML parser alone cannot guarantee (spec §3 I1, I2, I3).
func New(processID, name string, isMain bool, elements map[string]*Vertex, flows []*Edge, subProcesses map[string]*Model) (*Model, error) {
	m := &Model{
		ProcessID:             processID,
		Name:                  name,
		IsMainInCollaboration: isMain,
		Elements:              elements,
		Flows:                 flows,
		SubProcesses:          subProcesses,
	}
	if m.SubProcesses == nil {
		m.SubProcesses = make(map[string]*Model)
	}

	if err := m.validate(); err != nil {
		return nil, err
	}

	m.index()
	return m, nil
}

func (m *Model) validate() error {
	if len(m.Elements) == 0 {
		return errors.ParseError(m.ProcessID, "process has no elements")
	}

	for _, e := range m.Flows {
		if _, ok := m.Elements[e.Source]; !ok {
			return errors.ParseError(m.ProcessID, "edge "+e.ID+" references unknown source "+e.Source)
		}
		if _, ok := m.Elements[e.Target]; !ok {
			return errors.ParseError(m.ProcessID, "edge "+e.ID+" references unknown target "+e.Target)
		}
	}

	outgoingByVertex := make(map[string][]*Edge)
	for _, e := range m.Flows {
		outgoingByVertex[e.Source] = append(outgoingByVertex[e.Source], e)
	}

	for id, v := range m.Elements {
		if v.Kind == KindStartEvent {
			m.StartEvents = append(m.StartEvents, id)
		}

		if v.Kind == KindExclusiveGateway {
			out := outgoingByVertex[id]
			if len(out) > 1 {
				allConditioned := true
				for _, e := range out {
					if e.Condition == "" {
						allConditioned = false
						break
					}
				}
				if !allConditioned && v.DefaultEdge == "" {
					return errors.ParseError(m.ProcessID, "exclusive gateway "+id+" has unconditioned edges and no default")
				}
			}
		}

		if v.Kind == KindParallelGateway {
			// I3: join counter equals incoming-edge count at instance birth.
			// IncomingCount is set by the parser; nothing further to check here
			// beyond it being non-negative.
			if v.IncomingCount < 0 {
				return errors.ParseError(m.ProcessID, "parallel gateway "+id+" has negative incoming count")
			}
		}
	}

	if len(m.StartEvents) == 0 {
		return errors.ParseError(m.ProcessID, "process has no start event")
	}

	return nil
}

func (m *Model) index() {
	m.successors = make(map[string][]*Edge)
	m.predecessors = make(map[string][]*Edge)
	for _, e := range m.Flows {
		m.successors[e.Source] = append(m.successors[e.Source], e)
		m.predecessors[e.Target] = append(m.predecessors[e.Target], e)
	}
}

// Successors yields edges whose source is v, in declaration order.
func (m *Model) Successors(v string) []*Edge {
	return m.successors[v]
}

// Predecessors yields edges whose target is v, in declaration order.
func (m *Model) Predecessors(v string) []*Edge {
	return m.predecessors[v]
}

// Vertex looks up a vertex by id.
func (m *Model) Vertex(id string) (*Vertex, bool) {
	v, ok := m.Elements[id]
	return v, ok
}

// ResolveCalledElement resolves a callActivity's calledElement: first among
// this model's own nested sub-processes, then the caller-supplied registry
// of separately loaded models (spec §4.6 step 1, I4).
func (m *Model) ResolveCalledElement(calledElement string, loaded func(processID string) (*Model, bool)) (*Model, bool) {
	if sub, ok := m.SubProcesses[calledElement]; ok {
		return sub, true
	}
	if loaded == nil {
		return nil, false
	}
	return loaded(calledElement)
}
