package element_test

import (
	"context"
	"testing"

	"github.com/duragraph/duragraph/internal/domain/element"
	"github.com/duragraph/duragraph/internal/domain/graph"
	"github.com/duragraph/duragraph/internal/domain/instance"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeContext is a minimal in-memory element.Context for unit-testing
// behaviors without a scheduler.
type fakeContext struct {
	instanceID   string
	vars         map[string]interface{}
	systemVars   map[string]interface{}
	pendingCount map[string]int
	deliveries   map[string]instance.Message
	connectorFn  func(ctx context.Context, conn graph.Connector, params, body map[string]interface{}) (map[string]interface{}, error)
	callActFn    func(ctx context.Context, calledElement string, deployment bool, childVars map[string]interface{}) (map[string]interface{}, error)
}

func newFakeContext() *fakeContext {
	return &fakeContext{
		instanceID:   "i1",
		vars:         map[string]interface{}{},
		systemVars:   map[string]interface{}{},
		pendingCount: map[string]int{},
		deliveries:   map[string]instance.Message{},
	}
}

func (f *fakeContext) InstanceID() string                        { return f.instanceID }
func (f *fakeContext) Variables() map[string]interface{}         { return f.vars }
func (f *fakeContext) SystemVariables() map[string]interface{}   { return f.systemVars }
func (f *fakeContext) PendingCount(vertexID string) int          { return f.pendingCount[vertexID] }

func (f *fakeContext) TakeDelivery(vertexID string) (instance.Message, bool) {
	msg, ok := f.deliveries[vertexID]
	if ok {
		delete(f.deliveries, vertexID)
	}
	return msg, ok
}

func (f *fakeContext) InvokeConnector(ctx context.Context, conn graph.Connector, params, body map[string]interface{}) (map[string]interface{}, error) {
	return f.connectorFn(ctx, conn, params, body)
}

func (f *fakeContext) InvokeCallActivity(ctx context.Context, calledElement string, deployment bool, childVars map[string]interface{}) (map[string]interface{}, error) {
	return f.callActFn(ctx, calledElement, deployment, childVars)
}

func buildSequentialModel(t *testing.T) *graph.Model {
	t.Helper()
	elements := map[string]*graph.Vertex{
		"start": {ID: "start", Kind: graph.KindStartEvent},
		"A":     {ID: "A", Kind: graph.KindTask},
		"end":   {ID: "end", Kind: graph.KindEndEvent},
	}
	flows := []*graph.Edge{
		{ID: "f1", Source: "start", Target: "A"},
		{ID: "f2", Source: "A", Target: "end"},
	}
	m, err := graph.New("p1", "Sequential", true, elements, flows, nil)
	require.NoError(t, err)
	return m
}

func TestRunPassthrough_EmitsAllOutgoing(t *testing.T) {
	m := buildSequentialModel(t)
	ec := newFakeContext()

	outcome, err := element.Run(context.Background(), m.Elements["start"], m, ec)
	require.NoError(t, err)
	assert.Equal(t, element.OutcomeImmediate, outcome.Kind)
	require.Len(t, outcome.ChosenOutgoing, 1)
	assert.Equal(t, "A", outcome.ChosenOutgoing[0].Target)
}

func TestRunEndEvent_HasNoOutgoing(t *testing.T) {
	m := buildSequentialModel(t)
	ec := newFakeContext()

	outcome, err := element.Run(context.Background(), m.Elements["end"], m, ec)
	require.NoError(t, err)
	assert.Empty(t, outcome.ChosenOutgoing)
}

func TestRunUserTask_WaitsThenAppliesFormFields(t *testing.T) {
	v := &graph.Vertex{
		ID:   "t1",
		Kind: graph.KindUserTask,
		FormFields: map[string]graph.FormField{
			"name": {Type: "string"},
		},
	}
	elements := map[string]*graph.Vertex{
		"start": {ID: "start", Kind: graph.KindStartEvent},
		"t1":    v,
		"end":   {ID: "end", Kind: graph.KindEndEvent},
	}
	flows := []*graph.Edge{
		{ID: "f1", Source: "start", Target: "t1"},
		{ID: "f2", Source: "t1", Target: "end"},
	}
	m, err := graph.New("p1", "UserTask", true, elements, flows, nil)
	require.NoError(t, err)

	ec := newFakeContext()

	outcome, err := element.Run(context.Background(), v, m, ec)
	require.NoError(t, err)
	assert.Equal(t, element.OutcomeWaiting, outcome.Kind)

	ec.deliveries["t1"] = instance.NewUserForm("t1", map[string]interface{}{"name": "Q", "ignored": "x"})
	outcome, err = element.Run(context.Background(), v, m, ec)
	require.NoError(t, err)
	assert.Equal(t, element.OutcomeImmediate, outcome.Kind)
	assert.Equal(t, "Q", ec.vars["name"])
	assert.NotContains(t, ec.vars, "ignored")
}

func TestRunExclusiveGateway_RoutesOnCondition(t *testing.T) {
	elements := map[string]*graph.Vertex{
		"start": {ID: "start", Kind: graph.KindStartEvent},
		"gw":    {ID: "gw", Kind: graph.KindExclusiveGateway, DefaultEdge: "toT2"},
		"t1":    {ID: "t1", Kind: graph.KindTask},
		"t2":    {ID: "t2", Kind: graph.KindTask},
	}
	flows := []*graph.Edge{
		{ID: "f0", Source: "start", Target: "gw"},
		{ID: "toT1", Source: "gw", Target: "t1", Condition: "${x} == 1"},
		{ID: "toT2", Source: "gw", Target: "t2"},
	}
	m, err := graph.New("p1", "Route", true, elements, flows, nil)
	require.NoError(t, err)

	ec := newFakeContext()
	ec.vars["x"] = float64(1)
	outcome, err := element.Run(context.Background(), elements["gw"], m, ec)
	require.NoError(t, err)
	require.Len(t, outcome.ChosenOutgoing, 1)
	assert.Equal(t, "t1", outcome.ChosenOutgoing[0].Target)

	ec.vars["x"] = float64(2)
	outcome, err = element.Run(context.Background(), elements["gw"], m, ec)
	require.NoError(t, err)
	require.Len(t, outcome.ChosenOutgoing, 1)
	assert.Equal(t, "t2", outcome.ChosenOutgoing[0].Target)
}

func TestRunParallelGateway_JoinsOnlyOnAllArrivals(t *testing.T) {
	elements := map[string]*graph.Vertex{
		"start": {ID: "start", Kind: graph.KindStartEvent},
		"fork":  {ID: "fork", Kind: graph.KindParallelGateway, IncomingCount: 1},
		"join":  {ID: "join", Kind: graph.KindParallelGateway, IncomingCount: 2},
		"A":     {ID: "A", Kind: graph.KindTask},
		"B":     {ID: "B", Kind: graph.KindTask},
		"end":   {ID: "end", Kind: graph.KindEndEvent},
	}
	flows := []*graph.Edge{
		{ID: "f0", Source: "start", Target: "fork"},
		{ID: "f1", Source: "fork", Target: "A"},
		{ID: "f2", Source: "fork", Target: "B"},
		{ID: "f3", Source: "A", Target: "join"},
		{ID: "f4", Source: "B", Target: "join"},
		{ID: "f5", Source: "join", Target: "end"},
	}
	m, err := graph.New("p1", "ForkJoin", true, elements, flows, nil)
	require.NoError(t, err)

	ec := newFakeContext()
	ec.pendingCount["join"] = 1
	outcome, err := element.Run(context.Background(), elements["join"], m, ec)
	require.NoError(t, err)
	assert.Equal(t, element.OutcomeDone, outcome.Kind)

	ec.pendingCount["join"] = 2
	outcome, err = element.Run(context.Background(), elements["join"], m, ec)
	require.NoError(t, err)
	assert.Equal(t, element.OutcomeImmediate, outcome.Kind)
	assert.Len(t, outcome.ChosenOutgoing, 1)
}

func TestRunServiceTask_DirectKeyWinsOverExpression(t *testing.T) {
	v := &graph.Vertex{
		ID:              "svc",
		Kind:            graph.KindServiceTask,
		InputVariables:  map[string]interface{}{},
		OutputVariables: map[string]interface{}{"ticket_id": ""},
		Connector:       graph.Connector{ID: "http-connector"},
	}
	elements := map[string]*graph.Vertex{
		"start": {ID: "start", Kind: graph.KindStartEvent},
		"svc":   v,
		"end":   {ID: "end", Kind: graph.KindEndEvent},
	}
	flows := []*graph.Edge{
		{ID: "f1", Source: "start", Target: "svc"},
		{ID: "f2", Source: "svc", Target: "end"},
	}
	m, err := graph.New("p1", "Service", true, elements, flows, nil)
	require.NoError(t, err)

	ec := newFakeContext()
	ec.connectorFn = func(ctx context.Context, conn graph.Connector, params, body map[string]interface{}) (map[string]interface{}, error) {
		return map[string]interface{}{"ticket_id": "T-9"}, nil
	}

	outcome, err := element.Run(context.Background(), v, m, ec)
	require.NoError(t, err)
	assert.Equal(t, element.OutcomeImmediate, outcome.Kind)
	assert.Equal(t, "T-9", ec.vars["ticket_id"])
}

func TestRunCallActivity_MapsInputsAndOutputs(t *testing.T) {
	v := &graph.Vertex{
		ID:              "call",
		Kind:            graph.KindCallActivity,
		CalledElement:   "child",
		InMapping:       map[string]string{"user.name": "customer"},
		InputVariables:  map[string]interface{}{"customer": ""},
		OutMapping:      map[string]string{"status": "ticket_status"},
		OutputVariables: map[string]interface{}{"ticket_status": ""},
	}
	elements := map[string]*graph.Vertex{
		"start": {ID: "start", Kind: graph.KindStartEvent},
		"call":  v,
		"end":   {ID: "end", Kind: graph.KindEndEvent},
	}
	flows := []*graph.Edge{
		{ID: "f1", Source: "start", Target: "call"},
		{ID: "f2", Source: "call", Target: "end"},
	}
	m, err := graph.New("p1", "CallAct", true, elements, flows, nil)
	require.NoError(t, err)

	ec := newFakeContext()
	ec.vars["user"] = map[string]interface{}{"name": "Alice"}
	ec.callActFn = func(ctx context.Context, calledElement string, deployment bool, childVars map[string]interface{}) (map[string]interface{}, error) {
		assert.Equal(t, "child", calledElement)
		assert.Equal(t, "Alice", childVars["customer"])
		return map[string]interface{}{"status": "ok"}, nil
	}

	outcome, err := element.Run(context.Background(), v, m, ec)
	require.NoError(t, err)
	assert.Equal(t, element.OutcomeImmediate, outcome.Kind)
	assert.Equal(t, "ok", ec.vars["ticket_status"])
}
