package command_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duragraph/duragraph/internal/application/command"
	"github.com/duragraph/duragraph/internal/domain/graph"
	"github.com/duragraph/duragraph/internal/domain/instance"
	"github.com/duragraph/duragraph/internal/domain/journal"
	"github.com/duragraph/duragraph/internal/infrastructure/registry"
	"github.com/duragraph/duragraph/internal/infrastructure/scheduler"
	"github.com/duragraph/duragraph/internal/pkg/eventbus"
)

type memoryJournal struct {
	mu      sync.Mutex
	entries map[string][]journal.Entry
}

func newMemoryJournal() *memoryJournal {
	return &memoryJournal{entries: map[string][]journal.Entry{}}
}

func (m *memoryJournal) Append(_ context.Context, instanceID string, entries []journal.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range entries {
		e.Seq = len(m.entries[instanceID]) + 1
		m.entries[instanceID] = append(m.entries[instanceID], e)
	}
	return nil
}

func (m *memoryJournal) Load(_ context.Context, instanceID string) ([]journal.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]journal.Entry(nil), m.entries[instanceID]...), nil
}

func (m *memoryJournal) ListUnfinished(_ context.Context) ([]string, error) {
	return nil, nil
}

func waitingModel(t *testing.T) *graph.Model {
	t.Helper()
	elements := map[string]*graph.Vertex{
		"start": {ID: "start", Kind: graph.KindStartEvent},
		"t1": {ID: "t1", Kind: graph.KindUserTask, FormFields: map[string]graph.FormField{
			"approved": {Type: "bool"},
		}},
		"end": {ID: "end", Kind: graph.KindEndEvent},
	}
	flows := []*graph.Edge{
		{ID: "f1", Source: "start", Target: "t1"},
		{ID: "f2", Source: "t1", Target: "end"},
	}
	m, err := graph.New("approval", "Approval", true, elements, flows, nil)
	require.NoError(t, err)
	return m
}

func sequentialModel(t *testing.T) *graph.Model {
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
	m, err := graph.New("seq", "Sequential", true, elements, flows, nil)
	require.NoError(t, err)
	return m
}

func newRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	j := newMemoryJournal()
	s := scheduler.New(nil, nil, j, eventbus.New(), nil)
	return registry.New(j, s)
}

func TestCreateInstanceHandler_RunsToFinish(t *testing.T) {
	reg := newRegistry(t)
	reg.LoadModel("seq", sequentialModel(t))

	h := command.NewCreateInstanceHandler(reg)
	inst, err := h.Handle(context.Background(), command.CreateInstance{
		ModelKey:  "seq",
		Variables: map[string]interface{}{"owner": "alice"},
	})
	require.NoError(t, err)
	assert.Equal(t, instance.StatusFinished, inst.Status())
}

func TestCreateInstanceHandler_UnknownModelFails(t *testing.T) {
	reg := newRegistry(t)
	h := command.NewCreateInstanceHandler(reg)

	_, err := h.Handle(context.Background(), command.CreateInstance{ModelKey: "missing"})
	require.Error(t, err)
}

func TestSubmitFormHandler_DeliversAndFinishes(t *testing.T) {
	reg := newRegistry(t)
	reg.LoadModel("approval", waitingModel(t))

	created, err := command.NewCreateInstanceHandler(reg).Handle(context.Background(), command.CreateInstance{ModelKey: "approval"})
	require.NoError(t, err)
	assert.Equal(t, instance.StatusWaiting, created.Status())

	h := command.NewSubmitFormHandler(reg, nil)
	err = h.Handle(context.Background(), command.SubmitForm{
		InstanceID: created.ID(),
		TaskID:     "t1",
		Payload:    map[string]interface{}{"approved": true},
	})
	require.NoError(t, err)
	assert.Equal(t, instance.StatusFinished, created.Status())
}

func TestCreateAndReceiveHandler_MintsAndDelivers(t *testing.T) {
	reg := newRegistry(t)
	elements := map[string]*graph.Vertex{
		"start":   {ID: "start", Kind: graph.KindStartEvent},
		"receive": {ID: "receive", Kind: graph.KindReceiveTask},
		"end":     {ID: "end", Kind: graph.KindEndEvent},
	}
	flows := []*graph.Edge{
		{ID: "f1", Source: "start", Target: "receive"},
		{ID: "f2", Source: "receive", Target: "end"},
	}
	model, err := graph.New("hook", "Hook", true, elements, flows, nil)
	require.NoError(t, err)
	reg.LoadModel("hook", model)

	h := command.NewCreateAndReceiveHandler(reg)
	inst, err := h.Handle(context.Background(), command.CreateAndReceive{
		ModelKey: "hook",
		TaskID:   "receive",
		Payload:  map[string]interface{}{"event": "webhook"},
	})
	require.NoError(t, err)
	assert.Equal(t, instance.StatusFinished, inst.Status())
}
