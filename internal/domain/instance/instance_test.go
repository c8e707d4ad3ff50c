package instance_test

import (
	"testing"

	"github.com/duragraph/duragraph/internal/domain/instance"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RecordsCreatedEvent(t *testing.T) {
	inst, err := instance.New("", "model-1", map[string]interface{}{"x": float64(1)})
	require.NoError(t, err)

	assert.NotEmpty(t, inst.ID())
	assert.Equal(t, instance.StatusRunning, inst.Status())
	events := inst.Events()
	require.Len(t, events, 1)
	assert.Equal(t, instance.EventTypeInstanceCreated, events[0].EventType())
}

func TestEnterAndComplete_TracksPending(t *testing.T) {
	inst, err := instance.New("i1", "model-1", nil)
	require.NoError(t, err)
	inst.ClearEvents()

	inst.Enter("start")
	assert.True(t, inst.HasPending("start"))
	assert.Equal(t, []string{"start"}, inst.Pending())

	inst.Complete("start")
	assert.False(t, inst.HasPending("start"))
	assert.Empty(t, inst.Pending())
}

func TestEnqueueAndPopInbox_IsFIFO(t *testing.T) {
	inst, err := instance.New("i1", "model-1", nil)
	require.NoError(t, err)

	inst.Enqueue(instance.NewUserForm("t1", map[string]interface{}{"name": "A"}))
	inst.Enqueue(instance.NewReceive("t2", map[string]interface{}{"name": "B"}))
	assert.Equal(t, 2, inst.InboxLen())

	msg, ok := inst.PopInbox()
	require.True(t, ok)
	assert.Equal(t, "t1", msg.TaskID)

	msg, ok = inst.PopInbox()
	require.True(t, ok)
	assert.Equal(t, "t2", msg.TaskID)

	_, ok = inst.PopInbox()
	assert.False(t, ok)
}

func TestTransitionTo_RejectsFromTerminal(t *testing.T) {
	inst, err := instance.New("i1", "model-1", nil)
	require.NoError(t, err)

	require.NoError(t, inst.TransitionTo(instance.StatusFinished))
	err = inst.TransitionTo(instance.StatusRunning)
	require.Error(t, err)
}

func TestReconstruct_RebuildsPendingVariablesAndStatus(t *testing.T) {
	inst, err := instance.New("i1", "model-1", map[string]interface{}{"x": float64(1)})
	require.NoError(t, err)

	inst.Enter("start")
	inst.Complete("start")
	inst.Enter("A")
	inst.UpdateVariables(map[string]interface{}{"x": float64(2)})
	inst.Enqueue(instance.NewUserForm("A", map[string]interface{}{"name": "Q"}))

	events := inst.Events()

	rebuilt, err := instance.Reconstruct(events)
	require.NoError(t, err)

	assert.Equal(t, "i1", rebuilt.ID())
	assert.Equal(t, []string{"A"}, rebuilt.Pending())
	assert.Equal(t, float64(2), rebuilt.Variables()["x"])
	assert.Equal(t, 1, rebuilt.InboxLen())
}

func TestSnapshot_IsIndependentCopy(t *testing.T) {
	inst, err := instance.New("i1", "model-1", map[string]interface{}{
		"nested": map[string]interface{}{"a": float64(1)},
	})
	require.NoError(t, err)

	snap, err := inst.Snapshot()
	require.NoError(t, err)

	snap["nested"].(map[string]interface{})["a"] = float64(99)
	assert.Equal(t, float64(1), inst.Variables()["nested"].(map[string]interface{})["a"])
}
