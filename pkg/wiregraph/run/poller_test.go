package run

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/wiregraph/pkg/wiregraph"
)

func TestPoller_StopsWhenTerminal(t *testing.T) {
	e := chainEditor(t, &countingMetrics{})
	exec := &fakeExecutor{
		statuses: []*StatusResponse{
			{Outputs: map[string]NodeState{"B": {Status: "running"}}},
			{Outputs: map[string]NodeState{
				"B":     {Status: "completed", Output: map[string]any{"value": 1}},
				"C":     {Status: "failed"},
				"ghost": {Status: "completed"},
			}},
		},
		statusErrs: []error{nil, errors.New("backend unavailable")},
	}

	st, err := NewPoller(e, exec, time.Millisecond).Poll(context.Background(), "run-1")
	require.NoError(t, err)
	assert.True(t, st.Terminal())
	assert.Equal(t, 3, exec.statusCalls)

	b := nodeOf(t, e, "B")
	assert.Equal(t, wiregraph.StatusCompleted, b.Status)
	assert.Equal(t, 1, b.Output["value"])
	assert.Equal(t, wiregraph.StatusFailed, nodeOf(t, e, "C").Status)
}

func TestPoller_UnknownStatusIgnored(t *testing.T) {
	e := chainEditor(t, &countingMetrics{})
	exec := &fakeExecutor{statuses: []*StatusResponse{
		{Outputs: map[string]NodeState{"B": {Status: "exploded"}, "C": {Status: "running"}}},
	}}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := NewPoller(e, exec, time.Millisecond).Poll(ctx, "run-1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, wiregraph.StatusNone, nodeOf(t, e, "B").Status)
	assert.Equal(t, wiregraph.StatusRunning, nodeOf(t, e, "C").Status)
}

func TestPoller_StopsOnCancel(t *testing.T) {
	e := chainEditor(t, &countingMetrics{})
	exec := &fakeExecutor{}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := NewPoller(e, exec, time.Millisecond).Poll(ctx, "run-1")
		done <- err
	}()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("poller did not stop")
	}
}

func TestNewPoller_DefaultInterval(t *testing.T) {
	p := NewPoller(chainEditor(t, &countingMetrics{}), &fakeExecutor{}, 0)
	assert.Equal(t, DefaultPollInterval, p.interval)
}
