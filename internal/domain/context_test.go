package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractorContext_IsComplete(t *testing.T) {
	fresh := NewExtractorContext("charge_lookup", "pipe_1", NewId("evt"))
	require.False(t, fresh.IsComplete())

	finished := fresh
	finished.Stage = FinishedExtractorStage([]byte(`{"ok":true}`))
	require.True(t, finished.IsComplete())

	dropped := fresh
	dropped.Status = StatusDropped("timeout")
	require.True(t, dropped.IsComplete())
}

func TestPipelineContext_IsComplete(t *testing.T) {
	pc := NewPipelineContext("pipe_1", NewId("evt"))
	require.False(t, pc.IsComplete())

	pc.Stage = PipelineStageCompleted
	require.True(t, pc.IsComplete())

	dropped := NewPipelineContext("pipe_1", NewId("evt"))
	dropped.Status = StatusDropped("timeout")
	require.True(t, dropped.IsComplete())
}

func TestRootContext_IsComplete(t *testing.T) {
	root := NewRootContext(NewId("evt"))
	root.Children = []string{"pipe_1", "pipe_2"}

	incomplete := []PipelineContext{
		{PipelineKey: "pipe_1", Stage: PipelineStageCompleted, Status: StatusSucceeded()},
		{PipelineKey: "pipe_2", Stage: PipelineStageRunningExtractor, Status: StatusSucceeded()},
	}
	require.False(t, root.IsComplete(incomplete))

	complete := []PipelineContext{
		{PipelineKey: "pipe_1", Stage: PipelineStageCompleted, Status: StatusSucceeded()},
		{PipelineKey: "pipe_2", Status: StatusDropped("timeout")},
	}
	require.True(t, root.IsComplete(complete))

	droppedRoot := NewRootContext(NewId("evt"))
	droppedRoot.Status = StatusDropped("timeout")
	require.True(t, droppedRoot.IsComplete(nil))
}

func TestStatusDropped_IsDropped(t *testing.T) {
	require.True(t, StatusDropped("timeout").IsDropped())
	require.False(t, StatusSucceeded().IsDropped())
}
