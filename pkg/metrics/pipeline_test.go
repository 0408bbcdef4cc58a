package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPipelineCounters(t *testing.T) {
	p := NewPipeline()

	p.RecordStage("perceive", 100*time.Millisecond)
	p.RecordStage("perceive", 300*time.Millisecond)
	p.RecordStage("plan", 50*time.Millisecond)

	p.RecordRun(time.Second, false)
	p.RecordRun(3*time.Second, true)
	p.RecordActions(2, 1)

	snapshot := p.Snapshot()

	assert.Equal(t, int64(2), snapshot["queries_processed"])
	assert.Equal(t, int64(1), snapshot["degraded_runs"])
	assert.Equal(t, int64(2), snapshot["actions_executed"])
	assert.Equal(t, int64(1), snapshot["actions_escalated"])
	assert.InDelta(t, 2.0, snapshot["avg_run_seconds"].(float64), 1e-9)

	stages := snapshot["stages"].(map[string]any)
	perceive := stages["perceive"].(map[string]any)
	assert.Equal(t, int64(2), perceive["runs"])
	assert.InDelta(t, 0.2, perceive["avg_seconds"].(float64), 1e-9)
}

func TestPipelineEmptySnapshot(t *testing.T) {
	snapshot := NewPipeline().Snapshot()

	assert.Equal(t, int64(0), snapshot["queries_processed"])
	assert.InDelta(t, 0.0, snapshot["avg_run_seconds"].(float64), 1e-9)
	assert.Empty(t, snapshot["stages"])
}
