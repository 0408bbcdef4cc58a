package metrics

import (
	"sync"
	"time"
)

// Pipeline tracks performance counters for the query pipeline. All methods
// are safe for concurrent use by the worker goroutines.
type Pipeline struct {
	mu sync.RWMutex

	queriesProcessed int64
	degradedRuns     int64

	actionsExecuted  int64
	actionsEscalated int64

	stageDuration map[string]time.Duration
	stageRuns     map[string]int64

	totalDuration time.Duration
}

func NewPipeline() *Pipeline {
	return &Pipeline{
		stageDuration: map[string]time.Duration{},
		stageRuns:     map[string]int64{},
	}
}

// RecordStage accumulates one stage execution.
func (p *Pipeline) RecordStage(stage string, duration time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stageDuration[stage] += duration
	p.stageRuns[stage]++
}

// RecordRun accumulates one completed pipeline run.
func (p *Pipeline) RecordRun(duration time.Duration, degraded bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.queriesProcessed++
	p.totalDuration += duration

	if degraded {
		p.degradedRuns++
	}
}

// RecordActions accumulates the autonomy gate outcome of one run.
func (p *Pipeline) RecordActions(executed, escalated int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.actionsExecuted += executed
	p.actionsEscalated += escalated
}

// Snapshot returns the current counters plus per-stage averages.
func (p *Pipeline) Snapshot() map[string]any {
	p.mu.RLock()
	defer p.mu.RUnlock()

	stages := map[string]any{}

	for stage, total := range p.stageDuration {
		runs := p.stageRuns[stage]
		if runs == 0 {
			continue
		}
		stages[stage] = map[string]any{
			"runs":        runs,
			"avg_seconds": total.Seconds() / float64(runs),
		}
	}

	avgRun := 0.0
	if p.queriesProcessed > 0 {
		avgRun = p.totalDuration.Seconds() / float64(p.queriesProcessed)
	}

	return map[string]any{
		"queries_processed": p.queriesProcessed,
		"degraded_runs":     p.degradedRuns,
		"actions_executed":  p.actionsExecuted,
		"actions_escalated": p.actionsEscalated,
		"avg_run_seconds":   avgRun,
		"stages":            stages,
	}
}
