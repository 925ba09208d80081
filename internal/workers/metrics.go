package workers

import (
	"time"
)

// Metrics returns a snapshot of the pool metrics.
func (p *WorkerPool) Metrics() PoolMetrics {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.metrics
}

func (p *WorkerPool) incrementSubmitted() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.metrics.TasksSubmitted++
}

func (p *WorkerPool) incrementCompleted() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.metrics.TasksCompleted++
}

func (p *WorkerPool) incrementFailed() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.metrics.TasksFailed++
}

func (p *WorkerPool) incrementDropped() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.metrics.ResultsDropped++
}

// recordDuration records task execution duration.
func (p *WorkerPool) recordDuration(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.metrics.TotalDuration += d
}
