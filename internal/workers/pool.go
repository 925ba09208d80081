package workers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aatumaykin/berrus-helper/internal/logger"
)

// WorkerPool manages a pool of goroutine workers for concurrent task execution.
// With a single worker tasks run in submission order.
type WorkerPool struct {
	taskQueue chan Task
	resultCh  chan Result
	workers   int
	timeout   time.Duration
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
	logger    *logger.Logger

	mu        sync.RWMutex
	executors map[string]TaskExecutor
	started   bool
	stopped   bool
	metrics   PoolMetrics
}

// NewPool creates a new worker pool with the specified configuration.
func NewPool(workers int, bufferSize int, log *logger.Logger) *WorkerPool {
	if workers <= 0 {
		workers = DefaultPoolSize
	}
	if bufferSize <= 0 {
		bufferSize = DefaultQueueSize
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &WorkerPool{
		taskQueue: make(chan Task, bufferSize),
		resultCh:  make(chan Result, bufferSize),
		workers:   workers,
		timeout:   DefaultTaskTimeout,
		ctx:       ctx,
		cancel:    cancel,
		logger:    log,
		executors: make(map[string]TaskExecutor),
	}
}

// SetTaskTimeout bounds every task execution. Zero disables the bound.
func (p *WorkerPool) SetTaskTimeout(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.timeout = d
}

// RegisterExecutor routes tasks of taskType to exec.
func (p *WorkerPool) RegisterExecutor(taskType string, exec TaskExecutor) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.executors[taskType] = exec
}

// Start initializes and starts all worker goroutines.
func (p *WorkerPool) Start() {
	p.mu.Lock()
	if p.started || p.stopped {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	p.logger.Info("starting worker pool",
		logger.Field{Key: "workers", Value: p.workers},
		logger.Field{Key: "buffer_size", Value: cap(p.taskQueue)})

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Submit sends a task to the worker pool for execution.
// It blocks while the queue is full, until ctx is done or the pool stops.
func (p *WorkerPool) Submit(ctx context.Context, task Task) error {
	p.mu.RLock()
	stopped := p.stopped
	p.mu.RUnlock()
	if stopped {
		return ErrPoolStopped
	}

	select {
	case p.taskQueue <- task:
		p.incrementSubmitted()
		p.logger.DebugCtx(ctx, "task submitted",
			logger.Field{Key: "task_id", Value: task.ID},
			logger.Field{Key: "task_type", Value: task.Type})
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.ctx.Done():
		return ErrPoolStopped
	}
}

// TrySubmit queues a task without blocking.
func (p *WorkerPool) TrySubmit(task Task) error {
	p.mu.RLock()
	stopped := p.stopped
	p.mu.RUnlock()
	if stopped {
		return ErrPoolStopped
	}

	select {
	case p.taskQueue <- task:
		p.incrementSubmitted()
		return nil
	default:
		return fmt.Errorf("%w: task %s", ErrQueueFull, task.ID)
	}
}

// Results returns a read-only channel for receiving task results.
// Results nobody reads are dropped once the buffer is full.
func (p *WorkerPool) Results() <-chan Result {
	return p.resultCh
}

// Stop shuts the worker pool down. Running tasks see their context
// cancelled; queued tasks are discarded.
func (p *WorkerPool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	p.mu.Unlock()

	p.cancel()
	p.wg.Wait()

	metrics := p.Metrics()
	p.logger.Info("worker pool stopped",
		logger.Field{Key: "tasks_submitted", Value: metrics.TasksSubmitted},
		logger.Field{Key: "tasks_completed", Value: metrics.TasksCompleted},
		logger.Field{Key: "tasks_failed", Value: metrics.TasksFailed},
		logger.Field{Key: "tasks_discarded", Value: len(p.taskQueue)})
}

// WorkerCount returns the number of workers.
func (p *WorkerPool) WorkerCount() int {
	return p.workers
}

// QueueSize returns the current number of tasks waiting in the queue.
func (p *WorkerPool) QueueSize() int {
	return len(p.taskQueue)
}
