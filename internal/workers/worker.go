package workers

import (
	"context"
	"fmt"
	"time"

	"github.com/aatumaykin/berrus-helper/internal/logger"
)

// worker is the main worker goroutine that processes tasks from the queue.
func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()

	p.logger.DebugCtx(p.ctx, "worker started",
		logger.Field{Key: "worker_id", Value: id})

	for {
		select {
		case <-p.ctx.Done():
			p.logger.DebugCtx(p.ctx, "worker stopping",
				logger.Field{Key: "worker_id", Value: id})
			return
		case task := <-p.taskQueue:
			p.processTask(id, task)
		}
	}
}

// processTask handles a single task execution with metrics and error handling.
func (p *WorkerPool) processTask(workerID int, task Task) {
	startTime := time.Now()

	result := p.executeTask(task)
	result.Duration = time.Since(startTime)

	if result.Error != nil {
		p.incrementFailed()
		p.logger.WarnCtx(p.ctx, "task failed",
			logger.Field{Key: "worker_id", Value: workerID},
			logger.Field{Key: "task_id", Value: task.ID},
			logger.Field{Key: "task_type", Value: task.Type},
			logger.Field{Key: "error", Value: result.Error.Error()})
	} else {
		p.incrementCompleted()
	}
	p.recordDuration(result.Duration)

	select {
	case p.resultCh <- result:
	default:
		p.incrementDropped()
	}
}

// executeTask runs the executor registered for the task type with panic
// recovery, the task timeout and the pool context.
func (p *WorkerPool) executeTask(task Task) (result Result) {
	result = Result{TaskID: task.ID, Type: task.Type}

	p.mu.RLock()
	exec, ok := p.executors[task.Type]
	timeout := p.timeout
	p.mu.RUnlock()
	if !ok {
		result.Error = fmt.Errorf("%w: %s", ErrUnknownTask, task.Type)
		return result
	}

	// Use task context if provided, otherwise use pool context
	ctx := p.ctx
	if task.Context != nil {
		ctx = task.Context
	}
	ctx, stop := context.WithCancel(ctx)
	defer stop()
	// остановка пула отменяет и задачи с собственным контекстом
	unwatch := context.AfterFunc(p.ctx, stop)
	defer unwatch()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if err := ctx.Err(); err != nil {
		result.Error = fmt.Errorf("%w: %v", ErrTaskCancelled, err)
		return result
	}

	defer func() {
		if r := recover(); r != nil {
			result.Error = fmt.Errorf("panic during task execution: %v", r)
			p.logger.ErrorCtx(ctx, "task panic recovered", result.Error,
				logger.Field{Key: "task_id", Value: task.ID})
		}
	}()

	result.Error = exec(ctx, task)
	return result
}
