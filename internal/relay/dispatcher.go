package relay

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/aatumaykin/berrus-helper/internal/bus"
	"github.com/aatumaykin/berrus-helper/internal/logger"
	"github.com/aatumaykin/berrus-helper/internal/metrics"
	"github.com/aatumaykin/berrus-helper/internal/workers"
)

const taskType = "relay"

// Dispatcher is a best-effort bus.Poster over any Sender. Posts are queued
// on a single-worker pool so they reach the sender in order; failures are
// logged and counted, never returned.
type Dispatcher struct {
	sender  bus.Sender
	pool    *workers.WorkerPool
	logger  *logger.Logger
	metrics *metrics.Metrics
}

// NewDispatcher creates a stopped dispatcher. timeout bounds every send.
func NewDispatcher(sender bus.Sender, queueSize int, timeout time.Duration, log *logger.Logger, m *metrics.Metrics) *Dispatcher {
	d := &Dispatcher{
		sender:  sender,
		pool:    workers.NewPool(1, queueSize, log),
		logger:  log,
		metrics: m,
	}
	d.pool.SetTaskTimeout(timeout)
	d.pool.RegisterExecutor(taskType, d.send)
	return d
}

func (d *Dispatcher) Start() { d.pool.Start() }
func (d *Dispatcher) Stop()  { d.pool.Stop() }

// Post queues msg without blocking.
func (d *Dispatcher) Post(msg bus.Message) {
	err := d.pool.TrySubmit(workers.Task{
		ID:      uuid.NewString(),
		Type:    taskType,
		Payload: msg,
	})
	if err != nil {
		d.metrics.RecordPostFailure(string(msg.Type()))
		d.logger.Warn("relay post dropped",
			logger.Field{Key: "type", Value: msg.Type()},
			logger.Field{Key: "error", Value: err.Error()})
	}
}

func (d *Dispatcher) send(ctx context.Context, task workers.Task) error {
	return deliver(ctx, d.sender, task.Payload.(bus.Message), d.logger, d.metrics)
}

func deliver(ctx context.Context, sender bus.Sender, msg bus.Message, log *logger.Logger, m *metrics.Metrics) error {
	resp, err := sender.Send(ctx, msg)
	if err != nil {
		m.RecordPostFailure(string(msg.Type()))
		return err
	}
	if ack, ok := resp.(bus.Ack); ok && !ack.Success {
		log.DebugCtx(ctx, "relay fact not applied",
			logger.Field{Key: "type", Value: msg.Type()})
	}
	return nil
}

// Direct is a synchronous bus.Poster: Post returns once the sender answered.
// Replays use it so that nothing is still queued when playback ends.
type Direct struct {
	sender  bus.Sender
	timeout time.Duration
	logger  *logger.Logger
	metrics *metrics.Metrics
}

func NewDirect(sender bus.Sender, timeout time.Duration, log *logger.Logger, m *metrics.Metrics) *Direct {
	return &Direct{sender: sender, timeout: timeout, logger: log, metrics: m}
}

// Post sends msg and logs a failure.
func (d *Direct) Post(msg bus.Message) {
	ctx := context.Background()
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}
	if err := deliver(ctx, d.sender, msg, d.logger, d.metrics); err != nil {
		d.logger.Warn("relay post failed",
			logger.Field{Key: "type", Value: msg.Type()},
			logger.Field{Key: "error", Value: err.Error()})
	}
}
