package bus

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/aatumaykin/berrus-helper/internal/logger"
)

var (
	ErrQueueFull      = errors.New("queue is full")
	ErrAlreadyStarted = errors.New("message bus is already started")
	ErrNotStarted     = errors.New("message bus is not started")
)

// request is one queued message with its correlation id.
type request struct {
	correlationID string
	msg           Message
}

// MessageBus is the in-process relay. Requests are queued and applied one at
// a time by a single dispatcher goroutine, so handlers never run concurrently.
type MessageBus struct {
	mu      sync.RWMutex
	logger  *logger.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	started bool
	done    chan struct{}

	handler  Handler
	requests chan request
	tracker  *ResultTracker
}

// New creates a MessageBus with the given queue capacity.
func New(capacity int, handler Handler, log *logger.Logger) *MessageBus {
	if capacity < 1 {
		capacity = 1
	}
	return &MessageBus{
		logger:   log,
		handler:  handler,
		requests: make(chan request, capacity),
		tracker:  NewResultTracker(log),
	}
}

// Start starts the dispatcher goroutine.
func (mb *MessageBus) Start(ctx context.Context) error {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	if mb.started {
		return ErrAlreadyStarted
	}

	mb.ctx, mb.cancel = context.WithCancel(ctx)
	mb.done = make(chan struct{})
	mb.started = true

	go mb.dispatch(mb.ctx, mb.done)

	mb.logger.Info("message bus started", logger.Field{Key: "capacity", Value: cap(mb.requests)})
	return nil
}

// Stop stops the dispatcher and waits for the message being handled.
// Queued requests that were not dispatched fail with ErrNotStarted.
func (mb *MessageBus) Stop() error {
	mb.mu.Lock()
	if !mb.started {
		mb.mu.Unlock()
		return ErrNotStarted
	}
	mb.started = false
	mb.cancel()
	done := mb.done
	mb.mu.Unlock()

	<-done

	for {
		select {
		case req := <-mb.requests:
			mb.tracker.Complete(req.correlationID, Reply{Err: ErrNotStarted})
		default:
			mb.logger.Info("message bus stopped")
			return nil
		}
	}
}

// IsStarted returns true if the message bus is started
func (mb *MessageBus) IsStarted() bool {
	mb.mu.RLock()
	defer mb.mu.RUnlock()
	return mb.started
}

// Send queues msg and waits for its response. It fails with ErrNotStarted,
// ErrQueueFull or the context error; it never fails because of msg content.
func (mb *MessageBus) Send(ctx context.Context, msg Message) (any, error) {
	req := request{correlationID: uuid.NewString(), msg: msg}
	reply := mb.tracker.Register(req.correlationID)

	mb.mu.RLock()
	if !mb.started {
		mb.mu.RUnlock()
		mb.tracker.Forget(req.correlationID)
		return nil, ErrNotStarted
	}
	select {
	case mb.requests <- req:
	default:
		mb.mu.RUnlock()
		mb.tracker.Forget(req.correlationID)
		mb.logger.WarnCtx(ctx, "relay queue full",
			logger.Field{Key: "type", Value: msg.Type()},
			logger.Field{Key: "capacity", Value: cap(mb.requests)})
		return nil, ErrQueueFull
	}
	mb.mu.RUnlock()

	select {
	case r := <-reply:
		return r.Response, r.Err
	case <-ctx.Done():
		mb.tracker.Forget(req.correlationID)
		return nil, ctx.Err()
	}
}

// dispatch applies queued requests one by one.
func (mb *MessageBus) dispatch(ctx context.Context, done chan struct{}) {
	defer close(done)

	for {
		select {
		case <-ctx.Done():
			return
		case req := <-mb.requests:
			mb.tracker.Complete(req.correlationID, mb.apply(ctx, req))
		}
	}
}

func (mb *MessageBus) apply(ctx context.Context, req request) Reply {
	if req.msg == nil {
		return Reply{}
	}
	if err := req.msg.Validate(); err != nil {
		mb.logger.WarnCtx(ctx, "dropping invalid message",
			logger.Field{Key: "type", Value: req.msg.Type()},
			logger.Field{Key: "reason", Value: err.Error()})
		return Reply{}
	}

	resp, err := mb.handler.Handle(ctx, req.msg)
	if err != nil {
		mb.logger.ErrorCtx(ctx, "message handler failed", err,
			logger.Field{Key: "type", Value: req.msg.Type()},
			logger.Field{Key: "correlation_id", Value: req.correlationID})
		if IsFact(req.msg) {
			return Reply{Response: Ack{Success: false}}
		}
		return Reply{}
	}
	return Reply{Response: resp}
}
