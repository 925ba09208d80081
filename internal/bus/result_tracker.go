package bus

import (
	"context"
	"sync"

	"github.com/aatumaykin/berrus-helper/internal/logger"
)

// Reply is the outcome of one relayed request.
type Reply struct {
	Response any
	Err      error
}

// ResultTracker отслеживает ответы на запросы по correlation id
// Позволяет преобразовать асинхронную обработку в синхронное ожидание
type ResultTracker struct {
	mu      sync.Mutex
	pending map[string]chan Reply
	logger  *logger.Logger
}

// NewResultTracker создает новый ResultTracker
func NewResultTracker(log *logger.Logger) *ResultTracker {
	return &ResultTracker{
		pending: make(map[string]chan Reply),
		logger:  log,
	}
}

// Register регистрирует ожидание ответа
func (rt *ResultTracker) Register(correlationID string) <-chan Reply {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	ch := make(chan Reply, 1)
	rt.pending[correlationID] = ch
	return ch
}

// Forget снимает регистрацию без ответа
func (rt *ResultTracker) Forget(correlationID string) {
	rt.mu.Lock()
	delete(rt.pending, correlationID)
	rt.mu.Unlock()
}

// Complete доставляет ответ ожидающему; повторный или опоздавший ответ отбрасывается
func (rt *ResultTracker) Complete(correlationID string, reply Reply) {
	rt.mu.Lock()
	ch, ok := rt.pending[correlationID]
	delete(rt.pending, correlationID)
	rt.mu.Unlock()

	if !ok {
		rt.logger.DebugCtx(context.Background(), "no pending request for reply",
			logger.Field{Key: "correlation_id", Value: correlationID})
		return
	}

	ch <- reply
}

// Pending returns the number of requests waiting for a reply.
func (rt *ResultTracker) Pending() int {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return len(rt.pending)
}
