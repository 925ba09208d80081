// Package mirror copies applied fact messages to a Kafka topic so other
// tools can follow the game state without polling the daemon.
package mirror

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/aatumaykin/berrus-helper/internal/bus"
	"github.com/aatumaykin/berrus-helper/internal/config"
	"github.com/aatumaykin/berrus-helper/internal/logger"
)

// Publisher is the part of *kafka.Writer the mirror uses.
type Publisher interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Handler decorates a bus.Handler. Facts the inner handler applied without
// error are published; queries and failed facts are not.
type Handler struct {
	next   bus.Handler
	pub    Publisher
	logger *logger.Logger
	now    func() time.Time
}

// New wraps next.
func New(next bus.Handler, pub Publisher, log *logger.Logger) *Handler {
	return &Handler{next: next, pub: pub, logger: log, now: time.Now}
}

// NewWriter creates an async writer for cfg. Delivery errors are only logged.
func NewWriter(cfg config.MirrorConfig, log *logger.Logger) (*kafka.Writer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("mirror: no brokers")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("mirror: empty topic")
	}
	return &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        true,
		BatchTimeout: 100 * time.Millisecond,
		Completion: func(msgs []kafka.Message, err error) {
			if err != nil {
				log.Warn("mirror delivery failed",
					logger.Field{Key: "messages", Value: len(msgs)},
					logger.Field{Key: "error", Value: err.Error()})
			}
		},
	}, nil
}

// Handle implements bus.Handler.
func (h *Handler) Handle(ctx context.Context, msg bus.Message) (any, error) {
	resp, err := h.next.Handle(ctx, msg)
	if err != nil || msg == nil || !bus.IsFact(msg) {
		return resp, err
	}
	if ack, ok := resp.(bus.Ack); ok && !ack.Success {
		return resp, err
	}

	h.publish(ctx, msg)
	return resp, err
}

func (h *Handler) publish(ctx context.Context, msg bus.Message) {
	value, err := bus.Encode(msg)
	if err != nil {
		h.logger.ErrorCtx(ctx, "mirror encode failed", err, logger.Field{Key: "type", Value: msg.Type()})
		return
	}

	km := kafka.Message{
		Key:   []byte(msg.Type()),
		Value: value,
		Time:  h.now(),
	}
	if err := h.pub.WriteMessages(ctx, km); err != nil {
		h.logger.WarnCtx(ctx, "mirror publish failed",
			logger.Field{Key: "type", Value: msg.Type()},
			logger.Field{Key: "error", Value: err.Error()})
	}
}

// Close closes the publisher.
func (h *Handler) Close() error {
	return h.pub.Close()
}
