package builders

import (
	"fmt"
	"io"

	"github.com/aatumaykin/berrus-helper/internal/bus"
	"github.com/aatumaykin/berrus-helper/internal/config"
	"github.com/aatumaykin/berrus-helper/internal/logger"
	"github.com/aatumaykin/berrus-helper/internal/mirror"
)

type MirrorBuilder struct {
	config config.MirrorConfig
	logger *logger.Logger
}

func NewMirrorBuilder(cfg config.MirrorConfig, log *logger.Logger) *MirrorBuilder {
	return &MirrorBuilder{
		config: cfg,
		logger: log,
	}
}

// Wrap returns next unchanged when mirroring is disabled. Otherwise the
// returned handler publishes applied facts and the closer flushes the writer.
func (b *MirrorBuilder) Wrap(next bus.Handler) (bus.Handler, io.Closer, error) {
	if !b.config.Enabled {
		return next, nil, nil
	}

	w, err := mirror.NewWriter(b.config, b.logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create mirror writer: %w", err)
	}
	h := mirror.New(next, w, b.logger)
	b.logger.Info("fact mirror enabled",
		logger.Field{Key: "brokers", Value: b.config.Brokers},
		logger.Field{Key: "topic", Value: b.config.Topic})
	return h, h, nil
}
