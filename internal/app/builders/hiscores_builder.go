package builders

import (
	"net/http"
	"time"

	"github.com/aatumaykin/berrus-helper/internal/config"
	"github.com/aatumaykin/berrus-helper/internal/hiscores"
	"github.com/aatumaykin/berrus-helper/internal/logger"
	"github.com/aatumaykin/berrus-helper/internal/metrics"
	"github.com/aatumaykin/berrus-helper/internal/retry"
)

type HiscoresBuilder struct {
	config  config.HiscoresConfig
	logger  *logger.Logger
	metrics *metrics.Metrics
}

func NewHiscoresBuilder(cfg config.HiscoresConfig, log *logger.Logger, m *metrics.Metrics) *HiscoresBuilder {
	return &HiscoresBuilder{
		config:  cfg,
		logger:  log,
		metrics: m,
	}
}

func (b *HiscoresBuilder) Build() *hiscores.Client {
	return hiscores.NewClient(b.config.BaseURL, b.logger,
		hiscores.WithHTTPClient(&http.Client{
			Timeout: time.Duration(b.config.TimeoutSeconds) * time.Second,
		}),
		hiscores.WithRetry(retry.Config{
			MaxAttempts: b.config.MaxAttempts,
			Logger:      b.logger,
		}),
		hiscores.WithMetrics(b.metrics),
	)
}
