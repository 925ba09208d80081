package builders

import (
	"context"
	"fmt"

	"github.com/aatumaykin/berrus-helper/internal/alarms"
	"github.com/aatumaykin/berrus-helper/internal/logger"
	"github.com/aatumaykin/berrus-helper/internal/store"
)

type AlarmsBuilder struct {
	logger *logger.Logger
	opts   []alarms.Option
}

func NewAlarmsBuilder(log *logger.Logger, opts ...alarms.Option) *AlarmsBuilder {
	return &AlarmsBuilder{
		logger: log,
		opts:   opts,
	}
}

// Build creates a stopped scheduler. The store needs it before it exists,
// so starting is a separate step.
func (b *AlarmsBuilder) Build() *alarms.Scheduler {
	return alarms.NewScheduler(b.logger, b.opts...)
}

// Start routes fired alarms to st, starts the scheduler and re-arms the
// alarms of jobs persisted by a previous run.
func (b *AlarmsBuilder) Start(ctx context.Context, scheduler *alarms.Scheduler, st *store.Store) error {
	scheduler.OnAlarm(st.HandleAlarm)
	if err := scheduler.Start(); err != nil {
		return fmt.Errorf("failed to start alarm scheduler: %w", err)
	}

	restored, err := st.RestoreAlarms(ctx)
	if err != nil {
		return fmt.Errorf("failed to restore job alarms: %w", err)
	}
	if restored > 0 {
		b.logger.Info("job alarms restored", logger.Field{Key: "count", Value: restored})
	}
	return nil
}
