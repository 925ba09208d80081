package builders

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aatumaykin/berrus-helper/internal/alarms"
	"github.com/aatumaykin/berrus-helper/internal/bus"
	"github.com/aatumaykin/berrus-helper/internal/config"
	"github.com/aatumaykin/berrus-helper/internal/game"
	"github.com/aatumaykin/berrus-helper/internal/logger"
	"github.com/aatumaykin/berrus-helper/internal/mirror"
	"github.com/aatumaykin/berrus-helper/internal/notify"
	"github.com/aatumaykin/berrus-helper/internal/storage"
	"github.com/aatumaykin/berrus-helper/internal/store"
)

func TestNotifyBuilder_Build(t *testing.T) {
	t.Run("log only", func(t *testing.T) {
		cfg := config.Default()
		targets, err := NewNotifyBuilder(cfg, logger.NewNop()).Build()
		require.NoError(t, err)
		require.Len(t, targets, 1)
		assert.IsType(t, &notify.LogNotifier{}, targets[0])
	})

	t.Run("nothing enabled", func(t *testing.T) {
		cfg := config.Default()
		cfg.Notifications.Log = false
		targets, err := NewNotifyBuilder(cfg, logger.NewNop()).Build()
		require.NoError(t, err)
		assert.Empty(t, targets)
		assert.NoError(t, targets.Notify(context.Background(), notify.Notification{}))
	})

	t.Run("all enabled", func(t *testing.T) {
		cfg := config.Default()
		cfg.Notifications.Telegram = config.TelegramConfig{
			Enabled: true,
			Token:   "123456789:" + strings.Repeat("a", 35),
			ChatIDs: []int64{1},
		}
		cfg.Notifications.Discord = config.DiscordConfig{Enabled: true, Token: "token", ChannelID: "42"}

		targets, err := NewNotifyBuilder(cfg, logger.NewNop()).Build()
		require.NoError(t, err)
		require.Len(t, targets, 3)
		assert.IsType(t, &notify.TelegramNotifier{}, targets[1])
		assert.IsType(t, &notify.DiscordNotifier{}, targets[2])
	})

	t.Run("bad telegram token", func(t *testing.T) {
		cfg := config.Default()
		cfg.Notifications.Telegram = config.TelegramConfig{Enabled: true, Token: "bad"}
		_, err := NewNotifyBuilder(cfg, logger.NewNop()).Build()
		assert.Error(t, err)
	})
}

func TestAlarmsBuilder_RestoresPersistedJobs(t *testing.T) {
	ctx := context.Background()
	now := time.UnixMilli(1_700_000_000_000)
	kv := storage.NewMemory()

	state := game.JobTimerState{
		ActiveJobs: []game.TimedJob{
			game.NewTimedJob("j1", game.Pesca, "Salmon", now.UnixMilli(), 60_000),
		},
	}
	require.NoError(t, storage.Save(ctx, kv, storage.KeyJobTimers, state))

	b := NewAlarmsBuilder(logger.NewNop(), alarms.WithClock(func() time.Time { return now }))
	scheduler := b.Build()
	st := store.New(store.Deps{
		KV:     kv,
		Alarms: scheduler,
		Logger: logger.NewNop(),
		Now:    func() time.Time { return now },
	})

	require.NoError(t, b.Start(ctx, scheduler, st))
	t.Cleanup(func() { _ = scheduler.Stop() })

	a, ok := scheduler.Get(alarms.JobAlarmName("j1"))
	require.True(t, ok)
	assert.Equal(t, now.Add(time.Minute).UnixMilli(), a.ScheduledAt.UnixMilli())

	assert.Error(t, b.Start(ctx, scheduler, st), "second start fails")
}

func TestHiscoresBuilder_Build(t *testing.T) {
	cfg := config.Default().Hiscores
	c := NewHiscoresBuilder(cfg, logger.NewNop(), nil).Build()
	assert.NotNil(t, c)
}

func TestMirrorBuilder_Wrap(t *testing.T) {
	next := bus.HandlerFunc(func(context.Context, bus.Message) (any, error) {
		return bus.Ack{Success: true}, nil
	})

	t.Run("disabled", func(t *testing.T) {
		h, closer, err := NewMirrorBuilder(config.MirrorConfig{}, logger.NewNop()).Wrap(next)
		require.NoError(t, err)
		assert.Nil(t, closer)
		assert.NotNil(t, h)
	})

	t.Run("enabled", func(t *testing.T) {
		cfg := config.MirrorConfig{Enabled: true, Brokers: []string{"127.0.0.1:9092"}, Topic: "berrus.facts"}
		h, closer, err := NewMirrorBuilder(cfg, logger.NewNop()).Wrap(next)
		require.NoError(t, err)
		require.NotNil(t, closer)
		assert.IsType(t, &mirror.Handler{}, h)
		assert.NoError(t, closer.Close())
	})

	t.Run("no brokers", func(t *testing.T) {
		_, _, err := NewMirrorBuilder(config.MirrorConfig{Enabled: true, Topic: "t"}, logger.NewNop()).Wrap(next)
		assert.Error(t, err)
	})
}
