package builders

import (
	"fmt"

	"github.com/aatumaykin/berrus-helper/internal/config"
	"github.com/aatumaykin/berrus-helper/internal/logger"
	"github.com/aatumaykin/berrus-helper/internal/notify"
)

type NotifyBuilder struct {
	config *config.Config
	logger *logger.Logger
}

func NewNotifyBuilder(cfg *config.Config, log *logger.Logger) *NotifyBuilder {
	return &NotifyBuilder{
		config: cfg,
		logger: log,
	}
}

// Build returns every enabled notifier behind one notify.Multi. An empty
// Multi is valid and notifies nobody.
func (b *NotifyBuilder) Build() (notify.Multi, error) {
	n := b.config.Notifications
	var targets notify.Multi

	if n.Log {
		targets = append(targets, notify.NewLogNotifier(b.logger))
	}

	if n.Telegram.Enabled {
		tg, err := notify.NewTelegramNotifier(n.Telegram.Token, n.Telegram.ChatIDs)
		if err != nil {
			return nil, fmt.Errorf("failed to create telegram notifier: %w", err)
		}
		targets = append(targets, tg)
		b.logger.Info("telegram notifications enabled",
			logger.Field{Key: "chats", Value: len(n.Telegram.ChatIDs)})
	}

	if n.Discord.Enabled {
		dc, err := notify.NewDiscordNotifier(n.Discord.Token, n.Discord.ChannelID)
		if err != nil {
			return nil, fmt.Errorf("failed to create discord notifier: %w", err)
		}
		targets = append(targets, dc)
		b.logger.Info("discord notifications enabled",
			logger.Field{Key: "channel", Value: n.Discord.ChannelID})
	}

	return targets, nil
}
