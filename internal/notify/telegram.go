package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/mymmrac/telego"
)

// TelegramBot is the part of the telego bot API used here. *telego.Bot
// implements it.
type TelegramBot interface {
	SendMessage(ctx context.Context, params *telego.SendMessageParams) (*telego.Message, error)
}

// TelegramNotifier sends one message per configured chat.
type TelegramNotifier struct {
	bot     TelegramBot
	chatIDs []int64
}

// NewTelegramNotifier creates a bot from token.
func NewTelegramNotifier(token string, chatIDs []int64) (*TelegramNotifier, error) {
	bot, err := telego.NewBot(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return NewTelegramNotifierWithBot(bot, chatIDs), nil
}

// NewTelegramNotifierWithBot wraps an existing bot.
func NewTelegramNotifierWithBot(bot TelegramBot, chatIDs []int64) *TelegramNotifier {
	return &TelegramNotifier{bot: bot, chatIDs: chatIDs}
}

func (t *TelegramNotifier) Notify(ctx context.Context, n Notification) error {
	var errs []error
	for _, id := range t.chatIDs {
		params := &telego.SendMessageParams{
			ChatID: telego.ChatID{ID: id},
			Text:   n.Text(),
		}
		if _, err := t.bot.SendMessage(ctx, params); err != nil {
			errs = append(errs, fmt.Errorf("telegram chat %d: %w", id, err))
		}
	}
	return errors.Join(errs...)
}
