// Package notify delivers user-facing notifications such as "job complete".
package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/aatumaykin/berrus-helper/internal/game"
	"github.com/aatumaykin/berrus-helper/internal/logger"
)

// Notification is a basic text notification.
type Notification struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

// JobComplete builds the notification sent when a job finishes.
func JobComplete(job game.TimedJob) Notification {
	return Notification{
		ID:      job.ID,
		Title:   "Job Complete!",
		Message: fmt.Sprintf("Your %s job %q has finished.", job.Skill, job.Name),
	}
}

// Text renders n as a single message body.
func (n Notification) Text() string {
	return n.Title + "\n" + n.Message
}

// Notifier sends a notification somewhere the user will see it.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// LogNotifier writes notifications to the log.
type LogNotifier struct {
	logger *logger.Logger
}

func NewLogNotifier(log *logger.Logger) *LogNotifier {
	return &LogNotifier{logger: log}
}

func (l *LogNotifier) Notify(ctx context.Context, n Notification) error {
	l.logger.InfoCtx(ctx, n.Title,
		logger.Field{Key: "id", Value: n.ID},
		logger.Field{Key: "message", Value: n.Message})
	return nil
}

// Multi fans a notification out to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, n Notification) error {
	var errs []error
	for _, target := range m {
		if err := target.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
