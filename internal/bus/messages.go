// Package bus defines the relay between the extraction pipeline and the
// aggregation store: a closed catalogue of typed messages, their JSON wire
// codec and an in-process request/response bus with a single dispatcher.
package bus

import (
	"context"
	"errors"
	"fmt"

	"github.com/aatumaykin/berrus-helper/internal/game"
)

// MessageType is the wire tag of a message.
type MessageType string

const (
	TypeJobDetected        MessageType = "JOB_DETECTED"
	TypeJobCompleted       MessageType = "JOB_COMPLETED"
	TypePriceSnapshot      MessageType = "PRICE_SNAPSHOT"
	TypeXPGained           MessageType = "XP_GAINED"
	TypeItemCollected      MessageType = "ITEM_COLLECTED"
	TypeSessionEvent       MessageType = "SESSION_EVENT"
	TypeContentScriptReady MessageType = "CONTENT_SCRIPT_READY"
	TypeGetTimers          MessageType = "GET_TIMERS"
	TypeGetPrices          MessageType = "GET_PRICES"
	TypeGetSessionStats    MessageType = "GET_SESSION_STATS"
	TypeSearchHiscores     MessageType = "SEARCH_HISCORES"
)

var (
	ErrUnknownMessage = errors.New("unknown message type")
	ErrInvalidMessage = errors.New("invalid message")
)

// Message is one of the variants declared in this file.
type Message interface {
	Type() MessageType
	Validate() error
	message()
}

// Sender delivers a message and returns the correlated response. Errors are
// transport failures only.
type Sender interface {
	Send(ctx context.Context, msg Message) (any, error)
}

// Poster is a best-effort, fire-and-forget Sender.
type Poster interface {
	Post(msg Message)
}

// Handler applies a message on the receiving side.
type Handler interface {
	Handle(ctx context.Context, msg Message) (any, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, msg Message) (any, error)

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, msg Message) (any, error) {
	return f(ctx, msg)
}

// Ack answers every fact message.
type Ack struct {
	Success bool `json:"success"`
}

// IsFact reports whether msg changes store state (as opposed to a query).
func IsFact(msg Message) bool {
	switch msg.Type() {
	case TypeGetTimers, TypeGetPrices, TypeGetSessionStats, TypeSearchHiscores:
		return false
	}
	return true
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidMessage, fmt.Sprintf(format, args...))
}

// JobDetected reports a running job.
type JobDetected struct {
	Job game.TimedJob `json:"job"`
}

func (JobDetected) Type() MessageType { return TypeJobDetected }
func (JobDetected) message()          {}

func (m JobDetected) Validate() error {
	j := m.Job
	switch {
	case j.ID == "":
		return invalid("job.id is empty")
	case j.Name == "":
		return invalid("job.name is empty")
	case j.Skill == "":
		return invalid("job.skill is empty")
	case j.DurationMs < 0:
		return invalid("job.durationMs is negative")
	case j.EndsAt != j.StartedAt+j.DurationMs:
		return invalid("job.endsAt != startedAt + durationMs")
	}
	return nil
}

// JobCompleted reports a finished job.
type JobCompleted struct {
	JobID string `json:"jobId"`
}

func (JobCompleted) Type() MessageType { return TypeJobCompleted }
func (JobCompleted) message()          {}

func (m JobCompleted) Validate() error {
	if m.JobID == "" {
		return invalid("jobId is empty")
	}
	return nil
}

// PriceSnapshot reports an observed price.
type PriceSnapshot struct {
	Snapshot game.PriceSnapshot `json:"snapshot"`
}

func (PriceSnapshot) Type() MessageType { return TypePriceSnapshot }
func (PriceSnapshot) message()          {}

func (m PriceSnapshot) Validate() error {
	s := m.Snapshot
	switch {
	case s.ItemID == "":
		return invalid("snapshot.itemId is empty")
	case s.Price < 0:
		return invalid("snapshot.price is negative")
	case s.Source != game.SourceShop && s.Source != game.SourceMercadillo:
		return invalid("snapshot.source %q", s.Source)
	}
	return nil
}

// XPGained reports experience gained in a skill.
type XPGained struct {
	Event game.SessionEvent `json:"event"`
}

func (XPGained) Type() MessageType { return TypeXPGained }
func (XPGained) message()          {}

func (m XPGained) Validate() error {
	return validateEvent(m.Event, game.EventXPGained)
}

// ItemCollected reports a picked up item.
type ItemCollected struct {
	Event game.SessionEvent `json:"event"`
}

func (ItemCollected) Type() MessageType { return TypeItemCollected }
func (ItemCollected) message()          {}

func (m ItemCollected) Validate() error {
	return validateEvent(m.Event, game.EventItemCollected)
}

// SessionEvent carries any other session fact (combat, trades, jobs).
type SessionEvent struct {
	Event game.SessionEvent `json:"event"`
}

func (SessionEvent) Type() MessageType { return TypeSessionEvent }
func (SessionEvent) message()          {}

func (m SessionEvent) Validate() error {
	return validateEvent(m.Event, "")
}

func validateEvent(e game.SessionEvent, want game.SessionEventType) error {
	if !e.Type.Valid() {
		return invalid("event.type %q", e.Type)
	}
	if want != "" && e.Type != want {
		return invalid("event.type %q, want %q", e.Type, want)
	}
	return nil
}

// ContentScriptReady announces a fresh page pipeline and starts a new session.
type ContentScriptReady struct{}

func (ContentScriptReady) Type() MessageType { return TypeContentScriptReady }
func (ContentScriptReady) message()          {}
func (ContentScriptReady) Validate() error   { return nil }

// GetTimers asks for the JobTimerState.
type GetTimers struct{}

func (GetTimers) Type() MessageType { return TypeGetTimers }
func (GetTimers) message()          {}
func (GetTimers) Validate() error   { return nil }

// GetPrices asks for price histories, optionally of one item.
type GetPrices struct {
	ItemID string `json:"itemId,omitempty"`
}

func (GetPrices) Type() MessageType { return TypeGetPrices }
func (GetPrices) message()          {}
func (GetPrices) Validate() error   { return nil }

// GetSessionStats asks for the current session.
type GetSessionStats struct{}

func (GetSessionStats) Type() MessageType { return TypeGetSessionStats }
func (GetSessionStats) message()          {}
func (GetSessionStats) Validate() error   { return nil }

// SearchHiscores asks for a hiscore lookup.
type SearchHiscores struct {
	PlayerName string `json:"playerName"`
	Category   string `json:"category"`
}

func (SearchHiscores) Type() MessageType { return TypeSearchHiscores }
func (SearchHiscores) message()          {}

func (m SearchHiscores) Validate() error {
	if m.PlayerName == "" {
		return invalid("playerName is empty")
	}
	if m.Category == "" {
		return invalid("category is empty")
	}
	return nil
}
