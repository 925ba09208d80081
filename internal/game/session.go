package game

import (
	"encoding/json"
	"math"
	"strconv"
)

// SessionEventType enumerates session facts.
type SessionEventType string

const (
	EventXPGained      SessionEventType = "xp_gained"
	EventItemCollected SessionEventType = "item_collected"
	EventItemSold      SessionEventType = "item_sold"
	EventItemBought    SessionEventType = "item_bought"
	EventCombatKill    SessionEventType = "combat_kill"
	EventCombatDeath   SessionEventType = "combat_death"
	EventJobStarted    SessionEventType = "job_started"
	EventJobCompleted  SessionEventType = "job_completed"
)

// Valid reports whether t is one of the known event types.
func (t SessionEventType) Valid() bool {
	switch t {
	case EventXPGained, EventItemCollected, EventItemSold, EventItemBought,
		EventCombatKill, EventCombatDeath, EventJobStarted, EventJobCompleted:
		return true
	}
	return false
}

// SessionEvent is an immutable session fact. Data depends on Type.
type SessionEvent struct {
	Type      SessionEventType `json:"type"`
	Timestamp int64            `json:"timestamp"`
	Data      map[string]any   `json:"data"`
}

// Int64 reads a numeric payload field. JSON numbers, Go integers and numeric
// strings are accepted.
func (e SessionEvent) Int64(key string) (int64, bool) {
	switch v := e.Data[key].(type) {
	case int:
		return int64(v), true
	case int64:
		return v, true
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, false
		}
		return int64(v), true
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			f, ferr := v.Float64()
			if ferr != nil {
				return 0, false
			}
			return int64(f), true
		}
		return n, true
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		return n, err == nil
	}
	return 0, false
}

// String reads a string payload field.
func (e SessionEvent) String(key string) string {
	s, _ := e.Data[key].(string)
	return s
}

// SkillGain accumulates XP and levels for one skill within a session.
type SkillGain struct {
	Skill        Skill `json:"skill"`
	XPGained     int64 `json:"xpGained"`
	LevelsGained int64 `json:"levelsGained"`
}

// SessionStats is the current play session.
type SessionStats struct {
	StartedAt      int64          `json:"startedAt"`
	LastActivityAt int64          `json:"lastActivityAt"`
	DurationMs     int64          `json:"durationMs"`
	SkillGains     []SkillGain    `json:"skillGains"`
	TotalXPGained  int64          `json:"totalXpGained"`
	ItemsCollected int64          `json:"itemsCollected"`
	PesetasEarned  int64          `json:"pesetasEarned"`
	PesetasSpent   int64          `json:"pesetasSpent"`
	CombatKills    int64          `json:"combatKills"`
	CombatDeaths   int64          `json:"combatDeaths"`
	JobsCompleted  int64          `json:"jobsCompleted"`
	Events         []SessionEvent `json:"events"`
}

// NewSession returns an empty session started at now (epoch ms).
func NewSession(now int64) *SessionStats {
	return &SessionStats{
		StartedAt:      now,
		LastActivityAt: now,
		SkillGains:     []SkillGain{},
		Events:         []SessionEvent{},
	}
}

// Apply folds e into the accumulators and the event ring. now is epoch ms.
func (s *SessionStats) Apply(e SessionEvent, now int64) {
	switch e.Type {
	case EventXPGained:
		xp, _ := e.Int64("xp")
		levels, _ := e.Int64("levels")
		s.TotalXPGained += xp
		if skill, ok := ParseSkill(e.String("skill")); ok {
			s.addSkillGain(skill, xp, levels)
		}
	case EventItemCollected:
		s.ItemsCollected++
	case EventItemSold:
		amount, _ := e.Int64("amount")
		s.PesetasEarned += amount
	case EventItemBought:
		amount, _ := e.Int64("amount")
		s.PesetasSpent += amount
	case EventCombatKill:
		s.CombatKills++
	case EventCombatDeath:
		s.CombatDeaths++
	case EventJobCompleted:
		s.JobsCompleted++
	}

	s.LastActivityAt = now
	s.DurationMs = now - s.StartedAt
	s.Events = appendBounded(s.Events, e, MaxSessionEvents)
}

func (s *SessionStats) addSkillGain(skill Skill, xp, levels int64) {
	for i := range s.SkillGains {
		if s.SkillGains[i].Skill == skill {
			s.SkillGains[i].XPGained += xp
			s.SkillGains[i].LevelsGained += levels
			return
		}
	}
	s.SkillGains = append(s.SkillGains, SkillGain{Skill: skill, XPGained: xp, LevelsGained: levels})
}
