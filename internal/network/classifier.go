// Package network turns intercepted game API responses into facts. The
// Interceptor copies responses of the API origin off the HTTP path; the
// Classifier recognises the endpoints and diffs character snapshots so only
// changes reach the relay.
package network

import (
	"encoding/json"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/wasilibs/go-re2"

	"github.com/aatumaykin/berrus-helper/internal/bus"
	"github.com/aatumaykin/berrus-helper/internal/game"
	"github.com/aatumaykin/berrus-helper/internal/logger"
)

// ResponseType tells which page API produced a response.
type ResponseType string

const (
	TypeFetch ResponseType = "fetch"
	TypeXHR   ResponseType = "xhr"
)

// InterceptedResponse is a copy of one API response.
type InterceptedResponse struct {
	Type   ResponseType `json:"type"`
	URL    string       `json:"url"`
	Status int          `json:"status"`
	Body   string       `json:"body"`
}

var (
	characterPattern = re2.MustCompile(`/api/protected/character/([^/?]+)(?:\?.*)?$`)
	allCharacters    = re2.MustCompile(`^all\b`)
	rewardsPattern   = re2.MustCompile(`/api/protected/character/.*/protected/rewards`)
	jobsPattern      = re2.MustCompile(`/api/protected/character/.*/protected/jobs`)
)

// Classifier holds the diff state of one content lifetime.
type Classifier struct {
	mu             sync.Mutex
	poster         bus.Poster
	logger         *logger.Logger
	now            func() time.Time
	previousXP     map[string]float64
	previousCombat string
	inCombat       bool
}

// NewClassifier creates a classifier posting to p. A nil clock means time.Now.
func NewClassifier(p bus.Poster, log *logger.Logger, now func() time.Time) *Classifier {
	if now == nil {
		now = time.Now
	}
	return &Classifier{
		poster:     p,
		logger:     log,
		now:        now,
		previousXP: map[string]float64{},
	}
}

// Reset forgets the XP baseline and the last combat result.
func (c *Classifier) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.previousXP = map[string]float64{}
	c.previousCombat = ""
	c.inCombat = false
}

// HandleInterceptedResponse classifies resp by URL and posts the facts it
// carries. Non-2xx statuses and bodies that are not JSON are ignored.
func (c *Classifier) HandleInterceptedResponse(resp InterceptedResponse) {
	c.logger.Debug("intercepted response",
		logger.Field{Key: "url", Value: resp.URL},
		logger.Field{Key: "status", Value: resp.Status})

	if resp.Status < 200 || resp.Status >= 300 {
		return
	}

	var data any
	if err := json.Unmarshal([]byte(resp.Body), &data); err != nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case isCharacterURL(resp.URL):
		obj, ok := data.(map[string]any)
		if !ok {
			return
		}
		c.handleJobs(obj["jobs"])
		c.handleSkillsXP(obj)
		c.handleCombat(obj)
	case rewardsPattern.MatchString(resp.URL):
		c.handleRewards(data)
	case jobsPattern.MatchString(resp.URL):
		if obj, ok := data.(map[string]any); ok {
			c.handleJobs(obj["jobs"])
		} else {
			c.handleJobs(data)
		}
	}
}

func isCharacterURL(url string) bool {
	m := characterPattern.FindStringSubmatch(url)
	return m != nil && !allCharacters.MatchString(m[1])
}

// handleJobs posts every active job of a job list.
func (c *Classifier) handleJobs(raw any) {
	list, ok := raw.([]any)
	if !ok {
		return
	}

	for _, item := range list {
		entry, ok := item.(map[string]any)
		if !ok || entry["status"] != "active" {
			continue
		}
		jobID, ok := entry["jobId"].(string)
		if !ok || jobID == "" {
			continue
		}

		skill := game.DefaultSkill
		if name, ok := entry["skill"].(string); ok {
			if mapped, ok := game.SkillFromAPI(name); ok {
				skill = mapped
			}
		}

		name := jobID
		if n, ok := entry["name"].(string); ok && n != "" {
			name = n
		}

		startedAt := c.now().UnixMilli()
		if v, ok := entry["startedAt"].(float64); ok {
			startedAt = int64(v)
		}
		var durationMs int64
		if v, ok := entry["durationMs"].(float64); ok {
			durationMs = int64(v)
		}

		c.logger.Info("job detected from api",
			logger.Field{Key: "job_id", Value: jobID},
			logger.Field{Key: "skill", Value: skill})
		c.poster.Post(bus.JobDetected{Job: game.NewTimedJob(jobID, skill, name, startedAt, durationMs)})
	}
}

// handleSkillsXP posts the XP delta of every skill whose cumulative value
// grew since the previous snapshot, then replaces the baseline.
func (c *Classifier) handleSkillsXP(obj map[string]any) {
	raw, ok := obj["skillsXp"].(map[string]any)
	if !ok {
		return
	}

	next := make(map[string]float64, len(raw))
	for _, apiSkill := range slices.Sorted(maps.Keys(raw)) {
		current, ok := raw[apiSkill].(float64)
		if !ok {
			continue
		}
		next[apiSkill] = current

		previous, seen := c.previousXP[apiSkill]
		if !seen || current <= previous {
			continue
		}
		skill, ok := game.SkillFromAPI(apiSkill)
		if !ok {
			continue
		}

		delta := int64(current - previous)
		c.logger.Info("xp gained",
			logger.Field{Key: "skill", Value: skill},
			logger.Field{Key: "xp", Value: delta})
		c.poster.Post(bus.XPGained{Event: game.SessionEvent{
			Type:      game.EventXPGained,
			Timestamp: c.now().UnixMilli(),
			Data:      map[string]any{"skill": string(skill), "xp": delta},
		}})
	}
	c.previousXP = next
}

// handleCombat posts a kill or death when the combat result changes.
func (c *Classifier) handleCombat(obj map[string]any) {
	combat, ok := obj["activeCombat"].(map[string]any)
	if !ok {
		c.previousCombat = ""
		c.inCombat = false
		return
	}

	result, ok := combat["result"].(string)
	if !ok || (c.inCombat && result == c.previousCombat) {
		return
	}
	c.previousCombat = result
	c.inCombat = true

	kind := game.EventCombatDeath
	if result == "win" || result == "victory" {
		kind = game.EventCombatKill
	}

	c.logger.Info("combat event", logger.Field{Key: "type", Value: kind})
	c.poster.Post(bus.SessionEvent{Event: game.SessionEvent{
		Type:      kind,
		Timestamp: c.now().UnixMilli(),
		Data:      map[string]any{"result": result},
	}})
}

// handleRewards posts one item per reward entry carrying a string name.
func (c *Classifier) handleRewards(data any) {
	list, ok := data.([]any)
	if !ok {
		return
	}

	for _, item := range list {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		// itemName only stands in for a missing or null name.
		raw, present := entry["name"]
		if !present || raw == nil {
			raw = entry["itemName"]
		}
		name, ok := raw.(string)
		if !ok {
			continue
		}

		c.poster.Post(bus.ItemCollected{Event: game.SessionEvent{
			Type:      game.EventItemCollected,
			Timestamp: c.now().UnixMilli(),
			Data:      map[string]any{"itemName": name},
		}})
	}
}
