package network

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aatumaykin/berrus-helper/internal/bus"
	"github.com/aatumaykin/berrus-helper/internal/game"
	"github.com/aatumaykin/berrus-helper/internal/logger"
)

const characterURL = "https://www.berrus.app/api/protected/character/my-char"

var fixedNow = time.UnixMilli(1_700_000_000_000)

type recordingPoster struct {
	mu   sync.Mutex
	msgs []bus.Message
}

func (p *recordingPoster) Post(msg bus.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
}

func (p *recordingPoster) messages() []bus.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]bus.Message(nil), p.msgs...)
}

func newClassifier() (*Classifier, *recordingPoster) {
	p := &recordingPoster{}
	return NewClassifier(p, logger.NewNop(), func() time.Time { return fixedNow }), p
}

func response(url, body string) InterceptedResponse {
	return InterceptedResponse{Type: TypeFetch, URL: url, Status: 200, Body: body}
}

func TestClassifier_CharacterJobs(t *testing.T) {
	c, p := newClassifier()
	c.HandleInterceptedResponse(response(characterURL, `{"jobs":[
		{"jobId":"mine-copper","status":"active","skill":"mining","startedAt":1000,"durationMs":5000},
		{"jobId":"fish","status":"active","skill":"fishing","name":"Trucha"},
		{"jobId":"old","status":"completed","skill":"mining"},
		{"status":"active","skill":"mining"}
	]}`))

	msgs := p.messages()
	require.Len(t, msgs, 2)

	first := msgs[0].(bus.JobDetected)
	require.NoError(t, first.Validate())
	assert.Equal(t, game.NewTimedJob("mine-copper", game.Mineria, "mine-copper", 1000, 5000), first.Job)

	second := msgs[1].(bus.JobDetected)
	assert.Equal(t, "Trucha", second.Job.Name)
	assert.Equal(t, game.Pesca, second.Job.Skill)
	assert.Equal(t, fixedNow.UnixMilli(), second.Job.StartedAt)
	assert.Equal(t, int64(0), second.Job.DurationMs)
}

func TestClassifier_UnknownSkillFallsBack(t *testing.T) {
	c, p := newClassifier()
	c.HandleInterceptedResponse(response(characterURL, `{"jobs":[{"jobId":"x","status":"active","skill":"dancing"}]}`))

	msgs := p.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, game.DefaultSkill, msgs[0].(bus.JobDetected).Job.Skill)
}

func TestClassifier_XPDiff(t *testing.T) {
	c, p := newClassifier()

	c.HandleInterceptedResponse(response(characterURL, `{"skillsXp":{"mining":100,"fishing":50}}`))
	assert.Empty(t, p.messages(), "first snapshot only seeds the baseline")

	c.HandleInterceptedResponse(response(characterURL, `{"skillsXp":{"mining":125,"fishing":50}}`))
	msgs := p.messages()
	require.Len(t, msgs, 1)

	xp := msgs[0].(bus.XPGained)
	require.NoError(t, xp.Validate())
	delta, ok := xp.Event.Int64("xp")
	assert.True(t, ok)
	assert.Equal(t, int64(25), delta)
	assert.Equal(t, "Mineria", xp.Event.String("skill"))

	// unchanged and decreasing values emit nothing
	c.HandleInterceptedResponse(response(characterURL, `{"skillsXp":{"mining":125,"fishing":40}}`))
	assert.Len(t, p.messages(), 1)

	// the baseline was replaced, so 40 -> 45 is +5
	c.HandleInterceptedResponse(response(characterURL, `{"skillsXp":{"mining":125,"fishing":45}}`))
	msgs = p.messages()
	require.Len(t, msgs, 2)
	delta, _ = msgs[1].(bus.XPGained).Event.Int64("xp")
	assert.Equal(t, int64(5), delta)
}

func TestClassifier_XPNewSkillAndUnmapped(t *testing.T) {
	c, p := newClassifier()

	c.HandleInterceptedResponse(response(characterURL, `{"skillsXp":{"mining":10,"juggling":1}}`))
	c.HandleInterceptedResponse(response(characterURL, `{"skillsXp":{"mining":10,"juggling":9,"cooking":7,"bad":"x"}}`))
	assert.Empty(t, p.messages())
}

func TestClassifier_CombatSuppression(t *testing.T) {
	c, p := newClassifier()
	win := `{"activeCombat":{"result":"win"}}`

	c.HandleInterceptedResponse(response(characterURL, win))
	c.HandleInterceptedResponse(response(characterURL, win))
	require.Len(t, p.messages(), 1)
	assert.Equal(t, game.EventCombatKill, p.messages()[0].(bus.SessionEvent).Event.Type)

	// combat ended: the same result afterwards is new
	c.HandleInterceptedResponse(response(characterURL, `{}`))
	c.HandleInterceptedResponse(response(characterURL, win))
	require.Len(t, p.messages(), 2)

	c.HandleInterceptedResponse(response(characterURL, `{"activeCombat":{"result":"loss"}}`))
	msgs := p.messages()
	require.Len(t, msgs, 3)
	death := msgs[2].(bus.SessionEvent)
	assert.Equal(t, game.EventCombatDeath, death.Event.Type)
	assert.Equal(t, "loss", death.Event.String("result"))
}

func TestClassifier_CombatWithoutResult(t *testing.T) {
	c, p := newClassifier()
	c.HandleInterceptedResponse(response(characterURL, `{"activeCombat":{"enemy":"goblin"}}`))
	assert.Empty(t, p.messages())
}

func TestClassifier_Rewards(t *testing.T) {
	c, p := newClassifier()
	c.HandleInterceptedResponse(response(
		"https://www.berrus.app/api/protected/character/abc/protected/rewards",
		`[{"name":"Cobre"},{"itemName":"Trucha"},{"amount":3},"junk"]`))

	msgs := p.messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "Cobre", msgs[0].(bus.ItemCollected).Event.String("itemName"))
	assert.Equal(t, "Trucha", msgs[1].(bus.ItemCollected).Event.String("itemName"))
}

func TestClassifier_RewardsNamePrecedence(t *testing.T) {
	c, p := newClassifier()
	c.HandleInterceptedResponse(response(
		"https://www.berrus.app/api/protected/character/abc/protected/rewards",
		`[{"name":"","itemName":"Cobre"},{"name":7,"itemName":"Hierro"},{"name":null,"itemName":"Trucha"}]`))

	msgs := p.messages()
	require.Len(t, msgs, 2, "a non-string name skips the entry")
	assert.Contains(t, msgs[0].(bus.ItemCollected).Event.Data, "itemName")
	assert.Equal(t, "", msgs[0].(bus.ItemCollected).Event.String("itemName"))
	assert.Equal(t, "Trucha", msgs[1].(bus.ItemCollected).Event.String("itemName"))
}

func TestClassifier_JobsEndpoint(t *testing.T) {
	c, p := newClassifier()
	url := "https://www.berrus.app/api/protected/character/abc/protected/jobs"

	c.HandleInterceptedResponse(response(url, `[{"jobId":"a","status":"active","skill":"cooking"}]`))
	c.HandleInterceptedResponse(response(url, `{"jobs":[{"jobId":"b","status":"active","skill":"alchemy"}]}`))

	msgs := p.messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, game.Cocina, msgs[0].(bus.JobDetected).Job.Skill)
	assert.Equal(t, game.Alquimia, msgs[1].(bus.JobDetected).Job.Skill)
}

func TestClassifier_Ignores(t *testing.T) {
	tests := []struct {
		name string
		resp InterceptedResponse
	}{
		{name: "error status", resp: InterceptedResponse{URL: characterURL, Status: 500, Body: `{"activeCombat":{"result":"win"}}`}},
		{name: "redirect status", resp: InterceptedResponse{URL: characterURL, Status: 302, Body: `{"activeCombat":{"result":"win"}}`}},
		{name: "not json", resp: response(characterURL, `<html>`)},
		{name: "all characters", resp: response("https://www.berrus.app/api/protected/character/all", `{"activeCombat":{"result":"win"}}`)},
		{name: "unknown endpoint", resp: response("https://www.berrus.app/api/test", `{"activeCombat":{"result":"win"}}`)},
		{name: "character body is array", resp: response(characterURL, `[1,2]`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, p := newClassifier()
			c.HandleInterceptedResponse(tt.resp)
			assert.Empty(t, p.messages())
		})
	}
}

func TestClassifier_CharacterURLWithQuery(t *testing.T) {
	c, p := newClassifier()
	c.HandleInterceptedResponse(response(characterURL+"?fields=jobs", `{"activeCombat":{"result":"victory"}}`))
	require.Len(t, p.messages(), 1)
}

func TestClassifier_Reset(t *testing.T) {
	c, p := newClassifier()
	c.HandleInterceptedResponse(response(characterURL, `{"skillsXp":{"mining":100},"activeCombat":{"result":"win"}}`))
	require.Len(t, p.messages(), 1)

	c.Reset()

	// no baseline after reset, combat result is new again
	c.HandleInterceptedResponse(response(characterURL, `{"skillsXp":{"mining":200},"activeCombat":{"result":"win"}}`))
	msgs := p.messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, bus.TypeSessionEvent, msgs[1].Type())
}
