package extract

import (
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/wasilibs/go-re2"
	"golang.org/x/net/html"

	"github.com/aatumaykin/berrus-helper/internal/bus"
	"github.com/aatumaykin/berrus-helper/internal/dom"
	"github.com/aatumaykin/berrus-helper/internal/game"
)

// MaxNoticeLength bounds the text of a node the matcher looks at. Longer
// insertions are page containers, not notices.
const MaxNoticeLength = 150

var (
	xpPattern        = re2.MustCompile(`(?i)\+?([\d,]+)\s*(?:xp|exp)`)
	parenSkill       = re2.MustCompile(`\(([\p{L}\w]+)\)`)
	receivedPattern  = re2.MustCompile(`(?i)received\s+(.+)`)
	collectedPattern = re2.MustCompile(`(?i)collected\s+(.+)`)
	combatWin        = re2.MustCompile(`(?i)victory|defeated`)
	combatLoss       = re2.MustCompile(`(?i)death|died`)
)

// SessionMatcher turns freshly inserted notices into session facts.
type SessionMatcher struct {
	poster bus.Poster
	now    func() time.Time
	maxLen int
}

// NewSessionMatcher creates a matcher posting to p. A nil clock means
// time.Now, maxLen <= 0 means MaxNoticeLength.
func NewSessionMatcher(p bus.Poster, now func() time.Time, maxLen int) *SessionMatcher {
	if now == nil {
		now = time.Now
	}
	if maxLen <= 0 {
		maxLen = MaxNoticeLength
	}
	return &SessionMatcher{poster: p, now: now, maxLen: maxLen}
}

// ProcessAddedNode checks one inserted node against the XP, item and combat
// patterns. Every matching pattern posts its own fact.
func (m *SessionMatcher) ProcessAddedNode(node *html.Node) {
	if !dom.IsElement(node) {
		return
	}

	text := strings.TrimSpace(dom.TextContent(node))
	if text == "" || utf8.RuneCountInString(text) > m.maxLen {
		return
	}

	ts := m.now().UnixMilli()
	m.matchXP(node, text, ts)
	m.matchItem(text, ts)
	m.matchCombat(text, ts)
}

func (m *SessionMatcher) matchXP(node *html.Node, text string, ts int64) {
	match := xpPattern.FindStringSubmatch(text)
	if match == nil {
		return
	}
	xp, err := strconv.ParseInt(strings.ReplaceAll(match[1], ",", ""), 10, 64)
	if err != nil {
		return
	}

	m.poster.Post(bus.XPGained{Event: game.SessionEvent{
		Type:      game.EventXPGained,
		Timestamp: ts,
		Data:      map[string]any{"xp": xp, "skill": string(noticeSkill(node, text))},
	}})
}

// noticeSkill prefers a skill link, then a "(Mineria)" token, then "unknown".
func noticeSkill(node *html.Node, text string) game.Skill {
	if skill, ok := skillFromLinks(node); ok {
		return skill
	}
	if match := parenSkill.FindStringSubmatch(text); match != nil {
		if skill, ok := game.ParseSkill(match[1]); ok {
			return skill
		}
		return game.Skill(match[1])
	}
	return game.UnknownSkill
}

func (m *SessionMatcher) matchItem(text string, ts int64) {
	var name string
	if match := receivedPattern.FindStringSubmatch(text); match != nil {
		name = cleanText(match[1])
	}
	if name == "" {
		if match := collectedPattern.FindStringSubmatch(text); match != nil {
			name = cleanText(match[1])
		}
	}
	if name == "" {
		return
	}

	m.poster.Post(bus.ItemCollected{Event: game.SessionEvent{
		Type:      game.EventItemCollected,
		Timestamp: ts,
		Data:      map[string]any{"itemName": name},
	}})
}

func (m *SessionMatcher) matchCombat(text string, ts int64) {
	var kind game.SessionEventType
	switch {
	case combatWin.MatchString(text):
		kind = game.EventCombatKill
	case combatLoss.MatchString(text):
		kind = game.EventCombatDeath
	default:
		return
	}

	m.poster.Post(bus.SessionEvent{Event: game.SessionEvent{
		Type:      kind,
		Timestamp: ts,
		Data:      map[string]any{"result": strings.ToLower(text)},
	}})
}
