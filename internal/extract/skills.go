// Package extract recovers game facts from page content that has no stable
// classes or ids: running jobs from countdown text, shop prices from the
// pesetas icon layout and session events from freshly inserted notices.
package extract

import (
	"html"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
	"github.com/wasilibs/go-re2"
	xhtml "golang.org/x/net/html"

	"github.com/aatumaykin/berrus-helper/internal/game"
)

const skillLinkSelector = `a[href*="/character/skills/"]`

var skillSlugPattern = re2.MustCompile(`/character/skills/([^/?#]+)`)

// skillFromLinks maps the first /character/skills/<slug> link under root.
// ok is false when there is no link or the slug is not a known skill.
func skillFromLinks(root *xhtml.Node) (game.Skill, bool) {
	if root == nil {
		return "", false
	}

	var (
		skill game.Skill
		found bool
	)
	goquery.NewDocumentFromNode(root).Find(skillLinkSelector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		m := skillSlugPattern.FindStringSubmatch(href)
		if m == nil {
			return true
		}
		skill, found = game.SkillFromSlug(strings.ToLower(m[1]))
		return false
	})
	return skill, found
}

// textPolicy strips any markup that leaked into captured text.
var textPolicy = bluemonday.StrictPolicy()

// cleanText sanitizes captured names and collapses whitespace.
func cleanText(s string) string {
	s = html.UnescapeString(textPolicy.Sanitize(s))
	return strings.Join(strings.Fields(s), " ")
}
