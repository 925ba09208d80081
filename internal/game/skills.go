// Package game holds the domain model of the berrus.app browser game:
// skills, timed jobs, item prices, session statistics and hiscores.
package game

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Skill is a canonical skill category as shown in the game UI.
type Skill string

const (
	Mineria       Skill = "Mineria"
	Herreria      Skill = "Herreria"
	Pesca         Skill = "Pesca"
	Cocina        Skill = "Cocina"
	Tala          Skill = "Tala"
	Carpinteria   Skill = "Carpinteria"
	Agricultura   Skill = "Agricultura"
	Alquimia      Skill = "Alquimia"
	Combate       Skill = "Combate"
	Defensa       Skill = "Defensa"
	Magia         Skill = "Magia"
	Sigilo        Skill = "Sigilo"
	Artesania     Skill = "Artesania"
	Encantamiento Skill = "Encantamiento"
)

// DefaultSkill is used when a job gives no usable skill hint.
const DefaultSkill = Mineria

// UnknownSkill marks XP whose skill could not be recovered from the text.
const UnknownSkill Skill = "unknown"

// apiSkills maps the API skill names to categories.
var apiSkills = map[string]Skill{
	"mining":      Mineria,
	"smithing":    Herreria,
	"fishing":     Pesca,
	"cooking":     Cocina,
	"woodcutting": Tala,
	"carpentry":   Carpinteria,
	"farming":     Agricultura,
	"alchemy":     Alquimia,
	"combat":      Combate,
	"defense":     Defensa,
	"magic":       Magia,
	"stealth":     Sigilo,
	"crafting":    Artesania,
	"enchanting":  Encantamiento,
}

// folded maps accent-folded lowercase category names back to categories.
var folded = func() map[string]Skill {
	m := make(map[string]Skill, len(apiSkills))
	for _, s := range apiSkills {
		m[strings.ToLower(string(s))] = s
	}
	return m
}()

// AllSkills returns every category in API order.
func AllSkills() []Skill {
	return []Skill{
		Mineria, Herreria, Pesca, Cocina, Tala, Carpinteria, Agricultura,
		Alquimia, Combate, Defensa, Magia, Sigilo, Artesania, Encantamiento,
	}
}

// APISkillNames returns the API names in the same order as AllSkills.
func APISkillNames() []string {
	return []string{
		"mining", "smithing", "fishing", "cooking", "woodcutting", "carpentry", "farming",
		"alchemy", "combat", "defense", "magic", "stealth", "crafting", "enchanting",
	}
}

// SkillFromAPI maps an API skill name (e.g. "mining") to its category.
func SkillFromAPI(name string) (Skill, bool) {
	s, ok := apiSkills[strings.ToLower(strings.TrimSpace(name))]
	return s, ok
}

// SkillFromSlug maps a /character/skills/<slug> URL segment to a category.
// Slugs may be API names or Spanish names, with or without accents.
func SkillFromSlug(slug string) (Skill, bool) {
	return ParseSkill(strings.ReplaceAll(slug, "-", " "))
}

// ParseSkill canonicalises a free-text skill token ("Minería", "mining", "MINERIA").
func ParseSkill(token string) (Skill, bool) {
	key := foldAccents(strings.ToLower(strings.TrimSpace(token)))
	if key == "" {
		return "", false
	}
	if s, ok := apiSkills[key]; ok {
		return s, true
	}
	s, ok := folded[key]
	return s, ok
}

// IsKnown reports whether s is one of the canonical categories.
func (s Skill) IsKnown() bool {
	known, ok := folded[strings.ToLower(string(s))]
	return ok && known == s
}

func foldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
