package game

// HiscoreEntry is one ranked row of the hiscore table.
type HiscoreEntry struct {
	Rank       int    `json:"rank"`
	PlayerName string `json:"playerName"`
	Level      int    `json:"level"`
	XP         int64  `json:"xp"`
	Category   string `json:"category"`
}

// HiscoreSearchResult is the answer to a hiscore lookup.
type HiscoreSearchResult struct {
	Query     string         `json:"query"`
	Category  string         `json:"category"`
	Entries   []HiscoreEntry `json:"entries"`
	FetchedAt int64          `json:"fetchedAt"`
}

// HiscoreCategories lists the categories accepted by the hiscore page.
func HiscoreCategories() []string {
	return append([]string{"total", "combat"}, APISkillNames()...)
}

// ValidHiscoreCategory reports whether c is accepted by the hiscore page.
func ValidHiscoreCategory(c string) bool {
	for _, known := range HiscoreCategories() {
		if c == known {
			return true
		}
	}
	return false
}
