package game

// Ring capacities.
const (
	MaxCompletedJobIDs = 500
	MaxPriceSnapshots  = 100
	MaxSessionEvents   = 1000
)

// appendBounded appends v and keeps only the newest max entries.
func appendBounded[T any](s []T, v T, max int) []T {
	s = append(s, v)
	if len(s) > max {
		s = append(s[:0:0], s[len(s)-max:]...)
	}
	return s
}
