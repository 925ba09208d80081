package extract

import (
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/wasilibs/go-re2"
	"golang.org/x/net/html"

	"github.com/aatumaykin/berrus-helper/internal/dom"
	"github.com/aatumaykin/berrus-helper/internal/game"
)

var (
	timerPattern    = re2.MustCompile(`(?i)^(?:\d+:)?\d+:\d{2}(?:\s*remaining)?$`)
	progressPattern = re2.MustCompile(`^\d+%$`)
	cancelPattern   = re2.MustCompile(`(?i)^cancel$`)
	remainingSuffix = re2.MustCompile(`(?i)\s*remaining$`)
)

// ParseTimerText converts "MM:SS" or "H:MM:SS" (optionally followed by
// "remaining") to milliseconds.
func ParseTimerText(text string) (int64, bool) {
	text = remainingSuffix.ReplaceAllString(strings.TrimSpace(text), "")

	parts := strings.Split(text, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, false
	}

	nums := make([]int64, len(parts))
	for i, p := range parts {
		if p == "" || strings.IndexFunc(p, func(r rune) bool { return r < '0' || r > '9' }) >= 0 {
			return 0, false
		}
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return 0, false
		}
		nums[i] = n
	}

	if len(nums) == 2 {
		return (nums[0]*60 + nums[1]) * 1000, true
	}
	return (nums[0]*3600 + nums[1]*60 + nums[2]) * 1000, true
}

func isTimerText(s string) bool {
	return timerPattern.MatchString(s)
}

// isSkipText reports child texts that cannot be a job name.
func isSkipText(s string) bool {
	return s == "" || isTimerText(s) || progressPattern.MatchString(s) || cancelPattern.MatchString(s)
}

// isJobContainer accepts elements with at least two element children, one
// showing a timer and another one carrying a name.
func isJobContainer(n *html.Node) bool {
	children := dom.ElementChildren(n)
	if len(children) < 2 {
		return false
	}

	hasTimer, hasName := false, false
	for _, c := range children {
		text := dom.OwnText(c)
		switch {
		case isTimerText(text):
			hasTimer = true
		case !isSkipText(text):
			hasName = true
		}
	}
	return hasTimer && hasName
}

// JobExtractor finds running jobs by their countdown text.
type JobExtractor struct {
	now     func() time.Time
	counter atomic.Uint64
}

// NewJobExtractor creates an extractor. A nil clock means time.Now.
func NewJobExtractor(now func() time.Time) *JobExtractor {
	if now == nil {
		now = time.Now
	}
	return &JobExtractor{now: now}
}

// ExtractActiveJobs returns one job per distinct job container under root.
func (e *JobExtractor) ExtractActiveJobs(root *html.Node) []game.TimedJob {
	var (
		jobs []game.TimedJob
		seen = make(map[*html.Node]bool)
	)

	for _, timerEl := range dom.FindElementsByText(timerPattern, root) {
		container := dom.FindAncestor(timerEl, isJobContainer, dom.DefaultMaxDepth)
		if container == nil || seen[container] {
			continue
		}
		seen[container] = true

		if job, ok := e.jobFromContainer(container); ok {
			jobs = append(jobs, job)
		}
	}
	return jobs
}

func (e *JobExtractor) jobFromContainer(container *html.Node) (game.TimedJob, bool) {
	var name, timer string
	for _, c := range dom.ElementChildren(container) {
		text := dom.OwnText(c)
		if timer == "" && isTimerText(text) {
			timer = text
		}
		if name == "" && !isSkipText(text) {
			name = cleanText(text)
		}
	}
	if name == "" || timer == "" {
		return game.TimedJob{}, false
	}

	durationMs, ok := ParseTimerText(timer)
	if !ok {
		return game.TimedJob{}, false
	}

	skill, ok := skillFromLinks(container)
	if !ok {
		skill = game.DefaultSkill
	}

	now := e.now()
	id := fmt.Sprintf("job-%d-%d", now.UnixMilli(), e.counter.Add(1))
	return game.NewTimedJob(id, skill, name, now.UnixMilli(), durationMs), true
}
