package game

import "time"

// TimedJob is a running job with a known end time.
type TimedJob struct {
	ID         string `json:"id"`
	Skill      Skill  `json:"skill"`
	Name       string `json:"name"`
	StartedAt  int64  `json:"startedAt"`
	DurationMs int64  `json:"durationMs"`
	EndsAt     int64  `json:"endsAt"`
}

// NewTimedJob builds a job whose EndsAt is StartedAt + DurationMs.
func NewTimedJob(id string, skill Skill, name string, startedAt, durationMs int64) TimedJob {
	return TimedJob{
		ID:         id,
		Skill:      skill,
		Name:       name,
		StartedAt:  startedAt,
		DurationMs: durationMs,
		EndsAt:     startedAt + durationMs,
	}
}

// Remaining returns the time left at now, never negative.
func (j TimedJob) Remaining(now time.Time) time.Duration {
	left := time.Duration(j.EndsAt-now.UnixMilli()) * time.Millisecond
	if left < 0 {
		return 0
	}
	return left
}

// JobTimerState is the persisted set of active and recently completed jobs.
type JobTimerState struct {
	ActiveJobs      []TimedJob `json:"activeJobs"`
	CompletedJobIDs []string   `json:"completedJobIds"`
}

// NewJobTimerState returns an empty state with non-nil slices.
func NewJobTimerState() JobTimerState {
	return JobTimerState{ActiveJobs: []TimedJob{}, CompletedJobIDs: []string{}}
}

// Find returns the active job with the given id.
func (s *JobTimerState) Find(id string) (TimedJob, bool) {
	for _, j := range s.ActiveJobs {
		if j.ID == id {
			return j, true
		}
	}
	return TimedJob{}, false
}

// Add appends job unless a job with the same id is already active.
func (s *JobTimerState) Add(job TimedJob) bool {
	if _, ok := s.Find(job.ID); ok {
		return false
	}
	s.ActiveJobs = append(s.ActiveJobs, job)
	return true
}

// Complete removes the job from the active set and records its id.
// The id is recorded even when no such job was active.
func (s *JobTimerState) Complete(id string) (TimedJob, bool) {
	var (
		done  TimedJob
		found bool
	)
	kept := s.ActiveJobs[:0:0]
	for _, j := range s.ActiveJobs {
		if j.ID == id && !found {
			done, found = j, true
			continue
		}
		kept = append(kept, j)
	}
	s.ActiveJobs = kept
	s.CompletedJobIDs = appendBounded(s.CompletedJobIDs, id, MaxCompletedJobIDs)
	return done, found
}
