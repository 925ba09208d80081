package store

import (
	"context"
	"fmt"
	"time"

	"github.com/aatumaykin/berrus-helper/internal/alarms"
	"github.com/aatumaykin/berrus-helper/internal/game"
	"github.com/aatumaykin/berrus-helper/internal/logger"
	"github.com/aatumaykin/berrus-helper/internal/notify"
	"github.com/aatumaykin/berrus-helper/internal/storage"
)

const notifyTimeout = 30 * time.Second

func (s *Store) loadTimers(ctx context.Context) (game.JobTimerState, error) {
	state := game.NewJobTimerState()
	if _, err := storage.Load(ctx, s.kv, storage.KeyJobTimers, &state); err != nil {
		return game.NewJobTimerState(), err
	}
	if state.ActiveJobs == nil {
		state.ActiveJobs = []game.TimedJob{}
	}
	if state.CompletedJobIDs == nil {
		state.CompletedJobIDs = []string{}
	}
	return state, nil
}

// Timers returns the job timer state; failures read as the empty state.
func (s *Store) Timers(ctx context.Context) game.JobTimerState {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.loadTimers(ctx)
	if err != nil {
		s.logger.ErrorCtx(ctx, "failed to read job timers", err)
	}
	return state
}

// AddJob records a running job and arms its completion alarm. A job whose id
// is already active is ignored.
func (s *Store) AddJob(ctx context.Context, job game.TimedJob) error {
	s.mu.Lock()
	state, err := s.loadTimers(ctx)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if !state.Add(job) {
		s.mu.Unlock()
		s.logger.DebugCtx(ctx, "job already tracked", logger.Field{Key: "job_id", Value: job.ID})
		return nil
	}
	if err := storage.Save(ctx, s.kv, storage.KeyJobTimers, state); err != nil {
		s.mu.Unlock()
		return err
	}
	s.metrics.SetActiveJobs(len(state.ActiveJobs))

	if s.alarms != nil {
		delay := time.Duration(job.EndsAt-s.now().UnixMilli()) * time.Millisecond
		at := s.alarms.Create(alarms.JobAlarmName(job.ID), delay)
		s.logger.InfoCtx(ctx, "job detected",
			logger.Field{Key: "job_id", Value: job.ID},
			logger.Field{Key: "skill", Value: job.Skill},
			logger.Field{Key: "name", Value: job.Name},
			logger.Field{Key: "alarm_at", Value: at.Format(time.RFC3339)})
	}

	changed := []string{storage.KeyJobTimers}
	if s.trackingSettings(ctx).SessionTracking() {
		if err := s.applySessionEvent(ctx, jobEvent(game.EventJobStarted, job, s.now())); err != nil {
			s.logger.ErrorCtx(ctx, "failed to record job start", err)
		} else {
			changed = append(changed, storage.KeyCurrentSession)
		}
	}
	s.mu.Unlock()

	s.emit(changed...)
	return nil
}

// CompleteJob removes a job from the active set. explicit marks a completion
// reported by the page: it clears the pending alarm and records the id even
// when the job was not active. An alarm for an unknown job changes nothing.
func (s *Store) CompleteJob(ctx context.Context, jobID string, explicit bool) error {
	s.mu.Lock()
	state, err := s.loadTimers(ctx)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if _, active := state.Find(jobID); !active && !explicit {
		s.mu.Unlock()
		s.logger.WarnCtx(ctx, "alarm for unknown job", logger.Field{Key: "job_id", Value: jobID})
		return nil
	}

	job, found := state.Complete(jobID)
	if err := storage.Save(ctx, s.kv, storage.KeyJobTimers, state); err != nil {
		s.mu.Unlock()
		return err
	}
	s.metrics.SetActiveJobs(len(state.ActiveJobs))
	if explicit && s.alarms != nil {
		s.alarms.Clear(alarms.JobAlarmName(jobID))
	}

	changed := []string{storage.KeyJobTimers}
	settings := s.trackingSettings(ctx)
	if found && settings.SessionTracking() {
		if err := s.applySessionEvent(ctx, jobEvent(game.EventJobCompleted, job, s.now())); err != nil {
			s.logger.ErrorCtx(ctx, "failed to record job completion", err)
		} else {
			changed = append(changed, storage.KeyCurrentSession)
		}
	}
	s.mu.Unlock()

	s.logger.InfoCtx(ctx, "job completed",
		logger.Field{Key: "job_id", Value: jobID},
		logger.Field{Key: "was_active", Value: found})

	if found && settings.Notifications() {
		s.sendNotification(ctx, notify.JobComplete(job))
	}
	s.emit(changed...)
	return nil
}

// HandleAlarm completes the job behind a fired job alarm.
func (s *Store) HandleAlarm(a alarms.Alarm) {
	s.metrics.RecordAlarm()

	jobID, ok := alarms.JobIDFromAlarm(a.Name)
	if !ok {
		s.logger.Warn("alarm with unknown name", logger.Field{Key: "name", Value: a.Name})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()
	if err := s.CompleteJob(ctx, jobID, false); err != nil {
		s.logger.Error("failed to complete job from alarm", err, logger.Field{Key: "job_id", Value: jobID})
	}
}

// RestoreAlarms re-arms the alarms of persisted active jobs. Overdue jobs
// get the minimum delay and complete shortly after.
func (s *Store) RestoreAlarms(ctx context.Context) (int, error) {
	if s.alarms == nil {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.loadTimers(ctx)
	if err != nil {
		return 0, fmt.Errorf("restore alarms: %w", err)
	}
	now := s.now().UnixMilli()
	for _, job := range state.ActiveJobs {
		s.alarms.Create(alarms.JobAlarmName(job.ID), time.Duration(job.EndsAt-now)*time.Millisecond)
	}
	s.metrics.SetActiveJobs(len(state.ActiveJobs))
	return len(state.ActiveJobs), nil
}

func (s *Store) sendNotification(ctx context.Context, n notify.Notification) {
	if s.notifier == nil {
		return
	}
	err := s.notifier.Notify(ctx, n)
	s.metrics.RecordNotification(err == nil)
	if err != nil {
		s.logger.ErrorCtx(ctx, "failed to send notification", err,
			logger.Field{Key: "id", Value: n.ID})
	}
}

func jobEvent(t game.SessionEventType, job game.TimedJob, now time.Time) game.SessionEvent {
	return game.SessionEvent{
		Type:      t,
		Timestamp: now.UnixMilli(),
		Data: map[string]any{
			"jobId": job.ID,
			"skill": string(job.Skill),
			"name":  job.Name,
		},
	}
}
