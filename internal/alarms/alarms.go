// Package alarms provides named one-shot alarms on top of robfig/cron/v3.
// An alarm fires once at its scheduled time, then is forgotten. Creating an
// alarm under an existing name replaces it.
package alarms

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/aatumaykin/berrus-helper/internal/logger"
)

// MinDelay is the shortest delay an alarm accepts (0.1 minute).
const MinDelay = 6 * time.Second

const jobAlarmPrefix = "job-timer-"

// JobAlarmName returns the alarm name of a job.
func JobAlarmName(jobID string) string {
	return jobAlarmPrefix + jobID
}

// JobIDFromAlarm extracts the job id from a job alarm name.
func JobIDFromAlarm(name string) (string, bool) {
	id, ok := strings.CutPrefix(name, jobAlarmPrefix)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// Alarm is a pending or fired alarm.
type Alarm struct {
	Name        string    `json:"name"`
	ScheduledAt time.Time `json:"scheduledTime"`
}

// onceSchedule is a cron.Schedule that yields its time once. Cron asks for
// the next activation when the entry is scheduled and again after it ran;
// the zero time on the second call parks the entry until it is removed.
type onceSchedule struct {
	at    time.Time
	calls atomic.Int32
}

func (s *onceSchedule) Next(t time.Time) time.Time {
	if s.calls.Add(1) > 1 {
		return time.Time{}
	}
	if s.at.After(t) {
		return s.at
	}
	return t
}

type entry struct {
	id    cron.EntryID
	alarm Alarm
	seq   uint64
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithMinDelay overrides MinDelay.
func WithMinDelay(d time.Duration) Option {
	return func(s *Scheduler) { s.minDelay = d }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// Scheduler keeps named alarms.
type Scheduler struct {
	mu       sync.Mutex
	cron     *cron.Cron
	logger   *logger.Logger
	now      func() time.Time
	minDelay time.Duration
	started  bool
	seq      uint64
	entries  map[string]entry
	handlers []func(Alarm)
}

// NewScheduler creates a stopped scheduler.
func NewScheduler(log *logger.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		logger:   log,
		now:      time.Now,
		minDelay: MinDelay,
		entries:  make(map[string]entry),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.cron = cron.New(cron.WithChain(cron.Recover(cronLogger{log})))
	return s
}

// OnAlarm registers fn. Handlers run in order on the goroutine of the fired alarm.
func (s *Scheduler) OnAlarm(fn func(Alarm)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = append(s.handlers, fn)
}

// Start starts firing alarms. Alarms created earlier fire once due.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("alarm scheduler already started")
	}
	s.started = true
	// cron asks a schedule for its time again on every start
	for name, e := range s.entries {
		s.cron.Remove(e.id)
		s.schedule(name, e.alarm.ScheduledAt)
	}
	s.cron.Start()
	s.logger.Info("alarm scheduler started", logger.Field{Key: "pending", Value: len(s.entries)})
	return nil
}

// Stop stops the scheduler. Pending alarms are kept but do not fire.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return fmt.Errorf("alarm scheduler not started")
	}
	s.started = false
	s.cron.Stop()
	s.logger.Info("alarm scheduler stopped")
	return nil
}

// Create schedules name to fire after delay, clamped to the minimum delay,
// and returns the scheduled time.
func (s *Scheduler) Create(name string, delay time.Duration) time.Time {
	delay = max(delay, s.minDelay)
	at := s.now().Add(delay)

	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.entries[name]; ok {
		s.cron.Remove(old.id)
	}
	s.schedule(name, at)

	s.logger.Debug("alarm created",
		logger.Field{Key: "name", Value: name},
		logger.Field{Key: "delay", Value: delay.String()})
	return at
}

// schedule registers a one-shot cron entry. Callers hold s.mu.
func (s *Scheduler) schedule(name string, at time.Time) {
	s.seq++
	seq := s.seq
	id := s.cron.Schedule(&onceSchedule{at: at}, cron.FuncJob(func() { s.fire(name, seq) }))
	s.entries[name] = entry{id: id, alarm: Alarm{Name: name, ScheduledAt: at}, seq: seq}
}

// Clear removes the alarm and reports whether it existed.
func (s *Scheduler) Clear(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[name]
	if !ok {
		return false
	}
	s.cron.Remove(e.id)
	delete(s.entries, name)
	return true
}

// Get returns the pending alarm with the given name.
func (s *Scheduler) Get(name string) (Alarm, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[name]
	return e.alarm, ok
}

// All returns the pending alarms ordered by scheduled time.
func (s *Scheduler) All() []Alarm {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Alarm, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.alarm)
	}
	slices.SortFunc(out, func(a, b Alarm) int {
		if c := a.ScheduledAt.Compare(b.ScheduledAt); c != 0 {
			return c
		}
		return strings.Compare(a.Name, b.Name)
	})
	return out
}

func (s *Scheduler) fire(name string, seq uint64) {
	s.mu.Lock()
	e, ok := s.entries[name]
	if !ok || e.seq != seq {
		// заменён или удалён, пока задача ждала запуска
		s.mu.Unlock()
		return
	}
	delete(s.entries, name)
	s.cron.Remove(e.id)
	handlers := slices.Clone(s.handlers)
	s.mu.Unlock()

	s.logger.Debug("alarm fired", logger.Field{Key: "name", Value: name})
	for _, fn := range handlers {
		fn(e.alarm)
	}
}

// cronLogger adapts logger.Logger to cron.Logger.
type cronLogger struct {
	l *logger.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug("cron: "+msg, fields(keysAndValues)...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error("cron: "+msg, err, fields(keysAndValues)...)
}

func fields(kv []any) []logger.Field {
	out := make([]logger.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, logger.Field{Key: fmt.Sprint(kv[i]), Value: kv[i+1]})
	}
	return out
}
