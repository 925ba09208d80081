package alarms

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aatumaykin/berrus-helper/internal/logger"
)

type firedRecorder struct {
	mu    sync.Mutex
	names []string
}

func (r *firedRecorder) record(a Alarm) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names = append(r.names, a.Name)
}

func (r *firedRecorder) fired() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.names...)
}

func newTestScheduler(t *testing.T, minDelay time.Duration) (*Scheduler, *firedRecorder) {
	t.Helper()
	s := NewScheduler(logger.NewNop(), WithMinDelay(minDelay))
	rec := &firedRecorder{}
	s.OnAlarm(rec.record)
	require.NoError(t, s.Start())
	t.Cleanup(func() { _ = s.Stop() })
	return s, rec
}

func TestJobAlarmName(t *testing.T) {
	name := JobAlarmName("job-1-2")
	assert.Equal(t, "job-timer-job-1-2", name)

	id, ok := JobIDFromAlarm(name)
	require.True(t, ok)
	assert.Equal(t, "job-1-2", id)

	_, ok = JobIDFromAlarm("price-refresh")
	assert.False(t, ok)
	_, ok = JobIDFromAlarm("job-timer-")
	assert.False(t, ok)
}

func TestOnceSchedule(t *testing.T) {
	base := time.Unix(1_700_000_000, 0)

	s := &onceSchedule{at: base.Add(time.Minute)}
	assert.Equal(t, base.Add(time.Minute), s.Next(base))
	assert.True(t, s.Next(base).IsZero(), "second call parks the entry")

	past := &onceSchedule{at: base.Add(-time.Minute)}
	assert.Equal(t, base, past.Next(base), "overdue alarm fires immediately")
}

func TestScheduler_CreateClampsDelay(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	s := NewScheduler(logger.NewNop(), WithClock(func() time.Time { return now }))

	at := s.Create("a", time.Second)
	assert.Equal(t, now.Add(MinDelay), at)

	at = s.Create("b", -time.Hour)
	assert.Equal(t, now.Add(MinDelay), at)

	at = s.Create("c", time.Minute)
	assert.Equal(t, now.Add(time.Minute), at)
}

func TestScheduler_Fires(t *testing.T) {
	s, rec := newTestScheduler(t, 10*time.Millisecond)

	s.Create("job-timer-1", 20*time.Millisecond)
	_, ok := s.Get("job-timer-1")
	require.True(t, ok)

	require.Eventually(t, func() bool { return len(rec.fired()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"job-timer-1"}, rec.fired())

	_, ok = s.Get("job-timer-1")
	assert.False(t, ok, "fired alarms are forgotten")

	time.Sleep(50 * time.Millisecond)
	assert.Len(t, rec.fired(), 1, "an alarm fires once")
}

func TestScheduler_Clear(t *testing.T) {
	s, rec := newTestScheduler(t, 10*time.Millisecond)

	s.Create("a", 30*time.Millisecond)
	assert.True(t, s.Clear("a"))
	assert.False(t, s.Clear("a"))

	time.Sleep(80 * time.Millisecond)
	assert.Empty(t, rec.fired())
}

func TestScheduler_CreateReplaces(t *testing.T) {
	s, rec := newTestScheduler(t, 10*time.Millisecond)

	s.Create("a", 20*time.Millisecond)
	s.Create("a", time.Hour)

	time.Sleep(80 * time.Millisecond)
	assert.Empty(t, rec.fired(), "the replaced alarm does not fire")
	require.Len(t, s.All(), 1)
}

func TestScheduler_All(t *testing.T) {
	s := NewScheduler(logger.NewNop())
	s.Create("late", time.Hour)
	s.Create("early", time.Minute)

	all := s.All()
	require.Len(t, all, 2)
	assert.Equal(t, "early", all[0].Name)
	assert.Equal(t, "late", all[1].Name)
}

func TestScheduler_CreatedBeforeStart(t *testing.T) {
	s := NewScheduler(logger.NewNop(), WithMinDelay(time.Millisecond))
	rec := &firedRecorder{}
	s.OnAlarm(rec.record)

	s.Create("early", time.Millisecond)
	require.NoError(t, s.Start())
	defer s.Stop()

	require.Eventually(t, func() bool { return len(rec.fired()) == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestScheduler_Lifecycle(t *testing.T) {
	s := NewScheduler(logger.NewNop())
	assert.Error(t, s.Stop())
	require.NoError(t, s.Start())
	assert.Error(t, s.Start())
	require.NoError(t, s.Stop())
}
