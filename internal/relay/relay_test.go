package relay

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aatumaykin/berrus-helper/internal/bus"
	"github.com/aatumaykin/berrus-helper/internal/game"
	"github.com/aatumaykin/berrus-helper/internal/logger"
)

// relayServer answers like the daemon: it decodes the message and replies
// with whatever respond returns.
func relayServer(t *testing.T, respond func(bus.Message) any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, Path, r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		msg, err := bus.Decode(body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(respond(msg))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_SendFact(t *testing.T) {
	var got bus.Message
	srv := relayServer(t, func(m bus.Message) any {
		got = m
		return bus.Ack{Success: true}
	})
	c := NewClient(srv.URL+"/", time.Second, logger.NewNop())

	job := game.NewTimedJob("job-1", game.Tala, "Roble", 1000, 60_000)
	resp, err := c.Send(context.Background(), bus.JobDetected{Job: job})
	require.NoError(t, err)

	assert.Equal(t, bus.Ack{Success: true}, resp)
	assert.Equal(t, bus.JobDetected{Job: job}, got)
}

func TestClient_SendQuery(t *testing.T) {
	state := game.NewJobTimerState()
	state.Add(game.NewTimedJob("job-1", game.Tala, "Roble", 1000, 60_000))
	srv := relayServer(t, func(bus.Message) any { return state })
	c := NewClient(srv.URL, time.Second, logger.NewNop())

	got, err := bus.QueryTimers(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, state, got)
}

func TestClient_NullResponse(t *testing.T) {
	srv := relayServer(t, func(bus.Message) any { return nil })
	c := NewClient(srv.URL, time.Second, logger.NewNop())

	stats, err := bus.QuerySessionStats(context.Background(), c)
	require.NoError(t, err)
	assert.Nil(t, stats)
}

func TestClient_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "unknown message type", http.StatusBadRequest)
	}))
	defer srv.Close()
	c := NewClient(srv.URL, time.Second, logger.NewNop())

	_, err := c.Send(context.Background(), bus.GetTimers{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
}

func TestClient_Unreachable(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", 200*time.Millisecond, logger.NewNop())
	_, err := c.Send(context.Background(), bus.GetTimers{})
	assert.Error(t, err)
}

type recordingSender struct {
	mu   sync.Mutex
	msgs []bus.Message
	err  error
}

func (s *recordingSender) Send(_ context.Context, msg bus.Message) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, msg)
	return bus.Ack{Success: s.err == nil}, s.err
}

func (s *recordingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.msgs)
}

func TestDispatcher_PostsInOrder(t *testing.T) {
	sender := &recordingSender{}
	d := NewDispatcher(sender, 100, time.Second, logger.NewNop(), nil)
	d.Start()
	defer d.Stop()

	for i := 0; i < 20; i++ {
		d.Post(bus.JobCompleted{JobID: string(rune('a' + i))})
	}
	require.Eventually(t, func() bool { return sender.count() == 20 }, 2*time.Second, 5*time.Millisecond)

	for i, m := range sender.msgs {
		assert.Equal(t, string(rune('a'+i)), m.(bus.JobCompleted).JobID)
	}
}

func TestDispatcher_FailuresAreSwallowed(t *testing.T) {
	sender := &recordingSender{err: errors.New("connection refused")}
	d := NewDispatcher(sender, 10, time.Second, logger.NewNop(), nil)
	d.Start()
	defer d.Stop()

	assert.NotPanics(t, func() {
		d.Post(bus.ContentScriptReady{})
		d.Post(bus.ContentScriptReady{})
	})
	require.Eventually(t, func() bool { return sender.count() == 2 }, 2*time.Second, 5*time.Millisecond)
}

func TestDispatcher_DropsWhenFull(t *testing.T) {
	sender := &recordingSender{}
	d := NewDispatcher(sender, 1, time.Second, logger.NewNop(), nil)
	// not started, the queue holds a single post
	d.Post(bus.ContentScriptReady{})
	d.Post(bus.ContentScriptReady{})

	d.Start()
	defer d.Stop()
	require.Eventually(t, func() bool { return sender.count() == 1 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, sender.count())
}

func TestDirect_PostIsSynchronous(t *testing.T) {
	sender := &recordingSender{}
	d := NewDirect(sender, time.Second, logger.NewNop(), nil)

	d.Post(bus.JobCompleted{JobID: "a"})
	d.Post(bus.JobCompleted{JobID: "b"})
	require.Equal(t, 2, sender.count())
	assert.Equal(t, "b", sender.msgs[1].(bus.JobCompleted).JobID)

	failing := NewDirect(&recordingSender{err: errors.New("boom")}, 0, logger.NewNop(), nil)
	assert.NotPanics(t, func() { failing.Post(bus.ContentScriptReady{}) })
}
