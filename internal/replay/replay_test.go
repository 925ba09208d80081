package replay

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/aatumaykin/berrus-helper/internal/dom"
	"github.com/aatumaykin/berrus-helper/internal/logger"
	"github.com/aatumaykin/berrus-helper/internal/network"
)

type observed struct {
	typ    network.ResponseType
	url    string
	status int
	body   string
}

type fakeTarget struct {
	host      *Host
	batches   [][]*html.Node
	paths     []string
	responses []observed
	flushes   int
}

func (f *fakeTarget) HandleMutations(added []*html.Node) {
	f.batches = append(f.batches, added)
	f.paths = append(f.paths, f.host.Path())
}

func (f *fakeTarget) Observe(typ network.ResponseType, rawURL string, status int, body string) {
	f.responses = append(f.responses, observed{typ, rawURL, status, body})
}

func (f *fakeTarget) Flush() { f.flushes++ }

func newHost() (*Host, *fakeTarget) {
	h := NewHost(logger.NewNop())
	h.sleep = func(context.Context, time.Duration) error { return nil }
	return h, &fakeTarget{host: h}
}

const capture = `
# jobs page
{"op":"navigate","path":"/g/c/rsn/jobs"}
{"op":"document","html":"<div><span>Trucha</span></div>"}
{"op":"added","html":"<div class=\"toast\">+40 XP Mineria</div>"}
{"op":"response","url":"/api/protected/character/1","body":"{}"}
{"op":"wait","ms":600}
not json
{"op":"teleport"}
{"op":"flush"}
`

func TestHost_Play(t *testing.T) {
	h, target := newHost()

	stats, err := h.Play(context.Background(), strings.NewReader(capture), target)
	require.NoError(t, err)

	assert.Equal(t, Stats{Events: 6, Mutations: 1, Responses: 1, Skipped: 2}, stats)
	assert.Equal(t, "/g/c/rsn/jobs", h.Path())
	assert.Equal(t, 2, target.flushes, "explicit flush plus the final one")

	require.Len(t, target.batches, 2)
	assert.Nil(t, target.batches[0], "navigation sends an empty batch")
	assert.Equal(t, "/g/c/rsn/jobs", target.paths[0])
	require.Len(t, target.batches[1], 1)
	assert.Equal(t, "+40 XP Mineria", dom.TextContent(target.batches[1][0]))

	require.Len(t, target.responses, 1)
	assert.Equal(t, observed{network.TypeFetch, "/api/protected/character/1", 200, "{}"}, target.responses[0])

	doc, err := h.Document()
	require.NoError(t, err)
	text := dom.TextContent(doc)
	assert.Contains(t, text, "Trucha")
	assert.Contains(t, text, "+40 XP Mineria")
}

func TestHost_NavigateClearsDocument(t *testing.T) {
	h, target := newHost()
	in := `{"op":"document","html":"<p>old</p>"}
{"op":"navigate"}`

	_, err := h.Play(context.Background(), strings.NewReader(in), target)
	require.NoError(t, err)

	assert.Equal(t, "/", h.Path())
	doc, err := h.Document()
	require.NoError(t, err)
	assert.NotContains(t, dom.TextContent(doc), "old")
}

func TestHost_PlayCancelled(t *testing.T) {
	h := NewHost(logger.NewNop())
	target := &fakeTarget{host: h}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.Play(ctx, strings.NewReader(`{"op":"wait","ms":10000}`), target)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, target.flushes)
}

func TestHost_PlayFile(t *testing.T) {
	h, target := newHost()
	path := filepath.Join(t.TempDir(), "capture.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(capture), 0o644))

	stats, err := h.PlayFile(context.Background(), path, target)
	require.NoError(t, err)
	assert.Equal(t, 6, stats.Events)

	_, err = h.PlayFile(context.Background(), filepath.Join(t.TempDir(), "missing.jsonl"), target)
	assert.Error(t, err)
}

func TestSleepCtx(t *testing.T) {
	assert.NoError(t, sleepCtx(context.Background(), 0))
	assert.NoError(t, sleepCtx(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepCtx(ctx, time.Hour), context.Canceled)
}
