package extract

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/aatumaykin/berrus-helper/internal/bus"
	"github.com/aatumaykin/berrus-helper/internal/dom"
)

var fixedNow = time.UnixMilli(1_700_000_000_000)

func fixedClock() time.Time { return fixedNow }

// recordingPoster collects posted messages.
type recordingPoster struct {
	mu   sync.Mutex
	msgs []bus.Message
}

func (p *recordingPoster) Post(msg bus.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
}

func (p *recordingPoster) messages() []bus.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]bus.Message(nil), p.msgs...)
}

func parseBody(t *testing.T, body string) *html.Node {
	t.Helper()
	doc, err := dom.ParseString("<html><body>" + body + "</body></html>")
	require.NoError(t, err)
	return dom.Body(doc)
}

func parseNode(t *testing.T, fragment string) *html.Node {
	t.Helper()
	nodes, err := dom.ParseFragment(fragment)
	require.NoError(t, err)
	require.NotEmpty(t, nodes)
	return nodes[0]
}
