// Package content assembles the page side of the helper: route tracking,
// DOM extraction, notice matching and API response classification, all
// posting facts through one bus.Poster.
package content

import (
	"fmt"
	"net/http"
	"time"

	"golang.org/x/net/html"

	"github.com/aatumaykin/berrus-helper/internal/bus"
	"github.com/aatumaykin/berrus-helper/internal/config"
	"github.com/aatumaykin/berrus-helper/internal/extract"
	"github.com/aatumaykin/berrus-helper/internal/logger"
	"github.com/aatumaykin/berrus-helper/internal/metrics"
	"github.com/aatumaykin/berrus-helper/internal/network"
	"github.com/aatumaykin/berrus-helper/internal/observer"
	"github.com/aatumaykin/berrus-helper/internal/router"
)

// Deps are the collaborators of a Pipeline. Page, Poster and Logger are
// required.
type Deps struct {
	Page      observer.Page
	Poster    bus.Poster
	Logger    *logger.Logger
	Metrics   *metrics.Metrics
	Transport http.RoundTripper
	Now       func() time.Time
}

// Pipeline is one content lifetime.
type Pipeline struct {
	router      *router.Router
	classifier  *network.Classifier
	interceptor *network.Interceptor
	observer    *observer.Observer
	poster      bus.Poster
	logger      *logger.Logger
}

// New wires the pipeline for cfg.
func New(cfg config.Config, d Deps) (*Pipeline, error) {
	if d.Now == nil {
		d.Now = time.Now
	}
	log := d.Logger.With(logger.Field{Key: "component", Value: "content"})

	classifier := network.NewClassifier(d.Poster, log, d.Now)
	interceptor, err := network.NewInterceptor(d.Transport, cfg.Game.APIOrigin, classifier.HandleInterceptedResponse)
	if err != nil {
		return nil, fmt.Errorf("content: %w", err)
	}

	r := router.New(log)
	obs := observer.New(observer.Config{
		Debounce:     ms(cfg.Observer.DebounceMs),
		Backoff:      ms(cfg.Observer.BackoffMs),
		BackoffAfter: cfg.Observer.BackoffAfter,
	}, observer.Deps{
		Page:    d.Page,
		Router:  r,
		Matcher: extract.NewSessionMatcher(d.Poster, d.Now, cfg.Observer.MaxTextLen),
		Jobs:    extract.NewJobExtractor(d.Now),
		Prices:  extract.NewPriceExtractor(d.Now),
		Poster:  d.Poster,
		Logger:  log,
		Metrics: d.Metrics,
		Now:     d.Now,
	})

	return &Pipeline{
		router:      r,
		classifier:  classifier,
		interceptor: interceptor,
		observer:    obs,
		poster:      d.Poster,
		logger:      log,
	}, nil
}

func ms(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}

// Start announces the new page lifetime and starts observing.
func (p *Pipeline) Start() error {
	p.poster.Post(bus.ContentScriptReady{})
	if err := p.observer.Start(); err != nil {
		return err
	}
	p.logger.Info("content pipeline started")
	return nil
}

// Stop stops observing.
func (p *Pipeline) Stop() error {
	return p.observer.Stop()
}

// HandleMutations forwards inserted nodes to the observer.
func (p *Pipeline) HandleMutations(added []*html.Node) {
	p.observer.HandleMutations(added)
}

// Observe feeds a response the host saw without making the request.
func (p *Pipeline) Observe(typ network.ResponseType, rawURL string, status int, body string) {
	p.interceptor.Observe(typ, rawURL, status, body)
}

// Flush runs pending extraction passes now.
func (p *Pipeline) Flush() {
	p.observer.Flush()
}

// HTTPClient returns a client whose API responses reach the classifier.
func (p *Pipeline) HTTPClient() *http.Client {
	return &http.Client{Transport: p.interceptor}
}

// APIOrigin returns the origin whose responses are classified.
func (p *Pipeline) APIOrigin() string {
	return p.interceptor.Origin()
}

// Router returns the route tracker.
func (p *Pipeline) Router() *router.Router {
	return p.router
}
