// Package observer drives extraction on a live page: it reacts to inserted
// nodes, debounces job and price passes with backoff on empty results,
// suppresses facts that were already sent and forgets everything when the
// page navigates.
package observer

import (
	"errors"
	"sync"
	"time"

	"golang.org/x/net/html"

	"github.com/aatumaykin/berrus-helper/internal/bus"
	"github.com/aatumaykin/berrus-helper/internal/extract"
	"github.com/aatumaykin/berrus-helper/internal/game"
	"github.com/aatumaykin/berrus-helper/internal/logger"
	"github.com/aatumaykin/berrus-helper/internal/metrics"
	"github.com/aatumaykin/berrus-helper/internal/router"
)

const (
	DefaultDebounce     = 500 * time.Millisecond
	DefaultBackoff      = 10 * time.Second
	DefaultBackoffAfter = 3
	DefaultJobGrace     = 2 * time.Second
)

var (
	ErrAlreadyStarted = errors.New("observer is already started")
	ErrNotStarted     = errors.New("observer is not started")
)

// Page is the host the observer reads from.
type Page interface {
	// Path is the current location pathname.
	Path() string
	// Document returns the current page tree.
	Document() (*html.Node, error)
}

// Config tunes debouncing. Zero values mean the defaults.
type Config struct {
	Debounce     time.Duration
	Backoff      time.Duration
	BackoffAfter int
	// JobGrace keeps a text-extracted job known for a while after its
	// countdown ends, so the last "0:00" read is not a new job.
	JobGrace time.Duration
}

func (c Config) withDefaults() Config {
	if c.Debounce <= 0 {
		c.Debounce = DefaultDebounce
	}
	if c.Backoff <= 0 {
		c.Backoff = DefaultBackoff
	}
	if c.BackoffAfter <= 0 {
		c.BackoffAfter = DefaultBackoffAfter
	}
	if c.JobGrace <= 0 {
		c.JobGrace = DefaultJobGrace
	}
	return c
}

// category is the debounce state of one extractor.
type category struct {
	name     string
	module   router.Module
	timer    *time.Timer
	gen      uint64
	empty    int
	interval time.Duration
	logged   bool
}

// Observer owns every piece of extraction memory of one page lifetime.
type Observer struct {
	mu      sync.Mutex
	cfg     Config
	page    Page
	router  *router.Router
	matcher *extract.SessionMatcher
	jobsX   *extract.JobExtractor
	pricesX *extract.PriceExtractor
	poster  bus.Poster
	logger  *logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	started     bool
	epoch       uint64
	unsubscribe func()

	jobs   category
	prices category

	knownJobIDs map[string]bool
	knownJobs   map[string]int64 // skill|name -> endsAt
	knownPrices map[string]int64
}

// Deps are the collaborators of an Observer.
type Deps struct {
	Page    Page
	Router  *router.Router
	Matcher *extract.SessionMatcher
	Jobs    *extract.JobExtractor
	Prices  *extract.PriceExtractor
	Poster  bus.Poster
	Logger  *logger.Logger
	Metrics *metrics.Metrics
	Now     func() time.Time
}

// New creates an observer. Missing extractors and router are created with
// defaults; Page, Poster and Logger are required.
func New(cfg Config, d Deps) *Observer {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Router == nil {
		d.Router = router.New(d.Logger)
	}
	if d.Matcher == nil {
		d.Matcher = extract.NewSessionMatcher(d.Poster, d.Now, 0)
	}
	if d.Jobs == nil {
		d.Jobs = extract.NewJobExtractor(d.Now)
	}
	if d.Prices == nil {
		d.Prices = extract.NewPriceExtractor(d.Now)
	}

	cfg = cfg.withDefaults()
	o := &Observer{
		cfg:     cfg,
		page:    d.Page,
		router:  d.Router,
		matcher: d.Matcher,
		jobsX:   d.Jobs,
		pricesX: d.Prices,
		poster:  d.Poster,
		logger:  d.Logger,
		metrics: d.Metrics,
		now:     d.Now,
		jobs:    category{name: "jobs", module: router.ModuleJobs, interval: cfg.Debounce},
		prices:  category{name: "prices", module: router.ModulePrices, interval: cfg.Debounce},
	}
	o.resetMemory()
	return o
}

// Router returns the route tracker the observer reports to.
func (o *Observer) Router() *router.Router {
	return o.router
}

// Start seeds the route and runs a first pass for the active modules.
func (o *Observer) Start() error {
	o.mu.Lock()
	if o.started {
		o.mu.Unlock()
		return ErrAlreadyStarted
	}
	o.started = true
	o.mu.Unlock()

	o.router.CheckURLChange(o.page.Path())
	unsubscribe := o.router.OnRouteChange(func(current, previous router.RouteState) {
		o.logger.Debug("route changed, resetting extraction state",
			logger.Field{Key: "from", Value: previous.Path},
			logger.Field{Key: "to", Value: current.Path})
		o.reset()
	})

	o.mu.Lock()
	o.unsubscribe = unsubscribe
	epoch := o.epoch
	o.mu.Unlock()

	o.logger.Info("observer started", logger.Field{Key: "path", Value: o.page.Path()})

	o.process(&o.jobs, epoch)
	o.process(&o.prices, epoch)
	return nil
}

// Stop cancels pending passes and detaches from the router.
func (o *Observer) Stop() error {
	o.mu.Lock()
	if !o.started {
		o.mu.Unlock()
		return ErrNotStarted
	}
	o.started = false
	o.cancel(&o.jobs)
	o.cancel(&o.prices)
	unsubscribe := o.unsubscribe
	o.unsubscribe = nil
	o.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	o.logger.Info("observer stopped")
	return nil
}

// HandleMutations is called with the nodes inserted by one mutation batch.
func (o *Observer) HandleMutations(added []*html.Node) {
	o.router.CheckURLChange(o.page.Path())

	if len(added) == 0 {
		return
	}
	if o.router.IsModuleActive(router.ModuleSession) {
		for _, n := range added {
			o.matcher.ProcessAddedNode(n)
		}
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.started {
		return
	}
	o.schedule(&o.jobs)
	o.schedule(&o.prices)
}

// Flush runs pending passes now instead of waiting for their timers.
func (o *Observer) Flush() {
	o.mu.Lock()
	var due []*category
	for _, c := range []*category{&o.jobs, &o.prices} {
		if c.timer != nil {
			o.cancel(c)
			due = append(due, c)
		}
	}
	epoch := o.epoch
	o.mu.Unlock()

	for _, c := range due {
		o.process(c, epoch)
	}
}

// Interval returns the current debounce interval of a module.
func (o *Observer) Interval(m router.Module) time.Duration {
	o.mu.Lock()
	defer o.mu.Unlock()
	if m == router.ModulePrices {
		return o.prices.interval
	}
	return o.jobs.interval
}

// schedule replaces the pending pass of c. Callers hold o.mu.
func (o *Observer) schedule(c *category) {
	if !o.router.IsModuleActive(c.module) {
		return
	}
	o.cancel(c)
	c.gen++
	gen, epoch := c.gen, o.epoch
	c.timer = time.AfterFunc(c.interval, func() { o.fire(c, gen, epoch) })
}

// cancel stops the pending pass of c. Callers hold o.mu.
func (o *Observer) cancel(c *category) {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.gen++
}

func (o *Observer) fire(c *category, gen, epoch uint64) {
	o.mu.Lock()
	if !o.started || c.gen != gen {
		o.mu.Unlock()
		return
	}
	c.timer = nil
	o.mu.Unlock()

	o.process(c, epoch)
}

// process runs one extraction pass for c and posts what is new.
func (o *Observer) process(c *category, epoch uint64) {
	if !o.router.IsModuleActive(c.module) {
		return
	}

	root, err := o.page.Document()
	if err != nil {
		o.logger.Warn("page document unavailable",
			logger.Field{Key: "category", Value: c.name},
			logger.Field{Key: "error", Value: err.Error()})
		return
	}

	switch c.module {
	case router.ModuleJobs:
		o.postJobs(o.jobsX.ExtractActiveJobs(root), epoch)
	case router.ModulePrices:
		o.postPrices(o.pricesX.ExtractPrices(root, o.page.Path()), epoch)
	}
}

// recordRun updates the empty-run counter and interval of c. It reports
// false when the pass found nothing. Callers hold o.mu.
func (o *Observer) recordRun(c *category, found int) bool {
	o.metrics.RecordExtraction(c.name, found)

	if found == 0 {
		c.empty++
		if !c.logged {
			c.logged = true
			o.logger.Info("nothing found on page", logger.Field{Key: "category", Value: c.name})
		}
		if c.empty >= o.cfg.BackoffAfter && c.interval != o.cfg.Backoff {
			c.interval = o.cfg.Backoff
			o.logger.Debug("extraction backing off",
				logger.Field{Key: "category", Value: c.name},
				logger.Field{Key: "interval", Value: c.interval.String()})
		}
		return false
	}

	c.empty = 0
	c.interval = o.cfg.Debounce
	return true
}

func (o *Observer) postJobs(jobs []game.TimedJob, epoch uint64) {
	o.mu.Lock()
	if o.epoch != epoch {
		o.mu.Unlock()
		return
	}
	if !o.recordRun(&o.jobs, len(jobs)) {
		o.mu.Unlock()
		return
	}

	now := o.now().UnixMilli()
	grace := o.cfg.JobGrace.Milliseconds()
	// Name matches only count against earlier passes: two cards with the
	// same name in one pass are two jobs.
	seen := make(map[string]int64)
	var fresh []game.TimedJob
	for _, job := range jobs {
		key := string(job.Skill) + "|" + job.Name
		if o.knownJobIDs[job.ID] {
			continue
		}
		if endsAt, ok := o.knownJobs[key]; ok && now <= endsAt+grace {
			continue
		}
		o.knownJobIDs[job.ID] = true
		seen[key] = max(seen[key], job.EndsAt)
		fresh = append(fresh, job)
	}
	for key, endsAt := range seen {
		o.knownJobs[key] = endsAt
	}
	o.mu.Unlock()

	if len(fresh) > 0 {
		o.logger.Debug("jobs detected", logger.Field{Key: "count", Value: len(fresh)})
	}
	for _, job := range fresh {
		o.poster.Post(bus.JobDetected{Job: job})
	}
}

func (o *Observer) postPrices(snapshots []game.PriceSnapshot, epoch uint64) {
	o.mu.Lock()
	if o.epoch != epoch {
		o.mu.Unlock()
		return
	}
	if !o.recordRun(&o.prices, len(snapshots)) {
		o.mu.Unlock()
		return
	}

	var changed []game.PriceSnapshot
	for _, s := range snapshots {
		if last, ok := o.knownPrices[s.ItemID]; !ok || last != s.Price {
			changed = append(changed, s)
		}
	}
	for _, s := range snapshots {
		o.knownPrices[s.ItemID] = s.Price
	}
	o.mu.Unlock()

	if len(changed) == 0 {
		o.logger.Debug("prices unchanged, skipping send")
		return
	}
	o.logger.Debug("prices detected", logger.Field{Key: "count", Value: len(changed)})
	for _, s := range changed {
		o.poster.Post(bus.PriceSnapshot{Snapshot: s})
	}
}

// reset drops the extraction memory after navigation.
func (o *Observer) reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.epoch++
	o.cancel(&o.jobs)
	o.cancel(&o.prices)
	o.resetMemory()
}

// resetMemory clears counters, intervals and known facts. Callers hold o.mu.
func (o *Observer) resetMemory() {
	for _, c := range []*category{&o.jobs, &o.prices} {
		c.empty = 0
		c.interval = o.cfg.Debounce
		c.logged = false
	}
	o.knownJobIDs = make(map[string]bool)
	o.knownJobs = make(map[string]int64)
	o.knownPrices = make(map[string]int64)
}
