// Package router decides which extractors run on the current page path.
package router

import (
	"maps"
	"slices"
	"sync"

	"github.com/wasilibs/go-re2"

	"github.com/aatumaykin/berrus-helper/internal/logger"
)

// Module is an extractor category.
type Module string

const (
	ModuleJobs    Module = "jobs"
	ModulePrices  Module = "prices"
	ModuleSession Module = "session"
	ModuleNetwork Module = "network"
)

var alwaysActive = []Module{ModuleSession, ModuleNetwork}

type rule struct {
	pattern *re2.Regexp
	modules []Module
}

var rules = []rule{
	{pattern: re2.MustCompile(`(?i)/jobs`), modules: []Module{ModuleJobs}},
	{pattern: re2.MustCompile(`(?i)/shop`), modules: []Module{ModulePrices}},
	{pattern: re2.MustCompile(`(?i)/mercadillo`), modules: []Module{ModulePrices}},
	{pattern: re2.MustCompile(`(?i)/market`), modules: []Module{ModulePrices}},
}

// RouteState is the path and the modules it enables.
type RouteState struct {
	Path          string
	ActiveModules map[Module]bool
}

// Has reports whether m is active in s.
func (s RouteState) Has(m Module) bool {
	return s.ActiveModules[m]
}

// Modules lists the active modules in a stable order.
func (s RouteState) Modules() []Module {
	out := make([]Module, 0, len(s.ActiveModules))
	for m := range s.ActiveModules {
		out = append(out, m)
	}
	slices.Sort(out)
	return out
}

// ResolveActiveModules returns the modules enabled on path. Session and
// network are always on.
func ResolveActiveModules(path string) map[Module]bool {
	modules := make(map[Module]bool, 4)
	for _, m := range alwaysActive {
		modules[m] = true
	}
	for _, r := range rules {
		if r.pattern.MatchString(path) {
			for _, m := range r.modules {
				modules[m] = true
			}
		}
	}
	return modules
}

// ChangeFunc is called with the new and the previous route.
type ChangeFunc func(current, previous RouteState)

// Router tracks the last seen path.
type Router struct {
	mu        sync.Mutex
	logger    *logger.Logger
	current   *RouteState
	listeners map[int]ChangeFunc
	nextID    int
}

// New creates a router with no route yet.
func New(log *logger.Logger) *Router {
	return &Router{
		logger:    log,
		listeners: make(map[int]ChangeFunc),
	}
}

// CheckURLChange compares path with the last seen one. The first call seeds
// the state and returns true without notifying listeners.
func (r *Router) CheckURLChange(path string) bool {
	r.mu.Lock()
	previous := r.current
	if previous != nil && previous.Path == path {
		r.mu.Unlock()
		return false
	}

	current := RouteState{Path: path, ActiveModules: ResolveActiveModules(path)}
	r.current = &current

	if previous == nil {
		r.mu.Unlock()
		r.logger.Info("initial route",
			logger.Field{Key: "path", Value: path},
			logger.Field{Key: "modules", Value: current.Modules()})
		return true
	}

	listeners := make([]ChangeFunc, 0, len(r.listeners))
	for _, id := range slices.Sorted(maps.Keys(r.listeners)) {
		listeners = append(listeners, r.listeners[id])
	}
	r.mu.Unlock()

	r.logger.Info("route changed",
		logger.Field{Key: "from", Value: previous.Path},
		logger.Field{Key: "to", Value: path},
		logger.Field{Key: "modules", Value: current.Modules()})

	for _, fn := range listeners {
		fn(current, *previous)
	}
	return true
}

// OnRouteChange registers fn and returns a function removing it.
func (r *Router) OnRouteChange(fn ChangeFunc) func() {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.nextID
	r.nextID++
	r.listeners[id] = fn

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.listeners, id)
	}
}

// State returns the current route; ok is false before the first check.
func (r *Router) State() (RouteState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		return RouteState{}, false
	}
	return *r.current, true
}

// IsModuleActive reports whether m runs on the current route. Before the
// first check only the always-on modules are active.
func (r *Router) IsModuleActive(m Module) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		return slices.Contains(alwaysActive, m)
	}
	return r.current.Has(m)
}

// Reset forgets the route and every listener.
func (r *Router) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = nil
	clear(r.listeners)
}
