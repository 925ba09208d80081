// Package browser hosts the extraction pipeline on a real page driven over
// the Chrome DevTools protocol. A MutationObserver script reports inserted
// nodes through a CDP binding, and requests to the game API are replayed
// through an http.Client so the network interceptor sees their responses.
package browser

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"golang.org/x/net/html"

	"github.com/aatumaykin/berrus-helper/internal/config"
	"github.com/aatumaykin/berrus-helper/internal/dom"
	"github.com/aatumaykin/berrus-helper/internal/logger"
)

//go:embed observer.js
var observerJS string

const (
	bindingName     = "__berrusMutations"
	navigateTimeout = 30 * time.Second
)

var ErrNotStarted = errors.New("browser host is not started")

// MutationFunc receives the nodes inserted by one mutation batch.
type MutationFunc func(added []*html.Node)

// Host is an observer.Page backed by a browser tab.
type Host struct {
	cfg    config.BrowserConfig
	logger *logger.Logger

	mu          sync.RWMutex
	path        string
	browser     *rod.Browser
	page        *rod.Page
	launcher    *launcher.Launcher
	hijack      *rod.HijackRouter
	cancel      context.CancelFunc
	onMutations MutationFunc
}

// New creates a host; nothing is launched until Start.
func New(cfg config.BrowserConfig, log *logger.Logger) *Host {
	return &Host{cfg: cfg, logger: log}
}

// OnMutations sets the mutation callback. Set it before Start.
func (h *Host) OnMutations(fn MutationFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onMutations = fn
}

// Start opens startURL. Requests to apiOrigin are loaded through client,
// whose transport is expected to be the network interceptor.
func (h *Host) Start(ctx context.Context, startURL, apiOrigin string, client *http.Client) error {
	b, l, err := h.connect(ctx)
	if err != nil {
		return err
	}

	page, err := h.openPage(b)
	if err != nil {
		_ = b.Close()
		cleanup(l)
		return err
	}

	pageCtx, cancel := context.WithCancel(ctx)
	h.mu.Lock()
	h.browser, h.launcher, h.page, h.cancel = b, l, page, cancel
	h.mu.Unlock()

	if client != nil && apiOrigin != "" {
		if err := h.hijackAPI(page, apiOrigin, client); err != nil {
			_ = h.Close()
			return err
		}
	}
	if err := h.installObserver(pageCtx, page); err != nil {
		_ = h.Close()
		return err
	}

	navCtx, navCancel := context.WithTimeout(ctx, navigateTimeout)
	defer navCancel()
	if err := page.Context(navCtx).Navigate(startURL); err != nil {
		_ = h.Close()
		return fmt.Errorf("navigate %s: %w", startURL, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		h.logger.Warn("page load wait failed", logger.Field{Key: "url", Value: startURL},
			logger.Field{Key: "error", Value: err.Error()})
	}
	h.setPath(startURL)

	h.logger.Info("browser page opened",
		logger.Field{Key: "url", Value: startURL},
		logger.Field{Key: "stealth", Value: h.cfg.Stealth})
	return nil
}

func (h *Host) connect(ctx context.Context) (*rod.Browser, *launcher.Launcher, error) {
	var (
		controlURL = h.cfg.ControlURL
		l          *launcher.Launcher
	)
	if controlURL == "" {
		l = launcher.New().
			Headless(h.cfg.Headless).
			Set("disable-blink-features", "AutomationControlled")
		if h.cfg.Bin != "" {
			l = l.Bin(h.cfg.Bin)
		}
		if h.cfg.UserData != "" {
			l = l.UserDataDir(config.ExpandHome(h.cfg.UserData))
		}
		u, err := l.Context(ctx).Launch()
		if err != nil {
			return nil, nil, fmt.Errorf("launch browser: %w", err)
		}
		controlURL = u
		h.logger.Info("local browser launched", logger.Field{Key: "headless", Value: h.cfg.Headless})
	} else {
		h.logger.Info("connecting to remote browser", logger.Field{Key: "url", Value: controlURL})
	}

	b := rod.New().ControlURL(controlURL).Context(ctx)
	if err := b.Connect(); err != nil {
		cleanup(l)
		return nil, nil, fmt.Errorf("connect browser: %w", err)
	}
	return b, l, nil
}

func (h *Host) openPage(b *rod.Browser) (*rod.Page, error) {
	var (
		page *rod.Page
		err  error
	)
	if h.cfg.Stealth {
		page, err = stealth.Page(b)
	} else {
		page, err = b.Page(proto.TargetCreateTarget{URL: ""})
	}
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}
	return page, nil
}

// hijackAPI loads API requests with client; failures fail the request in
// the page the same way a network error would.
func (h *Host) hijackAPI(page *rod.Page, apiOrigin string, client *http.Client) error {
	router := page.HijackRequests()
	pattern := strings.TrimRight(apiOrigin, "/") + "/api/*"
	err := router.Add(pattern, "", func(hj *rod.Hijack) {
		if err := hj.LoadResponse(client, true); err != nil {
			h.logger.Warn("api request failed",
				logger.Field{Key: "url", Value: hj.Request.URL().String()},
				logger.Field{Key: "error", Value: err.Error()})
			hj.Response.Fail(proto.NetworkErrorReasonFailed)
		}
	})
	if err != nil {
		return fmt.Errorf("hijack %s: %w", pattern, err)
	}
	go router.Run()

	h.mu.Lock()
	h.hijack = router
	h.mu.Unlock()
	return nil
}

func (h *Host) installObserver(ctx context.Context, page *rod.Page) error {
	if err := (proto.RuntimeAddBinding{Name: bindingName}).Call(page); err != nil {
		return fmt.Errorf("add binding: %w", err)
	}
	if _, err := page.EvalOnNewDocument(observerJS); err != nil {
		return fmt.Errorf("install observer script: %w", err)
	}

	wait := page.Context(ctx).EachEvent(
		func(e *proto.RuntimeBindingCalled) {
			if e.Name == bindingName {
				h.handleBinding(e.Payload)
			}
		},
		func(e *proto.PageFrameNavigated) {
			if e.Frame != nil && e.Frame.ParentID == "" {
				h.setPath(e.Frame.URL)
			}
		},
		func(e *proto.PageNavigatedWithinDocument) {
			h.setPath(e.URL)
		},
	)
	go wait()
	return nil
}

func (h *Host) handleBinding(payload string) {
	path, added, err := decodeMutations(payload)
	if err != nil {
		h.logger.Warn("bad mutation payload", logger.Field{Key: "error", Value: err.Error()})
		return
	}
	if path != "" {
		h.mu.Lock()
		h.path = path
		h.mu.Unlock()
	}

	h.mu.RLock()
	fn := h.onMutations
	h.mu.RUnlock()
	if fn != nil {
		fn(added)
	}
}

func (h *Host) setPath(rawURL string) {
	p := pathOf(rawURL)
	h.mu.Lock()
	h.path = p
	h.mu.Unlock()
}

// Path implements observer.Page.
func (h *Host) Path() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.path
}

// Document implements observer.Page.
func (h *Host) Document() (*html.Node, error) {
	h.mu.RLock()
	page := h.page
	h.mu.RUnlock()
	if page == nil {
		return nil, ErrNotStarted
	}

	res, err := page.Eval(`() => document.documentElement.outerHTML`)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	return dom.ParseString(res.Value.Str())
}

// Close stops the hijack router and closes the browser.
func (h *Host) Close() error {
	h.mu.Lock()
	b, l, router, cancel := h.browser, h.launcher, h.hijack, h.cancel
	h.browser, h.launcher, h.hijack, h.cancel, h.page = nil, nil, nil, nil, nil
	h.mu.Unlock()

	var errs []error
	if cancel != nil {
		cancel()
	}
	if router != nil {
		if err := router.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop hijack: %w", err))
		}
	}
	if b != nil {
		if err := b.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close browser: %w", err))
		}
	}
	cleanup(l)
	if b != nil {
		h.logger.Info("browser closed")
	}
	return errors.Join(errs...)
}

func cleanup(l *launcher.Launcher) {
	if l != nil {
		l.Cleanup()
	}
}

type mutationPayload struct {
	Path  string   `json:"path"`
	Added []string `json:"added"`
}

// decodeMutations parses a binding payload into the inserted element nodes.
func decodeMutations(payload string) (string, []*html.Node, error) {
	var p mutationPayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return "", nil, err
	}

	var added []*html.Node
	for _, fragment := range p.Added {
		nodes, err := dom.ParseFragment(fragment)
		if err != nil {
			continue
		}
		for _, n := range nodes {
			if dom.IsElement(n) {
				added = append(added, n)
			}
		}
	}
	return p.Path, added, nil
}

func pathOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Path == "" {
		return "/"
	}
	return u.Path
}
