package network

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// DefaultAPIOrigin is the only origin whose responses are observed.
const DefaultAPIOrigin = "https://www.berrus.app"

// Listener receives copies of intercepted responses.
type Listener func(InterceptedResponse)

// Interceptor is an http.RoundTripper decorator. Callers get the original
// response untouched; the listener gets a copy when the request went to the
// API origin. Other origins are never read.
type Interceptor struct {
	next     http.RoundTripper
	origin   string
	base     *url.URL
	listener Listener
}

// NewInterceptor wraps next (nil means http.DefaultTransport). origin is the
// API origin, "" means DefaultAPIOrigin; relative URLs passed to Observe are
// resolved against it.
func NewInterceptor(next http.RoundTripper, origin string, listener Listener) (*Interceptor, error) {
	if next == nil {
		next = http.DefaultTransport
	}
	if origin == "" {
		origin = DefaultAPIOrigin
	}
	base, err := url.Parse(origin)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid api origin %q", origin)
	}
	return &Interceptor{
		next:     next,
		origin:   originOf(base),
		base:     base,
		listener: listener,
	}, nil
}

// Origin returns the normalised API origin.
func (i *Interceptor) Origin() string {
	return i.origin
}

// RoundTrip implements http.RoundTripper.
func (i *Interceptor) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := i.next.RoundTrip(req)
	if err != nil || resp == nil || !i.Allowed(req.URL) {
		return resp, err
	}

	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("read intercepted body: %w", err)
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))

	i.deliver(InterceptedResponse{
		Type:   requestType(req),
		URL:    req.URL.String(),
		Status: resp.StatusCode,
		Body:   string(body),
	})
	return resp, nil
}

// Observe is the same boundary for hosts that see responses without making
// the request themselves (browser hijack, replay).
func (i *Interceptor) Observe(typ ResponseType, rawURL string, status int, body string) {
	u, err := i.base.Parse(rawURL)
	if err != nil || !i.Allowed(u) {
		return
	}
	i.deliver(InterceptedResponse{Type: typ, URL: u.String(), Status: status, Body: body})
}

// Allowed reports whether u belongs to the API origin.
func (i *Interceptor) Allowed(u *url.URL) bool {
	return u != nil && originOf(u) == i.origin
}

func (i *Interceptor) deliver(resp InterceptedResponse) {
	if i.listener != nil {
		i.listener(resp)
	}
}

func originOf(u *url.URL) string {
	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	port := u.Port()
	if (scheme == "https" && port == "443") || (scheme == "http" && port == "80") {
		port = ""
	}
	if port != "" {
		host += ":" + port
	}
	return scheme + "://" + host
}

// requestType tells XHR calls (X-Requested-With) from fetch calls.
func requestType(req *http.Request) ResponseType {
	if strings.EqualFold(req.Header.Get("X-Requested-With"), "XMLHttpRequest") {
		return TypeXHR
	}
	return TypeFetch
}
