// Package relay carries bus messages between processes: an HTTP client that
// posts encoded messages to the daemon, and a best-effort dispatcher that
// posts facts without blocking the extraction pipeline.
package relay

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aatumaykin/berrus-helper/internal/bus"
	"github.com/aatumaykin/berrus-helper/internal/logger"
)

// Path is the daemon endpoint accepting encoded messages.
const Path = "/api/relay"

const maxResponseSize = 10 << 20

// Client is a bus.Sender talking to a remote daemon over HTTP.
type Client struct {
	url    string
	http   *http.Client
	logger *logger.Logger
}

// NewClient creates a client for the daemon at baseURL.
func NewClient(baseURL string, timeout time.Duration, log *logger.Logger) *Client {
	return &Client{
		url:    strings.TrimRight(baseURL, "/") + Path,
		http:   &http.Client{Timeout: timeout},
		logger: log,
	}
}

// Send posts msg and decodes the correlated response. A JSON null response
// is returned as nil.
func (c *Client) Send(ctx context.Context, msg bus.Message) (any, error) {
	body, err := bus.Encode(msg)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("relay request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("relay %s: %w", msg.Type(), err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("relay %s: read response: %w", msg.Type(), err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("relay %s: status %d: %s", msg.Type(), resp.StatusCode, strings.TrimSpace(string(data)))
	}

	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nil
	}

	c.logger.DebugCtx(ctx, "relay response received",
		logger.Field{Key: "type", Value: msg.Type()},
		logger.Field{Key: "bytes", Value: len(data)})
	return bus.DecodeResponse(msg.Type(), data)
}
