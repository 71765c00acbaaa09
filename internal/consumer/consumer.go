// Package consumer implements the dashboard-side event stream client: it
// keeps one receive-only SSE connection open against the console, reconnects
// on transport failure and hands well-formed envelopes to a single handler.
package consumer

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/sfuops/sora-console/internal/cache"
	"github.com/sfuops/sora-console/internal/events"
)

const defaultRetryDelay = 3 * time.Second

// Handler receives every well-formed envelope except the connected handshake.
type Handler func(events.Envelope)

// Option customizes a Consumer.
type Option func(*Consumer)

// WithCache mirrors auth_webhook.hit payloads into store, keyed by
// connectionId.
func WithCache(store *cache.Store) Option {
	return func(c *Consumer) { c.cache = store }
}

// WithCacheTTL overrides the metadata retention window.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Consumer) { c.cacheTTL = ttl }
}

// WithRetryDelay overrides the fixed reconnect delay.
func WithRetryDelay(d time.Duration) Option {
	return func(c *Consumer) { c.retry = d }
}

// WithHTTPClient overrides the transport.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Consumer) { c.http = h }
}

// WithLogger attaches a logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Consumer) { c.log = log }
}

// Consumer is one long-lived stream subscription. Reconnection mirrors the
// browser EventSource: a fixed delay, no backoff policy of its own.
type Consumer struct {
	url      string
	handler  Handler
	cache    *cache.Store
	cacheTTL time.Duration
	retry    time.Duration
	http     *http.Client
	log      zerolog.Logger

	connected atomic.Bool
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

// New creates a consumer for the stream at url. Call Start to connect.
func New(url string, handler Handler, opts ...Option) *Consumer {
	c := &Consumer{
		url:      url,
		handler:  handler,
		cacheTTL: cache.DefaultTTL,
		retry:    defaultRetryDelay,
		http:     &http.Client{},
		log:      zerolog.Nop(),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start opens the stream and keeps it open until ctx is canceled or Close is
// called.
func (c *Consumer) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)
	go c.run(ctx)
}

// Connected reports whether the stream is currently open.
func (c *Consumer) Connected() bool {
	return c.connected.Load()
}

// Close stops the reconnect loop and waits for in-flight dispatch to finish;
// no handler call happens after it returns.
func (c *Consumer) Close() {
	c.closeOnce.Do(func() {
		if c.cancel == nil {
			return
		}
		c.cancel()
		<-c.done
	})
}

func (c *Consumer) run(ctx context.Context) {
	defer close(c.done)
	for {
		err := c.stream(ctx)
		c.connected.Store(false)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			c.log.Warn().Err(err).Msg("stream closed, reconnecting")
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(c.retry):
		}
	}
}

// stream opens one connection and consumes frames until it drops. Comment
// lines (the server's keepalive) are skipped; data lines accumulate until the
// blank-line terminator.
func (c *Consumer) stream(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("stream: unexpected status %d", resp.StatusCode)
	}

	c.connected.Store(true)
	c.log.Debug().Str("url", c.url).Msg("stream opened")

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var data []byte
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if len(data) > 0 {
				c.dispatch(data)
				data = data[:0]
			}
		case strings.HasPrefix(line, ":"):
			// keepalive comment
		case strings.HasPrefix(line, "data:"):
			chunk := strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " ")
			if len(data) > 0 {
				data = append(data, '\n')
			}
			data = append(data, chunk...)
		}
	}
	return scanner.Err()
}

func (c *Consumer) dispatch(raw []byte) {
	var evt events.Envelope
	if err := json.Unmarshal(raw, &evt); err != nil {
		c.log.Debug().Err(err).Msg("discarding unparsable frame")
		return
	}

	// The handshake only marks the stream as live; it is not an event.
	if evt.Type == events.TypeConnected {
		return
	}

	if evt.Type == events.TypeAuthWebhookHit && c.cache != nil && evt.ConnectionID != "" {
		if err := c.cache.Put(evt.ConnectionID, evt.Payload, c.cacheTTL); err != nil {
			c.log.Warn().Err(err).Str("connection_id", evt.ConnectionID).Msg("metadata cache write failed")
		}
	}

	if c.handler != nil {
		c.handler(evt)
	}
}
