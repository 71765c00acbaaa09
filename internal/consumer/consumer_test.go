package consumer

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sfuops/sora-console/internal/cache"
	"github.com/sfuops/sora-console/internal/events"
)

// collector gathers dispatched envelopes.
type collector struct {
	mu   sync.Mutex
	evts []events.Envelope
}

func (c *collector) handle(evt events.Envelope) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evts = append(c.evts, evt)
}

func (c *collector) envelopes() []events.Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]events.Envelope(nil), c.evts...)
}

func openTestCache(t *testing.T) *cache.Store {
	t.Helper()
	store, err := cache.Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestConsumer_DispatchAndFiltering(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)

		fmt.Fprint(w, `data: {"type":"connected","ts":123}`+"\n\n")
		fmt.Fprint(w, ": ping\n\n")
		fmt.Fprint(w, `data: {"type":"auth_webhook.hit","connectionId":"c1","channelId":"sora-room","payload":{"allowed":true}}`+"\n\n")
		fmt.Fprint(w, "data: this is not json\n\n")
		fmt.Fprint(w, ": ping\n\n")
		fmt.Fprint(w, `data: {"type":"connection.destroyed","connectionId":"c1"}`+"\n\n")
		flusher.Flush()

		<-r.Context().Done()
	}))
	t.Cleanup(srv.Close)

	store := openTestCache(t)
	col := &collector{}

	c := New(srv.URL, col.handle,
		WithCache(store),
		WithCacheTTL(time.Hour),
		WithRetryDelay(10*time.Millisecond),
	)
	c.Start(context.Background())
	t.Cleanup(c.Close)

	require.Eventually(t, func() bool {
		return len(col.envelopes()) == 2
	}, 2*time.Second, 5*time.Millisecond)

	evts := col.envelopes()
	// The handshake and the broken frame are filtered; order is preserved.
	assert.Equal(t, events.TypeAuthWebhookHit, evts[0].Type)
	assert.Equal(t, "c1", evts[0].ConnectionID)
	assert.Equal(t, events.TypeConnectionDestroyed, evts[1].Type)

	assert.True(t, c.Connected())

	// The auth hit was mirrored into the metadata cache by connection id.
	var meta map[string]any
	require.NoError(t, store.Get("c1", &meta))
	assert.Equal(t, true, meta["allowed"])
}

func TestConsumer_ReconnectsAfterStreamDrop(t *testing.T) {
	var conns atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := conns.Add(1)
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprintf(w, `data: {"type":"session.created","payload":{"attempt":%d}}`+"\n\n", n)
		// Returning drops the connection; the consumer must come back.
	}))
	t.Cleanup(srv.Close)

	col := &collector{}
	c := New(srv.URL, col.handle, WithRetryDelay(10*time.Millisecond))
	c.Start(context.Background())
	t.Cleanup(c.Close)

	require.Eventually(t, func() bool {
		return conns.Load() >= 2 && len(col.envelopes()) >= 2
	}, 2*time.Second, 5*time.Millisecond)

	for _, evt := range col.envelopes() {
		assert.Equal(t, events.TypeSessionCreated, evt.Type)
	}
}

func TestConsumer_ConnectedFlag(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, `data: {"type":"connected","ts":1}`+"\n\n")
		w.(http.Flusher).Flush()
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	c := New(srv.URL, nil, WithRetryDelay(10*time.Millisecond))
	assert.False(t, c.Connected())

	c.Start(context.Background())
	require.Eventually(t, c.Connected, 2*time.Second, 5*time.Millisecond)

	c.Close()
	assert.False(t, c.Connected())
}

func TestConsumer_CloseStopsDispatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, `data: {"type":"connection.created","connectionId":"c1"}`+"\n\n")
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	t.Cleanup(srv.Close)

	col := &collector{}
	c := New(srv.URL, col.handle, WithRetryDelay(10*time.Millisecond))
	c.Start(context.Background())

	require.Eventually(t, func() bool {
		return len(col.envelopes()) == 1
	}, 2*time.Second, 5*time.Millisecond)

	c.Close()
	seen := len(col.envelopes())
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, seen, len(col.envelopes()), "no dispatch after Close")

	// Close is idempotent.
	c.Close()
}

func TestConsumer_CloseBeforeStart(t *testing.T) {
	c := New("http://127.0.0.1:0/api/ssevents", nil)
	c.Close()
}

func TestConsumer_NonOKStatusRetries(t *testing.T) {
	var conns atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conns.Add(1)
		http.Error(w, "not here", http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	c := New(srv.URL, nil, WithRetryDelay(5*time.Millisecond))
	c.Start(context.Background())
	t.Cleanup(c.Close)

	require.Eventually(t, func() bool { return conns.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	assert.False(t, c.Connected())
}
