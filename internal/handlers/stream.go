package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sfuops/sora-console/internal/events"
	"github.com/sfuops/sora-console/internal/metrics"
)

// streamConn serializes writes to one SSE connection. Bus callbacks arrive on
// publisher goroutines while the heartbeat ticks on the handler goroutine.
type streamConn struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
	closed  bool
}

func (c *streamConn) writeEvent(evt events.Envelope) {
	data, err := json.Marshal(evt)
	if err != nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	fmt.Fprintf(c.w, "data: %s\n\n", data)
	c.flusher.Flush()
}

func (c *streamConn) writePing() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	fmt.Fprint(c.w, ": ping\n\n")
	c.flusher.Flush()
}

func (c *streamConn) markClosed() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

// handleEventsStream holds open one SSE push channel per dashboard client.
// It sends a handshake frame immediately, then every envelope published on
// the front topic, plus a keepalive comment so intermediaries do not reap the
// idle connection.
func (a *API) handleEventsStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache, no-transform")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	conn := &streamConn{w: w, flusher: flusher}
	conn.writeEvent(events.Envelope{Type: events.TypeConnected, Timestamp: time.Now().UnixMilli()})

	clientID := uuid.NewString()
	log := a.log.With().Str("client_id", clientID).Logger()
	log.Info().Msg("sse client connected")
	metrics.SSEClients.Inc()

	heartbeat := time.NewTicker(a.heartbeat)
	sub := a.bus.Subscribe(events.TopicFront, conn.writeEvent)

	// Teardown order matters: the subscription must be gone before the
	// connection is marked closed, so no callback fires against a dead
	// transport. sync.Once keeps the abort and return paths from running it
	// twice.
	var once sync.Once
	teardown := func() {
		once.Do(func() {
			heartbeat.Stop()
			a.bus.Unsubscribe(events.TopicFront, sub)
			conn.markClosed()
			metrics.SSEClients.Dec()
			log.Info().Msg("sse client disconnected")
		})
	}
	defer teardown()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			conn.writePing()
		}
	}
}
