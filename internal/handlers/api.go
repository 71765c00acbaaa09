// Package handlers wires the console's HTTP surface: Sora webhook ingest, the
// SSE event stream, the Sora API proxy and the dashboard REST endpoints.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/sfuops/sora-console/internal/events"
	"github.com/sfuops/sora-console/internal/metrics"
	"github.com/sfuops/sora-console/internal/policy"
	"github.com/sfuops/sora-console/internal/sfu"
)

const defaultHeartbeat = 15 * time.Second

// Config carries the handler-level settings.
type Config struct {
	// AllowOrigin is the CORS origin granted to the dashboard.
	AllowOrigin string
	// Heartbeat is the SSE keepalive period. Zero means 15s.
	Heartbeat time.Duration
}

// API wires HTTP handlers for the console service.
type API struct {
	log         zerolog.Logger
	bus         *events.Bus
	sora        *sfu.Client
	authorize   policy.Func
	allowOrigin string
	heartbeat   time.Duration
}

// New constructs the API.
func New(log zerolog.Logger, bus *events.Bus, sora *sfu.Client, authorize policy.Func, cfg Config) *API {
	heartbeat := cfg.Heartbeat
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeat
	}
	if authorize == nil {
		authorize = policy.AllowAll()
	}
	return &API{
		log:         log,
		bus:         bus,
		sora:        sora,
		authorize:   authorize,
		allowOrigin: cfg.AllowOrigin,
		heartbeat:   heartbeat,
	}
}

// Routes configures the router.
func (a *API) Routes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Route("/sora", func(r chi.Router) {
			r.Post("/auth", a.handleAuthWebhook)
			r.Post("/event", a.handleEventWebhook)
			r.Post("/session", a.handleSessionWebhook)
		})

		r.Get("/ssevents", a.handleEventsStream)

		r.Options("/proxy", a.handlePreflight)
		r.Post("/proxy", a.handleProxy)
		r.Get("/proxy", a.handleProxyMethodNotAllowed)
		r.Options("/recording", a.handlePreflight)
		r.Post("/recording", a.handleRecording)

		r.Get("/sessions", a.handleSessionsList)
		r.Get("/connections", a.handleConnectionsList)
		r.Post("/connections/{id}:{action}", a.handleConnectionAction)
	})
}

// publish is best-effort: webhook responses never depend on bus delivery.
func (a *API) publish(evt events.Envelope) {
	a.bus.Publish(events.TopicFront, evt)
	metrics.EventsPublished.WithLabelValues(evt.Type).Inc()
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
