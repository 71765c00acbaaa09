package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/sfuops/sora-console/internal/events"
	"github.com/sfuops/sora-console/internal/metrics"
)

// Sora delivers event metadata out-of-band in these headers.
const (
	headerEventType    = "sora-event-webhook-type"
	headerSessionID    = "sora-session-id"
	headerConnectionID = "sora-connection-id"
)

// handleAuthWebhook answers Sora's authentication webhook. Sora treats any
// non-200 or timeout as an infrastructure failure, so the endpoint always
// responds 200 and carries the decision in the allowed flag. Only allowed
// connections are announced to the dashboard.
func (a *API) handleAuthWebhook(w http.ResponseWriter, r *http.Request) {
	metrics.WebhookRequests.WithLabelValues("auth").Inc()

	var body struct {
		ChannelID    string `json:"channel_id"`
		ConnectionID string `json:"connection_id"`
	}
	// A body that does not parse degrades to zero values, which the policy
	// denies; the response stays 200 either way.
	_ = json.NewDecoder(r.Body).Decode(&body)

	if !a.authorize(body.ChannelID) {
		a.log.Info().Str("channel_id", body.ChannelID).Msg("auth webhook denied")
		writeJSON(w, http.StatusOK, map[string]any{
			"allowed": false,
			"reason":  "channel_id policy",
		})
		return
	}

	a.publish(events.Envelope{
		Type:         events.TypeAuthWebhookHit,
		ChannelID:    body.ChannelID,
		ConnectionID: body.ConnectionID,
		Payload:      map[string]any{"allowed": true},
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"allowed": true,
		"event_metadata": map[string]any{
			"project": "sora-console",
			"channel": body.ChannelID,
		},
	})
}

// handleEventWebhook ingests Sora's generic event webhook. The event category
// arrives in a header; the body is the event payload. The response must be a
// fast 200: Sora retries on anything else, and heavy work does not belong
// here.
func (a *API) handleEventWebhook(w http.ResponseWriter, r *http.Request) {
	metrics.WebhookRequests.WithLabelValues("event").Inc()

	eventType := r.Header.Get(headerEventType)
	sessionID := r.Header.Get(headerSessionID)
	connectionID := r.Header.Get(headerConnectionID)

	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		// A body we cannot parse now will not parse on Sora's retry either,
		// so acknowledge and drop.
		a.log.Error().Err(err).Msg("invalid JSON from sora event webhook")
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
		return
	}

	if eventType == "" {
		eventType, _ = payload["type"].(string)
	}

	switch eventType {
	case events.TypeConnectionCreated, events.TypeConnectionDestroyed:
		a.publish(events.Envelope{
			Type:         eventType,
			ConnectionID: connectionID,
			Payload:      payload,
		})
	case events.TypeConnectionUpdated:
		a.log.Debug().Str("connection_id", connectionID).Msg("connection.updated received, not forwarded")
	case events.TypeRecordingStarted, events.TypeRecordingReport:
		a.log.Info().Str("event", eventType).Str("session_id", sessionID).Msg("recording event received, not forwarded")
	default:
		a.publish(events.Envelope{
			Type:         events.TypeEventWebhookHit,
			ConnectionID: connectionID,
			Payload: map[string]any{
				"event":      eventType,
				"session_id": sessionID,
				"body":       payload,
			},
		})
	}

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// handleSessionWebhook ingests Sora's session lifecycle webhook. Creation and
// recording-start notifications reach the dashboard; updates are acknowledged
// silently.
func (a *API) handleSessionWebhook(w http.ResponseWriter, r *http.Request) {
	metrics.WebhookRequests.WithLabelValues("session").Inc()

	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		payload = map[string]any{}
	}
	eventType, _ := payload["type"].(string)

	switch eventType {
	case events.TypeSessionCreated, events.TypeRecordingStarted:
		a.publish(events.Envelope{Type: eventType, Payload: payload})
	case events.TypeSessionUpdated:
		// Acknowledged, not forwarded.
	default:
		a.log.Debug().Str("type", eventType).Msg("unhandled session event")
	}

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
