package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sfuops/sora-console/internal/sfu"
)

// handleSessionsList returns the upstream's active sessions.
func (a *API) handleSessionsList(w http.ResponseWriter, r *http.Request) {
	sessions, err := a.sora.ListSessions(r.Context())
	if err != nil {
		writeError(w, upstreamStatus(err), err.Error())
		return
	}
	if sessions == nil {
		sessions = []sfu.Session{}
	}
	writeJSON(w, http.StatusOK, sessions)
}

// handleConnectionsList returns the upstream's active connections, optionally
// filtered by the channel_id query parameter.
func (a *API) handleConnectionsList(w http.ResponseWriter, r *http.Request) {
	conns, err := a.sora.ListConnections(r.Context(), r.URL.Query().Get("channel_id"))
	if err != nil {
		writeError(w, upstreamStatus(err), err.Error())
		return
	}
	if conns == nil {
		conns = []sfu.Connection{}
	}
	writeJSON(w, http.StatusOK, conns)
}

// handleConnectionAction applies an operator action to one connection.
func (a *API) handleConnectionAction(w http.ResponseWriter, r *http.Request) {
	connectionID := chi.URLParam(r, "id")
	action := chi.URLParam(r, "action")

	var payload struct {
		ChannelID string `json:"channel_id"`
	}
	_ = json.NewDecoder(r.Body).Decode(&payload)

	switch action {
	case "disconnect":
		if payload.ChannelID == "" {
			writeError(w, http.StatusBadRequest, "channel_id is required")
			return
		}
		if err := a.sora.DisconnectConnection(r.Context(), payload.ChannelID, connectionID); err != nil {
			writeError(w, upstreamStatus(err), err.Error())
			return
		}
		a.log.Info().Str("connection_id", connectionID).Str("channel_id", payload.ChannelID).Msg("connection disconnected")
		writeJSON(w, http.StatusOK, map[string]string{"status": "disconnected"})
	default:
		writeError(w, http.StatusNotFound, "unsupported action")
	}
}

// upstreamStatus maps Sora API failures onto the response: the upstream's own
// status for API errors, 502 for transport failures.
func upstreamStatus(err error) int {
	var apiErr *sfu.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return http.StatusBadGateway
}
