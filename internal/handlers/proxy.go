package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/sfuops/sora-console/internal/sfu"
)

func (a *API) setCORS(w http.ResponseWriter, methods string) {
	h := w.Header()
	h.Set("Access-Control-Allow-Origin", a.allowOrigin)
	h.Set("Access-Control-Allow-Credentials", "true")
	h.Set("Access-Control-Allow-Methods", methods)
	h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+sfu.TargetHeader)
}

func (a *API) handlePreflight(w http.ResponseWriter, r *http.Request) {
	a.setCORS(w, "GET,POST,PUT,PATCH,DELETE,OPTIONS")
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleProxyMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	a.setCORS(w, "GET,POST,PUT,PATCH,DELETE,OPTIONS")
	writeError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
}

// handleProxy relays the raw request body to the Sora API. The operation is
// taken from the client's x-sora-target header, defaulting to ListSessions;
// the upstream response passes through untouched, status included.
func (a *API) handleProxy(w http.ResponseWriter, r *http.Request) {
	a.setCORS(w, "GET,POST,PUT,PATCH,DELETE,OPTIONS")

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "read request body")
		return
	}

	target := r.Header.Get(sfu.TargetHeader)
	if target == "" {
		target = sfu.TargetListSessions
	}

	res, err := a.sora.Forward(r.Context(), target, body)
	if err != nil {
		a.log.Error().Err(err).Str("target", target).Msg("proxy upstream failed")
		writeError(w, http.StatusBadGateway, fmt.Sprintf("proxy failed: %v", err))
		return
	}

	w.Header().Set("Content-Type", res.ContentType)
	w.WriteHeader(res.Status)
	_, _ = w.Write(res.Body)
}

// handleRecording starts or stops a server-side recording. A body carrying
// format or split_only is a start request, anything else a stop, mirroring
// the dashboard's wire contract.
func (a *API) handleRecording(w http.ResponseWriter, r *http.Request) {
	a.setCORS(w, "POST,OPTIONS")

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "read request body")
		return
	}

	var req struct {
		ChannelID     string `json:"channel_id"`
		Format        string `json:"format"`
		ExpireTime    int    `json:"expire_time"`
		SplitDuration int    `json:"split_duration"`
		SplitOnly     *bool  `json:"split_only"`
		Metadata      any    `json:"metadata"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	var (
		result  json.RawMessage
		callErr error
	)
	if req.Format != "" || req.SplitOnly != nil {
		start := sfu.StartRecordingRequest{
			ChannelID:     req.ChannelID,
			Format:        req.Format,
			ExpireTime:    req.ExpireTime,
			SplitDuration: req.SplitDuration,
			Metadata:      req.Metadata,
		}
		if req.SplitOnly != nil {
			start.SplitOnly = *req.SplitOnly
		}
		result, callErr = a.sora.StartRecording(r.Context(), start)
	} else {
		result, callErr = a.sora.StopRecording(r.Context(), req.ChannelID)
	}

	if callErr != nil {
		a.log.Error().Err(callErr).Str("channel_id", req.ChannelID).Msg("recording call failed")
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("recording api failed: %v", callErr))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result)
}
