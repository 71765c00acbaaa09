// Package sfu talks to the Sora signaling API. Operations are dispatched by
// the x-sora-target header against a single POST endpoint.
package sfu

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// TargetHeader selects the Sora API operation.
const TargetHeader = "x-sora-target"

// Sora API operation targets.
const (
	TargetListSessions         = "Sora_20231220.ListSessions"
	TargetListConnections      = "Sora_20231220.ListConnections"
	TargetDisconnectConnection = "Sora_20231220.DisconnectConnection"
	TargetStartRecording       = "Sora_20231220.StartRecording"
	TargetStopRecording        = "Sora_20231220.StopRecording"
)

// APIError reports a non-2xx response from the Sora API.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("sora api: status %d: %s", e.Status, e.Body)
}

// ForwardResult is a verbatim upstream response, for transparent proxying.
type ForwardResult struct {
	Status      int
	ContentType string
	Body        []byte
}

// Client issues requests against one Sora API endpoint.
type Client struct {
	apiURL string
	http   *http.Client
	log    zerolog.Logger
}

// NewClient creates a client for the Sora API at apiURL.
func NewClient(apiURL string, log zerolog.Logger) *Client {
	return &Client{
		apiURL: apiURL,
		http:   &http.Client{Timeout: 15 * time.Second},
		log:    log,
	}
}

// Forward posts body to the Sora API with the given dispatch target and
// returns the response verbatim, whatever its status. An empty body is sent
// as an empty JSON object, which Sora requires.
func (c *Client) Forward(ctx context.Context, target string, body []byte) (*ForwardResult, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		body = []byte("{}")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(TargetHeader, target)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sora api %s: %w", target, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("sora api %s: read response: %w", target, err)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/json"
	}

	c.log.Debug().Str("target", target).Int("status", resp.StatusCode).Msg("sora api call")
	return &ForwardResult{Status: resp.StatusCode, ContentType: contentType, Body: data}, nil
}

// Do is Forward with non-2xx statuses surfaced as *APIError.
func (c *Client) Do(ctx context.Context, target string, body []byte) ([]byte, error) {
	res, err := c.Forward(ctx, target, body)
	if err != nil {
		return nil, err
	}
	if res.Status < 200 || res.Status > 299 {
		return nil, &APIError{Status: res.Status, Body: string(res.Body)}
	}
	return res.Body, nil
}

// Session is one active session as reported by ListSessions.
type Session struct {
	ID        string `json:"id"`
	Name      string `json:"name,omitempty"`
	ChannelID string `json:"channel_id,omitempty"`
	Status    string `json:"status,omitempty"`
	StartTime string `json:"start_time,omitempty"`
}

// Connection is one active connection as reported by ListConnections.
type Connection struct {
	ConnectionID string `json:"connection_id"`
	ChannelID    string `json:"channel_id"`
	ClientID     string `json:"client_id,omitempty"`
}

// StartRecordingRequest shapes a StartRecording call.
type StartRecordingRequest struct {
	ChannelID     string `json:"channel_id"`
	Format        string `json:"format,omitempty"`
	ExpireTime    int    `json:"expire_time,omitempty"`
	SplitDuration int    `json:"split_duration,omitempty"`
	SplitOnly     bool   `json:"split_only,omitempty"`
	Metadata      any    `json:"metadata,omitempty"`
}

// ListSessions returns the active sessions.
func (c *Client) ListSessions(ctx context.Context) ([]Session, error) {
	data, err := c.Do(ctx, TargetListSessions, nil)
	if err != nil {
		return nil, err
	}
	var sessions []Session
	if err := json.Unmarshal(data, &sessions); err != nil {
		return nil, fmt.Errorf("decode sessions: %w", err)
	}
	return sessions, nil
}

// ListConnections returns the active connections on channelID. An empty
// channelID lists all connections.
func (c *Client) ListConnections(ctx context.Context, channelID string) ([]Connection, error) {
	var body []byte
	if channelID != "" {
		body, _ = json.Marshal(map[string]string{"channel_id": channelID})
	}
	data, err := c.Do(ctx, TargetListConnections, body)
	if err != nil {
		return nil, err
	}
	var conns []Connection
	if err := json.Unmarshal(data, &conns); err != nil {
		return nil, fmt.Errorf("decode connections: %w", err)
	}
	return conns, nil
}

// DisconnectConnection drops one client from a channel.
func (c *Client) DisconnectConnection(ctx context.Context, channelID, connectionID string) error {
	body, _ := json.Marshal(map[string]string{
		"channel_id":    channelID,
		"connection_id": connectionID,
	})
	_, err := c.Do(ctx, TargetDisconnectConnection, body)
	return err
}

// StartRecording begins a server-side recording and returns the raw upstream
// response.
func (c *Client) StartRecording(ctx context.Context, req StartRecordingRequest) (json.RawMessage, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	return c.Do(ctx, TargetStartRecording, body)
}

// StopRecording stops the recording on channelID and returns the raw upstream
// response.
func (c *Client) StopRecording(ctx context.Context, channelID string) (json.RawMessage, error) {
	body, _ := json.Marshal(map[string]string{"channel_id": channelID})
	return c.Do(ctx, TargetStopRecording, body)
}
