package events

// TopicFront is the topic the dashboard stream listens on. Webhook ingest
// publishes everything browser-facing here.
const TopicFront = "front"

// Known envelope types. The discriminator is open ended; consumers must
// tolerate types they do not recognize.
const (
	TypeConnected           = "connected"
	TypeAuthWebhookHit      = "auth_webhook.hit"
	TypeEventWebhookHit     = "event_webhook.hit"
	TypeConnectionCreated   = "connection.created"
	TypeConnectionUpdated   = "connection.updated"
	TypeConnectionDestroyed = "connection.destroyed"
	TypeSessionCreated      = "session.created"
	TypeSessionUpdated      = "session.updated"
	TypeRecordingStarted    = "recording.started"
	TypeRecordingReport     = "recording.report"
)

// Envelope is the unit of communication between webhook producers and stream
// subscribers. Type is always set; every other field is optional and only
// interpreted by consumers that recognize the type. Envelopes are immutable
// once published.
type Envelope struct {
	Type         string `json:"type"`
	ConnectionID string `json:"connectionId,omitempty"`
	ChannelID    string `json:"channelId,omitempty"`
	Payload      any    `json:"payload,omitempty"`
	Timestamp    int64  `json:"ts,omitempty"`
}
