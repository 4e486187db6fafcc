package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alanyoungcy/tontine/internal/domain"
)

// Envelope types pushed to WebSocket clients.
const (
	TypeDashboard    = "dashboard"
	TypeNotification = "notification"
	TypeStatus       = "status"
)

// ChannelPattern matches every per-user dashboard channel.
const ChannelPattern = "ch:dashboard:*"

// Channel is the pub/sub channel carrying userID's updates.
func Channel(userID string) string { return "ch:dashboard:" + userID }

// Envelope is the JSON text frame sent to clients and carried on the bus.
type Envelope struct {
	Type    string          `json:"type"`
	UserID  string          `json:"user_id,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

// Notification is a transient banner. TTLMS tells the client when to hide
// it.
type Notification struct {
	Kind  string `json:"kind"`
	Text  string `json:"text"`
	TTLMS int64  `json:"ttl_ms"`
}

func newEnvelope(typ, userID string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: typ, UserID: userID, Payload: raw})
}

// Publisher puts dashboard updates on the signal bus for every hub to
// forward.
type Publisher struct {
	bus domain.SignalBus
	ttl time.Duration
}

// NewPublisher creates a Publisher. ttl is attached to every notification.
func NewPublisher(bus domain.SignalBus, ttl time.Duration) *Publisher {
	return &Publisher{bus: bus, ttl: ttl}
}

// PublishSummary sends a committed summary to its user's channel.
func (p *Publisher) PublishSummary(ctx context.Context, s domain.DashboardSummary) error {
	msg, err := newEnvelope(TypeDashboard, s.UserID, s)
	if err != nil {
		return fmt.Errorf("ws: encode summary: %w", err)
	}
	return p.bus.Publish(ctx, Channel(s.UserID), msg)
}

// PublishNotification sends a banner message to userID.
func (p *Publisher) PublishNotification(ctx context.Context, userID, kind, text string) error {
	msg, err := newEnvelope(TypeNotification, userID, Notification{
		Kind:  kind,
		Text:  text,
		TTLMS: p.ttl.Milliseconds(),
	})
	if err != nil {
		return fmt.Errorf("ws: encode notification: %w", err)
	}
	return p.bus.Publish(ctx, Channel(userID), msg)
}
