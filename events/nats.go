package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
)

// Envelope wraps an event payload for external consumers
type Envelope struct {
	EventID   string          `json:"event_id"`
	EventType string          `json:"event_type"`
	Timestamp time.Time       `json:"timestamp"`
	Source    string          `json:"source"`
	Payload   json.RawMessage `json:"payload"`
}

// NATSForwarder relays bus events to NATS subjects so external systems
// (custody/ledger, notification services) can react to engine activity.
// Publishing is best-effort: the engine's state has already committed by the
// time an event reaches the bus.
type NATSForwarder struct {
	conn          *nats.Conn
	subjectPrefix string
}

// NewNATSForwarder connects to NATS and returns a forwarder
func NewNATSForwarder(url, subjectPrefix string) (*NATSForwarder, error) {
	conn, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &NATSForwarder{conn: conn, subjectPrefix: subjectPrefix}, nil
}

// Attach subscribes the forwarder to every engine event type on the bus
func (f *NATSForwarder) Attach(bus *Bus) {
	for _, eventType := range []EventType{
		EventTypeCampaignCreated,
		EventTypeWagerPlaced,
		EventTypeCampaignStateChange,
		EventTypeCampaignResolved,
		EventTypePositionClaimed,
	} {
		bus.Subscribe(eventType, f.forward)
	}
}

// Close drains the NATS connection
func (f *NATSForwarder) Close() {
	if err := f.conn.Drain(); err != nil {
		log.WithError(err).Warn("Failed to drain NATS connection")
	}
}

func (f *NATSForwarder) forward(ctx context.Context, event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.WithError(err).WithField("eventType", event.Type()).Error("Failed to marshal event payload")
		return
	}

	envelope := Envelope{
		EventID:   uuid.New().String(),
		EventType: string(event.Type()),
		Timestamp: time.Now().UTC(),
		Source:    "hattery",
		Payload:   payload,
	}

	data, err := json.Marshal(envelope)
	if err != nil {
		log.WithError(err).Error("Failed to marshal event envelope")
		return
	}

	subject := fmt.Sprintf("%s.%s", f.subjectPrefix, event.Type())
	if err := f.conn.Publish(subject, data); err != nil {
		log.WithFields(log.Fields{
			"subject": subject,
			"error":   err,
		}).Error("Failed to publish event to NATS")
	}
}
