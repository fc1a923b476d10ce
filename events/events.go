package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventTypeCampaignCreated     EventType = "campaign_created"
	EventTypeWagerPlaced         EventType = "wager_placed"
	EventTypeCampaignStateChange EventType = "campaign_state_change"
	EventTypeCampaignResolved    EventType = "campaign_resolved"
	EventTypePositionClaimed     EventType = "position_claimed"
)

// Event is the base interface for all events
type Event interface {
	Type() EventType
}

// CampaignCreatedEvent represents a newly opened campaign
type CampaignCreatedEvent struct {
	CampaignID uuid.UUID
	CreatorID  string
	TokenName  string
	ClosesAt   time.Time
}

func (e CampaignCreatedEvent) Type() EventType {
	return EventTypeCampaignCreated
}

// WagerPlacedEvent represents a stake admitted into a pool
type WagerPlacedEvent struct {
	CampaignID uuid.UUID
	PositionID uuid.UUID
	OwnerID    string
	Side       string
	Amount     int64
}

func (e WagerPlacedEvent) Type() EventType {
	return EventTypeWagerPlaced
}

// CampaignStateChangeEvent represents a campaign lifecycle transition
type CampaignStateChangeEvent struct {
	CampaignID uuid.UUID
	OldState   string
	NewState   string
}

func (e CampaignStateChangeEvent) Type() EventType {
	return EventTypeCampaignStateChange
}

// CampaignResolvedEvent represents a campaign whose winning side was fixed
type CampaignResolvedEvent struct {
	CampaignID  uuid.UUID
	ResolverID  string
	WinningSide string
	TotalPot    int64
}

func (e CampaignResolvedEvent) Type() EventType {
	return EventTypeCampaignResolved
}

// PositionClaimedEvent represents a payout or refund disbursement
type PositionClaimedEvent struct {
	CampaignID uuid.UUID
	PositionID uuid.UUID
	OwnerID    string
	Amount     int64
	Refund     bool
}

func (e PositionClaimedEvent) Type() EventType {
	return EventTypePositionClaimed
}

// Handler is a function that handles events
type Handler func(ctx context.Context, event Event)

// Bus manages event subscriptions and dispatching
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
}

// NewBus creates a new event bus
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[EventType][]Handler),
	}
}

// Subscribe adds a handler for a specific event type
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)

	log.WithFields(log.Fields{
		"eventType":    eventType,
		"handlerCount": len(b.handlers[eventType]),
	}).Debug("Subscribed handler to event type")
}

// Emit publishes an event to all registered handlers
func (b *Bus) Emit(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers[event.Type()]))
	copy(handlers, b.handlers[event.Type()])
	b.mu.RUnlock()

	// Call handlers asynchronously to avoid blocking
	for i, handler := range handlers {
		go func(h Handler, handlerIndex int) {
			defer func() {
				if r := recover(); r != nil {
					log.WithFields(log.Fields{
						"eventType":    event.Type(),
						"handlerIndex": handlerIndex,
						"panic":        r,
					}).Error("Event handler panicked")
				}
			}()
			h(ctx, event)
		}(handler, i)
	}
}

// TransactionalBus holds pending events coupled to a unit of work and
// flushes them to the underlying bus only after a successful commit.
type TransactionalBus struct {
	real    *Bus
	pending []Event // stashed until Flush
}

// NewTransactionalBus creates a transactional wrapper around a bus
func NewTransactionalBus(real *Bus) *TransactionalBus {
	return &TransactionalBus{real: real}
}

// Publish queues an event until the owning transaction commits
func (b *TransactionalBus) Publish(e Event) error {
	b.pending = append(b.pending, e)
	return nil
}

// Flush emits all pending events; called after successful DB commit
func (b *TransactionalBus) Flush(ctx context.Context) {
	// Events are emitted on a background context so a cancelled request
	// context cannot drop events for work that already committed.
	eventCtx := context.Background()

	for _, ev := range b.pending {
		b.real.Emit(eventCtx, ev)
	}
	b.pending = nil
}

// Discard drops pending events; called after rollback
func (b *TransactionalBus) Discard() {
	b.pending = nil
}
