// Package events defines the ops events the service emits when registrations
// fail, get retried, or are abandoned. Operator tooling consumes these from
// Kafka; tests use the memory publisher.
package events

import (
	"context"
	"sync"
	"time"
)

// Event types emitted by the registration and retry services.
const (
	TypeRegistrationFailed    = "registration_failed"
	TypeRetryScheduled        = "retry_scheduled"
	TypeRegistrationRecovered = "registration_recovered"
	TypeRegistrationAbandoned = "registration_abandoned"
)

// Event is a single ops event. Domain is the record key so per-domain
// ordering is preserved in the topic.
type Event struct {
	Type        string    `json:"type"`
	Domain      string    `json:"domain"`
	OrderID     string    `json:"order_id,omitempty"`
	OrderItemID string    `json:"order_item_id,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	RetryCount  int       `json:"retry_count,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// Publisher emits ops events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// NopPublisher drops every event. Used when Kafka is not configured.
type NopPublisher struct{}

func (NopPublisher) Publish(ctx context.Context, event Event) error { return nil }

// MemoryPublisher records events for assertions in tests.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []Event
}

func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{}
}

func (p *MemoryPublisher) Publish(ctx context.Context, event Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

// Events returns a copy of everything published so far.
func (p *MemoryPublisher) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Event, len(p.events))
	copy(out, p.events)
	return out
}
