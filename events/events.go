// Package events publishes notifications about launches and outcome writes.
package events

import (
	"context"
	"sync"
	"time"
)

// Type is the kind of an event
type Type string

// Event types
const (
	LaunchSucceeded Type = "launch.succeeded"
	LaunchFailed    Type = "launch.failed"
	OutcomeWritten  Type = "outcome.written"
)

// Event is a single notification
type Event struct {
	Type           Type      `json:"type"`
	Time           time.Time `json:"time"`
	ConsumerKey    string    `json:"consumer_key,omitempty"`
	ResourceLinkID string    `json:"resource_link_id,omitempty"`
	UserID         string    `json:"user_id,omitempty"`
	MessageType    string    `json:"message_type,omitempty"`
	// Reason is the error message of a failed launch
	Reason string `json:"reason,omitempty"`
	// Value is the outcome value of an outcome write
	Value string `json:"value,omitempty"`
}

// Publisher sends events
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// NopPublisher drops all events
type NopPublisher struct{}

// Publish implements Publisher
func (NopPublisher) Publish(context.Context, Event) error {
	return nil
}

// MemoryPublisher keeps all events in memory
type MemoryPublisher struct {
	mu     sync.Mutex
	events []Event
}

// Publish implements Publisher
func (p *MemoryPublisher) Publish(_ context.Context, e Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

// Events returns the published events in order
func (p *MemoryPublisher) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Event(nil), p.events...)
}
