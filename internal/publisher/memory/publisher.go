// Package memory provides an in-process completion publisher, used by tests
// and by deployments that run without Pub/Sub.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/crawlkit/crawlkit/internal/crawler"
)

// Event is one completion notification retained by the publisher. Payload is
// the worker's completion map (task_id, status, page counters, timestamp).
type Event struct {
	ID      string
	Topic   string
	Payload any
}

// Publisher retains completion events in memory so tests can assert on what
// the worker announced.
type Publisher struct {
	mu     sync.RWMutex
	events []Event
}

var _ crawler.Publisher = (*Publisher)(nil)

// New returns an empty Publisher.
func New() *Publisher {
	return &Publisher{}
}

// Publish retains the event and returns a synthetic sequential message ID.
func (p *Publisher) Publish(_ context.Context, topic string, payload any) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := fmt.Sprintf("mem-%d", len(p.events)+1)
	p.events = append(p.events, Event{ID: id, Topic: topic, Payload: payload})
	return id, nil
}

// Events returns a copy of everything published so far, in publish order.
func (p *Publisher) Events() []Event {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Event, len(p.events))
	copy(out, p.events)
	return out
}

// ForTopic returns the retained events published to topic.
func (p *Publisher) ForTopic(topic string) []Event {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []Event
	for _, evt := range p.events {
		if evt.Topic == topic {
			out = append(out, evt)
		}
	}
	return out
}
