package amqp

import (
	"context"
	"sync"
)

// Publisher delivers dashboard events somewhere. Failures are for logging
// only; callers never surface them to users.
type Publisher interface {
	Publish(ctx context.Context, ev *DashboardEvent) error
}

// NoopPublisher drops every event. Used when AMQP_URL is unset.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, *DashboardEvent) error { return nil }

// RecordingPublisher keeps published events in memory.
type RecordingPublisher struct {
	mu     sync.Mutex
	events []DashboardEvent
}

func (r *RecordingPublisher) Publish(_ context.Context, ev *DashboardEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, *ev)
	return nil
}

// Events returns a copy of everything published so far.
func (r *RecordingPublisher) Events() []DashboardEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]DashboardEvent, len(r.events))
	copy(out, r.events)
	return out
}

// Types returns the event types in publish order.
func (r *RecordingPublisher) Types() []string {
	evs := r.Events()
	out := make([]string, len(evs))
	for i, e := range evs {
		out[i] = e.Type
	}
	return out
}

var (
	_ Publisher = NoopPublisher{}
	_ Publisher = (*RecordingPublisher)(nil)
	_ Publisher = (*Client)(nil)
)
