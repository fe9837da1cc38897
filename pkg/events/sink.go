package events

import (
	"context"
	"encoding/json"
	"fmt"
)

// Sink is the generic event-emission capability the core depends on,
// replacing the ambient daemonEvents-style global emitter named in the
// redesign notes. Components that produce domain events (contradiction
// detected, notification delivered, exploration finding surfaced, …) take a
// Sink by construction rather than reaching for a package-level emitter.
type Sink interface {
	Publish(ctx context.Context, kind string, sessionID string, payload any) error
}

// PublisherSink adapts *EventPublisher (NOTIFY/LISTEN backed) to Sink for
// domain events that do not fit one of EventPublisher's typed timeline
// methods. It marshals payload, tags it with kind, and broadcasts it on the
// session's channel without persisting to the events table — domain events
// are transient signals, not replayable timeline history.
type PublisherSink struct {
	publisher *EventPublisher
}

func NewPublisherSink(publisher *EventPublisher) *PublisherSink {
	return &PublisherSink{publisher: publisher}
}

func (s *PublisherSink) Publish(ctx context.Context, kind string, sessionID string, payload any) error {
	envelope := struct {
		Type string `json:"type"`
		Data any    `json:"data"`
	}{Type: kind, Data: payload}

	raw, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("events: marshal %s payload: %w", kind, err)
	}
	return s.publisher.NotifyDomainEvent(ctx, sessionID, raw)
}

// FanOut composes multiple sinks behind one Sink. Publish calls every
// member; a failure on one member is logged by the caller's wrapping but
// does not stop the others from receiving the event (no single consumer can
// make the others miss an event).
type FanOut struct {
	sinks []Sink
}

func NewFanOut(sinks ...Sink) *FanOut {
	return &FanOut{sinks: sinks}
}

func (f *FanOut) Publish(ctx context.Context, kind string, sessionID string, payload any) error {
	var firstErr error
	for _, sink := range f.sinks {
		if err := sink.Publish(ctx, kind, sessionID, payload); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// NoopSink discards every event. Used where a Sink is required but no
// subscriber exists (tests, one-off scripts).
type NoopSink struct{}

func (NoopSink) Publish(ctx context.Context, kind string, sessionID string, payload any) error {
	return nil
}
