package events

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Event is an in-process domain event keyed by the store it concerns.
type Event struct {
	Topic      string
	StoreID    string
	Payload    map[string]any
	OccurredAt time.Time
}

// Notifier reacts to emitted events (activation scheduling, logging, metrics).
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// Bus fans emitted events out to all configured notifiers. Notifier failures
// are joined and reported but never abort the emitting request.
type Bus struct {
	Notifiers []Notifier
}

// Emit dispatches the event to all configured notifiers.
func (b *Bus) Emit(ctx context.Context, topic, storeID string, payload map[string]any) error {
	if b == nil {
		return nil
	}
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return errors.New("events: topic is required")
	}
	if strings.TrimSpace(storeID) == "" {
		return errors.New("events: store id is required")
	}
	ev := Event{Topic: topic, StoreID: storeID, Payload: payload, OccurredAt: time.Now()}
	var joined error
	for _, notifier := range b.Notifiers {
		if notifier == nil {
			continue
		}
		if err := notifier.Notify(ctx, ev); err != nil {
			joined = errors.Join(joined, fmt.Errorf("events: notifier: %w", err))
		}
	}
	return joined
}
