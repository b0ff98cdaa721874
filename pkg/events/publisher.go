package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

const publisherLogPrefix = "events:publisher"

// EventPublisher delivers player events to interested parties.
type EventPublisher interface {
	Publish(ctx context.Context, event *PlayerEvent) error
}

// NoOpPublisher discards every event.
type NoOpPublisher struct{}

// Publish is a no-op.
func (p *NoOpPublisher) Publish(_ context.Context, _ *PlayerEvent) error {
	return nil
}

// CallbackPublisher hands each event to a function (for testing).
type CallbackPublisher struct {
	callback func(ctx context.Context, event *PlayerEvent) error
}

// NewCallbackPublisher creates a new CallbackPublisher.
func NewCallbackPublisher(cb func(ctx context.Context, event *PlayerEvent) error) *CallbackPublisher {
	return &CallbackPublisher{callback: cb}
}

// Publish calls the callback.
func (p *CallbackPublisher) Publish(ctx context.Context, event *PlayerEvent) error {
	return p.callback(ctx, event)
}

// MultiPublisher sends every event to all of its publishers. One failing
// publisher does not stop delivery to the rest.
type MultiPublisher struct {
	publishers []EventPublisher
}

// NewMultiPublisher creates a MultiPublisher. Nil entries are skipped.
func NewMultiPublisher(publishers ...EventPublisher) *MultiPublisher {
	m := &MultiPublisher{}
	for _, p := range publishers {
		if p != nil {
			m.publishers = append(m.publishers, p)
		}
	}
	return m
}

// Publish delivers event to every publisher and joins their errors.
func (m *MultiPublisher) Publish(ctx context.Context, event *PlayerEvent) error {
	var errs []error
	for _, p := range m.publishers {
		if err := p.Publish(ctx, event); err != nil {
			slog.Warn(fmt.Sprintf("%s - %T failed for %s event: %v", publisherLogPrefix, p, event.Type, err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Len reports how many publishers receive events.
func (m *MultiPublisher) Len() int {
	return len(m.publishers)
}
