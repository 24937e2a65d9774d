// Package events publishes lifecycle events: to RabbitMQ, to the log, or to memory for tests.
package events

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/trezcool/edusys/core"
)

// Publisher is a core.EventPublisher holding resources that must be released.
type Publisher interface {
	core.EventPublisher
	Close() error
}

// New returns the publisher selected by conf.Driver.
func New(conf core.EventsConfig, logger zerolog.Logger) (Publisher, error) {
	switch strings.ToLower(conf.Driver) {
	case "", "log":
		return NewLogPublisher(logger), nil
	case "rabbitmq":
		return NewRabbitMQPublisher(conf, logger)
	}
	return nil, fmt.Errorf("unknown events driver %q", conf.Driver)
}

type logPublisher struct {
	logger zerolog.Logger
}

// NewLogPublisher writes every event to logger.
func NewLogPublisher(logger zerolog.Logger) Publisher {
	return &logPublisher{logger: logger}
}

func (p *logPublisher) Publish(_ context.Context, evt core.Event) error {
	p.logger.Info().
		Str("type", evt.Type).
		Str("actor_id", evt.ActorID).
		Fields(evt.Payload).
		Time("occurred_at", evt.OccurredAt).
		Msg("event published")
	return nil
}

func (p *logPublisher) Close() error { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []core.Event
	Err    error // returned by Publish when set
}

var _ Publisher = (*Recorder)(nil)

func (r *Recorder) Publish(_ context.Context, evt core.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.events = append(r.events, evt)
	return nil
}

func (r *Recorder) Close() error { return nil }

// Events returns the recorded events, oldest first.
func (r *Recorder) Events() []core.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]core.Event{}, r.events...)
}

// Types returns the types of the recorded events, oldest first.
func (r *Recorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]string, 0, len(r.events))
	for _, evt := range r.events {
		types = append(types, evt.Type)
	}
	return types
}
