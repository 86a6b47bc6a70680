package mocks

import (
	"context"
	"sync"

	"github.com/TahaNadeemkhan/todo-app-sub001/internal/events"
)

// RecordingPublisher collects every published envelope.
type RecordingPublisher struct {
	mu        sync.Mutex
	envelopes []*events.Envelope

	// PublishFn, when set, decides the result of each Publish call before
	// the envelope is recorded. A non-nil error skips recording.
	PublishFn func(env *events.Envelope) error
}

var _ events.Publisher = (*RecordingPublisher)(nil)

// Publish implements events.Publisher.
func (p *RecordingPublisher) Publish(_ context.Context, env *events.Envelope) error {
	if p.PublishFn != nil {
		if err := p.PublishFn(env); err != nil {
			return err
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.envelopes = append(p.envelopes, env)
	return nil
}

// Envelopes returns the recorded envelopes in publish order.
func (p *RecordingPublisher) Envelopes() []*events.Envelope {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*events.Envelope(nil), p.envelopes...)
}

// Named returns the recorded envelopes carrying the given event name.
func (p *RecordingPublisher) Named(name string) []*events.Envelope {
	var out []*events.Envelope
	for _, env := range p.Envelopes() {
		if env.Name() == name {
			out = append(out, env)
		}
	}
	return out
}
