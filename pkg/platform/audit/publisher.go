package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Publisher captures structured audit events and forwards them to one or
// more sinks. By default Emit appends synchronously; with an async buffer a
// background worker drains events so hot paths never wait on slow sinks.
type Publisher struct {
	sinks  []Sink
	logger *slog.Logger

	inbox  chan Event
	done   chan struct{}
	closed sync.Once
}

// PublisherOption configures a Publisher.
type PublisherOption func(*Publisher)

// WithAsyncBuffer enables asynchronous publishing with the given buffer size.
// When the buffer is full, events are dropped with a warning rather than
// blocking the caller.
func WithAsyncBuffer(size int) PublisherOption {
	return func(p *Publisher) {
		if size > 0 {
			p.inbox = make(chan Event, size)
		}
	}
}

// WithPublisherLogger sets the structured logger.
func WithPublisherLogger(logger *slog.Logger) PublisherOption {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// NewPublisher constructs a publisher over the given sinks.
func NewPublisher(sinks []Sink, opts ...PublisherOption) *Publisher {
	p := &Publisher{
		sinks:  sinks,
		logger: slog.Default(),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.inbox != nil {
		go p.drain()
	}
	return p
}

// Emit records an audit event. In async mode a full buffer drops the event.
func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if p.inbox == nil {
		p.append(ctx, event)
		return nil
	}

	select {
	case p.inbox <- event:
	default:
		p.logger.Warn("audit buffer full, dropping event", "action", event.Action)
	}
	return nil
}

// Close stops the background worker after draining buffered events.
func (p *Publisher) Close() {
	p.closed.Do(func() {
		if p.inbox != nil {
			close(p.inbox)
			<-p.done
		}
	})
}

func (p *Publisher) drain() {
	defer close(p.done)
	for event := range p.inbox {
		p.append(context.Background(), event)
	}
}

func (p *Publisher) append(ctx context.Context, event Event) {
	for _, sink := range p.sinks {
		if err := sink.Append(ctx, event); err != nil {
			p.logger.WarnContext(ctx, "audit sink append failed", "error", err, "action", event.Action)
		}
	}
}
