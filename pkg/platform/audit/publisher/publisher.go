// Package publisher fans audit events out to the primary store and any
// configured mirror sinks. Emit never blocks callers on slow sinks when an
// async buffer is configured.
package publisher

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	id "sharereg/pkg/domain"
	audit "sharereg/pkg/platform/audit"
)

var ErrBufferFull = errors.New("audit buffer full")

// Store is the primary audit store. It must support reads so the registry can
// show recent activity.
type Store interface {
	audit.Store
	ListRecent(ctx context.Context, tenantID id.TenantID, limit int) ([]audit.Event, error)
}

type Publisher struct {
	store  Store
	sinks  []audit.Store
	logger *slog.Logger
	now    func() time.Time

	buffer chan audit.Event
	wg     sync.WaitGroup
	once   sync.Once
}

type Option func(*Publisher)

// WithAsyncBuffer makes Emit enqueue events for a background goroutine.
// Events are dropped with ErrBufferFull when the buffer is saturated.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		if size > 0 {
			p.buffer = make(chan audit.Event, size)
		}
	}
}

// WithSink mirrors every persisted event to an additional store, such as a
// Kafka topic. Sink failures are logged and never surface to callers.
func WithSink(sink audit.Store) Option {
	return func(p *Publisher) {
		if sink != nil {
			p.sinks = append(p.sinks, sink)
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func WithClock(now func() time.Time) Option {
	return func(p *Publisher) {
		p.now = now
	}
}

func NewPublisher(store Store, opts ...Option) *Publisher {
	p := &Publisher{
		store:  store,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.buffer != nil {
		p.wg.Add(1)
		go p.drain()
	}
	return p
}

func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = p.now()
	}
	if p.buffer == nil {
		return p.write(ctx, event)
	}
	select {
	case p.buffer <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		p.logger.Warn("audit buffer full, dropping event",
			"action", event.Action,
			"entity_type", event.EntityType,
			"entity_id", event.EntityID,
		)
		return ErrBufferFull
	}
}

// List returns up to limit recent events for the tenant, newest first.
func (p *Publisher) List(ctx context.Context, tenantID id.TenantID, limit int) ([]audit.Event, error) {
	return p.store.ListRecent(ctx, tenantID, limit)
}

// Close stops accepting async events and waits for the buffer to drain.
func (p *Publisher) Close() {
	p.once.Do(func() {
		if p.buffer != nil {
			close(p.buffer)
			p.wg.Wait()
		}
	})
}

func (p *Publisher) drain() {
	defer p.wg.Done()
	for event := range p.buffer {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := p.write(ctx, event); err != nil {
			p.logger.Error("failed to persist audit event", "error", err, "action", event.Action)
		}
		cancel()
	}
}

func (p *Publisher) write(ctx context.Context, event audit.Event) error {
	if err := p.store.Append(ctx, event); err != nil {
		return err
	}
	for _, sink := range p.sinks {
		if err := sink.Append(ctx, event); err != nil {
			p.logger.WarnContext(ctx, "audit sink append failed",
				"error", err,
				"action", event.Action,
				"entity_type", event.EntityType,
			)
		}
	}
	return nil
}
