package messaging

import (
	"context"
	"errors"
	"sync"
	"time"

	"canvashistory/application/ports"
	"canvashistory/domain/events"

	"go.uber.org/zap"
)

// ErrBufferFull is returned when the async buffer cannot take another event
var ErrBufferFull = errors.New("event buffer full")

// ErrPublisherClosed is returned by Publish after Close
var ErrPublisherClosed = errors.New("event publisher closed")

// AsyncConfig tunes the AsyncPublisher
type AsyncConfig struct {
	BufferSize    int
	BatchSize     int
	FlushInterval time.Duration
	// PublishTimeout bounds a single call to the downstream publisher.
	PublishTimeout time.Duration
}

// AsyncPublisher queues events and forwards them in batches from a
// background worker so that request handlers never wait on the bus.
type AsyncPublisher struct {
	next   ports.EventPublisher
	cfg    AsyncConfig
	logger *zap.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan events.DomainEvent
	done   chan struct{}
}

// NewAsyncPublisher starts the worker. Call Close to flush and stop it.
func NewAsyncPublisher(next ports.EventPublisher, cfg AsyncConfig, logger *zap.Logger) *AsyncPublisher {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1024
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = time.Second
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 5 * time.Second
	}

	p := &AsyncPublisher{
		next:   next,
		cfg:    cfg,
		logger: logger,
		queue:  make(chan events.DomainEvent, cfg.BufferSize),
		done:   make(chan struct{}),
	}
	go p.run()
	return p
}

// Publish enqueues the event without blocking
func (p *AsyncPublisher) Publish(_ context.Context, event events.DomainEvent) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPublisherClosed
	}
	select {
	case p.queue <- event:
		return nil
	default:
		return ErrBufferFull
	}
}

// PublishBatch enqueues every event, stopping at the first failure
func (p *AsyncPublisher) PublishBatch(ctx context.Context, domainEvents []events.DomainEvent) error {
	for _, event := range domainEvents {
		if err := p.Publish(ctx, event); err != nil {
			return err
		}
	}
	return nil
}

// Close stops accepting events and waits until the queue is flushed or
// ctx is done.
func (p *AsyncPublisher) Close(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()

	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *AsyncPublisher) run() {
	defer close(p.done)

	ticker := time.NewTicker(p.cfg.FlushInterval)
	defer ticker.Stop()

	batch := make([]events.DomainEvent, 0, p.cfg.BatchSize)
	for {
		select {
		case event, ok := <-p.queue:
			if !ok {
				p.flush(batch)
				return
			}
			batch = append(batch, event)
			if len(batch) >= p.cfg.BatchSize {
				p.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				p.flush(batch)
				batch = batch[:0]
			}
		}
	}
}

func (p *AsyncPublisher) flush(batch []events.DomainEvent) {
	if len(batch) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.PublishTimeout)
	defer cancel()

	if err := p.next.PublishBatch(ctx, batch); err != nil {
		p.logger.Error("Failed to forward events",
			zap.Int("count", len(batch)),
			zap.Error(err),
		)
	}
}
