package messaging

import (
	"context"
	"sync"
	"testing"
	"time"

	"canvashistory/domain/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type collectingPublisher struct {
	mu      sync.Mutex
	batches [][]events.DomainEvent
}

func (c *collectingPublisher) Publish(ctx context.Context, event events.DomainEvent) error {
	return c.PublishBatch(ctx, []events.DomainEvent{event})
}

func (c *collectingPublisher) PublishBatch(_ context.Context, evs []events.DomainEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.batches = append(c.batches, append([]events.DomainEvent(nil), evs...))
	return nil
}

func (c *collectingPublisher) total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, b := range c.batches {
		n += len(b)
	}
	return n
}

func event(i int) events.DomainEvent {
	return events.NewHistoryCleared("s", i, time.Unix(int64(i), 0))
}

func TestAsyncPublisher_BatchesAndFlushesOnClose(t *testing.T) {
	next := &collectingPublisher{}
	p := NewAsyncPublisher(next, AsyncConfig{BatchSize: 4, FlushInterval: time.Hour}, zap.NewNop())

	for i := 0; i < 10; i++ {
		require.NoError(t, p.Publish(context.Background(), event(i)))
	}
	require.NoError(t, p.Close(context.Background()))

	assert.Equal(t, 10, next.total())
	assert.Len(t, next.batches, 3)
	assert.ErrorIs(t, p.Publish(context.Background(), event(11)), ErrPublisherClosed)
	require.NoError(t, p.Close(context.Background()))
}

func TestAsyncPublisher_FlushesOnInterval(t *testing.T) {
	next := &collectingPublisher{}
	p := NewAsyncPublisher(next, AsyncConfig{BatchSize: 100, FlushInterval: 10 * time.Millisecond}, zap.NewNop())
	defer func() { _ = p.Close(context.Background()) }()

	require.NoError(t, p.PublishBatch(context.Background(), []events.DomainEvent{event(1), event(2)}))

	assert.Eventually(t, func() bool { return next.total() == 2 }, time.Second, 5*time.Millisecond)
}

type blockingPublisher struct {
	release chan struct{}
}

func (b *blockingPublisher) Publish(ctx context.Context, e events.DomainEvent) error {
	return b.PublishBatch(ctx, nil)
}

func (b *blockingPublisher) PublishBatch(context.Context, []events.DomainEvent) error {
	<-b.release
	return nil
}

func TestAsyncPublisher_BufferFull(t *testing.T) {
	next := &blockingPublisher{release: make(chan struct{})}
	p := NewAsyncPublisher(next, AsyncConfig{BufferSize: 1, BatchSize: 1, FlushInterval: time.Hour}, zap.NewNop())

	require.NoError(t, p.Publish(context.Background(), event(1)))
	// The worker takes event 1 and blocks in the downstream call.
	assert.Eventually(t, func() bool {
		return p.Publish(context.Background(), event(2)) == nil
	}, time.Second, time.Millisecond)
	assert.ErrorIs(t, p.Publish(context.Background(), event(3)), ErrBufferFull)

	close(next.release)
	require.NoError(t, p.Close(context.Background()))
}

func TestLogPublisher(t *testing.T) {
	p := NewLogPublisher(zap.NewNop())
	assert.NoError(t, p.Publish(context.Background(), event(1)))
	assert.NoError(t, p.PublishBatch(context.Background(), []events.DomainEvent{event(1), event(2)}))
}
