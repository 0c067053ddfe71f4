package sessions

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"canvashistory/domain/canvas"
	"canvashistory/domain/events"
	pkgerrors "canvashistory/pkg/errors"
	"canvashistory/pkg/observability"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.DomainEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, event events.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) PublishBatch(ctx context.Context, evs []events.DomainEvent) error {
	for _, ev := range evs {
		if err := p.Publish(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.GetEventType())
	}
	return out
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestRegistry(t *testing.T, cfg Config) (*Registry, *recordingPublisher, *observability.Collector) {
	t.Helper()
	pub := &recordingPublisher{}
	metrics := observability.NewCollector("test")
	r := NewRegistry(cfg, pub, metrics, zap.NewNop())
	t.Cleanup(r.Shutdown)
	return r, pub, metrics
}

func TestRegistry_OpenGetClose(t *testing.T) {
	r, pub, metrics := newTestRegistry(t, Config{HistoryLimit: 10})
	ctx := context.Background()

	s, err := r.Open(ctx, "board-1", "alice")
	require.NoError(t, err)
	assert.NotEmpty(t, s.ID)
	assert.Equal(t, 10, s.History.State().Limit)
	assert.Equal(t, 1, r.Len())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ActiveSessions))

	got, err := r.Get(s.ID, "alice")
	require.NoError(t, err)
	assert.Same(t, s, got)

	_, err = r.Get(s.ID, "bob")
	assert.True(t, pkgerrors.IsForbidden(err))

	_, err = r.Get("missing", "alice")
	assert.True(t, pkgerrors.IsNotFound(err))

	assert.True(t, pkgerrors.IsForbidden(r.Close(ctx, s.ID, "bob")))
	require.NoError(t, r.Close(ctx, s.ID, "alice"))
	assert.Equal(t, 0, r.Len())
	assert.True(t, pkgerrors.IsNotFound(r.Close(ctx, s.ID, "alice")))

	select {
	case <-s.Done():
	default:
		t.Fatal("closed session should be done")
	}

	assert.Equal(t, []string{events.TypeSessionOpened, events.TypeSessionClosed}, pub.types())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.SessionsClosed.WithLabelValues(ReasonClosed)))
}

func TestRegistry_SessionsAreIsolated(t *testing.T) {
	r, _, _ := newTestRegistry(t, Config{})
	ctx := context.Background()

	a, err := r.Open(ctx, "board", "alice")
	require.NoError(t, err)
	b, err := r.Open(ctx, "board", "alice")
	require.NoError(t, err)

	a.History.SaveState([]canvas.Node{{ID: "1", Position: canvas.NewPosition(0, 0)}}, nil)
	assert.Equal(t, 1, a.History.Len())
	assert.Equal(t, 0, b.History.Len())
}

func TestRegistry_MaxSessions(t *testing.T) {
	r, _, _ := newTestRegistry(t, Config{MaxSessions: 2})
	ctx := context.Background()

	_, err := r.Open(ctx, "b", "u")
	require.NoError(t, err)
	s, err := r.Open(ctx, "b", "u")
	require.NoError(t, err)

	_, err = r.Open(ctx, "b", "u")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsConflict(err))
	assert.Equal(t, pkgerrors.CodeSessionLimit, pkgerrors.GetAppError(err).Code)

	require.NoError(t, r.Close(ctx, s.ID, "u"))
	_, err = r.Open(ctx, "b", "u")
	assert.NoError(t, err)
}

func TestRegistry_SweepEvictsIdle(t *testing.T) {
	clk := &clock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	r, pub, _ := newTestRegistry(t, Config{
		IdleTimeout:   10 * time.Minute,
		SweepInterval: time.Hour,
		Now:           clk.Now,
	})
	ctx := context.Background()

	stale, err := r.Open(ctx, "b", "u")
	require.NoError(t, err)
	clk.Advance(8 * time.Minute)
	fresh, err := r.Open(ctx, "b", "u")
	require.NoError(t, err)

	clk.Advance(5 * time.Minute)
	assert.Equal(t, 1, r.sweep(ctx))

	_, err = r.Get(stale.ID, "u")
	assert.True(t, pkgerrors.IsNotFound(err))
	_, err = r.Get(fresh.ID, "u")
	assert.NoError(t, err)

	closed := pub.events[len(pub.events)-1].(events.SessionClosed)
	assert.Equal(t, ReasonIdle, closed.Reason)
	assert.Equal(t, stale.ID, closed.AggregateID)
}

func TestRegistry_GetRefreshesIdleClock(t *testing.T) {
	clk := &clock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	r, _, _ := newTestRegistry(t, Config{IdleTimeout: 10 * time.Minute, Now: clk.Now})
	ctx := context.Background()

	s, err := r.Open(ctx, "b", "u")
	require.NoError(t, err)

	clk.Advance(9 * time.Minute)
	_, err = r.Get(s.ID, "u")
	require.NoError(t, err)
	clk.Advance(9 * time.Minute)

	assert.Equal(t, 0, r.sweep(ctx))
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_SetHistoryDefaults(t *testing.T) {
	r, _, _ := newTestRegistry(t, Config{HistoryLimit: 50})
	ctx := context.Background()

	before, err := r.Open(ctx, "b", "u")
	require.NoError(t, err)
	r.SetHistoryDefaults(5, time.Second)
	after, err := r.Open(ctx, "b", "u")
	require.NoError(t, err)

	assert.Equal(t, 50, before.History.State().Limit)
	assert.Equal(t, 5, after.History.State().Limit)
}

func TestRegistry_PublishFailureDoesNotFailOpen(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("bus down")}
	metrics := observability.NewCollector("test")
	r := NewRegistry(Config{}, pub, metrics, zap.NewNop())
	defer r.Shutdown()

	_, err := r.Open(context.Background(), "b", "u")
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.EventsPublished.WithLabelValues(events.TypeSessionOpened, "error")))
}

func TestRegistry_ShutdownStopsJanitor(t *testing.T) {
	r := NewRegistry(Config{IdleTimeout: time.Minute, SweepInterval: time.Millisecond},
		&recordingPublisher{}, observability.NewCollector("test"), zap.NewNop())

	s, err := r.Open(context.Background(), "b", "u")
	require.NoError(t, err)

	r.Shutdown()
	r.Shutdown()

	assert.Equal(t, 0, r.Len())
	<-s.Done()
	goleak.VerifyNone(t)
}
