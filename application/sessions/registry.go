// Package sessions keeps the live editor sessions of this process. Each
// session owns one history manager; nothing is shared between sessions.
package sessions

import (
	"context"
	"sync"
	"time"

	"canvashistory/application/ports"
	"canvashistory/domain/events"
	"canvashistory/domain/history"
	pkgerrors "canvashistory/pkg/errors"
	"canvashistory/pkg/observability"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Close reasons carried by session.closed events and metrics
const (
	ReasonClosed   = "closed"
	ReasonIdle     = "idle"
	ReasonShutdown = "shutdown"
)

// Config bounds the registry
type Config struct {
	MaxSessions   int
	IdleTimeout   time.Duration
	SweepInterval time.Duration

	HistoryLimit   int
	RestoreTimeout time.Duration

	// Now is the clock; defaults to time.Now.
	Now func() time.Time
}

// Session is one editor's undo/redo context for one board
type Session struct {
	ID        string
	BoardID   string
	UserID    string
	CreatedAt time.Time
	History   *history.Manager

	mu         sync.Mutex
	lastAccess time.Time
	done       chan struct{}
}

// Done is closed when the session leaves the registry
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// LastAccess returns when the session was last looked up
func (s *Session) LastAccess() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAccess
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastAccess = now
	s.mu.Unlock()
}

// Registry owns all open sessions and evicts idle ones
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	cfgMu sync.RWMutex
	cfg   Config

	publisher ports.EventPublisher
	metrics   *observability.Collector
	logger    *zap.Logger
	now       func() time.Time

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewRegistry creates a registry and starts its idle janitor when an idle
// timeout is configured. Call Shutdown to stop it.
func NewRegistry(cfg Config, publisher ports.EventPublisher, metrics *observability.Collector, logger *zap.Logger) *Registry {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}

	r := &Registry{
		sessions:  make(map[string]*Session),
		cfg:       cfg,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
		now:       cfg.Now,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}

	if cfg.IdleTimeout > 0 {
		go r.janitor(cfg.SweepInterval)
	} else {
		close(r.done)
	}

	return r
}

// SetHistoryDefaults changes the history options used for sessions opened
// from now on. Open sessions keep their settings.
func (r *Registry) SetHistoryDefaults(limit int, restoreTimeout time.Duration) {
	r.cfgMu.Lock()
	r.cfg.HistoryLimit = limit
	r.cfg.RestoreTimeout = restoreTimeout
	r.cfgMu.Unlock()

	r.logger.Info("History defaults updated",
		zap.Int("limit", limit),
		zap.Duration("restoreTimeout", restoreTimeout),
	)
}

func (r *Registry) historyOptions() (int, time.Duration) {
	r.cfgMu.RLock()
	defer r.cfgMu.RUnlock()
	return r.cfg.HistoryLimit, r.cfg.RestoreTimeout
}

// Open creates a session with an empty history
func (r *Registry) Open(ctx context.Context, boardID, userID string) (*Session, error) {
	limit, restoreTimeout := r.historyOptions()
	now := r.now()
	id := uuid.NewString()

	session := &Session{
		ID:        id,
		BoardID:   boardID,
		UserID:    userID,
		CreatedAt: now,
		History: history.NewManager(history.Options{
			Limit:          limit,
			RestoreTimeout: restoreTimeout,
			Logger:         r.logger.With(zap.String("sessionID", id)),
			Now:            r.now,
		}),
		lastAccess: now,
		done:       make(chan struct{}),
	}

	r.mu.Lock()
	if r.cfg.MaxSessions > 0 && len(r.sessions) >= r.cfg.MaxSessions {
		r.mu.Unlock()
		return nil, pkgerrors.NewSessionLimitError(r.cfg.MaxSessions)
	}
	r.sessions[id] = session
	count := len(r.sessions)
	r.mu.Unlock()

	r.metrics.ActiveSessions.Set(float64(count))
	r.logger.Info("Session opened",
		zap.String("sessionID", id),
		zap.String("boardID", boardID),
		zap.String("userID", userID),
	)
	r.publish(ctx, events.NewSessionOpened(id, boardID, userID, session.History.State().Limit, now))

	return session, nil
}

// Get returns the session if it exists and belongs to userID
func (r *Registry) Get(sessionID, userID string) (*Session, error) {
	r.mu.RLock()
	session, ok := r.sessions[sessionID]
	r.mu.RUnlock()

	if !ok {
		return nil, pkgerrors.NewSessionNotFoundError()
	}
	if session.UserID != userID {
		return nil, pkgerrors.NewForbiddenError("session belongs to another user")
	}

	session.touch(r.now())
	return session, nil
}

// Close discards the session and its history
func (r *Registry) Close(ctx context.Context, sessionID, userID string) error {
	if _, err := r.Get(sessionID, userID); err != nil {
		return err
	}

	session, ok := r.remove(sessionID)
	if !ok {
		return pkgerrors.NewSessionNotFoundError()
	}
	r.closed(ctx, session, ReasonClosed)
	return nil
}

// Len returns the number of open sessions
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Shutdown stops the janitor and drops every session. It is safe to call
// more than once.
func (r *Registry) Shutdown() {
	r.closeOnce.Do(func() {
		close(r.stop)
		<-r.done

		r.mu.Lock()
		remaining := r.sessions
		r.sessions = make(map[string]*Session)
		r.mu.Unlock()

		for _, session := range remaining {
			session.History.ClearHistory()
			close(session.done)
			r.metrics.SessionsClosed.WithLabelValues(ReasonShutdown).Inc()
		}
		r.metrics.ActiveSessions.Set(0)
		r.logger.Info("Session registry stopped", zap.Int("dropped", len(remaining)))
	})
}

func (r *Registry) remove(sessionID string) (*Session, bool) {
	r.mu.Lock()
	session, ok := r.sessions[sessionID]
	if ok {
		delete(r.sessions, sessionID)
	}
	count := len(r.sessions)
	r.mu.Unlock()

	if ok {
		r.metrics.ActiveSessions.Set(float64(count))
	}
	return session, ok
}

func (r *Registry) closed(ctx context.Context, session *Session, reason string) {
	session.History.ClearHistory()
	close(session.done)

	r.metrics.SessionsClosed.WithLabelValues(reason).Inc()
	r.logger.Info("Session closed",
		zap.String("sessionID", session.ID),
		zap.String("reason", reason),
	)
	r.publish(ctx, events.NewSessionClosed(session.ID, session.BoardID, session.UserID, reason, r.now()))
}

func (r *Registry) janitor(interval time.Duration) {
	defer close(r.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			r.sweep(context.Background())
		}
	}
}

// sweep closes sessions that have not been accessed within the idle timeout
func (r *Registry) sweep(ctx context.Context) int {
	cutoff := r.now().Add(-r.cfg.IdleTimeout)

	r.mu.RLock()
	var idle []string
	for id, session := range r.sessions {
		if session.LastAccess().Before(cutoff) {
			idle = append(idle, id)
		}
	}
	r.mu.RUnlock()

	evicted := 0
	for _, id := range idle {
		session, ok := r.remove(id)
		if !ok {
			continue
		}
		r.closed(ctx, session, ReasonIdle)
		evicted++
	}

	if evicted > 0 {
		r.logger.Info("Evicted idle sessions", zap.Int("count", evicted))
	}
	return evicted
}

func (r *Registry) publish(ctx context.Context, event events.DomainEvent) {
	if err := r.publisher.Publish(ctx, event); err != nil {
		r.metrics.EventsPublished.WithLabelValues(event.GetEventType(), "error").Inc()
		r.logger.Warn("Failed to publish event",
			zap.String("eventType", event.GetEventType()),
			zap.String("sessionID", event.GetAggregateID()),
			zap.Error(err),
		)
		return
	}
	r.metrics.EventsPublished.WithLabelValues(event.GetEventType(), "success").Inc()
}
