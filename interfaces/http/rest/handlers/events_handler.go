package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"canvashistory/application/sessions"
	"canvashistory/domain/history"
	"canvashistory/pkg/common"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// DefaultHeartbeat is the interval between keep-alive comments on a stream
const DefaultHeartbeat = 15 * time.Second

// EventsHandler streams history state changes as server-sent events
type EventsHandler struct {
	registry  *sessions.Registry
	heartbeat time.Duration
	logger    *zap.Logger
}

// NewEventsHandler creates a new events handler
func NewEventsHandler(registry *sessions.Registry, heartbeat time.Duration, logger *zap.Logger) *EventsHandler {
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeat
	}
	return &EventsHandler{
		registry:  registry,
		heartbeat: heartbeat,
		logger:    logger,
	}
}

// Stream sends the current state, then one "state" event per change until
// the client goes away or the session is closed.
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	sessionID := chi.URLParam(r, "sessionID")
	session, err := h.registry.Get(sessionID, user.UserID)
	if err != nil {
		common.RespondAppError(w, r, err)
		return
	}

	rc := http.NewResponseController(w)
	// Streams outlive the server write timeout.
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	updates := make(chan history.State, 1)
	unsubscribe := session.History.Subscribe(func(state history.State) {
		latest(updates, state)
	})
	defer unsubscribe()

	w.WriteHeader(http.StatusOK)
	initial := session.History.State()
	sent := initial.Version
	if err := writeEvent(w, "state", initial); err != nil {
		return
	}
	if err := rc.Flush(); err != nil {
		h.logger.Warn("Streaming not supported", zap.Error(err))
		return
	}

	h.logger.Debug("History stream opened",
		zap.String("session_id", sessionID),
		zap.String("user_id", user.UserID),
	)

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-session.Done():
			_ = writeEvent(w, "closed", map[string]string{"session_id": sessionID})
			_ = rc.Flush()
			return
		case state := <-updates:
			if state.Version <= sent {
				continue
			}
			if err := writeEvent(w, "state", state); err != nil {
				return
			}
			sent = state.Version
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

// latest replaces any unsent state with state so slow clients skip
// intermediate updates instead of blocking the history.
func latest(ch chan history.State, state history.State) {
	for {
		select {
		case ch <- state:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

func writeEvent(w http.ResponseWriter, event string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)
	return err
}
