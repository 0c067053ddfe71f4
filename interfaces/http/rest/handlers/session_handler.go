package handlers

import (
	"net/http"

	"canvashistory/application/commands"
	"canvashistory/application/commands/bus"
	"canvashistory/pkg/common"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// SessionHandler handles session lifecycle requests
type SessionHandler struct {
	commandBus   *bus.CommandBus
	maxBodyBytes int64
	logger       *zap.Logger
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(commandBus *bus.CommandBus, maxBodyBytes int64, logger *zap.Logger) *SessionHandler {
	if maxBodyBytes <= 0 {
		maxBodyBytes = DefaultMaxBodyBytes
	}
	return &SessionHandler{
		commandBus:   commandBus,
		maxBodyBytes: maxBodyBytes,
		logger:       logger,
	}
}

// OpenSessionRequest is the body of POST /sessions
type OpenSessionRequest struct {
	BoardID string `json:"board_id"`
}

// Routes mounts the session endpoints
func (h *SessionHandler) Routes(r chi.Router) {
	r.Post("/", h.OpenSession)
	r.Delete("/{sessionID}", h.CloseSession)
}

// OpenSession starts an editor session with an empty history
func (h *SessionHandler) OpenSession(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req OpenSessionRequest
	if err := common.ParseJSONBody(w, r, &req, h.maxBodyBytes); err != nil {
		common.RespondAppError(w, r, err)
		return
	}

	result, err := h.commandBus.Send(r.Context(), &commands.OpenSessionCommand{
		BoardID: req.BoardID,
		UserID:  user.UserID,
	})
	if err != nil {
		respondError(w, r, h.logger, "Failed to open session", err)
		return
	}

	common.RespondJSON(w, r, http.StatusCreated, result)
}

// CloseSession ends a session and discards its history
func (h *SessionHandler) CloseSession(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	sessionID := chi.URLParam(r, "sessionID")
	if _, err := h.commandBus.Send(r.Context(), &commands.CloseSessionCommand{
		SessionID: sessionID,
		UserID:    user.UserID,
	}); err != nil {
		respondError(w, r, h.logger, "Failed to close session", err)
		return
	}

	common.RespondJSON(w, r, http.StatusOK, map[string]interface{}{
		"session_id": sessionID,
		"closed":     true,
	})
}
