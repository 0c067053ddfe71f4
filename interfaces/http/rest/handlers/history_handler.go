package handlers

import (
	"net/http"

	"canvashistory/application/commands"
	"canvashistory/application/commands/bus"
	"canvashistory/application/queries"
	querybus "canvashistory/application/queries/bus"
	"canvashistory/domain/canvas"
	"canvashistory/pkg/common"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// HistoryHandler handles undo/redo history requests for a session
type HistoryHandler struct {
	commandBus   *bus.CommandBus
	queryBus     *querybus.QueryBus
	maxBodyBytes int64
	logger       *zap.Logger
}

// NewHistoryHandler creates a new history handler
func NewHistoryHandler(commandBus *bus.CommandBus, queryBus *querybus.QueryBus, maxBodyBytes int64, logger *zap.Logger) *HistoryHandler {
	if maxBodyBytes <= 0 {
		maxBodyBytes = DefaultMaxBodyBytes
	}
	return &HistoryHandler{
		commandBus:   commandBus,
		queryBus:     queryBus,
		maxBodyBytes: maxBodyBytes,
		logger:       logger,
	}
}

// SaveSnapshotRequest is the graph the editor wants recorded
type SaveSnapshotRequest struct {
	Nodes []canvas.Node `json:"nodes"`
	Edges []canvas.Edge `json:"edges"`
}

// CompleteRestoreRequest optionally names the restore being completed
type CompleteRestoreRequest struct {
	Token uint64 `json:"token"`
}

// Routes mounts the history endpoints below /sessions/{sessionID}/history
func (h *HistoryHandler) Routes(r chi.Router) {
	r.Get("/", h.GetState)
	r.Post("/snapshots", h.SaveSnapshot)
	r.Post("/undo", h.Undo)
	r.Post("/redo", h.Redo)
	r.Post("/restore-complete", h.CompleteRestore)
	r.Post("/clear", h.Clear)
}

func (h *HistoryHandler) ref(w http.ResponseWriter, r *http.Request) (commands.SessionRef, bool) {
	user, ok := currentUser(w, r)
	if !ok {
		return commands.SessionRef{}, false
	}
	return commands.SessionRef{
		SessionID: chi.URLParam(r, "sessionID"),
		UserID:    user.UserID,
	}, true
}

// GetState returns the history cursor. ?include=snapshot adds the current entry.
func (h *HistoryHandler) GetState(w http.ResponseWriter, r *http.Request) {
	ref, ok := h.ref(w, r)
	if !ok {
		return
	}

	result, err := h.queryBus.Ask(r.Context(), &queries.GetHistoryStateQuery{
		SessionID:       ref.SessionID,
		UserID:          ref.UserID,
		IncludeSnapshot: r.URL.Query().Get("include") == "snapshot",
	})
	if err != nil {
		respondError(w, r, h.logger, "Failed to get history state", err)
		return
	}

	common.RespondJSON(w, r, http.StatusOK, result)
}

// SaveSnapshot records the posted graph. Rejections are reported in the
// body with a 200 status.
func (h *HistoryHandler) SaveSnapshot(w http.ResponseWriter, r *http.Request) {
	ref, ok := h.ref(w, r)
	if !ok {
		return
	}

	var req SaveSnapshotRequest
	if err := common.ParseJSONBody(w, r, &req, h.maxBodyBytes); err != nil {
		common.RespondAppError(w, r, err)
		return
	}

	result, err := h.commandBus.Send(r.Context(), &commands.SaveSnapshotCommand{
		SessionRef: ref,
		Nodes:      req.Nodes,
		Edges:      req.Edges,
	})
	if err != nil {
		respondError(w, r, h.logger, "Failed to save snapshot", err)
		return
	}

	common.RespondJSON(w, r, http.StatusOK, result)
}

// Undo steps back and returns the snapshot to apply
func (h *HistoryHandler) Undo(w http.ResponseWriter, r *http.Request) {
	ref, ok := h.ref(w, r)
	if !ok {
		return
	}
	h.send(w, r, "Failed to undo", &commands.UndoCommand{SessionRef: ref})
}

// Redo steps forward and returns the snapshot to apply
func (h *HistoryHandler) Redo(w http.ResponseWriter, r *http.Request) {
	ref, ok := h.ref(w, r)
	if !ok {
		return
	}
	h.send(w, r, "Failed to redo", &commands.RedoCommand{SessionRef: ref})
}

// CompleteRestore ends the restore started by undo or redo
func (h *HistoryHandler) CompleteRestore(w http.ResponseWriter, r *http.Request) {
	ref, ok := h.ref(w, r)
	if !ok {
		return
	}

	var req CompleteRestoreRequest
	if err := parseOptionalBody(w, r, &req, h.maxBodyBytes); err != nil {
		common.RespondAppError(w, r, err)
		return
	}
	h.send(w, r, "Failed to complete restore", &commands.CompleteRestoreCommand{
		SessionRef: ref,
		Token:      req.Token,
	})
}

// Clear discards every entry of the session history
func (h *HistoryHandler) Clear(w http.ResponseWriter, r *http.Request) {
	ref, ok := h.ref(w, r)
	if !ok {
		return
	}
	h.send(w, r, "Failed to clear history", &commands.ClearHistoryCommand{SessionRef: ref})
}

func (h *HistoryHandler) send(w http.ResponseWriter, r *http.Request, msg string, cmd bus.Command) {
	result, err := h.commandBus.Send(r.Context(), cmd)
	if err != nil {
		respondError(w, r, h.logger, msg, err)
		return
	}
	common.RespondJSON(w, r, http.StatusOK, result)
}
