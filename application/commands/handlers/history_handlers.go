package handlers

import (
	"context"
	"errors"

	"canvashistory/application/commands"
	"canvashistory/application/commands/bus"
	"canvashistory/domain/events"
	"canvashistory/domain/history"
	pkgerrors "canvashistory/pkg/errors"
	"canvashistory/pkg/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// SaveSnapshotHandler handles SaveSnapshotCommand
type SaveSnapshotHandler struct {
	base
}

// NewSaveSnapshotHandler creates a new handler instance
func NewSaveSnapshotHandler(deps Dependencies) *SaveSnapshotHandler {
	return &SaveSnapshotHandler{base: newBase(deps)}
}

// Handle offers the graph to the session history. A rejected snapshot is a
// successful command with Accepted=false.
func (h *SaveSnapshotHandler) Handle(ctx context.Context, cmd bus.Command) (result interface{}, err error) {
	c, ok := cmd.(*commands.SaveSnapshotCommand)
	if !ok {
		return nil, unexpected(cmd)
	}

	ctx, span := h.startSpan(ctx, "history.save", c.SessionRef)
	defer func() { observability.EndSpan(span, err) }()

	session, err := h.session(c.SessionRef)
	if err != nil {
		return nil, err
	}

	saved := session.History.SaveState(c.Nodes, c.Edges)
	state := session.History.State()

	span.SetAttributes(
		attribute.Bool("history.accepted", saved.Accepted),
		attribute.Int("history.length", state.Length),
		attribute.Int("graph.nodes", len(c.Nodes)),
	)

	if saved.Accepted {
		h.Metrics.SnapshotsSaved.WithLabelValues("accepted").Inc()
		h.Metrics.HistoryLength.Observe(float64(state.Length))
		h.publish(ctx, events.NewSnapshotRecorded(session.ID, saved.Fingerprint.String(),
			len(c.Nodes), len(c.Edges), state.Length, state.CurrentIndex, h.Now()))
	} else {
		h.Metrics.SnapshotsSaved.WithLabelValues(string(saved.Reason)).Inc()
		span.SetAttributes(attribute.String("history.reason", string(saved.Reason)))
		// Duplicates and saves during a restore are routine; only malformed
		// graphs are worth an event.
		if saved.Reason == history.ReasonInvalidPosition || saved.Reason == history.ReasonInvalidData {
			h.publish(ctx, events.NewSnapshotRejected(session.ID, string(saved.Reason), h.Now()))
		}
	}

	return &commands.SaveSnapshotResult{SaveResult: saved, State: state}, nil
}

// UndoHandler handles UndoCommand
type UndoHandler struct {
	base
}

// NewUndoHandler creates a new handler instance
func NewUndoHandler(deps Dependencies) *UndoHandler {
	return &UndoHandler{base: newBase(deps)}
}

// Handle steps the history back
func (h *UndoHandler) Handle(ctx context.Context, cmd bus.Command) (interface{}, error) {
	c, ok := cmd.(*commands.UndoCommand)
	if !ok {
		return nil, unexpected(cmd)
	}
	return h.restore(ctx, c.SessionRef, history.DirectionUndo)
}

// RedoHandler handles RedoCommand
type RedoHandler struct {
	base
}

// NewRedoHandler creates a new handler instance
func NewRedoHandler(deps Dependencies) *RedoHandler {
	return &RedoHandler{base: newBase(deps)}
}

// Handle steps the history forward
func (h *RedoHandler) Handle(ctx context.Context, cmd bus.Command) (interface{}, error) {
	c, ok := cmd.(*commands.RedoCommand)
	if !ok {
		return nil, unexpected(cmd)
	}
	return h.restore(ctx, c.SessionRef, history.DirectionRedo)
}

func (b base) restore(ctx context.Context, ref commands.SessionRef, dir history.Direction) (result interface{}, err error) {
	ctx, span := b.startSpan(ctx, "history."+string(dir), ref)
	defer func() { observability.EndSpan(span, err) }()

	session, err := b.session(ref)
	if err != nil {
		return nil, err
	}

	var r *history.Restore
	if dir == history.DirectionUndo {
		r, err = session.History.Undo()
	} else {
		r, err = session.History.Redo()
	}

	switch {
	case errors.Is(err, history.ErrNothingToUndo):
		b.Metrics.Restores.WithLabelValues(string(dir), "empty").Inc()
		return nil, pkgerrors.NewHistoryBoundaryError(pkgerrors.CodeNothingToUndo, err)
	case errors.Is(err, history.ErrNothingToRedo):
		b.Metrics.Restores.WithLabelValues(string(dir), "empty").Inc()
		return nil, pkgerrors.NewHistoryBoundaryError(pkgerrors.CodeNothingToRedo, err)
	case err != nil:
		return nil, err
	}

	b.Metrics.Restores.WithLabelValues(string(dir), "ok").Inc()
	span.SetAttributes(attribute.Int("history.index", r.Index))
	b.publish(ctx, events.NewHistoryRestored(session.ID, string(dir), r.Index,
		r.Snapshot.Fingerprint.String(), b.Now()))

	return &commands.RestoreResult{
		Token:     r.Token(),
		Direction: r.Direction,
		Index:     r.Index,
		Snapshot:  r.Snapshot,
		State:     session.History.State(),
	}, nil
}

// CompleteRestoreHandler handles CompleteRestoreCommand
type CompleteRestoreHandler struct {
	base
}

// NewCompleteRestoreHandler creates a new handler instance
func NewCompleteRestoreHandler(deps Dependencies) *CompleteRestoreHandler {
	return &CompleteRestoreHandler{base: newBase(deps)}
}

// Handle releases the restoring flag. With a token only that restore is
// released; without one any restore in flight is.
func (h *CompleteRestoreHandler) Handle(ctx context.Context, cmd bus.Command) (result interface{}, err error) {
	c, ok := cmd.(*commands.CompleteRestoreCommand)
	if !ok {
		return nil, unexpected(cmd)
	}

	_, span := h.startSpan(ctx, "history.restore_complete", c.SessionRef)
	defer func() { observability.EndSpan(span, err) }()

	session, err := h.session(c.SessionRef)
	if err != nil {
		return nil, err
	}

	var released bool
	if c.Token != 0 {
		released = session.History.CompleteRestore(c.Token)
	} else {
		released = session.History.MarkRestoringComplete()
	}

	if !released {
		h.Logger.Debug("Restore completion had no effect",
			zap.String("sessionID", session.ID),
			zap.Uint64("token", c.Token),
		)
	}

	return &commands.CompleteRestoreResult{Released: released, State: session.History.State()}, nil
}

// ClearHistoryHandler handles ClearHistoryCommand
type ClearHistoryHandler struct {
	base
}

// NewClearHistoryHandler creates a new handler instance
func NewClearHistoryHandler(deps Dependencies) *ClearHistoryHandler {
	return &ClearHistoryHandler{base: newBase(deps)}
}

// Handle empties the history
func (h *ClearHistoryHandler) Handle(ctx context.Context, cmd bus.Command) (result interface{}, err error) {
	c, ok := cmd.(*commands.ClearHistoryCommand)
	if !ok {
		return nil, unexpected(cmd)
	}

	ctx, span := h.startSpan(ctx, "history.clear", c.SessionRef)
	defer func() { observability.EndSpan(span, err) }()

	session, err := h.session(c.SessionRef)
	if err != nil {
		return nil, err
	}

	discarded := session.History.Len()
	session.History.ClearHistory()

	h.Metrics.HistoryCleared.Inc()
	h.publish(ctx, events.NewHistoryCleared(session.ID, discarded, h.Now()))

	return &commands.StateResult{State: session.History.State()}, nil
}
