package handlers

import (
	"context"
	"fmt"

	"canvashistory/application/queries"
	"canvashistory/application/queries/bus"
	"canvashistory/application/sessions"
	pkgerrors "canvashistory/pkg/errors"
)

// GetHistoryStateHandler handles GetHistoryStateQuery
type GetHistoryStateHandler struct {
	registry *sessions.Registry
}

// NewGetHistoryStateHandler creates a new handler instance
func NewGetHistoryStateHandler(registry *sessions.Registry) *GetHistoryStateHandler {
	return &GetHistoryStateHandler{registry: registry}
}

// Handle builds the history view
func (h *GetHistoryStateHandler) Handle(_ context.Context, query bus.Query) (interface{}, error) {
	q, ok := query.(*queries.GetHistoryStateQuery)
	if !ok {
		return nil, pkgerrors.NewInternalError(fmt.Sprintf("unexpected query type %T", query))
	}

	session, err := h.registry.Get(q.SessionID, q.UserID)
	if err != nil {
		return nil, err
	}

	view := &queries.HistoryView{
		SessionID: session.ID,
		BoardID:   session.BoardID,
		State:     session.History.State(),
	}
	if q.IncludeSnapshot {
		if current, ok := session.History.Current(); ok {
			view.Current = &current
		}
	}
	return view, nil
}

// RegisterAll registers every query handler on the bus
func RegisterAll(b *bus.QueryBus, registry *sessions.Registry) error {
	return b.Register(&queries.GetHistoryStateQuery{}, NewGetHistoryStateHandler(registry))
}
