package handlers

import (
	"context"

	"canvashistory/application/commands"
	"canvashistory/application/commands/bus"
	"canvashistory/pkg/observability"

	"go.opentelemetry.io/otel/attribute"
)

// OpenSessionHandler handles OpenSessionCommand
type OpenSessionHandler struct {
	base
}

// NewOpenSessionHandler creates a new handler instance
func NewOpenSessionHandler(deps Dependencies) *OpenSessionHandler {
	return &OpenSessionHandler{base: newBase(deps)}
}

// Handle opens the session
func (h *OpenSessionHandler) Handle(ctx context.Context, cmd bus.Command) (result interface{}, err error) {
	c, ok := cmd.(*commands.OpenSessionCommand)
	if !ok {
		return nil, unexpected(cmd)
	}

	ctx, span := h.Tracer.StartSpan(ctx, "session.open",
		attribute.String("board.id", c.BoardID),
		attribute.String("user.id", c.UserID),
	)
	defer func() { observability.EndSpan(span, err) }()

	session, err := h.Registry.Open(ctx, c.BoardID, c.UserID)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("session.id", session.ID))

	return &commands.OpenSessionResult{
		SessionID: session.ID,
		BoardID:   session.BoardID,
		State:     session.History.State(),
	}, nil
}

// CloseSessionHandler handles CloseSessionCommand
type CloseSessionHandler struct {
	base
}

// NewCloseSessionHandler creates a new handler instance
func NewCloseSessionHandler(deps Dependencies) *CloseSessionHandler {
	return &CloseSessionHandler{base: newBase(deps)}
}

// Handle closes the session
func (h *CloseSessionHandler) Handle(ctx context.Context, cmd bus.Command) (result interface{}, err error) {
	c, ok := cmd.(*commands.CloseSessionCommand)
	if !ok {
		return nil, unexpected(cmd)
	}

	ctx, span := h.startSpan(ctx, "session.close", commands.SessionRef{SessionID: c.SessionID, UserID: c.UserID})
	defer func() { observability.EndSpan(span, err) }()

	return nil, h.Registry.Close(ctx, c.SessionID, c.UserID)
}
