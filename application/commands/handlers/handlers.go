package handlers

import (
	"context"
	"fmt"
	"time"

	"canvashistory/application/commands"
	"canvashistory/application/commands/bus"
	"canvashistory/application/ports"
	"canvashistory/application/sessions"
	"canvashistory/domain/events"
	pkgerrors "canvashistory/pkg/errors"
	"canvashistory/pkg/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Dependencies are shared by every command handler
type Dependencies struct {
	Registry  *sessions.Registry
	Publisher ports.EventPublisher
	Metrics   *observability.Collector
	Tracer    *observability.Tracer
	Logger    *zap.Logger
	// Now stamps published events; defaults to time.Now.
	Now func() time.Time
}

type base struct {
	Dependencies
}

func newBase(deps Dependencies) base {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return base{Dependencies: deps}
}

// RegisterAll registers every command handler on the bus
func RegisterAll(b *bus.CommandBus, deps Dependencies) error {
	registrations := []struct {
		cmd     bus.Command
		handler bus.CommandHandler
	}{
		{&commands.OpenSessionCommand{}, NewOpenSessionHandler(deps)},
		{&commands.CloseSessionCommand{}, NewCloseSessionHandler(deps)},
		{&commands.SaveSnapshotCommand{}, NewSaveSnapshotHandler(deps)},
		{&commands.UndoCommand{}, NewUndoHandler(deps)},
		{&commands.RedoCommand{}, NewRedoHandler(deps)},
		{&commands.CompleteRestoreCommand{}, NewCompleteRestoreHandler(deps)},
		{&commands.ClearHistoryCommand{}, NewClearHistoryHandler(deps)},
	}

	for _, r := range registrations {
		if err := b.Register(r.cmd, r.handler); err != nil {
			return err
		}
	}
	return nil
}

func (b base) session(ref commands.SessionRef) (*sessions.Session, error) {
	return b.Registry.Get(ref.SessionID, ref.UserID)
}

func (b base) startSpan(ctx context.Context, name string, ref commands.SessionRef) (context.Context, trace.Span) {
	return b.Tracer.StartSpan(ctx, name,
		attribute.String("session.id", ref.SessionID),
		attribute.String("user.id", ref.UserID),
	)
}

// publish hands event to the publisher. Failures are logged and counted,
// never returned.
func (b base) publish(ctx context.Context, event events.DomainEvent) {
	if err := b.Publisher.Publish(ctx, event); err != nil {
		b.Metrics.EventsPublished.WithLabelValues(event.GetEventType(), "error").Inc()
		b.Logger.Warn("Failed to publish event",
			zap.String("eventType", event.GetEventType()),
			zap.String("sessionID", event.GetAggregateID()),
			zap.Error(err),
		)
		return
	}
	b.Metrics.EventsPublished.WithLabelValues(event.GetEventType(), "success").Inc()
}

func unexpected(cmd bus.Command) error {
	return pkgerrors.NewInternalError(fmt.Sprintf("unexpected command type %T", cmd))
}
