package di

import (
	"context"
	"errors"
	"net/http"

	"canvashistory/application/commands/bus"
	querybus "canvashistory/application/queries/bus"
	"canvashistory/application/sessions"
	"canvashistory/infrastructure/config"
	"canvashistory/infrastructure/messaging"
	"canvashistory/pkg/observability"

	"go.uber.org/zap"
)

// Container holds all application dependencies
type Container struct {
	Config     *config.Config
	Logger     *zap.Logger
	Metrics    *observability.Collector
	Tracer     *observability.Tracer
	Publisher  *messaging.AsyncPublisher
	Registry   *sessions.Registry
	CommandBus *bus.CommandBus
	QueryBus   *querybus.QueryBus
	Handler    http.Handler
}

// Close releases resources in dependency order: sessions first so their
// closing events are queued, then the publisher drains, then spans flush.
func (c *Container) Close(ctx context.Context) error {
	c.Registry.Shutdown()

	var errs []error
	if err := c.Publisher.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := c.Tracer.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	_ = c.Logger.Sync()

	return errors.Join(errs...)
}
