//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"canvashistory/infrastructure/config"

	"github.com/google/wire"
)

// SuperSet is the main provider set containing all providers
var SuperSet = wire.NewSet(
	ProvideLogger,
	ProvideMetrics,
	ProvideTracer,
	ProvideAWSConfig,
	ProvideEventBridgeClient,
	ProvideEventPublisher,
	ProvideAuthenticator,
	ProvideRegistry,
	ProvideCommandBus,
	ProvideQueryBus,
	ProvideReadinessChecks,
	ProvideHTTPHandler,
	wire.Struct(new(Container), "*"),
)

// InitializeContainer creates a fully wired container
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	wire.Build(SuperSet)
	return nil, nil // Wire will replace this
}
