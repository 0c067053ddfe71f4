package di

import (
	"context"
	"fmt"
	"net/http"

	"canvashistory/application/commands/bus"
	commandhandlers "canvashistory/application/commands/handlers"
	"canvashistory/application/ports"
	querybus "canvashistory/application/queries/bus"
	queryhandlers "canvashistory/application/queries/handlers"
	"canvashistory/application/sessions"
	infraauth "canvashistory/infrastructure/auth"
	"canvashistory/infrastructure/config"
	"canvashistory/infrastructure/messaging"
	"canvashistory/infrastructure/messaging/eventbridge"
	"canvashistory/interfaces/http/rest"
	"canvashistory/pkg/auth"
	"canvashistory/pkg/observability"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// ServiceName identifies this service in traces and event sources
const ServiceName = "canvas-history"

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	var zapCfg zap.Config
	if cfg.IsProduction() {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	zapCfg.Level = level

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.With(zap.String("service", ServiceName)), nil
}

// ProvideMetrics creates the Prometheus collector
func ProvideMetrics(cfg *config.Config) *observability.Collector {
	return observability.NewCollector(cfg.Metrics.Namespace)
}

// ProvideTracer initializes tracing. Spans are only exported when tracing
// is enabled.
func ProvideTracer(ctx context.Context, cfg *config.Config) (*observability.Tracer, error) {
	tracingCfg := observability.TracingConfig{
		ServiceName: ServiceName,
		Environment: cfg.Environment,
		Insecure:    cfg.Tracing.Insecure,
		SampleRatio: cfg.Tracing.SampleRatio,
	}
	if cfg.Tracing.Enabled {
		tracingCfg.Endpoint = cfg.Tracing.Endpoint
	}
	return observability.InitTracing(ctx, tracingCfg)
}

// ProvideAWSConfig creates AWS configuration
func ProvideAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Events.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Events.Region))
	}
	return awsconfig.LoadDefaultConfig(ctx, opts...)
}

// ProvideEventBridgeClient creates an EventBridge client
func ProvideEventBridgeClient(awsCfg aws.Config) *awseventbridge.Client {
	return awseventbridge.NewFromConfig(awsCfg)
}

// ProvideEventPublisher creates the asynchronous publisher handlers use.
// Events go to EventBridge when enabled and to the log otherwise.
func ProvideEventPublisher(cfg *config.Config, client *awseventbridge.Client, logger *zap.Logger) *messaging.AsyncPublisher {
	var next ports.EventPublisher
	if cfg.Events.Enabled {
		next = eventbridge.NewPublisher(client, cfg.Events.BusName, cfg.Events.Source, logger)
	} else {
		next = messaging.NewLogPublisher(logger)
	}
	return messaging.NewAsyncPublisher(next, messaging.AsyncConfig{}, logger)
}

// ProvideAuthenticator selects the authenticator for the configured mode
func ProvideAuthenticator(cfg *config.Config, logger *zap.Logger) (auth.Authenticator, error) {
	switch cfg.Auth.Mode {
	case config.AuthModeJWT:
		validator, err := auth.NewJWTValidator(auth.JWTConfig{
			SigningMethod: "HS256",
			SecretKey:     cfg.Auth.JWTSecret,
			Issuer:        cfg.Auth.JWTIssuer,
			Audience:      cfg.Auth.JWTAudience,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create JWT validator: %w", err)
		}
		return auth.NewJWTAuthenticator(validator), nil

	case config.AuthModeSupabase:
		verifier, err := infraauth.NewSupabaseVerifier(cfg.Auth.SupabaseURL, cfg.Auth.SupabaseKey)
		if err != nil {
			return nil, err
		}
		b := cfg.Auth.Breaker
		return infraauth.NewBreakerAuthenticator("supabase-auth", verifier, infraauth.BreakerSettings{
			MaxRequests:      b.MaxRequests,
			Interval:         b.Interval,
			Timeout:          b.Timeout,
			MinRequests:      b.MinRequests,
			FailureThreshold: b.FailureThreshold,
		}, logger), nil

	default:
		logger.Warn("Authentication disabled; the bearer token is used as the user ID")
		return auth.NoopAuthenticator{}, nil
	}
}

// ProvideRegistry creates the session registry
func ProvideRegistry(cfg *config.Config, publisher *messaging.AsyncPublisher, metrics *observability.Collector, logger *zap.Logger) *sessions.Registry {
	return sessions.NewRegistry(sessions.Config{
		MaxSessions:    cfg.Sessions.MaxSessions,
		IdleTimeout:    cfg.Sessions.IdleTimeout,
		SweepInterval:  cfg.Sessions.SweepInterval,
		HistoryLimit:   cfg.History.Limit,
		RestoreTimeout: cfg.History.RestoreTimeout,
	}, publisher, metrics, logger)
}

// ProvideCommandBus creates the command bus and registers every handler
func ProvideCommandBus(
	registry *sessions.Registry,
	publisher *messaging.AsyncPublisher,
	metrics *observability.Collector,
	tracer *observability.Tracer,
	logger *zap.Logger,
) (*bus.CommandBus, error) {
	commandBus := bus.NewCommandBus(
		bus.LoggingMiddleware(logger),
		bus.MetricsMiddleware(metrics),
	)

	if err := commandhandlers.RegisterAll(commandBus, commandhandlers.Dependencies{
		Registry:  registry,
		Publisher: publisher,
		Metrics:   metrics,
		Tracer:    tracer,
		Logger:    logger,
	}); err != nil {
		return nil, fmt.Errorf("failed to register command handlers: %w", err)
	}
	return commandBus, nil
}

// ProvideQueryBus creates the query bus and registers every handler
func ProvideQueryBus(registry *sessions.Registry) (*querybus.QueryBus, error) {
	queryBus := querybus.NewQueryBus()
	if err := queryhandlers.RegisterAll(queryBus, registry); err != nil {
		return nil, fmt.Errorf("failed to register query handlers: %w", err)
	}
	return queryBus, nil
}

// ProvideReadinessChecks reports the auth circuit breaker, when there is one
func ProvideReadinessChecks(authenticator auth.Authenticator) map[string]rest.ReadinessCheck {
	checks := make(map[string]rest.ReadinessCheck)
	if breaker, ok := authenticator.(interface{ State() gobreaker.State }); ok {
		checks["auth"] = func(context.Context) error {
			if state := breaker.State(); state == gobreaker.StateOpen {
				return fmt.Errorf("circuit breaker %s", state)
			}
			return nil
		}
	}
	return checks
}

// ProvideHTTPHandler builds the REST router
func ProvideHTTPHandler(
	cfg *config.Config,
	commandBus *bus.CommandBus,
	queryBus *querybus.QueryBus,
	registry *sessions.Registry,
	authenticator auth.Authenticator,
	metrics *observability.Collector,
	checks map[string]rest.ReadinessCheck,
	logger *zap.Logger,
) http.Handler {
	return rest.NewRouter(commandBus, queryBus, registry, authenticator, metrics, rest.Options{
		AllowedOrigins:  cfg.CORS.AllowedOrigins,
		MaxBodyBytes:    cfg.Server.MaxBodyBytes,
		ReadinessChecks: checks,
	}, logger).Setup()
}
