package rest

import (
	"context"
	"net/http"
	"sort"
	"time"

	"canvashistory/application/commands/bus"
	querybus "canvashistory/application/queries/bus"
	"canvashistory/application/sessions"
	"canvashistory/interfaces/http/rest/handlers"
	"canvashistory/interfaces/http/rest/middleware"
	"canvashistory/pkg/auth"
	"canvashistory/pkg/common"
	"canvashistory/pkg/observability"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// ReadinessCheck reports whether a dependency can serve traffic
type ReadinessCheck func(ctx context.Context) error

// Options tunes the router
type Options struct {
	AllowedOrigins []string
	MaxBodyBytes   int64
	// Heartbeat is the keep-alive interval of event streams.
	Heartbeat time.Duration
	// ReadinessChecks are run by /ready, keyed by dependency name.
	ReadinessChecks map[string]ReadinessCheck
}

// Router creates and configures the HTTP router
type Router struct {
	commandBus    *bus.CommandBus
	queryBus      *querybus.QueryBus
	registry      *sessions.Registry
	authenticator auth.Authenticator
	metrics       *observability.Collector
	opts          Options
	logger        *zap.Logger
}

// NewRouter creates a new router instance
func NewRouter(
	commandBus *bus.CommandBus,
	queryBus *querybus.QueryBus,
	registry *sessions.Registry,
	authenticator auth.Authenticator,
	metrics *observability.Collector,
	opts Options,
	logger *zap.Logger,
) *Router {
	return &Router{
		commandBus:    commandBus,
		queryBus:      queryBus,
		registry:      registry,
		authenticator: authenticator,
		metrics:       metrics,
		opts:          opts,
		logger:        logger,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	// Global middleware
	router.Use(chimiddleware.RequestID)
	router.Use(middleware.RequestIDHeader)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.Logger(rt.logger))
	router.Use(middleware.Metrics(rt.metrics))

	origins := rt.opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.Get("/health", rt.healthCheck)
	router.Get("/ready", rt.readinessCheck)
	router.Method(http.MethodGet, "/metrics", rt.metrics.Handler())

	sessionHandler := handlers.NewSessionHandler(rt.commandBus, rt.opts.MaxBodyBytes, rt.logger)
	historyHandler := handlers.NewHistoryHandler(rt.commandBus, rt.queryBus, rt.opts.MaxBodyBytes, rt.logger)
	eventsHandler := handlers.NewEventsHandler(rt.registry, rt.opts.Heartbeat, rt.logger)

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Authenticate(rt.authenticator, rt.logger))

		r.Route("/sessions", func(r chi.Router) {
			sessionHandler.Routes(r)

			r.Route("/{sessionID}/history", func(r chi.Router) {
				historyHandler.Routes(r)
				r.Get("/events", eventsHandler.Stream)
			})
		})
	})

	return router
}

// healthCheck handles health check requests
func (rt *Router) healthCheck(w http.ResponseWriter, r *http.Request) {
	common.RespondJSON(w, r, http.StatusOK, map[string]interface{}{
		"status":   "healthy",
		"sessions": rt.registry.Len(),
	})
}

// readinessCheck runs every configured dependency check
func (rt *Router) readinessCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	names := make([]string, 0, len(rt.opts.ReadinessChecks))
	for name := range rt.opts.ReadinessChecks {
		names = append(names, name)
	}
	sort.Strings(names)

	failures := make(map[string]interface{})
	for _, name := range names {
		if err := rt.opts.ReadinessChecks[name](ctx); err != nil {
			failures[name] = err.Error()
		}
	}

	if len(failures) > 0 {
		rt.logger.Warn("Readiness check failed", zap.Any("failures", failures))
		common.RespondErrorWithDetails(w, r, http.StatusServiceUnavailable,
			common.StandardErrorCodes.ServiceUnavailable, "not ready", failures)
		return
	}
	common.RespondJSON(w, r, http.StatusOK, map[string]string{"status": "ready"})
}
