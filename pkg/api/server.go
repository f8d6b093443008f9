package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/washdeck/washdeck/pkg/httputil"
	"github.com/washdeck/washdeck/pkg/observability"
)

const (
	readHeaderTimeout = 10 * time.Second
	writeTimeout      = 30 * time.Second
	idleTimeout       = 120 * time.Second
	maxRequestBody    = 1 << 20
)

// RouteRegistrar is implemented by every handler group
type RouteRegistrar interface {
	RegisterRoutes(router *mux.Router)
}

// Server is the WashDeck HTTP API
type Server struct {
	addr    string
	log     *observability.Logger
	metrics *observability.Metrics
	health  *observability.Health
	router  *mux.Router
	httpSrv *http.Server
}

// NewServer builds the API server and mounts every handler group.
// health may be nil to skip the probe endpoints.
func NewServer(addr string, log *observability.Logger, metrics *observability.Metrics, health *observability.Health, groups ...RouteRegistrar) *Server {
	router := mux.NewRouter()

	for _, g := range groups {
		g.RegisterRoutes(router)
	}

	if health != nil {
		router.HandleFunc("/healthz", health.LivenessHandler()).Methods("GET")
		router.HandleFunc("/readyz", health.ReadinessHandler()).Methods("GET")
	}

	// Outermost first: recovery catches everything below it, and the
	// body cap applies before any handler reads.
	var handler http.Handler = router
	handler = httputil.Chain(
		httputil.RecoveryMiddleware(log),
		httputil.RequestIDMiddleware(),
		httputil.LoggingMiddleware(log),
		httputil.MaxBytesMiddleware(maxRequestBody),
	)(handler)
	if metrics != nil {
		handler = metrics.HTTPMiddleware(handler)
	}
	handler = otelhttp.NewHandler(handler, "washdeck-api")

	return &Server{
		addr:    addr,
		log:     log,
		metrics: metrics,
		health:  health,
		router:  router,
		httpSrv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: readHeaderTimeout,
			WriteTimeout:      writeTimeout,
			IdleTimeout:       idleTimeout,
		},
	}
}

// Handler exposes the fully wrapped handler, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.httpSrv.Handler
}

// Start blocks serving HTTP until the listener closes
func (s *Server) Start() error {
	s.log.Info("api server listening", "addr", s.addr)
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}
