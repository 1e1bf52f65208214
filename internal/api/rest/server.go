package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/calloway/gridfax/internal/metrics"
)

// Server represents the REST API server
type Server struct {
	addr    string
	server  *http.Server
	handler *Handler
}

// NewServer creates a new REST API server. progressFeed, when non-nil,
// is mounted at /ws/progress.
func NewServer(addr string, handler *Handler, compileHandler *CompileHandler, progressFeed http.Handler) *Server {
	router := mux.NewRouter()

	// MetricsMiddleware resolves route templates, so it must run inside
	// the router. The rest wrap the router itself so unmatched requests
	// and CORS preflights still pass through them.
	router.Use(MetricsMiddleware)

	// Health check and metrics
	router.HandleFunc("/health", handler.HealthCheck).Methods("GET")
	router.Handle("/metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{})).Methods("GET")

	// API v1 routes
	api := router.PathPrefix("/api/v1").Subrouter()

	// Leaderboards
	api.HandleFunc("/leaderboards", handler.GetLeaderboards).Methods("GET")
	api.HandleFunc("/leaderboards/{category}", handler.GetLeaderboard).Methods("GET")

	// Players
	api.HandleFunc("/players/{playerID}/stats", handler.GetPlayerStats).Methods("GET")

	// Compilation runs
	api.HandleFunc("/compile", compileHandler.HandleTrigger).Methods("POST")
	api.HandleFunc("/compile/runs", compileHandler.HandleListRuns).Methods("GET")
	api.HandleFunc("/compile/runs/{runID}", compileHandler.HandleGetRun).Methods("GET")
	api.HandleFunc("/compile/status", compileHandler.HandleStatus).Methods("GET")

	// Live progress feed
	if progressFeed != nil {
		router.Handle("/ws/progress", progressFeed).Methods("GET")
	}

	var root http.Handler = router
	root = CORSMiddleware(root)
	root = LoggingMiddleware(root)
	root = RecoveryMiddleware(root)

	return &Server{
		addr:    addr,
		handler: handler,
		server: &http.Server{
			Addr:    addr,
			Handler: root,
			// No write timeout, the progress feed holds connections open.
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Handler exposes the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start starts the REST API server
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
