// Package api provides the HTTP API server implementation.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/price-etl/internal/logging"
	"github.com/price-etl/internal/models"
	"github.com/price-etl/internal/storage"
	"github.com/price-etl/internal/types"
)

// Service interfaces for dependency injection and testing

// IngestServiceInterface defines the interface for triggering ingestion runs
type IngestServiceInterface interface {
	RunSource(ctx context.Context, id types.SourceID) (*models.RunRecord, error)
	RunAll(ctx context.Context) []*models.RunRecord
	Sources() []types.SourceID
	HasSource(id types.SourceID) bool
	InProgress(id types.SourceID) bool
}

// PriceReaderInterface defines the interface for price query operations
type PriceReaderInterface interface {
	List(ctx context.Context, filter storage.PriceFilter) ([]*models.PriceRecord, error)
	Latest(ctx context.Context, source types.SourceID, limit int) ([]*models.PriceRecord, error)
	Stats(ctx context.Context) ([]*storage.SourceStats, error)
}

// RunReaderInterface defines the interface for run ledger queries
type RunReaderInterface interface {
	Get(ctx context.Context, runID string) (*models.RunRecord, error)
	List(ctx context.Context, source types.SourceID, limit int) ([]*models.RunRecord, error)
	LatestBySource(ctx context.Context) (map[types.SourceID]*models.RunRecord, error)
}

// CheckpointReaderInterface defines the interface for checkpoint queries
type CheckpointReaderInterface interface {
	List(ctx context.Context) ([]*models.Checkpoint, error)
}

// AggregatesReaderInterface defines the interface for analytics queries
type AggregatesReaderInterface interface {
	Aggregates(ctx context.Context, coinID, interval string, since, until time.Time) ([]*storage.AggregateBucket, error)
}

// Pinger checks a dependency's health
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server represents the HTTP API server.
type Server struct {
	router        *mux.Router
	httpServer    *http.Server
	ingest        IngestServiceInterface
	prices        PriceReaderInterface
	runs          RunReaderInterface
	checkpoints   CheckpointReaderInterface
	aggregates    AggregatesReaderInterface
	cache         *storage.CacheService
	db            Pinger
	analyticsPing Pinger
	logger        *logging.Logger
	config        *ServerConfig
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// Deps groups the server's collaborators. Aggregates and Cache are
// optional; the matching endpoints degrade when they are absent.
type Deps struct {
	Ingest        IngestServiceInterface
	Prices        PriceReaderInterface
	Runs          RunReaderInterface
	Checkpoints   CheckpointReaderInterface
	Aggregates    AggregatesReaderInterface
	Cache         *storage.CacheService
	DB            Pinger
	AnalyticsPing Pinger
	Logger        *logging.Logger
}

// NewServer creates a new API server instance.
func NewServer(config *ServerConfig, deps *Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	s := &Server{
		router:        mux.NewRouter(),
		ingest:        deps.Ingest,
		prices:        deps.Prices,
		runs:          deps.Runs,
		checkpoints:   deps.Checkpoints,
		aggregates:    deps.Aggregates,
		cache:         deps.Cache,
		db:            deps.DB,
		analyticsPing: deps.AnalyticsPing,
		logger:        logger.WithField("component", "api"),
		config:        config,
	}

	s.setupRouter()

	return s
}

// setupRouter configures the router with middleware and routes
func (s *Server) setupRouter() {
	// Set up middleware (order matters!)
	s.router.Use(LoggingMiddleware(s.logger))
	s.router.Use(RecoveryMiddleware(s.logger))
	s.router.Use(CORSMiddleware)
	s.router.Use(CompressionMiddleware)

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Host, s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	// Health check endpoint
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()

	// Price endpoints
	api.HandleFunc("/prices", s.handleListPrices).Methods("GET")
	api.HandleFunc("/prices/latest", s.handleLatestPrices).Methods("GET")

	// Stats endpoint
	api.HandleFunc("/stats", s.handleStats).Methods("GET")

	// Run ledger endpoints
	api.HandleFunc("/runs", s.handleListRuns).Methods("GET")
	api.HandleFunc("/runs/compare", s.handleCompareRuns).Methods("GET")
	api.HandleFunc("/runs/{id}", s.handleGetRun).Methods("GET")

	// Analytics endpoint
	api.HandleFunc("/aggregates", s.handleAggregates).Methods("GET")

	// Ingestion trigger endpoint
	api.HandleFunc("/ingest/run", s.handleTriggerIngest).Methods("POST")
}

// Router returns the configured router, used by tests
func (s *Server) Router() http.Handler {
	return s.router
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Infof("starting API server on %s", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down API server")
	return s.httpServer.Shutdown(ctx)
}
