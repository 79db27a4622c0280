// Package server sets up the HTTP server exposing the scoring core to the
// surrounding service layer.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/mbd888/walletrisk/internal/config"
	"github.com/mbd888/walletrisk/internal/graph"
	"github.com/mbd888/walletrisk/internal/health"
	"github.com/mbd888/walletrisk/internal/idgen"
	"github.com/mbd888/walletrisk/internal/logging"
	"github.com/mbd888/walletrisk/internal/metrics"
	"github.com/mbd888/walletrisk/internal/scoring"
	"github.com/mbd888/walletrisk/internal/tx"
)

// Server wraps the HTTP server and dependencies.
type Server struct {
	cfg     *config.Config
	logger  *slog.Logger
	db      *sql.DB // nil if using in-memory
	txStore tx.Store
	scoring *scoring.Service
	checks  *health.Registry
	router  *gin.Engine
	httpSrv *http.Server

	ready   atomic.Bool
	healthy atomic.Bool
}

// Option configures the server.
type Option func(*Server)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithTxStore injects a transaction store (for testing).
func WithTxStore(store tx.Store) Option {
	return func(s *Server) {
		s.txStore = store
	}
}

// New creates a new server instance.
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:    cfg,
		logger: logging.New(cfg.LogLevel, "json"),
	}
	for _, opt := range opts {
		opt(s)
	}

	ctx := context.Background()

	var scoreStore scoring.Store
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}

		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)

		if err := db.Ping(); err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		s.db = db
		s.logger.Info("using PostgreSQL storage", "url", maskDSN(cfg.DatabaseURL))

		if s.txStore == nil {
			txStore := tx.NewPostgresStore(db)
			if err := txStore.Migrate(ctx); err != nil {
				s.logger.Warn("failed to migrate transaction store", "error", err)
			}
			s.txStore = txStore
		}

		pgScores := scoring.NewPostgresStore(db)
		if err := pgScores.Migrate(ctx); err != nil {
			s.logger.Warn("failed to migrate scoring store", "error", err)
		}
		scoreStore = pgScores
	} else {
		if s.txStore == nil {
			s.txStore = tx.NewMemoryStore()
		}
		scoreStore = scoring.NewMemoryStore()
		s.logger.Info("using in-memory storage (data will not persist)")
	}

	// Graph source: the transaction store, or a bulk CSV snapshot.
	var source tx.Source = s.txStore
	if path, ok := strings.CutPrefix(cfg.TxSource, "csv:"); ok {
		source = tx.NewCSVSource(path)
		s.logger.Info("graph builds from CSV snapshot", "path", path)
	}

	holder := graph.NewHolder()
	builder := graph.NewBuilder(source, holder, graph.SeedParams{
		Seed: cfg.IllicitSeed,
		Pct:  cfg.IllicitPct,
	}, s.logger)

	s.scoring = scoring.NewService(holder, builder, scoreStore, scoring.Config{
		MaxHops:         cfg.MaxHops,
		HopWeights:      cfg.HopWeights,
		DegreeNormalize: cfg.DegreeNormalize,
		SeedPct:         cfg.IllicitPct,
		Seed:            cfg.IllicitSeed,
		Source:          cfg.TxSource,
	}, s.logger)

	s.checks = health.NewRegistry()
	if s.db != nil {
		s.checks.Register("database", func(ctx context.Context) error {
			return s.db.PingContext(ctx)
		})
	}
	s.checks.Register("tx_store", func(ctx context.Context) error {
		_, err := s.txStore.Count(ctx)
		return err
	})

	s.healthy.Store(true)
	s.setupRouter()
	return s, nil
}

func (s *Server) setupRouter() {
	if s.cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(s.requestLogger())
	r.Use(metrics.Middleware())

	r.GET("/health", s.handleHealth)
	r.GET("/metrics", metrics.Handler())

	v1 := r.Group("/v1")
	{
		v1.POST("/graph/reload", s.handleReloadGraph)
		v1.POST("/runs", s.handleRunScoring)
		v1.GET("/scores/top", s.handleTopScores)
		v1.GET("/wallets/:wallet/score", s.handleWalletScore)
		v1.GET("/wallets/:wallet/explain", s.handleExplain)
		v1.GET("/ingestion/status", s.handleIngestionStatus)
	}

	s.router = r
}

// requestLogger attaches a request ID and logs each request.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader("X-Request-ID")
		if reqID == "" {
			reqID = idgen.New()
		}
		ctx := logging.WithRequestID(c.Request.Context(), reqID)
		ctx = logging.WithLogger(ctx, s.logger)
		c.Request = c.Request.WithContext(ctx)
		c.Header("X-Request-ID", reqID)

		start := time.Now()
		c.Next()

		s.logger.Debug("request",
			"request_id", reqID,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"elapsed", time.Since(start).String(),
		)
	}
}

// Run starts the HTTP server and blocks until a shutdown signal or error.
func (s *Server) Run(ctx context.Context) error {
	s.httpSrv = &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.router,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", "port", s.cfg.Port)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	go func() {
		time.Sleep(100 * time.Millisecond)
		s.ready.Store(true)
		s.logger.Info("server ready")
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		s.logger.Info("shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		s.logger.Info("context cancelled")
	}

	return s.Shutdown()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	s.ready.Store(false)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if s.httpSrv != nil {
		if err := s.httpSrv.Shutdown(ctx); err != nil {
			s.logger.Error("http shutdown error", "error", err)
		}
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("database close error", "error", err)
		}
	}

	s.logger.Info("server stopped")
	return nil
}

// Router exposes the gin engine for tests.
func (s *Server) Router() http.Handler { return s.router }

// maskDSN hides credentials in a connection string for logging.
func maskDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "(unparseable DSN)"
	}
	if u.User != nil {
		u.User = url.User(u.User.Username())
	}
	return u.String()
}
