package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mbd888/walletrisk/internal/graph"
	"github.com/mbd888/walletrisk/internal/ingest"
	"github.com/mbd888/walletrisk/internal/metrics"
	"github.com/mbd888/walletrisk/internal/scoring"
)

func (s *Server) handleHealth(c *gin.Context) {
	healthy, checks := s.checks.Check(c.Request.Context())

	status := http.StatusOK
	text := "ok"
	if !healthy || !s.healthy.Load() {
		status = http.StatusServiceUnavailable
		text = "degraded"
	}
	c.JSON(status, gin.H{
		"status":      text,
		"ready":       s.ready.Load(),
		"graph_ready": s.scoring.GraphReady(),
		"checks":      checks,
	})
}

// handleReloadGraph handles POST /v1/graph/reload.
func (s *Server) handleReloadGraph(c *gin.Context) {
	summary, err := s.scoring.ReloadGraph(c.Request.Context())
	if err != nil {
		if errors.Is(err, graph.ErrSourceUnavailable) {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"error":   "not_ready",
				"message": err.Error(),
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "reload_failed", "message": err.Error()})
		return
	}

	metrics.GraphNodes.Set(float64(summary.NodeCount))
	metrics.GraphEdges.Set(float64(summary.EdgeCount))

	c.JSON(http.StatusOK, gin.H{
		"node_count":    summary.NodeCount,
		"edge_count":    summary.EdgeCount,
		"illicit_count": summary.IllicitCount,
	})
}

// runRequest optionally overrides the configured scoring parameters.
type runRequest struct {
	MaxHops         *int      `json:"max_hops"`
	HopWeights      []float64 `json:"hop_weights"`
	DegreeNormalize *bool     `json:"degree_normalize"`
}

// handleRunScoring handles POST /v1/runs.
func (s *Server) handleRunScoring(c *gin.Context) {
	var override *scoring.Config
	if c.Request.ContentLength > 0 {
		var req runRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_request",
				"message": "Invalid request body",
			})
			return
		}
		cfg := scoring.DefaultConfig()
		cfg.Source = s.cfg.TxSource
		cfg.SeedPct = s.cfg.IllicitPct
		cfg.Seed = s.cfg.IllicitSeed
		if req.MaxHops != nil {
			cfg.MaxHops = *req.MaxHops
		}
		if len(req.HopWeights) > 0 {
			cfg.HopWeights = req.HopWeights
		}
		if req.DegreeNormalize != nil {
			cfg.DegreeNormalize = *req.DegreeNormalize
		}
		override = &cfg
	}

	summary, err := s.scoring.Run(c.Request.Context(), override)
	if err != nil {
		if errors.Is(err, scoring.ErrGraphNotReady) {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"error":   "graph_not_ready",
				"message": err.Error(),
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "run_failed", "message": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"run_id":         summary.RunID,
		"wallets_scored": summary.WalletsScored,
		"node_count":     summary.NodeCount,
		"edge_count":     summary.EdgeCount,
	})
}

// handleTopScores handles GET /v1/scores/top?limit=N.
func (s *Server) handleTopScores(c *gin.Context) {
	limit := 20
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_request",
				"message": "limit must be a positive integer",
			})
			return
		}
		limit = n
	}

	scores, err := s.scoring.Top(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query_failed", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"scores": scores})
}

// handleWalletScore handles GET /v1/wallets/:wallet/score.
func (s *Server) handleWalletScore(c *gin.Context) {
	wallet := c.Param("wallet")

	score, err := s.scoring.WalletScore(c.Request.Context(), wallet)
	if err != nil {
		if errors.Is(err, scoring.ErrWalletNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "wallet_not_found",
				"message": "Wallet " + wallet + " has no score in the latest run",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query_failed", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, score)
}

// handleExplain handles GET /v1/wallets/:wallet/explain.
func (s *Server) handleExplain(c *gin.Context) {
	wallet := c.Param("wallet")

	opts := scoring.ExplainOptions{RunID: c.Query("run_id")}
	if v := c.Query("max_hops"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "max_hops must be a non-negative integer"})
			return
		}
		opts.MaxHops = n
	}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "limit must be a positive integer"})
			return
		}
		opts.PerHopLimit = n
	}

	exp, err := s.scoring.Explain(c.Request.Context(), wallet, opts)
	if err != nil {
		switch {
		case errors.Is(err, scoring.ErrWalletNotFound):
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "wallet_not_found",
				"message": "Wallet " + wallet + " has no score in the referenced run",
			})
		case errors.Is(err, scoring.ErrRunNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "run_not_found", "message": err.Error()})
		case errors.Is(err, scoring.ErrGraphNotReady):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "graph_not_ready", "message": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "explain_failed", "message": err.Error()})
		}
		return
	}
	c.JSON(http.StatusOK, exp)
}

// handleIngestionStatus handles GET /v1/ingestion/status.
func (s *Server) handleIngestionStatus(c *gin.Context) {
	status, err := ingest.CollectStatus(c.Request.Context(), s.txStore, s.cfg.ConsumerName, s.scoring.GraphReady())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "status_failed", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, status)
}
