package api

import (
	"context"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rawblock/bridge-dd-engine/internal/analysis"
	"github.com/rawblock/bridge-dd-engine/internal/batch"
	"github.com/rawblock/bridge-dd-engine/internal/db"
	"github.com/rawblock/bridge-dd-engine/internal/dd"
	"github.com/rawblock/bridge-dd-engine/internal/lin"
)

// maxBatchBoards caps a single analysis request; a full DD solve per card is
// expensive and unconstrained uploads would exhaust the worker pool.
const maxBatchBoards = 512

// solveTimeout bounds synchronous solve/analyze requests.
const solveTimeout = 30 * time.Second

type APIHandler struct {
	dbStore *db.PostgresStore
	wsHub   *Hub
	runner  *batch.Runner
}

func SetupRouter(dbStore *db.PostgresStore, wsHub *Hub, runner *batch.Runner) *gin.Engine {
	r := gin.Default()

	// Enable CORS — configurable via ALLOWED_ORIGINS env var
	// Production: ALLOWED_ORIGINS=https://example.net,https://www.example.net
	// Development: ALLOWED_ORIGINS=http://localhost:3000 (or leave empty for *)
	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if allowedOrigins == "" || allowedOrigins == "*" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		} else {
			for _, allowed := range strings.Split(allowedOrigins, ",") {
				if strings.TrimSpace(allowed) == origin {
					c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
					break
				}
			}
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	handler := &APIHandler{
		dbStore: dbStore,
		wsHub:   wsHub,
		runner:  runner,
	}

	// ── Public endpoints (no auth) ─────────────────────────────
	pub := r.Group("/api/v1")
	{
		pub.GET("/health", handler.handleHealth)
		pub.GET("/stream", wsHub.Subscribe)
		pub.GET("/batch/progress", handler.handleBatchProgress)
	}

	// ── Protected endpoints (require bearer token if API_AUTH_TOKEN set) ──
	auth := r.Group("/api/v1")
	auth.Use(AuthMiddleware())
	// Rate-limit protected endpoints to 30 req/min per IP (burst=5); every
	// request below runs full double-dummy searches.
	auth.Use(NewRateLimiter(30, 5).Middleware())
	{
		auth.POST("/analyze", handler.handleAnalyze)
		auth.POST("/costs", handler.handleCosts)
		auth.POST("/solve", handler.handleSolve)
		auth.POST("/batch", handler.handleBatch)
		auth.GET("/players", handler.handlePlayerTotals)
		auth.GET("/results", handler.handleRecentResults)
	}

	// Serve Static Dashboard
	r.Static("/dashboard", "./public")

	return r
}

func (h *APIHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "bridge-dd-engine",
	})
}

// handleAnalyze runs one LIN board (or a small file) synchronously and
// returns the per-board results.
func (h *APIHandler) handleAnalyze(c *gin.Context) {
	var req struct {
		Lin      string `json:"lin" binding:"required"`
		MidTrick *bool  `json:"midTrick"`
		BudgetMs int    `json:"budgetMs"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	boards, err := lin.ParseFile(req.Lin)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to parse LIN", "details": err.Error()})
		return
	}
	if len(boards) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No boards in LIN payload"})
		return
	}
	if len(boards) > maxBatchBoards {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Too many boards", "max": maxBatchBoards})
		return
	}

	cfg := analysis.MidTrickConfig()
	if req.MidTrick != nil && !*req.MidTrick {
		cfg = analysis.TrickBoundaryConfig()
	}
	if req.BudgetMs > 0 {
		cfg.Budget = time.Duration(req.BudgetMs) * time.Millisecond
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), solveTimeout)
	defer cancel()

	engine := analysis.NewEngine()
	results := make([]any, 0, len(boards))
	for _, board := range boards {
		select {
		case <-ctx.Done():
			c.JSON(http.StatusRequestTimeout, gin.H{"error": "Analysis timed out", "completed": len(results)})
			return
		default:
		}
		res, err := engine.AnalyzeBoard(board, cfg)
		if err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error": "Analysis failed", "board": board.BoardNumber(), "details": err.Error(),
			})
			return
		}
		if res != nil {
			results = append(results, res)
		}
	}
	c.JSON(http.StatusOK, gin.H{"boards": len(results), "results": results})
}

// handleCosts exposes the raw per-card cost grid for one hand.
func (h *APIHandler) handleCosts(c *gin.Context) {
	var req struct {
		Deal     string `json:"deal" binding:"required"`     // PBN
		Play     string `json:"play" binding:"required"`     // tricks split by '|'
		Contract string `json:"contract" binding:"required"` // e.g. "3NT"
		Declarer string `json:"declarer" binding:"required"` // e.g. "South"
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	res, err := analysis.ComputeDDCosts(req.Deal, req.Play, req.Contract, req.Declarer)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Cost computation failed", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, res)
}

// handleSolve runs a single boundary double-dummy solve.
func (h *APIHandler) handleSolve(c *gin.Context) {
	var req struct {
		Deal   string `json:"deal" binding:"required"`
		Trump  string `json:"trump" binding:"required"`  // S, H, D, C or NT
		Leader string `json:"leader" binding:"required"` // seat name
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	deal, err := dd.DealFromPBN(req.Deal)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid deal", "details": err.Error()})
		return
	}
	trump, err := analysis.ParseTrump(req.Trump)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid trump", "details": err.Error()})
		return
	}
	leader, err := dd.ParseSeat(req.Leader)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid leader", "details": err.Error()})
		return
	}

	solver := dd.NewSolver(deal, trump, leader)
	solver.SetDeadline(time.Now().Add(solveTimeout))
	ns, err := solver.Solve(dd.NewCutoffCache(16), dd.NewPatternCache(16))
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Solve failed", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"nsTricks": ns,
		"ewTricks": 13 - ns,
		"trump":    trump.String(),
		"leader":   leader.String(),
	})
}

// handleBatch launches an asynchronous analysis of a LIN file; results are
// persisted and streamed over the websocket as they complete.
func (h *APIHandler) handleBatch(c *gin.Context) {
	var req struct {
		Lin string `json:"lin" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	boards, err := lin.ParseFile(req.Lin)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to parse LIN", "details": err.Error()})
		return
	}
	if len(boards) == 0 || len(boards) > maxBatchBoards {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Board count out of range", "max": maxBatchBoards})
		return
	}
	if h.runner.Progress().IsRunning {
		c.JSON(http.StatusConflict, gin.H{"error": "A batch is already in progress"})
		return
	}

	go func() {
		// Detached from the request: the batch outlives the HTTP call.
		if _, _, err := h.runner.Run(context.Background(), boards); err != nil && err != batch.ErrBusy {
			log.Printf("[API] Batch analysis failed: %v", err)
		}
	}()

	c.JSON(http.StatusAccepted, gin.H{"status": "started", "boards": len(boards)})
}

func (h *APIHandler) handleBatchProgress(c *gin.Context) {
	c.JSON(http.StatusOK, h.runner.Progress())
}

func (h *APIHandler) handlePlayerTotals(c *gin.Context) {
	if h.dbStore == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Persistence not configured"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	totals, err := h.dbStore.PlayerTotals(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Query failed", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"players": totals})
}

func (h *APIHandler) handleRecentResults(c *gin.Context) {
	if h.dbStore == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Persistence not configured"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	results, err := h.dbStore.RecentResults(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Query failed", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}
