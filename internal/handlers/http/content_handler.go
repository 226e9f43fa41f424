package http

import (
	"context"
	_ "embed"
	"net/http"
	"time"

	"deskrelay/internal/infrastructure/middleware"
	"deskrelay/internal/infrastructure/monitoring"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

//go:embed static/index.html
var indexPage []byte

// StatsFunc reports live counters for the health endpoint.
type StatsFunc func() map[string]interface{}

// ContentHandler serves everything on the listener that is not a WebSocket
// upgrade.
type ContentHandler struct {
	health       *monitoring.HealthChecker
	stats        StatsFunc
	metrics      http.Handler
	startTime    time.Time
	checkTimeout time.Duration
}

// NewContentHandler wires the probes. metrics may be nil to disable
// /metrics; stats may be nil.
func NewContentHandler(health *monitoring.HealthChecker, stats StatsFunc, metrics http.Handler) *ContentHandler {
	return &ContentHandler{
		health:       health,
		stats:        stats,
		metrics:      metrics,
		startTime:    time.Now(),
		checkTimeout: 2 * time.Second,
	}
}

// NewEngine builds the gin engine with the content middleware stack.
func NewEngine(logger *zap.SugaredLogger, debug bool) *gin.Engine {
	if !debug {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(
		middleware.RecoveryMiddleware(logger),
		middleware.TracingMiddleware("/metrics"),
		middleware.RequestLogger(logger),
	)
	return router
}

func (h *ContentHandler) SetupRoutes(router *gin.Engine) {
	router.GET("/", h.Index)
	router.GET("/health", h.Health)
	router.GET("/ready", h.Ready)
	if h.metrics != nil {
		router.GET("/metrics", gin.WrapH(h.metrics))
	}
}

func (h *ContentHandler) Index(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", indexPage)
}

// Health always answers 200 with the check results and live counters.
func (h *ContentHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.checkTimeout)
	defer cancel()

	status := h.health.CheckAll(ctx)
	body := gin.H{
		"status":    status.Status,
		"timestamp": status.Timestamp,
		"uptime":    time.Since(h.startTime).String(),
		"checks":    status.Checks,
	}
	if h.stats != nil {
		for k, v := range h.stats() {
			body[k] = v
		}
	}
	c.JSON(http.StatusOK, body)
}

// Ready answers 503 while any check fails.
func (h *ContentHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.checkTimeout)
	defer cancel()

	status := h.health.CheckAll(ctx)
	if !status.Healthy() {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":    "not_ready",
			"timestamp": status.Timestamp,
			"checks":    status.Checks,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "ready",
		"timestamp": status.Timestamp,
	})
}
