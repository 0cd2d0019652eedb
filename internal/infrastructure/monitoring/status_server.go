package monitoring

import (
	"context"
	"net/http"
	"time"

	"dcbench/internal/core/services"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// StatusServer exposes liveness, per-session state and prometheus metrics
// while a benchmark runs. Optional; disabled by default.
type StatusServer struct {
	server   *http.Server
	registry *services.Registry
	logger   *zap.SugaredLogger
}

func NewStatusServer(addr string, registry *services.Registry, logger *zap.SugaredLogger) *StatusServer {
	s := &StatusServer{registry: registry, logger: logger}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", s.handleHealth)
	router.GET("/stats", s.handleStats)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.server = &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

func (s *StatusServer) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
		"sessions":  s.registry.Len(),
	})
}

func (s *StatusServer) handleStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"sessions": s.registry.Snapshot(),
	})
}

// Start serves in the background. Errors other than a clean shutdown are
// logged, not fatal; the benchmark does not depend on the status server.
func (s *StatusServer) Start() {
	go func() {
		s.logger.Infow("status server listening", "addr", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Warnw("status server stopped", "error", err)
		}
	}()
}

func (s *StatusServer) Shutdown(ctx context.Context) {
	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Warnw("status server shutdown failed", "error", err)
	}
}
