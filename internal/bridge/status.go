package bridge

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/danmuck/graphctl/internal/hostloop"
	"github.com/danmuck/graphctl/internal/listener"
	"github.com/danmuck/graphctl/internal/observability"
	"github.com/danmuck/graphctl/internal/session"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Router builds the read-only status API.
func (s *Service) Router() *gin.Engine {
	observability.RegisterMetrics()
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.StatusMiddleware(s.cfg.Name, s.logger))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(s.cfg.CorsOrigins),
		AllowMethods: []string{"GET"},
		AllowHeaders: []string{"Origin", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	r.GET("/health", s.handleHealth)
	r.GET("/ready", s.handleReady)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/session", s.handleSession)
	r.GET("/node-types", s.handleNodeTypes)
	return r
}

func (s *Service) handleHealth(c *gin.Context) {
	info := s.host.Info()
	uptime := time.Duration(0)
	if !s.startedAt.IsZero() {
		uptime = time.Since(s.startedAt)
	}
	c.JSON(http.StatusOK, gin.H{
		"status":       "ok",
		"service":      s.cfg.Name,
		"uptime":       uptime.String(),
		"host":         info.Name,
		"host_version": info.Version,
	})
}

func (s *Service) handleReady(c *gin.Context) {
	if !s.Ready() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"ready": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ready": true, "actions": len(s.disp.Actions())})
}

// handleSession reads the snapshot on the host context like any command.
func (s *Service) handleSession(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), s.cfg.ShutdownGrace)
	defer cancel()
	snap, err := hostloop.Call(ctx, s.exec, func() session.Snapshot {
		return s.state.Session.Snapshot()
	})
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (s *Service) handleNodeTypes(c *gin.Context) {
	aliases := s.reg.Aliases(c.Query("filter"))
	c.JSON(http.StatusOK, gin.H{"count": len(aliases), "node_types": aliases})
}

func (s *Service) serveStatus(ctx context.Context, addr string) error {
	if err := listener.CheckLoopback(addr); err != nil {
		return err
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.logger.Info().Str("addr", addr).Msg("bridge.Service.serveStatus listening")

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func normalizeOrigins(in []string) []string {
	out := make([]string, 0, len(in))
	for _, o := range in {
		if v := strings.TrimSpace(o); v != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return []string{"http://localhost:3000"}
	}
	return out
}
