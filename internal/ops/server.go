// Package ops serves the operator HTTP surface: health and order export.
package ops

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"

	"github.com/m3rciful/starshop/core/logger"
	"github.com/m3rciful/starshop/internal/export"
	"github.com/m3rciful/starshop/internal/shop"
)

const component = "ops"

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// OrderSource provides the order log.
type OrderSource interface {
	ExportOrders(ctx context.Context) ([]shop.Order, error)
}

// Options configures the ops server.
type Options struct {
	Listen string
	// Token guards /admin routes; empty disables them.
	Token  string
	Orders OrderSource
	Checks map[string]Pinger
	Now    func() time.Time
}

// Server wraps the gin engine and its listener.
type Server struct {
	opts   Options
	engine *gin.Engine
	srv    *http.Server
}

func New(opts Options) *Server {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	s := &Server{opts: opts}
	s.engine = s.routes()
	return s
}

// Handler exposes the router for tests and embedding.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) routes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestLogger())
	engine.Use(gzip.Gzip(gzip.DefaultCompression))

	engine.GET("/healthz", s.health)

	if s.opts.Token != "" && s.opts.Orders != nil {
		admin := engine.Group("/admin")
		admin.Use(bearerAuth(s.opts.Token))
		admin.GET("/orders.csv", s.ordersCSV)
	}
	return engine
}

func (s *Server) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	checks := make(map[string]string, len(s.opts.Checks))
	healthy := true
	for name, p := range s.opts.Checks {
		if err := p.Ping(ctx); err != nil {
			checks[name] = err.Error()
			healthy = false
			continue
		}
		checks[name] = "ok"
	}
	code := http.StatusOK
	status := "ok"
	if !healthy {
		code = http.StatusServiceUnavailable
		status = "degraded"
	}
	c.JSON(code, gin.H{"status": status, "checks": checks})
}

func (s *Server) ordersCSV(c *gin.Context) {
	orders, err := s.opts.Orders.ExportOrders(c.Request.Context())
	if err != nil {
		logger.Error(c.Request.Context(), component, "export.fail",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", `attachment; filename="`+export.FileName(s.opts.Now())+`"`)
	c.Status(http.StatusOK)
	if err := export.WriteOrders(c.Writer, orders); err != nil {
		logger.Error(c.Request.Context(), component, "export.fail",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
	}
}

func bearerAuth(token string) gin.HandlerFunc {
	want := []byte(token)
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		if !strings.HasPrefix(strings.ToLower(h), "bearer ") {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		got := []byte(strings.TrimSpace(h[7:]))
		if subtle.ConstantTimeCompare(got, want) != 1 {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		c.Next()
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info(c.Request.Context(), component, "http.request",
			slog.String("status", "ok"),
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("http_code", c.Writer.Status()),
			slog.Duration("duration_ms", logger.RoundMS(time.Since(start))),
		)
	}
}

// Start listens in the background. The returned error covers bind failures only.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.opts.Listen)
	if err != nil {
		return err
	}
	s.srv = &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}
	logger.Info(context.Background(), component, "listen",
		slog.String("status", "ok"),
		slog.String("listen", ln.Addr().String()),
	)
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(context.Background(), component, "serve.fail",
				slog.String("status", "fail"),
				slog.String("err", err.Error()),
			)
		}
	}()
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}
