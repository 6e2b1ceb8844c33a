// Package httpapi exposes the market over HTTP with gin.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mesh-intelligence/bazaar/internal/feed"
	"github.com/mesh-intelligence/bazaar/internal/uploads"
	"github.com/mesh-intelligence/bazaar/pkg/types"
)

const shutdownTimeout = 15 * time.Second

// Options configures a Server. Zero values disable the optional parts.
type Options struct {
	Logger         *slog.Logger
	Uploads        *uploads.Store // nil rejects image uploads
	Feed           *feed.Hub      // nil disables /api/feed and event publishing
	AllowedOrigins []string       // CORS and WebSocket origins; "*" allows any
	WebDir         string         // built browser client served for non-API paths
}

// Server routes HTTP requests to a types.Market.
type Server struct {
	market  types.Market
	uploads *uploads.Store
	feed    feed.Publisher
	logger  *slog.Logger
	engine  *gin.Engine
}

// New builds the router for market.
func New(market types.Market, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		market:  market,
		uploads: opts.Uploads,
		logger:  logger.With("component", "http"),
	}
	if opts.Feed != nil {
		s.feed = opts.Feed
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(s.logger), corsMiddleware(opts.AllowedOrigins))

	r.GET("/healthz", s.health)

	api := r.Group("/api")
	{
		api.GET("/tags", s.listTags)
		api.GET("/items", s.listItems)
		api.GET("/items/:id", s.getItem)
		api.POST("/items", s.addItem)
		api.POST("/prices", s.addPrice)
		if opts.Feed != nil {
			api.GET("/feed", gin.WrapH(opts.Feed))
		}
	}

	if s.uploads != nil {
		r.MaxMultipartMemory = s.uploads.MaxBytes()
		r.Static(uploads.URLPrefix, s.uploads.Dir())
	}

	r.NoRoute(spaHandler(opts.WebDir))

	s.engine = r
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) publish(ev feed.Event) {
	if s.feed != nil {
		s.feed.Publish(ev)
	}
}

func (s *Server) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := s.market.Ping(ctx); err != nil {
		s.logger.Error("health check failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
