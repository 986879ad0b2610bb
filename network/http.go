package network

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"nexus/config"
	"nexus/errs"
	"nexus/game"
	"nexus/hub"
	"nexus/presence"
	"nexus/room"
)

// Queries is the read-only view of the hub served over HTTP.
type Queries interface {
	Sessions() []room.Session
	PublicSessions() []room.PublicSessionSummary
	Session(sessionID string) (room.Session, error)
	GameState(sessionID string) (game.State, error)
	OnlineUsers() []presence.User
	SessionCount() int
	ConnectionCount() int
}

// NewRouter builds the HTTP surface: the websocket endpoint plus JSON
// queries over sessions and game state.
func NewRouter(h *hub.Hub, cfg config.NetworkConfig, log *zap.Logger) *gin.Engine {
	if log == nil {
		log = zap.NewNop()
	}
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(log.Named("http")))

	r.GET("/ws", gin.WrapH(NewUpgrader(h, cfg, log)))
	registerQueries(r, h)
	return r
}

func registerQueries(r gin.IRouter, q Queries) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":      "ok",
			"connections": q.ConnectionCount(),
			"sessions":    q.SessionCount(),
			"usersOnline": len(q.OnlineUsers()),
		})
	})

	api := r.Group("/api")
	api.GET("/users/online", func(c *gin.Context) {
		c.JSON(http.StatusOK, q.OnlineUsers())
	})
	api.GET("/sessions", func(c *gin.Context) {
		c.JSON(http.StatusOK, q.Sessions())
	})
	api.GET("/sessions/public", func(c *gin.Context) {
		c.JSON(http.StatusOK, q.PublicSessions())
	})
	api.GET("/sessions/:id", func(c *gin.Context) {
		s, err := q.Session(c.Param("id"))
		if err != nil {
			abort(c, err)
			return
		}
		c.JSON(http.StatusOK, s)
	})
	api.GET("/sessions/:id/state", func(c *gin.Context) {
		st, err := q.GameState(c.Param("id"))
		if err != nil {
			abort(c, err)
			return
		}
		c.JSON(http.StatusOK, st)
	})
}

func abort(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, errs.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, errs.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, errs.ErrUnregistered):
		status = http.StatusForbidden
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error(), "code": string(errs.KindOf(err))})
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("took", time.Since(start)),
		)
	}
}

// Server serves a handler until its context is cancelled.
type Server struct {
	srv             *http.Server
	shutdownTimeout time.Duration
	log             *zap.Logger
}

func NewServer(addr string, handler http.Handler, shutdownTimeout time.Duration, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		srv:             &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second},
		shutdownTimeout: shutdownTimeout,
		log:             log.Named("server"),
	}
}

// Run listens on the configured address and blocks until ctx is done or the
// listener fails.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errc := make(chan error, 1)
	go func() {
		s.log.Info("listening", zap.String("addr", ln.Addr().String()))
		errc <- s.srv.Serve(ln)
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	s.log.Info("shutting down")
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
