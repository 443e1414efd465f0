package webhook

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Jacfogel/MHM-sub009/internal/core"
)

// Notifier delivers an injected notification to a user over the active
// channel adapter. The bool mirrors the adapter's queue-accepted result.
type Notifier interface {
	SendNotification(userID, text string, rich *core.RichPayload, suggestions []string) bool
}

// StatusSource exposes the adapter's connection state for the status endpoint.
type StatusSource interface {
	Snapshot() core.ConnectionSnapshot
}

// Server is the local HTTP surface: health, connection status, and a
// token-guarded endpoint for injecting notifications from outside.
type Server struct {
	engine     *gin.Engine
	httpServer *http.Server
	tokens     *TokenManager
	notifier   Notifier
	status     StatusSource
}

// NewServer builds the webhook server. The secret guards /api/notify;
// health and status stay open for local probes.
func NewServer(secret string, notifier Notifier, status StatusSource) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		engine:   engine,
		tokens:   NewTokenManager(secret),
		notifier: notifier,
		status:   status,
	}
	s.registerRoutes()
	return s
}

// Tokens returns the server's token manager so callers can mint tokens
// (the CLI prints one at startup for external integrations).
func (s *Server) Tokens() *TokenManager {
	return s.tokens
}

// Router returns the gin engine for tests.
func (s *Server) Router() *gin.Engine {
	return s.engine
}

func (s *Server) registerRoutes() {
	s.engine.GET("/healthz", s.handleHealth)

	api := s.engine.Group("/api")
	api.GET("/status", s.handleStatus)
	api.POST("/notify", s.requireAuth(), s.handleNotify)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleStatus(c *gin.Context) {
	if s.status == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "status source not attached"})
		return
	}
	snap := s.status.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"healthy":    snap.Healthy(),
		"connection": snap,
	})
}

// notifyRequest is the body accepted by POST /api/notify.
type notifyRequest struct {
	UserID      string            `json:"user_id" binding:"required"`
	Message     string            `json:"message" binding:"required"`
	Rich        *core.RichPayload `json:"rich_data,omitempty"`
	Suggestions []string          `json:"suggestions,omitempty"`
}

func (s *Server) handleNotify(c *gin.Context) {
	var req notifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid request body: %v", err)})
		return
	}

	if s.notifier == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "notifier not attached"})
		return
	}

	if !s.notifier.SendNotification(req.UserID, req.Message, req.Rich, req.Suggestions) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "notification not accepted", "queued": false})
		return
	}

	logrus.WithFields(logrus.Fields{
		"user_id": req.UserID,
		"caller":  c.GetString("caller"),
	}).Info("webhook notification queued")
	c.JSON(http.StatusAccepted, gin.H{"queued": true})
}

// requireAuth validates the Authorization bearer token on protected routes.
func (s *Server) requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization header required"})
			c.Abort()
			return
		}

		claims, err := s.tokens.ValidateBearer(header)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			c.Abort()
			return
		}

		c.Set("caller", claims.Caller)
		c.Next()
	}
}

// Start begins serving on the port and returns once the listener is
// reachable, so startup failures (port in use) surface immediately.
func (s *Server) Start(port int) error {
	addr := fmt.Sprintf("127.0.0.1:%d", port)
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.engine,
	}

	serverError := make(chan error, 1)
	go func() {
		serverError <- s.httpServer.ListenAndServe()
	}()

	if err := waitForPort(addr, 2*time.Second); err != nil {
		select {
		case e := <-serverError:
			return e
		default:
			return fmt.Errorf("timeout: webhook server did not start on %s: %v", addr, err)
		}
	}

	go func() {
		if err := <-serverError; err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Error("webhook server exited")
		}
	}()

	logrus.WithField("addr", addr).Info("webhook server listening")
	return nil
}

// waitForPort polls the address until it accepts connections.
func waitForPort(addr string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", addr, 100*time.Millisecond)
		if err == nil {
			conn.Close()
			return nil
		}
		time.Sleep(50 * time.Millisecond)
	}
	return fmt.Errorf("port %s not reachable", addr)
}

// Stop gracefully shuts the HTTP server down.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
