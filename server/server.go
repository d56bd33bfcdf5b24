// Package server exposes the scheduling engine over HTTP.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/lithammer/shortuuid/v4"

	"github.com/Kash6/SchedulingAgent/internal/profile"
	"github.com/Kash6/SchedulingAgent/plugin/agent"
)

// QueryRequest is the body of POST /api/v1/query. SessionID is optional;
// a fresh session is minted when it is absent.
type QueryRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id,omitempty"`
}

// QueryResponse wraps the engine response with the session identifier so
// clients can continue the conversation.
type QueryResponse struct {
	SessionID string          `json:"session_id"`
	Result    *agent.Response `json:"result"`
}

// Server is the HTTP front end.
type Server struct {
	echo    *echo.Echo
	engine  *agent.Engine
	profile *profile.Profile
}

// New creates a Server with routing and middleware configured.
func New(engine *agent.Engine, prof *profile.Profile) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	s := &Server{
		echo:    e,
		engine:  engine,
		profile: prof,
	}

	e.GET("/healthz", s.handleHealthz)
	e.POST("/api/v1/query", s.handleQuery)

	return s
}

// Echo exposes the underlying router, for tests.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// Start listens on the profile's address until ctx is canceled, then
// shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	address := fmt.Sprintf("%s:%d", s.profile.Addr, s.profile.Port)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "address", address)
		errCh <- s.echo.Start(address)
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		slog.Info("server shutting down")
		return s.echo.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleQuery(c echo.Context) error {
	var req QueryRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if strings.TrimSpace(req.Query) == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "query is required"})
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = shortuuid.New()
	}

	result := s.engine.HandleQuery(c.Request().Context(), sessionID, req.Query)
	slog.Info("query handled",
		"session_id", sessionID,
		"status", result.Status,
		"action", string(result.Action),
		"reason", result.Reason)

	status := http.StatusOK
	if result.Status == agent.StatusFailed {
		status = http.StatusUnprocessableEntity
	}
	return c.JSON(status, QueryResponse{SessionID: sessionID, Result: result})
}
