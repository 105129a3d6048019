// Package server exposes the code generation pipeline over HTTP.
package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"codelake/internal/session"
)

// SessionService routes a message to a session and returns the shaped
// response plus the session id used. *session.Registry implements it.
type SessionService interface {
	Process(ctx context.Context, sessionID, message string) (session.Response, string, error)
}

// GenerateRequest is the POST /generate payload.
type GenerateRequest struct {
	Message   string `json:"message" binding:"required"`
	SessionID string `json:"session_id"`
}

// GenerateResponse is the POST /generate reply.
type GenerateResponse struct {
	Message     string   `json:"message"`
	Code        string   `json:"code,omitempty"`
	Type        string   `json:"type"`
	Confidence  *float64 `json:"confidence,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
	MissingInfo []string `json:"missing_info,omitempty"`
	SessionID   string   `json:"session_id"`
}

// Server is the HTTP API.
type Server struct {
	sessions SessionService
	logger   *zap.Logger
}

// New creates a server.
func New(sessions SessionService, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{sessions: sessions, logger: logger}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", s.handleHealth)
	r.POST("/generate", s.handleGenerate)
	return r
}

// Run serves the API on addr until the listener fails.
func (s *Server) Run(addr string) error {
	s.logger.Info("starting HTTP API", zap.String("addr", addr))
	return s.Router().Run(addr)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleGenerate(c *gin.Context) {
	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, sessionID, err := s.sessions.Process(c.Request.Context(), req.SessionID, req.Message)
	if err != nil {
		s.logger.Error("failed to process message",
			zap.String("session_id", req.SessionID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, GenerateResponse{
		Message:     resp.Message,
		Code:        resp.Code,
		Type:        resp.Type,
		Confidence:  resp.Confidence,
		Suggestions: resp.Suggestions,
		MissingInfo: resp.MissingInfo,
		SessionID:   sessionID,
	})
}
