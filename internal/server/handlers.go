package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hovel-sh/hovel/internal/engine"
	"github.com/hovel-sh/hovel/internal/model"
)

// createBranchRequest is the POST /api/branch body.
type createBranchRequest struct {
	BranchName   string   `json:"branch_name"`
	Services     []string `json:"services"`
	GeminiAPIKey string   `json:"gemini_api_key"`
	AutoStart    bool     `json:"auto_start"`
}

// startBranchRequest is the POST /api/branch/{name}/start body. The
// body is optional; an absent or empty body starts every service.
type startBranchRequest struct {
	Services []string `json:"services"`
}

// Container-start indications returned by create.
const (
	containerStartPending      = "pending"
	containerStartNotRequested = "not_requested"
)

// respondError maps a domain error onto the API's error envelope.
func respondError(c *gin.Context, err error) {
	kind := model.KindOf(err)

	message := err.Error()
	var detail string
	var de *model.Error
	if errors.As(err, &de) {
		message = de.Message
		if de.Err != nil {
			detail = de.Err.Error()
		}
	}

	body := gin.H{"error": message, "code": string(kind)}
	if detail != "" {
		body["detail"] = detail
	}
	c.JSON(kind.HTTPStatus(), body)
}

// handleRoot reports service identity.
func (s *Server) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "hovel",
		"version": s.version,
	})
}

// handleHealth is the liveness probe.
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// handleAPIStatus lists the API surface for discovery.
func (s *Server) handleAPIStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"endpoints": []string{
			"GET /",
			"GET /health",
			"GET /api/status",
			"GET /metrics",
			"POST /api/branch",
			"GET /api/branches",
			"GET /api/branch/{name}",
			"DELETE /api/branch/{name}",
			"POST /api/branch/{name}/start",
			"POST /api/branch/{name}/stop",
			"POST /api/branch/{name}/restart",
			"GET /api/branch/{name}/status",
			"GET /api/branch/{name}/logs",
			"POST /api/branch/{name}/gemini-session",
		},
	})
}

// handleCreateBranch provisions a new branch.
func (s *Server) handleCreateBranch(c *gin.Context) {
	var req createBranchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, model.WrapE(model.KindInvalidRequest, "invalid request body", err))
		return
	}

	branch, err := s.engine.Create(c.Request.Context(), engine.CreateRequest{
		Name:      req.BranchName,
		Services:  req.Services,
		APIKey:    req.GeminiAPIKey,
		AutoStart: req.AutoStart,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	containerStarted := containerStartNotRequested
	if req.AutoStart {
		containerStarted = containerStartPending
	}

	c.JSON(http.StatusOK, gin.H{
		"branch_name":         branch.Name,
		"port":                branch.Port,
		"status":              branch.Status,
		"services":            branch.Services,
		"gemini_api_validated": branch.CredentialValidated,
		"container_started":   containerStarted,
	})
}

// handleListBranches lists every registered branch.
func (s *Server) handleListBranches(c *gin.Context) {
	branches, err := s.engine.List()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"branches":  branches,
		"count":     len(branches),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleGetBranch returns one branch record.
func (s *Server) handleGetBranch(c *gin.Context) {
	branch, err := s.engine.Get(c.Param("name"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, branch)
}

// handleDeleteBranch tears a branch down.
func (s *Server) handleDeleteBranch(c *gin.Context) {
	if err := s.engine.Delete(c.Request.Context(), c.Param("name")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// handleStartBranch starts a branch's container group or a subset of
// its services.
func (s *Server) handleStartBranch(c *gin.Context) {
	var req startBranchRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, model.WrapE(model.KindInvalidRequest, "invalid request body", err))
			return
		}
	}

	started, err := s.engine.Start(c.Request.Context(), c.Param("name"), req.Services)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":           model.StatusRunning,
		"services_started": started,
	})
}

// handleStopBranch stops a branch's container group.
func (s *Server) handleStopBranch(c *gin.Context) {
	if err := s.engine.Stop(c.Request.Context(), c.Param("name")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": model.StatusStopped})
}

// handleRestartBranch restarts a branch's container group.
func (s *Server) handleRestartBranch(c *gin.Context) {
	if err := s.engine.Restart(c.Request.Context(), c.Param("name")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": model.StatusRunning})
}

// handleBranchStatus reports per-service container liveness.
func (s *Server) handleBranchStatus(c *gin.Context) {
	statuses, err := s.engine.Status(c.Request.Context(), c.Param("name"))
	if err != nil {
		respondError(c, err)
		return
	}

	aggregate := "stopped"
	if model.AnyRunning(statuses) {
		aggregate = "running"
	}
	c.JSON(http.StatusOK, gin.H{
		"container_status": aggregate,
		"per_service":      statuses,
	})
}

// handleBranchLogs returns the tail of a branch's container output.
func (s *Server) handleBranchLogs(c *gin.Context) {
	lines := 0
	if raw := c.Query("lines"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			respondError(c, model.Ef(model.KindInvalidRequest, "invalid lines parameter %q", raw))
			return
		}
		lines = n
	}

	logs, err := s.engine.Logs(c.Request.Context(), c.Param("name"), lines)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"logs": logs})
}

// handleGeminiSession starts a web-terminal session in the branch's
// primary container.
func (s *Server) handleGeminiSession(c *gin.Context) {
	session, err := s.engine.StartTerminalSession(c.Request.Context(), c.Param("name"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"ttyd_port":  session.Port,
		"ttyd_url":   session.URL,
		"access_url": session.URL,
		"command":    session.Command,
	})
}
