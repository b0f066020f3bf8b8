package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"symbio/internal/model"
	"symbio/internal/service/project"
)

type ProjectHandler struct {
	svc    *project.Service
	logger *zap.Logger
}

func NewProjectHandler(svc *project.Service, logger *zap.Logger) *ProjectHandler {
	return &ProjectHandler{svc: svc, logger: logger}
}

// Create handles POST /projects
func (h *ProjectHandler) Create(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Budget      int64  `json:"budget"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}

	p, err := h.svc.CreateProject(c.Request.Context(), userID, project.CreateInput{
		Title:       req.Title,
		Description: req.Description,
		Budget:      req.Budget,
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

// ListOpen handles GET /projects?limit=&offset=
func (h *ProjectHandler) ListOpen(c *gin.Context) {
	projects, err := h.svc.ListOpenProjects(c.Request.Context(), queryInt(c, "limit", 20), queryInt(c, "offset", 0))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"projects": projects})
}

// Get handles GET /projects/:id
func (h *ProjectHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	p, err := h.svc.GetProject(c.Request.Context(), id, optionalUser(c))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

type transition func(ctx context.Context, projectID, actingUserID int64) (*model.Project, error)

func (h *ProjectHandler) transition(fn transition) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		p, err := fn(c.Request.Context(), id, userID)
		if err != nil {
			writeError(c, h.logger, err)
			return
		}
		c.JSON(http.StatusOK, p)
	}
}

// Publish handles POST /projects/:id/publish
func (h *ProjectHandler) Publish() gin.HandlerFunc { return h.transition(h.svc.PublishProject) }

// Complete handles POST /projects/:id/complete
func (h *ProjectHandler) Complete() gin.HandlerFunc { return h.transition(h.svc.CompleteProject) }

// Archive handles POST /projects/:id/archive
func (h *ProjectHandler) Archive() gin.HandlerFunc { return h.transition(h.svc.ArchiveProject) }

// Team handles GET /projects/:id/team
func (h *ProjectHandler) Team(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	team, err := h.svc.ListTeam(c.Request.Context(), id, userID)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"team": team})
}
