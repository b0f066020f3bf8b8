package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"symbio/internal/model"
	"symbio/internal/service/milestone"
)

type MilestoneHandler struct {
	svc    *milestone.Service
	logger *zap.Logger
}

func NewMilestoneHandler(svc *milestone.Service, logger *zap.Logger) *MilestoneHandler {
	return &MilestoneHandler{svc: svc, logger: logger}
}

// Create handles POST /projects/:id/milestones
func (h *MilestoneHandler) Create(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	projectID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Title  string     `json:"title"`
		Amount int64      `json:"amount"`
		DueAt  *time.Time `json:"due_at"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}

	m, err := h.svc.CreateMilestone(c.Request.Context(), projectID, userID, milestone.CreateInput{
		Title:  req.Title,
		Amount: req.Amount,
		DueAt:  req.DueAt,
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

// List handles GET /projects/:id/milestones
func (h *MilestoneHandler) List(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	projectID, ok := pathID(c, "id")
	if !ok {
		return
	}
	ms, err := h.svc.ListMilestones(c.Request.Context(), projectID, userID)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"milestones": ms})
}

type step func(ctx context.Context, milestoneID, actingUserID int64) (*model.Milestone, error)

func (h *MilestoneHandler) step(fn step) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		m, err := fn(c.Request.Context(), id, userID)
		if err != nil {
			writeError(c, h.logger, err)
			return
		}
		c.JSON(http.StatusOK, m)
	}
}

// Submit handles POST /milestones/:id/submit
func (h *MilestoneHandler) Submit() gin.HandlerFunc { return h.step(h.svc.SubmitMilestone) }

// Approve handles POST /milestones/:id/approve
func (h *MilestoneHandler) Approve() gin.HandlerFunc { return h.step(h.svc.ApproveMilestone) }

// Pay handles POST /milestones/:id/pay
func (h *MilestoneHandler) Pay() gin.HandlerFunc { return h.step(h.svc.PayMilestone) }
