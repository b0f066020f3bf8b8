package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"symbio/internal/service/review"
)

type ReviewHandler struct {
	svc    *review.Service
	logger *zap.Logger
}

func NewReviewHandler(svc *review.Service, logger *zap.Logger) *ReviewHandler {
	return &ReviewHandler{svc: svc, logger: logger}
}

// Create handles POST /projects/:id/reviews
func (h *ReviewHandler) Create(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	projectID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req struct {
		FreelancerID int64  `json:"freelancer_id"`
		Rating       int    `json:"rating"`
		Comment      string `json:"comment"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}

	r, err := h.svc.CreateReview(c.Request.Context(), projectID, userID, review.CreateInput{
		FreelancerID: req.FreelancerID,
		Rating:       req.Rating,
		Comment:      req.Comment,
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, r)
}

// ListForFreelancer handles GET /freelancers/:id/reviews
func (h *ReviewHandler) ListForFreelancer(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	reviews, err := h.svc.ListForFreelancer(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reviews": reviews})
}
