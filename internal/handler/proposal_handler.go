package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"symbio/internal/service/proposal"
)

type ProposalHandler struct {
	svc    *proposal.Service
	logger *zap.Logger
}

func NewProposalHandler(svc *proposal.Service, logger *zap.Logger) *ProposalHandler {
	return &ProposalHandler{svc: svc, logger: logger}
}

// Submit handles POST /projects/:id/proposals
func (h *ProposalHandler) Submit(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	projectID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req struct {
		CoverLetter string `json:"cover_letter"`
		BidAmount   int64  `json:"bid_amount"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}

	p, err := h.svc.SubmitProposal(c.Request.Context(), projectID, userID, proposal.SubmitInput{
		CoverLetter: req.CoverLetter,
		BidAmount:   req.BidAmount,
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

// ListForProject handles GET /projects/:id/proposals
func (h *ProposalHandler) ListForProject(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	projectID, ok := pathID(c, "id")
	if !ok {
		return
	}
	proposals, err := h.svc.ListProjectProposals(c.Request.Context(), projectID, userID)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"proposals": proposals})
}

// ListMine handles GET /me/proposals
func (h *ProposalHandler) ListMine(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	proposals, err := h.svc.ListFreelancerProposals(c.Request.Context(), userID, userID)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"proposals": proposals})
}

// Get handles GET /proposals/:id
func (h *ProposalHandler) Get(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	p, err := h.svc.GetProposal(c.Request.Context(), id, userID)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// Accept handles POST /proposals/:id/accept
func (h *ProposalHandler) Accept(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	res, err := h.svc.AcceptProposal(c.Request.Context(), id, userID)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"proposal":       res.Proposal,
		"project":        res.Project,
		"team_member":    res.TeamMember,
		"rejected_count": len(res.Rejected),
	})
}

// Reject handles POST /proposals/:id/reject
func (h *ProposalHandler) Reject(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	p, err := h.svc.RejectProposal(c.Request.Context(), id, userID)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, p)
}
