package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"symbio/internal/service/account"
)

type AccountHandler struct {
	svc    *account.Service
	logger *zap.Logger
}

func NewAccountHandler(svc *account.Service, logger *zap.Logger) *AccountHandler {
	return &AccountHandler{svc: svc, logger: logger}
}

// Register handles POST /register
func (h *AccountHandler) Register(c *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Role     string `json:"role"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}

	u, err := h.svc.Register(c.Request.Context(), req.Email, req.Password, req.Role)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, u)
}

// Login handles POST /login
func (h *AccountHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}

	token, u, err := h.svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "user": u})
}

// GetProfile handles GET /me/profile
func (h *AccountHandler) GetProfile(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	p, err := h.svc.GetProfile(c.Request.Context(), userID)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// UpdateProfile handles PUT /me/profile
func (h *AccountHandler) UpdateProfile(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req struct {
		DisplayName string   `json:"display_name"`
		Bio         string   `json:"bio"`
		Skills      []string `json:"skills"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}

	p, err := h.svc.UpdateProfile(c.Request.Context(), userID, account.ProfileInput{
		DisplayName: req.DisplayName,
		Bio:         req.Bio,
		Skills:      req.Skills,
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, p)
}
