package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"symbio/internal/apperr"
	"symbio/internal/payment"
	"symbio/pkg/logger"
)

// ContextKeyUserID / ContextKeyRole 由认证中间件写入
const (
	ContextKeyUserID = "user_id"
	ContextKeyRole   = "role"
)

// StatusOf 把领域错误映射为 HTTP 状态码
func StatusOf(err error) int {
	switch apperr.KindOf(err) {
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindInvalidState, apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindInvalidInput:
		return http.StatusBadRequest
	case apperr.KindUnauthenticated:
		return http.StatusUnauthorized
	}
	if errors.Is(err, payment.ErrUnavailable) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// writeError 领域错误原样返回消息；内部错误只记录日志
func writeError(c *gin.Context, log *zap.Logger, err error) {
	status := StatusOf(err)
	if status >= http.StatusInternalServerError {
		logger.WithTrace(c.Request.Context(), log).Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		msg := "internal error"
		if status == http.StatusServiceUnavailable {
			msg = "payment gateway unavailable"
		}
		c.JSON(status, gin.H{"error": msg})
		return
	}
	c.JSON(status, gin.H{
		"error": err.Error(),
		"kind":  apperr.KindOf(err).String(),
	})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg, "kind": apperr.KindInvalidInput.String()})
}

// currentUser 返回认证中间件写入的用户 id
func currentUser(c *gin.Context) (int64, bool) {
	v, ok := c.Get(ContextKeyUserID)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return 0, false
	}
	id, ok := v.(int64)
	if !ok || id <= 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid user_id"})
		return 0, false
	}
	return id, true
}

// optionalUser 公开路由上的可选身份，未登录时返回 0
func optionalUser(c *gin.Context) int64 {
	id, _ := c.Get(ContextKeyUserID)
	v, _ := id.(int64)
	return v
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return id, true
}

func queryInt(c *gin.Context, name string, def int) int {
	v, err := strconv.Atoi(c.DefaultQuery(name, strconv.Itoa(def)))
	if err != nil {
		return def
	}
	return v
}
