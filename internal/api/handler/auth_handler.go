package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/Somye55/seatplanner-sub002/internal/service"
	"github.com/Somye55/seatplanner-sub002/pkg/response"
)

// AuthHandler 认证模块 HTTP 处理器
type AuthHandler struct {
	authSvc service.AuthService
}

// NewAuthHandler 创建 AuthHandler
func NewAuthHandler(authSvc service.AuthService) *AuthHandler {
	return &AuthHandler{authSvc: authSvc}
}

// Logout 吊销当前 Token
// POST /api/v1/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	claims, ok := MustGetClaims(c)
	if !ok {
		return
	}
	if err := h.authSvc.Logout(c.Request.Context(), claims); err != nil {
		if errors.Is(err, service.ErrRevocationUnavailable) {
			response.ServiceUnavailable(c, 10010, err.Error())
			return
		}
		response.InternalError(c)
		return
	}
	response.OK(c, nil)
}

// Me 当前 Token 的身份信息
// GET /api/v1/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	claims, ok := MustGetClaims(c)
	if !ok {
		return
	}
	data := gin.H{
		"user_id": claims.UserID,
		"role":    claims.Role,
	}
	if claims.ExpiresAt != nil {
		data["expires_at"] = claims.ExpiresAt.Time
	}
	response.OK(c, data)
}
