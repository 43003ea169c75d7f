package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/Somye55/seatplanner-sub002/pkg/jwt"
	"github.com/Somye55/seatplanner-sub002/pkg/response"
)

// 以下字段由 middleware.JWTAuth 注入。缺失时写入 401 并返回 false，调用方直接 return

// MustGetUserID 当前用户 ID
func MustGetUserID(c *gin.Context) (string, bool) {
	return mustGetString(c, "user_id")
}

// MustGetRole 当前用户角色
func MustGetRole(c *gin.Context) (string, bool) {
	return mustGetString(c, "role")
}

// MustGetClaims 完整的 Token 声明（登出时需要 jti 与过期时间）
func MustGetClaims(c *gin.Context) (*jwt.Claims, bool) {
	claims, ok := c.Value("claims").(*jwt.Claims)
	if !ok || claims == nil {
		response.Unauthorized(c, 10002, "未认证")
		return nil, false
	}
	return claims, true
}

func mustGetString(c *gin.Context, key string) (string, bool) {
	s := c.GetString(key)
	if s == "" {
		response.Unauthorized(c, 10002, "未认证")
		return "", false
	}
	return s, true
}
