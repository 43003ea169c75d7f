package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/Somye55/seatplanner-sub002/pkg/jwt"
)

var (
	ErrRevocationUnavailable = errors.New("未启用 Token 黑名单，无法登出")
)

// TokenBlacklist Token 黑名单存储，由 pkg/redis.Client 实现
type TokenBlacklist interface {
	BlacklistToken(ctx context.Context, jti string, ttl time.Duration) error
	IsBlacklisted(ctx context.Context, jti string) (bool, error)
}

// AuthService 认证业务接口
//
// Token 由外部身份服务签发，本服务只负责吊销与吊销检查
type AuthService interface {
	Logout(ctx context.Context, claims *jwt.Claims) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

type authService struct {
	blacklist TokenBlacklist
	now       func() time.Time
	logger    *zap.Logger
}

// NewAuthService 创建 AuthService 实例；blacklist 为 nil 时登出不可用，校验视为未吊销
func NewAuthService(blacklist TokenBlacklist, logger *zap.Logger) AuthService {
	return &authService{blacklist: blacklist, now: time.Now, logger: logger}
}

func (s *authService) Logout(ctx context.Context, claims *jwt.Claims) error {
	if s.blacklist == nil {
		return ErrRevocationUnavailable
	}
	if claims.ID == "" {
		return jwt.ErrTokenInvalid
	}

	var ttl time.Duration
	if claims.ExpiresAt != nil {
		ttl = claims.ExpiresAt.Sub(s.now())
	}
	if err := s.blacklist.BlacklistToken(ctx, claims.ID, ttl); err != nil {
		s.logger.Error("加入 Token 黑名单失败", zap.String("user_id", claims.UserID), zap.Error(err))
		return err
	}

	s.logger.Info("用户已登出", zap.String("user_id", claims.UserID))
	return nil
}

func (s *authService) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if s.blacklist == nil || jti == "" {
		return false, nil
	}
	revoked, err := s.blacklist.IsBlacklisted(ctx, jti)
	if err != nil {
		s.logger.Error("查询 Token 黑名单失败", zap.Error(err))
		return false, err
	}
	return revoked, nil
}
