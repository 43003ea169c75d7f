package handler

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Somye55/seatplanner-sub002/internal/dto"
	"github.com/Somye55/seatplanner-sub002/internal/service"
	pkgerrors "github.com/Somye55/seatplanner-sub002/pkg/errors"
	"github.com/Somye55/seatplanner-sub002/pkg/response"
)

// 跨模块错误码
const (
	codeValidation     = 10001
	codeConflict       = 20409
	codeUnsatisfiable  = 20422
	codeRetryExhausted = 20503
)

// handleCommonError 处理所有写路径共有的错误：版本冲突、约束无法满足、重试耗尽。
// 已写入响应时返回 true
func handleCommonError(c *gin.Context, err error) bool {
	if ce, ok := pkgerrors.AsConflict(err); ok {
		response.Conflict(c, codeConflict, dto.ToRecord(ce.Current, time.Now()), ce.Reason)
		return true
	}
	switch {
	case errors.Is(err, service.ErrConstraintUnsatisfiable):
		response.Unprocessable(c, codeUnsatisfiable, "没有满足约束的可用资源", err.Error())
	case errors.Is(err, service.ErrRetryExhausted):
		response.ServiceUnavailable(c, codeRetryExhausted, "资源竞争激烈，请稍后重试")
	default:
		return false
	}
	return true
}
