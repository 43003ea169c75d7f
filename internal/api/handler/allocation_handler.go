package handler

import (
	"errors"
	"io"

	"github.com/gin-gonic/gin"

	"github.com/Somye55/seatplanner-sub002/internal/dto"
	"github.com/Somye55/seatplanner-sub002/internal/service"
	"github.com/Somye55/seatplanner-sub002/pkg/jwt"
	"github.com/Somye55/seatplanner-sub002/pkg/response"
)

// AllocationHandler 分配模块 HTTP 处理器
type AllocationHandler struct {
	allocSvc service.AllocationService
}

// NewAllocationHandler 创建 AllocationHandler
func NewAllocationHandler(allocSvc service.AllocationService) *AllocationHandler {
	return &AllocationHandler{allocSvc: allocSvc}
}

// ClaimSeat 为学生申领教室内最佳座位
// POST /api/v1/rooms/:id/claim
func (h *AllocationHandler) ClaimSeat(c *gin.Context) {
	var req dto.ClaimSeatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, codeValidation, "参数校验失败")
		return
	}

	// 学生只能为自己申领
	if role, _ := c.Get("role"); role == jwt.RoleStudent {
		if uid, _ := c.Get("user_id"); uid != req.StudentID {
			response.Forbidden(c, 22004, "只能为自己申领座位")
			return
		}
	}

	seat, err := h.allocSvc.ClaimBestSeat(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		h.handleAllocationError(c, err)
		return
	}
	response.OK(c, seat)
}

// RunAllocation 批量分配
// POST /api/v1/allocations/run
func (h *AllocationHandler) RunAllocation(c *gin.Context) {
	req, ok := bindRunRequest(c)
	if !ok {
		return
	}
	summary, err := h.allocSvc.RunAllocation(c.Request.Context(), req)
	if err != nil {
		h.handleAllocationError(c, err)
		return
	}
	response.OK(c, summary)
}

// RunRebalance 重平衡
// POST /api/v1/allocations/rebalance
func (h *AllocationHandler) RunRebalance(c *gin.Context) {
	req, ok := bindRunRequest(c)
	if !ok {
		return
	}
	summary, err := h.allocSvc.RunRebalance(c.Request.Context(), req)
	if err != nil {
		h.handleAllocationError(c, err)
		return
	}
	response.OK(c, summary)
}

// ListRuns 运行记录
// GET /api/v1/allocations/runs
func (h *AllocationHandler) ListRuns(c *gin.Context) {
	var req dto.AllocationRunListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, codeValidation, "参数校验失败")
		return
	}
	runs, err := h.allocSvc.ListRuns(c.Request.Context(), req.Limit)
	if err != nil {
		h.handleAllocationError(c, err)
		return
	}
	response.OK(c, gin.H{"list": runs})
}

// GetRun 运行记录详情
// GET /api/v1/allocations/runs/:id
func (h *AllocationHandler) GetRun(c *gin.Context) {
	run, err := h.allocSvc.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleAllocationError(c, err)
		return
	}
	response.OK(c, run)
}

// bindRunRequest 请求体可省略，省略时覆盖全部学生与教室
func bindRunRequest(c *gin.Context) (*dto.RunAllocationRequest, bool) {
	var req dto.RunAllocationRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.BadRequest(c, codeValidation, "参数校验失败")
		return nil, false
	}
	return &req, true
}

// handleAllocationError 统一处理分配模块业务错误
func (h *AllocationHandler) handleAllocationError(c *gin.Context, err error) {
	if handleCommonError(c, err) {
		return
	}
	switch {
	case errors.Is(err, service.ErrRoomNotFound):
		response.NotFound(c, 22001, "教室不存在")
	case errors.Is(err, service.ErrStudentNotFound):
		response.NotFound(c, 22002, "学生不存在")
	case errors.Is(err, service.ErrRunNotFound):
		response.NotFound(c, 22003, "分配记录不存在")
	default:
		response.InternalError(c)
	}
}
