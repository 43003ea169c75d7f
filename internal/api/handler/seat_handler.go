package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Somye55/seatplanner-sub002/internal/dto"
	"github.com/Somye55/seatplanner-sub002/internal/service"
	"github.com/Somye55/seatplanner-sub002/pkg/response"
)

// SeatHandler 座位模块 HTTP 处理器
type SeatHandler struct {
	seatSvc service.SeatService
}

// NewSeatHandler 创建 SeatHandler
func NewSeatHandler(seatSvc service.SeatService) *SeatHandler {
	return &SeatHandler{seatSvc: seatSvc}
}

// GetSeat 获取座位
// GET /api/v1/seats/:id
func (h *SeatHandler) GetSeat(c *gin.Context) {
	seat, err := h.seatSvc.GetSeat(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleSeatError(c, err)
		return
	}
	response.OK(c, seat)
}

// ListSeats 教室座位列表
// GET /api/v1/rooms/:id/seats
func (h *SeatHandler) ListSeats(c *gin.Context) {
	seats, err := h.seatSvc.ListSeats(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleSeatError(c, err)
		return
	}
	response.OK(c, gin.H{"list": seats})
}

// WriteSeat 带期望版本修改座位
// PATCH /api/v1/seats/:id
func (h *SeatHandler) WriteSeat(c *gin.Context) {
	var req dto.WriteSeatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, codeValidation, "参数校验失败")
		return
	}

	seat, err := h.seatSvc.WriteSeat(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		h.handleSeatError(c, err)
		return
	}
	response.OK(c, seat)
}

// handleSeatError 统一处理座位模块业务错误
func (h *SeatHandler) handleSeatError(c *gin.Context, err error) {
	if handleCommonError(c, err) {
		return
	}
	switch {
	case errors.Is(err, service.ErrSeatNotFound):
		response.NotFound(c, 21001, "座位不存在")
	case errors.Is(err, service.ErrRoomNotFound):
		response.NotFound(c, 21002, "教室不存在")
	case errors.Is(err, service.ErrStudentNotFound):
		response.NotFound(c, 21004, "学生不存在")
	case errors.Is(err, service.ErrInvalidSeatPatch):
		response.ErrorWithDetails(c, http.StatusBadRequest, 21003, "座位修改不合法", err.Error())
	default:
		response.InternalError(c)
	}
}
