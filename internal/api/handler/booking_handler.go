package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Somye55/seatplanner-sub002/internal/dto"
	"github.com/Somye55/seatplanner-sub002/internal/service"
	"github.com/Somye55/seatplanner-sub002/pkg/jwt"
	"github.com/Somye55/seatplanner-sub002/pkg/response"
)

// BookingHandler 预约模块 HTTP 处理器
type BookingHandler struct {
	bookingSvc service.BookingService
}

// NewBookingHandler 创建 BookingHandler
func NewBookingHandler(bookingSvc service.BookingService) *BookingHandler {
	return &BookingHandler{bookingSvc: bookingSvc}
}

// CreateBooking 预约教室（指定教室或按推荐顺序搜索）
// POST /api/v1/bookings
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	var req dto.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, codeValidation, "参数校验失败")
		return
	}

	teacherID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	booking, err := h.bookingSvc.Create(c.Request.Context(), &req, teacherID)
	if err != nil {
		h.handleBookingError(c, err)
		return
	}
	response.Created(c, booking)
}

// GetBooking 预约详情
// GET /api/v1/bookings/:id
func (h *BookingHandler) GetBooking(c *gin.Context) {
	booking, err := h.bookingSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleBookingError(c, err)
		return
	}
	response.OK(c, booking)
}

// ListMine 当前教师的预约
// GET /api/v1/bookings/mine
func (h *BookingHandler) ListMine(c *gin.Context) {
	teacherID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	list, err := h.bookingSvc.ListByTeacher(c.Request.Context(), teacherID)
	if err != nil {
		h.handleBookingError(c, err)
		return
	}
	response.OK(c, gin.H{"list": list})
}

// ListByRoom 教室预约列表
// GET /api/v1/rooms/:id/bookings
func (h *BookingHandler) ListByRoom(c *gin.Context) {
	list, err := h.bookingSvc.ListByRoom(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleBookingError(c, err)
		return
	}
	response.OK(c, gin.H{"list": list})
}

// CancelBooking 取消预约（本人或管理员）
// POST /api/v1/bookings/:id/cancel
func (h *BookingHandler) CancelBooking(c *gin.Context) {
	var req dto.CancelBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, codeValidation, "参数校验失败")
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	role, ok := MustGetRole(c)
	if !ok {
		return
	}

	booking, err := h.bookingSvc.Cancel(c.Request.Context(), c.Param("id"), &req, callerID, role == jwt.RoleAdmin)
	if err != nil {
		h.handleBookingError(c, err)
		return
	}
	response.OK(c, booking)
}

// ImportCalendar 上传 ICS 文件批量预约
// POST /api/v1/rooms/:id/bookings/import (multipart, 字段 file)
func (h *BookingHandler) ImportCalendar(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, codeValidation, "请上传 ICS 文件")
		return
	}

	teacherID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	f, err := fh.Open()
	if err != nil {
		response.BadRequest(c, codeValidation, "无法读取上传文件")
		return
	}
	defer f.Close()

	result, err := h.bookingSvc.ImportCalendar(c.Request.Context(), c.Param("id"), f, teacherID)
	if err != nil {
		h.handleBookingError(c, err)
		return
	}
	response.OK(c, result)
}

// handleBookingError 统一处理预约模块业务错误
func (h *BookingHandler) handleBookingError(c *gin.Context, err error) {
	if handleCommonError(c, err) {
		return
	}
	switch {
	case errors.Is(err, service.ErrBookingNotFound):
		response.NotFound(c, 23001, "预约不存在")
	case errors.Is(err, service.ErrRoomNotFound):
		response.NotFound(c, 23002, "教室不存在")
	case errors.Is(err, service.ErrInvalidInterval):
		response.ErrorWithDetails(c, http.StatusBadRequest, 23003, "预约时间区间不合法", err.Error())
	case errors.Is(err, service.ErrBookingForbidden):
		response.Forbidden(c, 23004, "只能取消自己的预约")
	case errors.Is(err, service.ErrBookingNotCancelable):
		response.BadRequest(c, 23005, "预约已取消或已结束")
	default:
		response.InternalError(c)
	}
}
