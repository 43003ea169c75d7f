package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Somye55/seatplanner-sub002/internal/dto"
	"github.com/Somye55/seatplanner-sub002/internal/service"
	"github.com/Somye55/seatplanner-sub002/pkg/response"
)

// RoomHandler 教学楼 / 教室模块 HTTP 处理器
type RoomHandler struct {
	roomSvc service.RoomService
}

// NewRoomHandler 创建 RoomHandler
func NewRoomHandler(roomSvc service.RoomService) *RoomHandler {
	return &RoomHandler{roomSvc: roomSvc}
}

// CreateBuilding 创建教学楼
// POST /api/v1/buildings
func (h *RoomHandler) CreateBuilding(c *gin.Context) {
	var req dto.CreateBuildingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, codeValidation, "参数校验失败")
		return
	}
	b, err := h.roomSvc.CreateBuilding(c.Request.Context(), &req)
	if err != nil {
		h.handleRoomError(c, err)
		return
	}
	response.Created(c, b)
}

// ListBuildings 教学楼列表
// GET /api/v1/buildings
func (h *RoomHandler) ListBuildings(c *gin.Context) {
	list, err := h.roomSvc.ListBuildings(c.Request.Context())
	if err != nil {
		h.handleRoomError(c, err)
		return
	}
	response.OK(c, gin.H{"list": list})
}

// CreateRoom 创建教室并生成座位
// POST /api/v1/rooms
func (h *RoomHandler) CreateRoom(c *gin.Context) {
	var req dto.CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, codeValidation, "参数校验失败")
		return
	}
	room, err := h.roomSvc.CreateRoom(c.Request.Context(), &req)
	if err != nil {
		h.handleRoomError(c, err)
		return
	}
	response.Created(c, room)
}

// GetRoom 教室详情
// GET /api/v1/rooms/:id
func (h *RoomHandler) GetRoom(c *gin.Context) {
	room, err := h.roomSvc.GetRoom(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleRoomError(c, err)
		return
	}
	response.OK(c, room)
}

// ListRooms 教室列表
// GET /api/v1/rooms
func (h *RoomHandler) ListRooms(c *gin.Context) {
	var req dto.RoomListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, codeValidation, "参数校验失败")
		return
	}
	list, err := h.roomSvc.ListRooms(c.Request.Context(), &req)
	if err != nil {
		h.handleRoomError(c, err)
		return
	}
	response.OK(c, gin.H{"list": list})
}

// SetAvailability 启用 / 停用教室
// PUT /api/v1/rooms/:id/availability
func (h *RoomHandler) SetAvailability(c *gin.Context) {
	var req dto.SetAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, codeValidation, "参数校验失败")
		return
	}
	room, err := h.roomSvc.SetAvailability(c.Request.Context(), c.Param("id"), *req.Available)
	if err != nil {
		h.handleRoomError(c, err)
		return
	}
	response.OK(c, room)
}

// Recommend 按位置层级与容量推荐教室
// GET /api/v1/rooms/recommend?building_id=&floor=&capacity=
func (h *RoomHandler) Recommend(c *gin.Context) {
	var req dto.RecommendRoomsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, codeValidation, "参数校验失败")
		return
	}
	list, err := h.roomSvc.Recommend(c.Request.Context(), &req)
	if err != nil {
		h.handleRoomError(c, err)
		return
	}
	response.OK(c, gin.H{"list": list})
}

// handleRoomError 统一处理教室模块业务错误
func (h *RoomHandler) handleRoomError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrRoomNotFound):
		response.NotFound(c, 24001, "教室不存在")
	case errors.Is(err, service.ErrBuildingNotFound):
		response.NotFound(c, 24002, "教学楼不存在")
	case errors.Is(err, service.ErrBuildingDuplicate):
		response.Error(c, http.StatusConflict, 24003, "教学楼名称已存在")
	case errors.Is(err, service.ErrInvalidRoomLayout):
		response.ErrorWithDetails(c, http.StatusBadRequest, 24004, "教室布局不合法", err.Error())
	default:
		response.InternalError(c)
	}
}
