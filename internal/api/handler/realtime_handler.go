package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Somye55/seatplanner-sub002/internal/realtime"
	"github.com/Somye55/seatplanner-sub002/internal/service"
	"github.com/Somye55/seatplanner-sub002/pkg/response"
)

// RealtimeHandler 座位变更订阅
type RealtimeHandler struct {
	hub      *realtime.Hub
	seatSvc  service.SeatService
	upgrader *websocket.Upgrader
	logger   *zap.Logger
}

// NewRealtimeHandler 创建 RealtimeHandler，allowOrigins 与 CORS 配置相同
func NewRealtimeHandler(hub *realtime.Hub, seatSvc service.SeatService, allowOrigins []string, logger *zap.Logger) *RealtimeHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RealtimeHandler{
		hub:      hub,
		seatSvc:  seatSvc,
		upgrader: realtime.NewUpgrader(allowOrigins),
		logger:   logger,
	}
}

// Subscribe 升级为 websocket 并注册，注册之后再读取快照作为 resync 推送。
// 快照期间提交的变更已进入该客户端的队列，快照中更旧的版本会被版本过滤丢弃
// GET /api/v1/ws?scope=room:<id>|building:<id>|global
func (h *RealtimeHandler) Subscribe(c *gin.Context) {
	scope := c.Query("scope")
	if _, _, err := realtime.ParseScope(scope); err != nil {
		response.BadRequest(c, codeValidation, "订阅作用域不合法")
		return
	}
	if err := h.seatSvc.ValidateScope(c.Request.Context(), scope); err != nil {
		switch {
		case errors.Is(err, service.ErrRoomNotFound):
			response.NotFound(c, 21002, "教室不存在")
		case errors.Is(err, service.ErrBuildingNotFound):
			response.NotFound(c, 21005, "教学楼不存在")
		default:
			response.InternalError(c)
		}
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade 失败时已写入 HTTP 错误响应
		h.logger.Warn("websocket 升级失败", zap.Error(err))
		return
	}

	client := realtime.NewClient(h.hub, conn, scope)
	h.hub.Register(client)

	snapshot, err := h.seatSvc.Snapshot(c.Request.Context(), scope)
	if err != nil {
		h.logger.Error("生成订阅快照失败", zap.String("scope", scope), zap.Error(err))
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "resync 失败"))
		h.hub.Unregister(client)
		_ = conn.Close()
		return
	}
	h.hub.Deliver(client, snapshot)
	client.Serve()
}
