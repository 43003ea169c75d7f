package handler

import (
	"go.uber.org/zap"

	"github.com/Somye55/seatplanner-sub002/internal/realtime"
	"github.com/Somye55/seatplanner-sub002/internal/service"
)

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Auth       *AuthHandler
	Seat       *SeatHandler
	Allocation *AllocationHandler
	Booking    *BookingHandler
	Room       *RoomHandler
	Student    *StudentHandler
	Export     *ExportHandler
	Realtime   *RealtimeHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(svc *service.Service, authSvc service.AuthService, hub *realtime.Hub, allowOrigins []string, logger *zap.Logger) *Handler {
	return &Handler{
		Auth:       NewAuthHandler(authSvc),
		Seat:       NewSeatHandler(svc.Seat),
		Allocation: NewAllocationHandler(svc.Allocation),
		Booking:    NewBookingHandler(svc.Booking),
		Room:       NewRoomHandler(svc.Room),
		Student:    NewStudentHandler(svc.Student),
		Export:     NewExportHandler(svc.Export),
		Realtime:   NewRealtimeHandler(hub, svc.Seat, allowOrigins, logger),
	}
}
