package dto

import "time"

// CreateBookingRequest 预约教室
// 指定 RoomID 时只尝试该教室；否则按位置层级与容量推荐，依次尝试直到成功
type CreateBookingRequest struct {
	RoomID     string    `json:"room_id"`
	BuildingID string    `json:"building_id"`
	Floor      *int      `json:"floor"`
	StartTime  time.Time `json:"start_time" binding:"required"`
	EndTime    time.Time `json:"end_time"   binding:"required"`
	Attendees  int       `json:"attendees"  binding:"min=0"`
	Purpose    string    `json:"purpose"    binding:"max=200"`
}

// CancelBookingRequest 取消预约
type CancelBookingRequest struct {
	ExpectedVersion *int `json:"expected_version" binding:"required,min=0"`
}

// BookingResponse 预约信息，status 为读取时计算的生命周期状态
type BookingResponse struct {
	ID        string `json:"id"`
	RoomID    string `json:"room_id"`
	TeacherID string `json:"teacher_id"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Attendees int    `json:"attendees"`
	Purpose   string `json:"purpose,omitempty"`
	Status    string `json:"status"`
	Version   int    `json:"version"`
}

// ImportRejection 导入时未能预约的时段
type ImportRejection struct {
	Summary   string `json:"summary"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Reason    string `json:"reason"`
}

// ImportBookingsResult 从 ICS 导入预约的结果
type ImportBookingsResult struct {
	Created  []BookingResponse `json:"created"`
	Rejected []ImportRejection `json:"rejected"`
}
