package router

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Somye55/seatplanner-sub002/config"
	"github.com/Somye55/seatplanner-sub002/internal/api/handler"
	"github.com/Somye55/seatplanner-sub002/internal/api/middleware"
	"github.com/Somye55/seatplanner-sub002/pkg/jwt"
	"github.com/Somye55/seatplanner-sub002/pkg/redis"
)

// Setup 初始化并返回 Gin 路由引擎
// rdb 为 nil 时不做限流
func Setup(cfg *config.Config, h *handler.Handler, jwtMgr *jwt.Manager, revoker middleware.RevocationChecker, rdb *redis.Client, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.BodyLimit(cfg.Server.BodyLimit))

	// ── 健康检查 ──
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	admin := middleware.RoleAuth(jwt.RoleAdmin)
	booker := middleware.RoleAuth(jwt.RoleAdmin, jwt.RoleTeacher)
	claimer := middleware.RoleAuth(jwt.RoleAdmin, jwt.RoleStudent)
	limited := middleware.RateLimit(rdb, cfg.Server.RateLimit, cfg.Server.RateWindow)

	// ── API v1 ──
	v1 := r.Group("/api/v1")
	v1.Use(middleware.JWTAuth(jwtMgr, revoker))
	{
		// 认证模块
		v1.POST("/auth/logout", h.Auth.Logout)
		v1.GET("/auth/me", h.Auth.Me)

		// 实时订阅
		v1.GET("/ws", h.Realtime.Subscribe)

		// 教学楼
		buildings := v1.Group("/buildings")
		{
			buildings.GET("", h.Room.ListBuildings)
			buildings.POST("", admin, h.Room.CreateBuilding)
		}

		// 教室
		rooms := v1.Group("/rooms")
		{
			rooms.GET("", h.Room.ListRooms)
			rooms.GET("/recommend", h.Room.Recommend)
			rooms.POST("", admin, h.Room.CreateRoom)
			rooms.GET("/:id", h.Room.GetRoom)
			rooms.PUT("/:id/availability", admin, h.Room.SetAvailability)
			rooms.GET("/:id/seats", h.Seat.ListSeats)
			rooms.POST("/:id/claim", claimer, limited, h.Allocation.ClaimSeat)
			rooms.GET("/:id/bookings", h.Booking.ListByRoom)
			rooms.POST("/:id/bookings/import", booker, limited, h.Booking.ImportCalendar)
			rooms.GET("/:id/bookings.ics", h.Export.RoomCalendar)
			rooms.GET("/:id/seating-chart", booker, h.Export.SeatingChart)
		}

		// 座位
		seats := v1.Group("/seats")
		{
			seats.GET("/:id", h.Seat.GetSeat)
			seats.PATCH("/:id", admin, h.Seat.WriteSeat)
		}

		// 学生档案
		students := v1.Group("/students")
		{
			students.GET("", admin, h.Student.ListStudents)
			students.GET("/:id", h.Student.GetStudent)
			students.PUT("/:id", admin, h.Student.UpsertStudent)
		}

		// 批量分配
		allocations := v1.Group("/allocations", admin)
		{
			allocations.POST("/run", h.Allocation.RunAllocation)
			allocations.POST("/rebalance", h.Allocation.RunRebalance)
			allocations.GET("/runs", h.Allocation.ListRuns)
			allocations.GET("/runs/:id", h.Allocation.GetRun)
		}

		// 预约
		bookings := v1.Group("/bookings")
		{
			bookings.POST("", booker, limited, h.Booking.CreateBooking)
			bookings.GET("/mine", booker, h.Booking.ListMine)
			bookings.GET("/:id", h.Booking.GetBooking)
			bookings.POST("/:id/cancel", booker, h.Booking.CancelBooking)
		}
	}

	return r
}
