package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/Somye55/seatplanner-sub002/internal/dto"
	"github.com/Somye55/seatplanner-sub002/internal/service"
	"github.com/Somye55/seatplanner-sub002/pkg/response"
)

// StudentHandler 学生档案 HTTP 处理器
type StudentHandler struct {
	studentSvc service.StudentService
}

// NewStudentHandler 创建 StudentHandler
func NewStudentHandler(studentSvc service.StudentService) *StudentHandler {
	return &StudentHandler{studentSvc: studentSvc}
}

// UpsertStudent 创建或覆盖学生档案
// PUT /api/v1/students/:id
func (h *StudentHandler) UpsertStudent(c *gin.Context) {
	var req dto.UpsertStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, codeValidation, "参数校验失败")
		return
	}
	st, err := h.studentSvc.Upsert(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		response.InternalError(c)
		return
	}
	response.OK(c, st)
}

// GetStudent 学生档案及当前座位
// GET /api/v1/students/:id
func (h *StudentHandler) GetStudent(c *gin.Context) {
	st, err := h.studentSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrStudentNotFound) {
			response.NotFound(c, 25001, "学生不存在")
			return
		}
		response.InternalError(c)
		return
	}
	response.OK(c, st)
}

// ListStudents 学生列表
// GET /api/v1/students
func (h *StudentHandler) ListStudents(c *gin.Context) {
	list, err := h.studentSvc.List(c.Request.Context())
	if err != nil {
		response.InternalError(c)
		return
	}
	response.OK(c, gin.H{"list": list})
}
