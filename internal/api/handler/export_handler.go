package handler

import (
	"bytes"
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/Somye55/seatplanner-sub002/internal/service"
	"github.com/Somye55/seatplanner-sub002/pkg/response"
)

const (
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	contentTypeICS  = "text/calendar; charset=utf-8"
)

// ExportHandler 导出模块 HTTP 处理器
type ExportHandler struct {
	exportSvc service.ExportService
}

// NewExportHandler 创建 ExportHandler
func NewExportHandler(exportSvc service.ExportService) *ExportHandler {
	return &ExportHandler{exportSvc: exportSvc}
}

// SeatingChart 导出教室座位表
// GET /api/v1/rooms/:id/seating-chart
func (h *ExportHandler) SeatingChart(c *gin.Context) {
	buf, filename, err := h.exportSvc.SeatingChart(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleExportError(c, err)
		return
	}
	attachment(c, filename, contentTypeXLSX, buf)
}

// RoomCalendar 导出教室预约日历
// GET /api/v1/rooms/:id/bookings.ics
func (h *ExportHandler) RoomCalendar(c *gin.Context) {
	buf, filename, err := h.exportSvc.RoomCalendar(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleExportError(c, err)
		return
	}
	attachment(c, filename, contentTypeICS, buf)
}

// attachment 设置下载响应头
func attachment(c *gin.Context, filename, contentType string, buf *bytes.Buffer) {
	encodedFilename := url.QueryEscape(filename)
	c.Header("Content-Description", "File Transfer")
	c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+encodedFilename)
	c.Data(http.StatusOK, contentType, buf.Bytes())
}

func (h *ExportHandler) handleExportError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrRoomNotFound):
		response.NotFound(c, 26001, "教室不存在")
	case errors.Is(err, service.ErrExportGenerateFail):
		response.InternalError(c)
	default:
		response.InternalError(c)
	}
}
