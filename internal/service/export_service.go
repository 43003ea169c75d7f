package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/Somye55/seatplanner-sub002/internal/allocation"
	"github.com/Somye55/seatplanner-sub002/internal/model"
	"github.com/Somye55/seatplanner-sub002/internal/repository"
)

// ── 导出模块业务错误 ──

var (
	ErrExportGenerateFail = errors.New("生成导出文件失败")
)

// ExportService 导出业务接口
//
// 导出以 bytes.Buffer 返回，由 Handler 层设置 HTTP 响应头后写入 Response
type ExportService interface {
	// SeatingChart 教室座位表（.xlsx）：网格按行列排布，单元格为座位标签与占用学生
	SeatingChart(ctx context.Context, roomID string) (*bytes.Buffer, string, error)
	// RoomCalendar 教室预约日历（.ics），已取消的预约以 CANCELLED 状态保留
	RoomCalendar(ctx context.Context, roomID string) (*bytes.Buffer, string, error)
}

type exportService struct {
	repo   *repository.Repository
	now    func() time.Time
	logger *zap.Logger
}

// NewExportService 创建 ExportService 实例
func NewExportService(repo *repository.Repository, now func() time.Time, logger *zap.Logger) ExportService {
	return &exportService{repo: repo, now: now, logger: logger}
}

// ═══════════════════════════════════════════════════════════
// SeatingChart 导出座位表
// ═══════════════════════════════════════════════════════════
//
// Sheet "座位表"：第 1 行标题，第 2 行为讲台，之后每行对应教室一行座位；
// 空位留白，损坏座位标灰，已分配座位显示学生姓名。
// Sheet "明细"：每个座位一行，含状态、学生与特征

func (s *exportService) SeatingChart(ctx context.Context, roomID string) (*bytes.Buffer, string, error) {
	room, err := s.repo.Room.GetByID(ctx, roomID)
	if err != nil {
		if err = notFound(err, ErrRoomNotFound); !errors.Is(err, ErrRoomNotFound) {
			s.logger.Error("查询教室失败", zap.String("room_id", roomID), zap.Error(err))
		}
		return nil, "", err
	}
	seats, err := s.repo.Seat.ListByRoom(ctx, roomID)
	if err != nil {
		s.logger.Error("列出教室座位失败", zap.String("room_id", roomID), zap.Error(err))
		return nil, "", err
	}

	// 学生姓名索引
	var holderIDs []string
	for i := range seats {
		if seats[i].StudentID != nil {
			holderIDs = append(holderIDs, *seats[i].StudentID)
		}
	}
	names := make(map[string]string, len(holderIDs))
	if len(holderIDs) > 0 {
		students, err := s.repo.Student.ListByIDs(ctx, holderIDs)
		if err != nil {
			s.logger.Error("查询学生失败", zap.Error(err))
			return nil, "", err
		}
		for _, st := range students {
			names[st.StudentID] = st.Name
		}
	}

	f := excelize.NewFile()
	defer f.Close()

	grid := "座位表"
	idx, _ := f.NewSheet(grid)
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 12},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	seatStyle, _ := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true},
		Border: []excelize.Border{
			{Type: "left", Color: "#999999", Style: 1},
			{Type: "right", Color: "#999999", Style: 1},
			{Type: "top", Color: "#999999", Style: 1},
			{Type: "bottom", Color: "#999999", Style: 1},
		},
	})
	brokenStyle, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#BFBFBF"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	cols := room.Cols
	if cols < 1 {
		cols = 1
	}
	lastCol := colName(cols)
	f.SetColWidth(grid, "A", "A", 6)
	f.SetColWidth(grid, "B", lastCol, 14)

	buildingName := ""
	if room.Building != nil {
		buildingName = room.Building.Name + " "
	}
	f.SetCellValue(grid, "A1", fmt.Sprintf("%s%s 座位表（容量 %d）", buildingName, room.Name, room.Capacity))
	f.MergeCell(grid, "A1", cell(lastCol, 1))
	f.SetCellStyle(grid, "A1", "A1", headerStyle)

	f.SetCellValue(grid, "B2", "讲台")
	f.MergeCell(grid, "B2", cell(lastCol, 2))
	f.SetCellStyle(grid, "B2", "B2", headerStyle)

	for r := 0; r < room.Rows; r++ {
		f.SetCellValue(grid, cell("A", r+3), fmt.Sprintf("第%d排", r+1))
	}
	for i := range seats {
		seat := &seats[i]
		ref := cell(colName(seat.Col+1), seat.Row+3)
		text := seat.Label
		style := seatStyle
		switch seat.Status {
		case model.SeatAllocated:
			if name, ok := names[*seat.StudentID]; ok {
				text += "\n" + name
			} else {
				text += "\n" + *seat.StudentID
			}
		case model.SeatBroken:
			text += "\n(损坏)"
			style = brokenStyle
		}
		f.SetCellValue(grid, ref, text)
		f.SetCellStyle(grid, ref, ref, style)
	}

	// 明细
	detail := "明细"
	f.NewSheet(detail)
	f.SetColWidth(detail, "A", "A", 10)
	f.SetColWidth(detail, "B", "C", 8)
	f.SetColWidth(detail, "D", "D", 12)
	f.SetColWidth(detail, "E", "E", 20)
	f.SetColWidth(detail, "F", "F", 40)
	for i, h := range []string{"座位", "行", "列", "状态", "学生", "特征", "版本"} {
		ref := cell(colName(i), 1)
		f.SetCellValue(detail, ref, h)
		f.SetCellStyle(detail, ref, ref, headerStyle)
	}
	layout := allocation.NewLayout(room, seats)
	for i := range seats {
		seat := &seats[i]
		row := i + 2
		f.SetCellValue(detail, cell("A", row), seat.Label)
		f.SetCellValue(detail, cell("B", row), seat.Row+1)
		f.SetCellValue(detail, cell("C", row), seat.Col+1)
		f.SetCellValue(detail, cell("D", row), statusText(seat.Status))
		if seat.StudentID != nil {
			f.SetCellValue(detail, cell("E", row), names[*seat.StudentID])
		}
		feats := append([]string{}, seat.Features...)
		feats = append(feats, layout.DerivedFeatures(seat.Row, seat.Col)...)
		f.SetCellValue(detail, cell("F", row), joinTags(feats))
		f.SetCellValue(detail, cell("G", row), seat.Version)
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}
	return buf, fmt.Sprintf("座位表_%s.xlsx", room.Name), nil
}

// ═══════════════════════════════════════════════════════════
// RoomCalendar 导出教室预约日历
// ═══════════════════════════════════════════════════════════

func (s *exportService) RoomCalendar(ctx context.Context, roomID string) (*bytes.Buffer, string, error) {
	room, err := s.repo.Room.GetByID(ctx, roomID)
	if err != nil {
		if err = notFound(err, ErrRoomNotFound); !errors.Is(err, ErrRoomNotFound) {
			s.logger.Error("查询教室失败", zap.String("room_id", roomID), zap.Error(err))
		}
		return nil, "", err
	}
	bookings, err := s.repo.Booking.ListByRoom(ctx, roomID)
	if err != nil {
		s.logger.Error("列出教室预约失败", zap.String("room_id", roomID), zap.Error(err))
		return nil, "", err
	}

	buf := bytes.NewBufferString(BuildRoomCalendar(room, bookings, s.now()))
	return buf, fmt.Sprintf("%s.ics", room.Name), nil
}

// ── 辅助函数 ──

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}

func statusText(st model.SeatStatus) string {
	switch st {
	case model.SeatAllocated:
		return "已分配"
	case model.SeatBroken:
		return "损坏"
	default:
		return "空闲"
	}
}

func joinTags(tags []string) string {
	var b bytes.Buffer
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		if seen[t] {
			continue
		}
		seen[t] = true
		if b.Len() > 0 {
			b.WriteString(", ")
		}
		b.WriteString(t)
	}
	return b.String()
}
