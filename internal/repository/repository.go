package repository

import (
	"errors"

	mysqldrv "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	pkgerrors "github.com/Somye55/seatplanner-sub002/pkg/errors"
)

// Repository 所有 Repository 的聚合入口
type Repository struct {
	Building      BuildingRepository
	Room          RoomRepository
	Seat          SeatRepository
	Student       StudentRepository
	Booking       BookingRepository
	AllocationRun AllocationRunRepository
}

// NewRepository 创建基于 GORM 的 Repository 聚合
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		Building:      NewBuildingRepo(db),
		Room:          NewRoomRepo(db),
		Seat:          NewSeatRepo(db),
		Student:       NewStudentRepo(db),
		Booking:       NewBookingRepo(db),
		AllocationRun: NewAllocationRunRepo(db),
	}
}

// translateError 将驱动层唯一约束冲突统一为 pkgerrors.ErrDuplicate
func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return pkgerrors.ErrDuplicate
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return pkgerrors.ErrDuplicate
	}
	var myErr *mysqldrv.MySQLError
	if errors.As(err, &myErr) && myErr.Number == 1062 {
		return pkgerrors.ErrDuplicate
	}
	return err
}
