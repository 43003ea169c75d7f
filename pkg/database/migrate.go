package database

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratemysql "github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

//go:embed migrations/postgres/*.sql migrations/mysql/*.sql
var migrationsFS embed.FS

// RunMigrations 执行数据库迁移
// 按驱动选择迁移目录，自动检测当前版本并应用所有未执行的迁移
func RunMigrations(db *sql.DB, driverName string, logger *zap.Logger) error {
	var (
		driver database.Driver
		err    error
	)
	switch driverName {
	case "mysql":
		driver, err = migratemysql.WithInstance(db, &migratemysql.Config{})
	case "postgres", "":
		driverName = "postgres"
		driver, err = postgres.WithInstance(db, &postgres.Config{})
	default:
		return fmt.Errorf("不支持的数据库驱动: %s", driverName)
	}
	if err != nil {
		return fmt.Errorf("创建迁移驱动失败: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations/"+driverName)
	if err != nil {
		return fmt.Errorf("加载迁移文件失败: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, driverName, driver)
	if err != nil {
		return fmt.Errorf("初始化迁移实例失败: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("执行迁移失败: %w", err)
	}

	version, dirty, _ := m.Version()
	if dirty {
		logger.Warn("数据库迁移处于 dirty 状态", zap.Uint("version", version))
	} else {
		logger.Info("数据库迁移完成", zap.String("driver", driverName), zap.Uint("version", version))
	}

	return nil
}
