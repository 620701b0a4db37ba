package dao

import (
	"filecoder-backend/model"
	"fmt"
	"log/slog"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// Init 连接 MySQL，DSN 为空时不初始化
func Init(dsn string) error {
	if dsn == "" {
		return nil
	}

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to mysql: %v", err)
	}

	DB = db
	slog.Info("mysql connected")
	return nil
}

func Enabled() bool {
	return DB != nil
}

func AutoMigrate() error {
	if DB == nil {
		return fmt.Errorf("mysql is not configured")
	}
	return DB.AutoMigrate(&model.Session{}, &model.Message{})
}

func Close() error {
	if DB == nil {
		return nil
	}
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
