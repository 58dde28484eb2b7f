package dao

import (
	"cognito-backend/config"
	"cognito-backend/model"
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

var DB *gorm.DB

func InitDB() error {
	cfg := config.Cfg.DB
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Name)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		return fmt.Errorf("failed to connect database: %v", err)
	}

	if err := AutoMigrate(db); err != nil {
		return fmt.Errorf("failed to migrate database: %v", err)
	}

	DB = db
	return nil
}

// AutoMigrate 测试中也会对sqlite内存库调用
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.Episode{},
		&model.Chunk{},
		&model.Task{},
		&model.User{},
	)
}
