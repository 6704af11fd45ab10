package main

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/lumeo-api/internal/config"
	"github.com/lumeo-api/internal/constants"
	"github.com/lumeo-api/internal/logger"
	"github.com/lumeo-api/internal/models"

	"gorm.io/gorm"
)

func main() {
	// 连接数据库
	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()
	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}); err != nil {
		stdLog.Fatalf("Failed to connect database: %v", err)
	}

	// 自动迁移
	if err := models.AutoMigrate(); err != nil {
		stdLog.Fatalf("Failed to migrate database: %v", err)
	}

	// 演示登记数据
	now := time.Now()
	dayAgo := now.Add(-24 * time.Hour)
	weekAgo := now.Add(-7 * 24 * time.Hour)
	signups := []models.EarlyAccessSignup{
		{
			Email:             "demo-confirmed@lumeo.dev",
			ConfirmationToken: mustToken(),
			Confirmed:         true,
			ConfirmedAt:       &dayAgo,
			Source:            constants.SignupSourceSeed,
			CreatedAt:         weekAgo,
		},
		{
			Email:             "demo-pending@lumeo.dev",
			ConfirmationToken: mustToken(),
			Source:            constants.SignupSourceSeed,
			CreatedAt:         dayAgo,
		},
		{
			Email:             "demo-stale@lumeo.dev",
			ConfirmationToken: mustToken(),
			Source:            constants.SignupSourceSeed,
			CreatedAt:         weekAgo,
		},
	}

	for _, signup := range signups {
		var existing models.EarlyAccessSignup
		err := models.DB.Where("email = ?", signup.Email).First(&existing).Error
		switch {
		case err == nil:
			stdLog.Printf("Signup already exists: %s", signup.Email)
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := models.DB.Create(&signup).Error; err != nil {
				stdLog.Printf("Failed to create signup %s: %v", signup.Email, err)
			} else {
				stdLog.Printf("Created signup: %s", signup.Email)
			}
		default:
			stdLog.Printf("Failed to check signup %s: %v", signup.Email, err)
		}
	}

	stdLog.Printf("Seed finished")
}

func mustToken() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return hex.EncodeToString(buf)
}
