//go:build integration
// +build integration

package repository

import (
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lumeo-api/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// setupPostgresIntegrationDB 初始化 PostgreSQL 集成测试数据库。
func setupPostgresIntegrationDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := strings.TrimSpace(os.Getenv("TEST_POSTGRES_DSN"))
	if dsn == "" {
		t.Skip("skip postgres integration test: TEST_POSTGRES_DSN is empty")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open postgres failed: %v", err)
	}

	cleanupModels := []interface{}{
		&models.EarlyAccessSignup{},
	}
	_ = db.Migrator().DropTable(cleanupModels...)

	if err := db.AutoMigrate(&models.EarlyAccessSignup{}); err != nil {
		t.Fatalf("migrate postgres models failed: %v", err)
	}

	t.Cleanup(func() {
		_ = db.Migrator().DropTable(cleanupModels...)
		sqlDB, err := db.DB()
		if err == nil {
			_ = sqlDB.Close()
		}
	})

	return db
}

func TestPostgresSignupDuplicateEmail(t *testing.T) {
	db := setupPostgresIntegrationDB(t)
	repo := NewSignupRepository(db)

	if err := repo.Create(&models.EarlyAccessSignup{
		Email:             "pg-dup@example.com",
		ConfirmationToken: "pg-token-a",
	}); err != nil {
		t.Fatalf("create signup failed: %v", err)
	}

	err := repo.Create(&models.EarlyAccessSignup{
		Email:             "pg-dup@example.com",
		ConfirmationToken: "pg-token-b",
	})
	if !errors.Is(err, ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}
}

func TestPostgresSignupConcurrentConfirm(t *testing.T) {
	db := setupPostgresIntegrationDB(t)
	repo := NewSignupRepository(db)

	if err := repo.Create(&models.EarlyAccessSignup{
		Email:             "pg-race@example.com",
		ConfirmationToken: "pg-token-race",
	}); err != nil {
		t.Fatalf("create signup failed: %v", err)
	}

	const attempts = 8
	var wg sync.WaitGroup
	results := make(chan int64, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			affected, err := repo.Confirm("pg-race@example.com", "pg-token-race", time.Now())
			if err != nil {
				t.Errorf("confirm failed: %v", err)
				return
			}
			results <- affected
		}()
	}
	wg.Wait()
	close(results)

	var winners int64
	for affected := range results {
		winners += affected
	}
	if winners != 1 {
		t.Fatalf("expected exactly one winning confirm, got %d", winners)
	}
}
