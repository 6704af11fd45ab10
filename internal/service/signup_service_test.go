package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lumeo-api/internal/config"
	"github.com/lumeo-api/internal/models"
	"github.com/lumeo-api/internal/queue"
	"github.com/lumeo-api/internal/repository"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupSignupServiceTest(t *testing.T) (*SignupService, repository.SignupRepository, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(&models.EarlyAccessSignup{}); err != nil {
		t.Fatalf("migrate signup failed: %v", err)
	}
	if err := db.Where("1 = 1").Delete(&models.EarlyAccessSignup{}).Error; err != nil {
		t.Fatalf("cleanup signup failed: %v", err)
	}

	cfg := &config.Config{
		Signup: config.SignupConfig{
			BaseURL:               "http://localhost:8080",
			DefaultSource:         "hero-form",
			TokenBytes:            32,
			ResendIntervalSeconds: 60,
			ReminderAfterHours:    24,
		},
	}
	repo := repository.NewSignupRepository(db)
	queueClient, err := queue.NewClient(nil)
	if err != nil {
		t.Fatalf("create queue client failed: %v", err)
	}
	emailService := NewEmailService(&config.EmailConfig{Enabled: false}, &cfg.Signup)
	return NewSignupService(cfg, repo, queueClient, emailService), repo, db
}

func countSignups(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var count int64
	if err := db.Model(&models.EarlyAccessSignup{}).Count(&count).Error; err != nil {
		t.Fatalf("count signups failed: %v", err)
	}
	return count
}

func TestSubscribeCreatesPendingSignup(t *testing.T) {
	svc, _, db := setupSignupServiceTest(t)

	result, err := svc.Subscribe(SubscribeInput{Email: "alice@test.com"})
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	if !result.Created {
		t.Fatal("expected new signup to be created")
	}
	if result.Signup.Confirmed {
		t.Fatal("new signup should be unconfirmed")
	}
	if len(result.Signup.ConfirmationToken) != 64 {
		t.Fatalf("expected 64 hex chars token, got %q", result.Signup.ConfirmationToken)
	}
	if result.Signup.Source != "hero-form" {
		t.Fatalf("expected default source, got %q", result.Signup.Source)
	}
	if countSignups(t, db) != 1 {
		t.Fatal("expected exactly one record")
	}
}

func TestSubscribeIdempotent(t *testing.T) {
	svc, _, db := setupSignupServiceTest(t)

	first, err := svc.Subscribe(SubscribeInput{Email: "repeat@test.com"})
	if err != nil {
		t.Fatalf("first subscribe failed: %v", err)
	}
	second, err := svc.Subscribe(SubscribeInput{Email: "repeat@test.com"})
	if err != nil {
		t.Fatalf("second subscribe failed: %v", err)
	}
	if second.Created {
		t.Fatal("second subscribe should not create a record")
	}
	if second.Signup.ID != first.Signup.ID {
		t.Fatalf("expected same record, got %d and %d", first.Signup.ID, second.Signup.ID)
	}
	if second.Signup.ConfirmationToken != first.Signup.ConfirmationToken {
		t.Fatal("token must not be rotated on repeated subscribe")
	}
	if countSignups(t, db) != 1 {
		t.Fatal("expected exactly one record")
	}
}

func TestSubscribeCaseNormalization(t *testing.T) {
	svc, repo, db := setupSignupServiceTest(t)

	if _, err := svc.Subscribe(SubscribeInput{Email: "  User@Example.COM "}); err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	result, err := svc.Subscribe(SubscribeInput{Email: "user@example.com"})
	if err != nil {
		t.Fatalf("second subscribe failed: %v", err)
	}
	if result.Created {
		t.Fatal("case variants must map to the same identity")
	}
	if countSignups(t, db) != 1 {
		t.Fatal("expected exactly one record")
	}

	stored, err := repo.GetByEmail("user@example.com")
	if err != nil {
		t.Fatalf("get by email failed: %v", err)
	}
	if stored == nil || stored.Email != "user@example.com" {
		t.Fatalf("expected lowercased stored email, got %+v", stored)
	}
}

func TestSubscribeRejectsInvalidEmail(t *testing.T) {
	svc, _, db := setupSignupServiceTest(t)

	cases := []string{"", "   ", "not-an-email", "missing-at.example.com", "nodot@localhost", "two@@example.com"}
	for _, input := range cases {
		if _, err := svc.Subscribe(SubscribeInput{Email: input}); !errors.Is(err, ErrInvalidEmail) {
			t.Fatalf("input %q: expected ErrInvalidEmail, got %v", input, err)
		}
	}
	if countSignups(t, db) != 0 {
		t.Fatal("invalid inputs must never reach the store")
	}
}

func TestConfirmFlow(t *testing.T) {
	svc, repo, _ := setupSignupServiceTest(t)

	result, err := svc.Subscribe(SubscribeInput{Email: "alice@test.com"})
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	token := result.Signup.ConfirmationToken

	confirmed, err := svc.Confirm("alice@test.com", token)
	if err != nil {
		t.Fatalf("confirm failed: %v", err)
	}
	if !confirmed.Confirmed || confirmed.ConfirmedAt == nil {
		t.Fatalf("expected confirmed signup with confirmed_at, got %+v", confirmed)
	}

	// 同一链接重复访问：确定性失败，不再次转移状态
	if _, err := svc.Confirm("alice@test.com", token); !errors.Is(err, ErrAlreadyConfirmed) {
		t.Fatalf("expected ErrAlreadyConfirmed, got %v", err)
	}

	stored, err := repo.GetByEmail("alice@test.com")
	if err != nil {
		t.Fatalf("get by email failed: %v", err)
	}
	if stored == nil || !stored.Confirmed {
		t.Fatalf("signup should stay confirmed, got %+v", stored)
	}
}

func TestConfirmWrongToken(t *testing.T) {
	svc, repo, _ := setupSignupServiceTest(t)

	if _, err := svc.Subscribe(SubscribeInput{Email: "bob@test.com"}); err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	if _, err := svc.Subscribe(SubscribeInput{Email: "carol@test.com"}); err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	if _, err := svc.Confirm("bob@test.com", "deadbeef"); !errors.Is(err, ErrConfirmTokenInvalid) {
		t.Fatalf("expected ErrConfirmTokenInvalid, got %v", err)
	}

	stored, err := repo.GetByEmail("bob@test.com")
	if err != nil {
		t.Fatalf("get by email failed: %v", err)
	}
	if stored == nil || stored.Confirmed {
		t.Fatalf("signup must stay unconfirmed after wrong token, got %+v", stored)
	}
}

func TestConfirmUnknownEmail(t *testing.T) {
	svc, _, _ := setupSignupServiceTest(t)

	if _, err := svc.Confirm("ghost@test.com", "some-token"); !errors.Is(err, ErrConfirmLinkInvalid) {
		t.Fatalf("expected ErrConfirmLinkInvalid, got %v", err)
	}
	if _, err := svc.Confirm("not-an-email", "some-token"); !errors.Is(err, ErrConfirmLinkInvalid) {
		t.Fatalf("expected ErrConfirmLinkInvalid for malformed email, got %v", err)
	}
	if _, err := svc.Confirm("ghost@test.com", "   "); !errors.Is(err, ErrConfirmLinkInvalid) {
		t.Fatalf("expected ErrConfirmLinkInvalid for empty token, got %v", err)
	}
}

func TestResendRules(t *testing.T) {
	svc, repo, _ := setupSignupServiceTest(t)

	if err := svc.Resend("nobody@test.com"); !errors.Is(err, ErrSignupNotFound) {
		t.Fatalf("expected ErrSignupNotFound, got %v", err)
	}

	result, err := svc.Subscribe(SubscribeInput{Email: "dana@test.com"})
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	// 节流：刚刚发送过欢迎邮件时拒绝重发
	recent := time.Now()
	if err := repo.MarkWelcomeSent(result.Signup.ID, recent); err != nil {
		t.Fatalf("mark welcome sent failed: %v", err)
	}
	if err := svc.Resend("dana@test.com"); !errors.Is(err, ErrResendTooFrequent) {
		t.Fatalf("expected ErrResendTooFrequent, got %v", err)
	}

	// 超过间隔后允许重发
	stale := time.Now().Add(-5 * time.Minute)
	if err := repo.MarkWelcomeSent(result.Signup.ID, stale); err != nil {
		t.Fatalf("backdate welcome sent failed: %v", err)
	}
	if err := svc.Resend("dana@test.com"); err != nil {
		t.Fatalf("resend failed: %v", err)
	}

	if _, err := svc.Confirm("dana@test.com", result.Signup.ConfirmationToken); err != nil {
		t.Fatalf("confirm failed: %v", err)
	}
	if err := svc.Resend("dana@test.com"); !errors.Is(err, ErrAlreadyConfirmed) {
		t.Fatalf("expected ErrAlreadyConfirmed after confirm, got %v", err)
	}
}

func TestStatsCounts(t *testing.T) {
	svc, _, _ := setupSignupServiceTest(t)

	first, err := svc.Subscribe(SubscribeInput{Email: "one@test.com"})
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	if _, err := svc.Subscribe(SubscribeInput{Email: "two@test.com"}); err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	if _, err := svc.Confirm("one@test.com", first.Signup.ConfirmationToken); err != nil {
		t.Fatalf("confirm failed: %v", err)
	}

	stats, err := svc.Stats(context.Background())
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.Total != 2 || stats.Confirmed != 1 {
		t.Fatalf("expected stats 2/1, got %d/%d", stats.Total, stats.Confirmed)
	}
}
