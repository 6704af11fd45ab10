package repository

import (
	"errors"
	"testing"
	"time"

	"github.com/lumeo-api/internal/models"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupSignupRepositoryTest(t *testing.T) (*GormSignupRepository, *gorm.DB) {
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
	return NewSignupRepository(db), db
}

func createSignup(t *testing.T, repo *GormSignupRepository, email string, token string) *models.EarlyAccessSignup {
	t.Helper()
	signup := &models.EarlyAccessSignup{
		Email:             email,
		ConfirmationToken: token,
		Source:            "hero-form",
	}
	if err := repo.Create(signup); err != nil {
		t.Fatalf("create signup failed: %v", err)
	}
	return signup
}

func TestSignupCreateDuplicateEmail(t *testing.T) {
	repo, _ := setupSignupRepositoryTest(t)

	createSignup(t, repo, "dup@example.com", "token-a")

	err := repo.Create(&models.EarlyAccessSignup{
		Email:             "dup@example.com",
		ConfirmationToken: "token-b",
	})
	if !errors.Is(err, ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}
}

func TestSignupGetByEmailNotFound(t *testing.T) {
	repo, _ := setupSignupRepositoryTest(t)

	signup, err := repo.GetByEmail("missing@example.com")
	if err != nil {
		t.Fatalf("get by email failed: %v", err)
	}
	if signup != nil {
		t.Fatalf("expected nil signup, got %+v", signup)
	}
}

func TestSignupConfirmConsumesTokenOnce(t *testing.T) {
	repo, _ := setupSignupRepositoryTest(t)

	createSignup(t, repo, "once@example.com", "token-once")

	now := time.Now()
	affected, err := repo.Confirm("once@example.com", "token-once", now)
	if err != nil {
		t.Fatalf("confirm failed: %v", err)
	}
	if affected != 1 {
		t.Fatalf("expected 1 row affected, got %d", affected)
	}

	affected, err = repo.Confirm("once@example.com", "token-once", now)
	if err != nil {
		t.Fatalf("second confirm failed: %v", err)
	}
	if affected != 0 {
		t.Fatalf("expected 0 rows on repeated confirm, got %d", affected)
	}

	signup, err := repo.GetByEmail("once@example.com")
	if err != nil {
		t.Fatalf("get by email failed: %v", err)
	}
	if signup == nil || !signup.Confirmed || signup.ConfirmedAt == nil {
		t.Fatalf("expected confirmed signup with confirmed_at, got %+v", signup)
	}
}

func TestSignupConfirmWrongToken(t *testing.T) {
	repo, _ := setupSignupRepositoryTest(t)

	createSignup(t, repo, "wrong@example.com", "token-right")

	affected, err := repo.Confirm("wrong@example.com", "token-wrong", time.Now())
	if err != nil {
		t.Fatalf("confirm failed: %v", err)
	}
	if affected != 0 {
		t.Fatalf("expected 0 rows for wrong token, got %d", affected)
	}

	signup, err := repo.GetByEmail("wrong@example.com")
	if err != nil {
		t.Fatalf("get by email failed: %v", err)
	}
	if signup == nil || signup.Confirmed {
		t.Fatalf("signup should stay unconfirmed, got %+v", signup)
	}
}

func TestSignupMarkReminderSentOnlyOnce(t *testing.T) {
	repo, _ := setupSignupRepositoryTest(t)

	signup := createSignup(t, repo, "remind@example.com", "token-remind")

	affected, err := repo.MarkReminderSent(signup.ID, time.Now())
	if err != nil {
		t.Fatalf("mark reminder failed: %v", err)
	}
	if affected != 1 {
		t.Fatalf("expected 1 row affected, got %d", affected)
	}

	affected, err = repo.MarkReminderSent(signup.ID, time.Now())
	if err != nil {
		t.Fatalf("second mark reminder failed: %v", err)
	}
	if affected != 0 {
		t.Fatalf("expected 0 rows on repeated reminder, got %d", affected)
	}
}

func TestSignupListPendingForReminder(t *testing.T) {
	repo, db := setupSignupRepositoryTest(t)

	old := createSignup(t, repo, "old@example.com", "token-old")
	createSignup(t, repo, "fresh@example.com", "token-fresh")
	confirmed := createSignup(t, repo, "done@example.com", "token-done")

	staleAt := time.Now().Add(-48 * time.Hour)
	if err := db.Model(&models.EarlyAccessSignup{}).Where("id IN ?", []uint{old.ID, confirmed.ID}).
		Update("created_at", staleAt).Error; err != nil {
		t.Fatalf("backdate signups failed: %v", err)
	}
	if _, err := repo.Confirm("done@example.com", "token-done", time.Now()); err != nil {
		t.Fatalf("confirm failed: %v", err)
	}

	pending, err := repo.ListPendingForReminder(time.Now().Add(-24*time.Hour), 10)
	if err != nil {
		t.Fatalf("list pending failed: %v", err)
	}
	if len(pending) != 1 || pending[0].Email != "old@example.com" {
		t.Fatalf("expected only stale unconfirmed signup, got %+v", pending)
	}
}

func TestSignupListFilterAndCounts(t *testing.T) {
	repo, _ := setupSignupRepositoryTest(t)

	createSignup(t, repo, "alpha@example.com", "token-alpha")
	createSignup(t, repo, "beta@example.com", "token-beta")
	if _, err := repo.Confirm("alpha@example.com", "token-alpha", time.Now()); err != nil {
		t.Fatalf("confirm failed: %v", err)
	}

	confirmedOnly := true
	signups, total, err := repo.List(SignupListFilter{Confirmed: &confirmedOnly, Page: 1, PageSize: 10})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if total != 1 || len(signups) != 1 || signups[0].Email != "alpha@example.com" {
		t.Fatalf("expected only confirmed signup, got total=%d %+v", total, signups)
	}

	signups, total, err = repo.List(SignupListFilter{Keyword: "beta", Page: 1, PageSize: 10})
	if err != nil {
		t.Fatalf("list by keyword failed: %v", err)
	}
	if total != 1 || len(signups) != 1 || signups[0].Email != "beta@example.com" {
		t.Fatalf("expected keyword match, got total=%d %+v", total, signups)
	}

	allTotal, confirmedTotal, err := repo.Counts()
	if err != nil {
		t.Fatalf("counts failed: %v", err)
	}
	if allTotal != 2 || confirmedTotal != 1 {
		t.Fatalf("expected counts 2/1, got %d/%d", allTotal, confirmedTotal)
	}
}
