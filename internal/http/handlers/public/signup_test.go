package public

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/lumeo-api/internal/config"
	"github.com/lumeo-api/internal/models"
	"github.com/lumeo-api/internal/provider"
	"github.com/lumeo-api/internal/queue"
	"github.com/lumeo-api/internal/repository"
	"github.com/lumeo-api/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupSignupHandlerTest(t *testing.T) (*Handler, repository.SignupRepository) {
	t.Helper()
	gin.SetMode(gin.TestMode)

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

	cfg := &config.Config{}
	cfg.Signup.SiteURL = "https://lumeo.example"
	repo := repository.NewSignupRepository(db)
	queueClient, err := queue.NewClient(&config.QueueConfig{Enabled: false})
	if err != nil {
		t.Fatalf("build queue client failed: %v", err)
	}
	emailService := service.NewEmailService(&config.EmailConfig{Enabled: false}, &cfg.Signup)
	container := &provider.Container{
		Config:        cfg,
		QueueClient:   queueClient,
		SignupRepo:    repo,
		EmailService:  emailService,
		SignupService: service.NewSignupService(cfg, repo, queueClient, emailService),
	}
	return New(container), repo
}

func performJSON(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	h.ServeHTTP(w, req)
	return w
}

type envelope struct {
	StatusCode int             `json:"status_code"`
	Msg        string          `json:"msg"`
	Data       json.RawMessage `json:"data"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var resp envelope
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response failed: %v (body %s)", err, w.Body.String())
	}
	return resp
}

func TestSubscribeEndpoint(t *testing.T) {
	handler, repo := setupSignupHandlerTest(t)

	r := gin.New()
	r.POST("/api/v1/subscribe", handler.Subscribe)

	w := performJSON(t, r, http.MethodPost, "/api/v1/subscribe", `{"email":"New User@","source":"hero-form"}`)
	resp := decodeEnvelope(t, w)
	if resp.StatusCode != 400 {
		t.Fatalf("invalid email status_code want 400 got %d", resp.StatusCode)
	}

	w = performJSON(t, r, http.MethodPost, "/api/v1/subscribe", `{"email":"Visitor@Example.com","source":"hero-form"}`)
	resp = decodeEnvelope(t, w)
	if resp.StatusCode != 0 {
		t.Fatalf("subscribe status_code want 0 got %d (msg %s)", resp.StatusCode, resp.Msg)
	}
	var data struct {
		Email     string `json:"email"`
		Confirmed bool   `json:"confirmed"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		t.Fatalf("unmarshal data failed: %v", err)
	}
	if data.Email != "visitor@example.com" {
		t.Fatalf("email want visitor@example.com got %s", data.Email)
	}
	if data.Confirmed {
		t.Fatal("fresh signup should not be confirmed")
	}

	// 重复提交：保持原纪录，提示仍在名单上
	w = performJSON(t, r, http.MethodPost, "/api/v1/subscribe", `{"email":"visitor@example.com"}`)
	resp = decodeEnvelope(t, w)
	if resp.StatusCode != 0 {
		t.Fatalf("repeat subscribe status_code want 0 got %d", resp.StatusCode)
	}
	if !strings.Contains(resp.Msg, "already on the list") {
		t.Fatalf("repeat subscribe msg want already-on-list hint, got %q", resp.Msg)
	}

	stored, err := repo.GetByEmail("visitor@example.com")
	if err != nil {
		t.Fatalf("get signup failed: %v", err)
	}
	if stored == nil {
		t.Fatal("signup should exist")
	}
	if stored.Source != "hero-form" {
		t.Fatalf("source want hero-form got %s", stored.Source)
	}
}

func TestSubscribeEndpointMissingEmail(t *testing.T) {
	handler, _ := setupSignupHandlerTest(t)

	r := gin.New()
	r.POST("/api/v1/subscribe", handler.Subscribe)

	w := performJSON(t, r, http.MethodPost, "/api/v1/subscribe", `{"source":"hero-form"}`)
	resp := decodeEnvelope(t, w)
	if resp.StatusCode != 400 {
		t.Fatalf("missing email status_code want 400 got %d", resp.StatusCode)
	}
}

func TestConfirmEndpointRedirects(t *testing.T) {
	handler, repo := setupSignupHandlerTest(t)

	r := gin.New()
	r.POST("/api/v1/subscribe", handler.Subscribe)
	r.GET("/confirm", handler.Confirm)

	w := performJSON(t, r, http.MethodPost, "/api/v1/subscribe", `{"email":"confirmer@example.com"}`)
	if resp := decodeEnvelope(t, w); resp.StatusCode != 0 {
		t.Fatalf("subscribe status_code want 0 got %d", resp.StatusCode)
	}
	stored, err := repo.GetByEmail("confirmer@example.com")
	if err != nil || stored == nil {
		t.Fatalf("get signup failed: %v", err)
	}

	// 错误令牌：跳转携带 invalid_token
	w2 := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/confirm?token=wrong&email=confirmer%40example.com", nil)
	r.ServeHTTP(w2, req)
	if w2.Code != http.StatusFound {
		t.Fatalf("wrong token status want 302 got %d", w2.Code)
	}
	if loc := w2.Header().Get("Location"); loc != "https://lumeo.example/early-access?error=invalid_token" {
		t.Fatalf("wrong token redirect got %s", loc)
	}

	// 正确令牌：跳转到确认成功页
	w3 := httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/confirm?token="+stored.ConfirmationToken+"&email=confirmer%40example.com", nil)
	r.ServeHTTP(w3, req)
	if w3.Code != http.StatusFound {
		t.Fatalf("confirm status want 302 got %d", w3.Code)
	}
	if loc := w3.Header().Get("Location"); loc != "https://lumeo.example/confirmed" {
		t.Fatalf("confirm redirect got %s", loc)
	}

	// 重复确认：跳转携带 invalid_link
	w4 := httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/confirm?token="+stored.ConfirmationToken+"&email=confirmer%40example.com", nil)
	r.ServeHTTP(w4, req)
	if loc := w4.Header().Get("Location"); loc != "https://lumeo.example/early-access?error=invalid_link" {
		t.Fatalf("repeated confirm redirect got %s", loc)
	}

	// 未知邮箱：跳转携带 invalid_link
	w5 := httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/confirm?token=whatever&email=ghost%40example.com", nil)
	r.ServeHTTP(w5, req)
	if loc := w5.Header().Get("Location"); loc != "https://lumeo.example/early-access?error=invalid_link" {
		t.Fatalf("unknown email redirect got %s", loc)
	}
}

func TestResendEndpointNotFound(t *testing.T) {
	handler, _ := setupSignupHandlerTest(t)

	r := gin.New()
	r.POST("/api/v1/subscribe/resend", handler.ResendConfirmation)

	w := performJSON(t, r, http.MethodPost, "/api/v1/subscribe/resend", `{"email":"ghost@example.com"}`)
	resp := decodeEnvelope(t, w)
	if resp.StatusCode != 404 {
		t.Fatalf("resend status_code want 404 got %d", resp.StatusCode)
	}
}
