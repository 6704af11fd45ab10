package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/lumeo-api/internal/cache"
	"github.com/lumeo-api/internal/config"
	"github.com/lumeo-api/internal/logger"
	"github.com/lumeo-api/internal/models"
	"github.com/lumeo-api/internal/queue"
	"github.com/lumeo-api/internal/repository"
)

// SignupService 预约登记核心服务
type SignupService struct {
	cfg          *config.Config
	signupRepo   repository.SignupRepository
	queueClient  *queue.Client
	emailService *EmailService
}

// NewSignupService 创建登记服务
func NewSignupService(cfg *config.Config, signupRepo repository.SignupRepository, queueClient *queue.Client, emailService *EmailService) *SignupService {
	return &SignupService{
		cfg:          cfg,
		signupRepo:   signupRepo,
		queueClient:  queueClient,
		emailService: emailService,
	}
}

// SubscribeInput 登记请求输入
type SubscribeInput struct {
	Email     string
	Source    string
	UserAgent string
	IPAddress string
}

// SubscribeResult 登记结果
type SubscribeResult struct {
	Signup  *models.EarlyAccessSignup
	Created bool
}

// Subscribe 登记早期访问申请。
// 已存在的邮箱幂等返回成功，不重复建档、不重发邮件。
func (s *SignupService) Subscribe(input SubscribeInput) (*SubscribeResult, error) {
	normalized, err := normalizeSignupEmail(input.Email)
	if err != nil {
		return nil, err
	}

	existing, err := s.signupRepo.GetByEmail(normalized)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return &SubscribeResult{Signup: existing, Created: false}, nil
	}

	token, err := generateConfirmationToken(s.tokenBytes())
	if err != nil {
		return nil, err
	}

	source := strings.TrimSpace(input.Source)
	if source == "" {
		source = s.defaultSource()
	}

	signup := &models.EarlyAccessSignup{
		Email:             normalized,
		ConfirmationToken: token,
		Source:            source,
		UserAgent:         strings.TrimSpace(input.UserAgent),
		IPAddress:         strings.TrimSpace(input.IPAddress),
	}
	if err := s.signupRepo.Create(signup); err != nil {
		// 唯一约束兜底：存在性检查与插入之间的并发重复按已存在处理
		if errors.Is(err, repository.ErrDuplicateEmail) {
			existing, getErr := s.signupRepo.GetByEmail(normalized)
			if getErr != nil {
				return nil, getErr
			}
			if existing != nil {
				return &SubscribeResult{Signup: existing, Created: false}, nil
			}
		}
		return nil, err
	}

	s.DispatchWelcomeEmail(signup)
	s.invalidateStats()

	return &SubscribeResult{Signup: signup, Created: true}, nil
}

// Confirm 消费确认链接。
// 条件更新保证并发确认只有一个请求生效；零行命中时区分具体失败原因。
func (s *SignupService) Confirm(email, token string) (*models.EarlyAccessSignup, error) {
	normalized, err := normalizeSignupEmail(email)
	if err != nil {
		return nil, ErrConfirmLinkInvalid
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrConfirmLinkInvalid
	}

	affected, err := s.signupRepo.Confirm(normalized, token, time.Now())
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		existing, getErr := s.signupRepo.GetByEmail(normalized)
		if getErr != nil {
			return nil, getErr
		}
		if existing == nil {
			return nil, ErrConfirmLinkInvalid
		}
		if existing.Confirmed {
			return nil, ErrAlreadyConfirmed
		}
		return nil, ErrConfirmTokenInvalid
	}

	signup, err := s.signupRepo.GetByEmail(normalized)
	if err != nil {
		return nil, err
	}

	s.dispatchConfirmedEmail(signup)
	s.invalidateStats()

	return signup, nil
}

// Resend 重发欢迎邮件（含确认链接），按配置间隔节流
func (s *SignupService) Resend(email string) error {
	normalized, err := normalizeSignupEmail(email)
	if err != nil {
		return err
	}

	signup, err := s.signupRepo.GetByEmail(normalized)
	if err != nil {
		return err
	}
	if signup == nil {
		return ErrSignupNotFound
	}
	if signup.Confirmed {
		return ErrAlreadyConfirmed
	}
	if signup.WelcomeSentAt != nil {
		interval := time.Duration(s.resendIntervalSeconds()) * time.Second
		if interval > 0 && time.Since(*signup.WelcomeSentAt) < interval {
			return ErrResendTooFrequent
		}
	}

	s.DispatchWelcomeEmail(signup)
	return nil
}

// Stats 统计登记数据，优先读取缓存
func (s *SignupService) Stats(ctx context.Context) (*cache.SignupStats, error) {
	if cached, hit, err := cache.GetSignupStats(ctx); err == nil && hit {
		return cached, nil
	} else if err != nil {
		logger.Warnw("signup_stats_cache_read_failed", "error", err)
	}

	total, confirmed, err := s.signupRepo.Counts()
	if err != nil {
		return nil, err
	}
	stats := &cache.SignupStats{
		Total:     total,
		Confirmed: confirmed,
		UpdatedAt: time.Now().Unix(),
	}
	if err := cache.SetSignupStats(ctx, stats); err != nil {
		logger.Warnw("signup_stats_cache_write_failed", "error", err)
	}
	return stats, nil
}

// DispatchWelcomeEmail 投递欢迎邮件。
// 队列优先；队列未启用时同步尽力发送，失败只记日志，不影响登记结果。
func (s *SignupService) DispatchWelcomeEmail(signup *models.EarlyAccessSignup) {
	if signup == nil {
		return
	}
	if s.queueClient.Enabled() {
		if err := s.queueClient.EnqueueSignupWelcomeEmail(queue.SignupWelcomeEmailPayload{SignupID: signup.ID}); err != nil {
			logger.Errorw("signup_welcome_email_enqueue_failed",
				"signup_id", signup.ID,
				"error", err,
			)
			s.sendWelcomeNow(signup)
		}
		return
	}
	s.sendWelcomeNow(signup)
}

func (s *SignupService) sendWelcomeNow(signup *models.EarlyAccessSignup) {
	if err := s.emailService.SendWelcomeEmail(signup.Email, signup.ConfirmationToken); err != nil {
		logger.Warnw("signup_welcome_email_send_failed",
			"signup_id", signup.ID,
			"error", err,
		)
		return
	}
	if err := s.signupRepo.MarkWelcomeSent(signup.ID, time.Now()); err != nil {
		logger.Warnw("signup_welcome_sent_mark_failed",
			"signup_id", signup.ID,
			"error", err,
		)
	}
}

func (s *SignupService) dispatchConfirmedEmail(signup *models.EarlyAccessSignup) {
	if signup == nil {
		return
	}
	if s.queueClient.Enabled() {
		if err := s.queueClient.EnqueueSignupConfirmedEmail(queue.SignupConfirmedEmailPayload{SignupID: signup.ID}); err != nil {
			logger.Errorw("signup_confirmed_email_enqueue_failed",
				"signup_id", signup.ID,
				"error", err,
			)
			s.sendConfirmedNow(signup)
		}
		return
	}
	s.sendConfirmedNow(signup)
}

func (s *SignupService) sendConfirmedNow(signup *models.EarlyAccessSignup) {
	if err := s.emailService.SendConfirmedEmail(signup.Email); err != nil {
		logger.Warnw("signup_confirmed_email_send_failed",
			"signup_id", signup.ID,
			"error", err,
		)
	}
}

func (s *SignupService) invalidateStats() {
	if err := cache.DelSignupStats(context.Background()); err != nil {
		logger.Warnw("signup_stats_cache_del_failed", "error", err)
	}
}

func (s *SignupService) tokenBytes() int {
	if s.cfg != nil && s.cfg.Signup.TokenBytes > 0 {
		return s.cfg.Signup.TokenBytes
	}
	return 32
}

func (s *SignupService) defaultSource() string {
	if s.cfg != nil && strings.TrimSpace(s.cfg.Signup.DefaultSource) != "" {
		return strings.TrimSpace(s.cfg.Signup.DefaultSource)
	}
	return "hero-form"
}

func (s *SignupService) resendIntervalSeconds() int {
	if s.cfg != nil && s.cfg.Signup.ResendIntervalSeconds > 0 {
		return s.cfg.Signup.ResendIntervalSeconds
	}
	return 60
}

// normalizeSignupEmail 统一邮箱格式并校验 local@domain.tld 形态
func normalizeSignupEmail(email string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(email))
	if normalized == "" {
		return "", ErrInvalidEmail
	}
	addr, err := mail.ParseAddress(normalized)
	if err != nil || addr.Address != normalized {
		return "", ErrInvalidEmail
	}
	at := strings.LastIndex(normalized, "@")
	if at <= 0 || !strings.Contains(normalized[at+1:], ".") {
		return "", ErrInvalidEmail
	}
	return normalized, nil
}

// NormalizeSignupEmail 统一邮箱格式
func NormalizeSignupEmail(email string) (string, error) {
	return normalizeSignupEmail(email)
}

func generateConfirmationToken(size int) (string, error) {
	if size <= 0 {
		size = 32
	}
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
