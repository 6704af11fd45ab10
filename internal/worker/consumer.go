package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/lumeo-api/internal/logger"
	"github.com/lumeo-api/internal/models"
	"github.com/lumeo-api/internal/provider"
	"github.com/lumeo-api/internal/queue"
	"github.com/lumeo-api/internal/service"

	"github.com/hibiken/asynq"
)

// Consumer 异步任务消费者
type Consumer struct {
	*provider.Container
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskSignupWelcomeEmail, c.handleSignupWelcomeEmail)
	mux.HandleFunc(queue.TaskSignupConfirmedEmail, c.handleSignupConfirmedEmail)
	mux.HandleFunc(queue.TaskSignupReminderEmail, c.handleSignupReminderEmail)
}

func (c *Consumer) handleSignupWelcomeEmail(_ context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_signup_welcome_email_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.SignupWelcomeEmailPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_signup_welcome_email_unmarshal_failed", "error", err)
		return err
	}
	signup, err := c.fetchSignup(payload.SignupID, "worker_signup_welcome_email")
	if err != nil || signup == nil {
		return err
	}
	// 已确认且欢迎邮件已发过：重复投递跳过，确认链接已失效
	if signup.Confirmed && signup.WelcomeSentAt != nil {
		logger.Debugw("worker_signup_welcome_email_skip_stale", "signup_id", signup.ID)
		return nil
	}
	if err := c.EmailService.SendWelcomeEmail(signup.Email, signup.ConfirmationToken); err != nil {
		if isPermanentEmailError(err) {
			logger.Debugw("worker_signup_welcome_email_skip_permanent",
				"signup_id", signup.ID,
				"error", err,
			)
			return nil
		}
		logger.Warnw("worker_signup_welcome_email_send_failed",
			"signup_id", signup.ID,
			"error", err,
		)
		return err
	}
	if err := c.SignupRepo.MarkWelcomeSent(signup.ID, time.Now()); err != nil {
		logger.Warnw("worker_signup_welcome_sent_mark_failed",
			"signup_id", signup.ID,
			"error", err,
		)
	}
	return nil
}

func (c *Consumer) handleSignupConfirmedEmail(_ context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_signup_confirmed_email_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.SignupConfirmedEmailPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_signup_confirmed_email_unmarshal_failed", "error", err)
		return err
	}
	signup, err := c.fetchSignup(payload.SignupID, "worker_signup_confirmed_email")
	if err != nil || signup == nil {
		return err
	}
	if !signup.Confirmed {
		logger.Debugw("worker_signup_confirmed_email_skip_unconfirmed", "signup_id", signup.ID)
		return nil
	}
	if err := c.EmailService.SendConfirmedEmail(signup.Email); err != nil {
		if isPermanentEmailError(err) {
			logger.Debugw("worker_signup_confirmed_email_skip_permanent",
				"signup_id", signup.ID,
				"error", err,
			)
			return nil
		}
		logger.Warnw("worker_signup_confirmed_email_send_failed",
			"signup_id", signup.ID,
			"error", err,
		)
		return err
	}
	return nil
}

func (c *Consumer) handleSignupReminderEmail(_ context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_signup_reminder_email_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.SignupReminderEmailPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_signup_reminder_email_unmarshal_failed", "error", err)
		return err
	}
	signup, err := c.fetchSignup(payload.SignupID, "worker_signup_reminder_email")
	if err != nil || signup == nil {
		return err
	}
	if signup.Confirmed {
		logger.Debugw("worker_signup_reminder_email_skip_confirmed", "signup_id", signup.ID)
		return nil
	}

	// 先抢占提醒标记，抢不到说明已有别的消费者发过
	affected, err := c.SignupRepo.MarkReminderSent(signup.ID, time.Now())
	if err != nil {
		logger.Warnw("worker_signup_reminder_mark_failed", "signup_id", signup.ID, "error", err)
		return err
	}
	if affected == 0 {
		logger.Debugw("worker_signup_reminder_email_skip_already_sent", "signup_id", signup.ID)
		return nil
	}

	if err := c.EmailService.SendReminderEmail(signup.Email, signup.ConfirmationToken); err != nil {
		if isPermanentEmailError(err) {
			logger.Debugw("worker_signup_reminder_email_skip_permanent",
				"signup_id", signup.ID,
				"error", err,
			)
			return nil
		}
		logger.Warnw("worker_signup_reminder_email_send_failed",
			"signup_id", signup.ID,
			"error", err,
		)
		return err
	}
	return nil
}

func (c *Consumer) fetchSignup(signupID uint, event string) (*models.EarlyAccessSignup, error) {
	if signupID == 0 {
		logger.Debugw(event+"_skip_invalid_payload", "signup_id", signupID)
		return nil, nil
	}
	signup, err := c.SignupRepo.GetByID(signupID)
	if err != nil {
		logger.Warnw(event+"_fetch_failed", "signup_id", signupID, "error", err)
		return nil, err
	}
	if signup == nil {
		logger.Debugw(event+"_skip_not_found", "signup_id", signupID)
		return nil, nil
	}
	if c.EmailService == nil {
		logger.Warnw(event+"_skip_email_service_nil", "signup_id", signupID)
		return nil, nil
	}
	return signup, nil
}

// isPermanentEmailError 判断不值得重试的发送失败
func isPermanentEmailError(err error) bool {
	switch {
	case errors.Is(err, service.ErrEmailServiceDisabled),
		errors.Is(err, service.ErrEmailServiceNotConfigured),
		errors.Is(err, service.ErrEmailRecipientRejected),
		errors.Is(err, service.ErrInvalidEmail):
		return true
	default:
		return false
	}
}
