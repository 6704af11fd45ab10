package queue

import (
	"encoding/json"

	"github.com/lumeo-api/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskSignupWelcomeEmail 登记欢迎邮件任务
	TaskSignupWelcomeEmail = constants.TaskSignupWelcomeEmail
	// TaskSignupConfirmedEmail 确认成功通知邮件任务
	TaskSignupConfirmedEmail = constants.TaskSignupConfirmedEmail
	// TaskSignupReminderEmail 未确认提醒邮件任务
	TaskSignupReminderEmail = constants.TaskSignupReminderEmail
)

// SignupWelcomeEmailPayload 欢迎邮件任务载荷
type SignupWelcomeEmailPayload struct {
	SignupID uint `json:"signup_id"`
}

// SignupConfirmedEmailPayload 确认通知任务载荷
type SignupConfirmedEmailPayload struct {
	SignupID uint `json:"signup_id"`
}

// SignupReminderEmailPayload 提醒邮件任务载荷
type SignupReminderEmailPayload struct {
	SignupID uint `json:"signup_id"`
}

// NewSignupWelcomeEmailTask 创建欢迎邮件任务
func NewSignupWelcomeEmailTask(payload SignupWelcomeEmailPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSignupWelcomeEmail, body), nil
}

// NewSignupConfirmedEmailTask 创建确认通知任务
func NewSignupConfirmedEmailTask(payload SignupConfirmedEmailPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSignupConfirmedEmail, body), nil
}

// NewSignupReminderEmailTask 创建提醒邮件任务
func NewSignupReminderEmailTask(payload SignupReminderEmailPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSignupReminderEmail, body), nil
}
