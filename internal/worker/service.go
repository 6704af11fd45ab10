package worker

import (
	"context"
	"errors"
	"time"

	"github.com/lumeo-api/internal/config"
	"github.com/lumeo-api/internal/logger"
	"github.com/lumeo-api/internal/queue"

	"github.com/hibiken/asynq"
)

const (
	pendingReminderInterval = 10 * time.Minute
	pendingReminderBatch    = 100
)

// Service 异步队列服务
type Service struct {
	name     string
	server   *asynq.Server
	mux      *asynq.ServeMux
	consumer *Consumer
}

// NewService 创建异步队列服务
func NewService(cfg *config.QueueConfig, consumer *Consumer) (*Service, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, errors.New("queue disabled")
	}
	if consumer == nil {
		return nil, errors.New("consumer is nil")
	}
	opt, serverCfg := queue.BuildServerConfig(cfg)
	server := asynq.NewServer(opt, serverCfg)
	mux := asynq.NewServeMux()
	consumer.Register(mux)
	return &Service{
		name:     "worker",
		server:   server,
		mux:      mux,
		consumer: consumer,
	}, nil
}

// Name 服务名称
func (s *Service) Name() string {
	if s == nil || s.name == "" {
		return "worker"
	}
	return s.name
}

// Start 启动服务
func (s *Service) Start(ctx context.Context) error {
	if s == nil || s.server == nil || s.mux == nil {
		return errors.New("worker not initialized")
	}
	if s.consumer != nil && s.consumer.SignupRepo != nil {
		go s.runPendingReminderLoop(ctx)
	}
	return s.server.Run(s.mux)
}

// Stop 停止服务
func (s *Service) Stop(ctx context.Context) error {
	if s == nil || s.server == nil {
		return nil
	}
	_ = ctx
	s.server.Shutdown()
	return nil
}

// runPendingReminderLoop 周期扫描超期未确认的登记并投递提醒任务
func (s *Service) runPendingReminderLoop(ctx context.Context) {
	if s == nil || s.consumer == nil || s.consumer.SignupRepo == nil {
		return
	}
	runOnce := func() {
		s.enqueueDueReminders()
	}
	runOnce()

	ticker := time.NewTicker(pendingReminderInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runOnce()
		}
	}
}

func (s *Service) enqueueDueReminders() {
	reminderAfter := 24
	if s.consumer.Config != nil && s.consumer.Config.Signup.ReminderAfterHours > 0 {
		reminderAfter = s.consumer.Config.Signup.ReminderAfterHours
	}
	createdBefore := time.Now().Add(-time.Duration(reminderAfter) * time.Hour)

	pending, err := s.consumer.SignupRepo.ListPendingForReminder(createdBefore, pendingReminderBatch)
	if err != nil {
		logger.Warnw("worker_pending_reminder_list_failed", "error", err)
		return
	}
	for _, signup := range pending {
		if err := s.consumer.QueueClient.EnqueueSignupReminderEmail(queue.SignupReminderEmailPayload{SignupID: signup.ID}); err != nil {
			logger.Warnw("worker_pending_reminder_enqueue_failed",
				"signup_id", signup.ID,
				"error", err,
			)
		}
	}
	if len(pending) > 0 {
		logger.Infow("worker_pending_reminder_enqueued", "count", len(pending))
	}
}
