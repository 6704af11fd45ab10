package provider

import (
	"github.com/lumeo-api/internal/cache"
	"github.com/lumeo-api/internal/config"
	"github.com/lumeo-api/internal/logger"
	"github.com/lumeo-api/internal/models"
	"github.com/lumeo-api/internal/queue"
	"github.com/lumeo-api/internal/repository"
	"github.com/lumeo-api/internal/service"
)

// Container 依赖注入容器
type Container struct {
	Config      *config.Config
	QueueClient *queue.Client

	// Repositories
	SignupRepo repository.SignupRepository
	AdminRepo  repository.AdminRepository

	// Services
	AuthService   *service.AuthService
	EmailService  *service.EmailService
	SignupService *service.SignupService
}

// NewContainer 初始化容器
func NewContainer(cfg *config.Config) *Container {
	// 初始化缓存
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	// 初始化队列客户端
	var queueClient *queue.Client
	if cfg.Queue.Enabled {
		qc, err := queue.NewClient(&cfg.Queue)
		if err != nil {
			logger.Errorw("provider_init_queue_client_failed", "error", err)
		} else {
			queueClient = qc
		}
	}

	c := &Container{
		Config:      cfg,
		QueueClient: queueClient,
	}

	c.initRepositories()
	c.initServices()

	return c
}

func (c *Container) initRepositories() {
	db := models.DB
	c.SignupRepo = repository.NewSignupRepository(db)
	c.AdminRepo = repository.NewAdminRepository(db)
}

func (c *Container) initServices() {
	c.EmailService = service.NewEmailService(&c.Config.Email, &c.Config.Signup)
	c.AuthService = service.NewAuthService(c.Config, c.AdminRepo)
	c.SignupService = service.NewSignupService(c.Config, c.SignupRepo, c.QueueClient, c.EmailService)
}
