package router

import (
	"fmt"
	"strings"

	"github.com/lumeo-api/internal/cache"
	"github.com/lumeo-api/internal/config"
	adminhandlers "github.com/lumeo-api/internal/http/handlers/admin"
	publichandlers "github.com/lumeo-api/internal/http/handlers/public"
	"github.com/lumeo-api/internal/logger"
	"github.com/lumeo-api/internal/provider"

	"github.com/gin-gonic/gin"
)

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	r := gin.New()

	// 初始化 Handler（按公开/后台分组）
	publicHandler := publichandlers.New(c)
	adminHandler := adminhandlers.New(c)
	redisPrefix := strings.TrimSpace(cfg.Redis.Prefix)
	if redisPrefix == "" {
		redisPrefix = "lumeo"
	}
	redisClient := cache.Client()
	signupRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:signup", redisPrefix),
		WindowSeconds: cfg.Security.SignupRateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.SignupRateLimit.MaxAttempts,
		Message:       "too many signup attempts, try again in %d seconds",
	}
	adminLoginRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:admin_login", redisPrefix),
		WindowSeconds: cfg.Security.LoginRateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.LoginRateLimit.MaxAttempts,
		Message:       "too many login attempts, try again in %d seconds",
	}

	// 中间件
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware(cfg.CORS))

	// 确认链接直达路由（邮件中的链接，需浏览器可点击）
	r.GET("/confirm", publicHandler.Confirm)

	// API 路由组
	apiV1 := r.Group("/api/v1")
	{
		// 公开接口
		public := apiV1.Group("/public")
		{
			public.GET("/stats", publicHandler.Stats)
		}

		// 登记接口（IP+邮箱限流）
		apiV1.POST("/subscribe",
			RateLimitMiddleware(redisClient, signupRule, KeyByIPAndJSONField("email")),
			publicHandler.Subscribe,
		)
		apiV1.POST("/subscribe/resend",
			RateLimitMiddleware(redisClient, signupRule, KeyByIPAndJSONField("email")),
			publicHandler.ResendConfirmation,
		)

		// 管理员接口
		admin := apiV1.Group("/admin")
		{
			// 登录接口（无需鉴权）
			admin.POST("/login", RateLimitMiddleware(redisClient, adminLoginRule, KeyByIP), adminHandler.AdminLogin)

			// 需要鉴权的接口
			authorized := admin.Use(JWTAuthMiddleware(cfg.JWT.SecretKey, c.AdminRepo))
			{
				authorized.GET("/profile", adminHandler.GetAdminProfile)
				authorized.GET("/dashboard", adminHandler.GetAdminDashboard)
				authorized.GET("/signups", adminHandler.GetAdminSignups)
				authorized.GET("/signups/export", adminHandler.ExportAdminSignups)
				authorized.GET("/signups/:id", adminHandler.GetAdminSignup)
				authorized.POST("/signups/:id/resend", adminHandler.ResendAdminSignupEmail)
				authorized.POST("/smtp/test", adminHandler.TestSMTP)
			}
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
