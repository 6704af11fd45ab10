package constants

// 应用级别常量

const (
	// SignupDefaultSource 未携带来源标记时的默认归因
	SignupDefaultSource = "hero-form"
	// SignupSourceSeed 开发环境种子数据来源标记
	SignupSourceSeed = "seed"
	// SignupSourceAdmin 后台手工补发来源标记
	SignupSourceAdmin = "admin"
)

// 队列与任务名称
const (
	QueueDefault             = "default"
	TaskSignupWelcomeEmail   = "signup:welcome_email"
	TaskSignupConfirmedEmail = "signup:confirmed_email"
	TaskSignupReminderEmail  = "signup:reminder_email"
)

// 确认链接跳转页面（相对 site_url）
const (
	ConfirmSuccessPath      = "/confirmed"
	ConfirmErrorPath        = "/early-access"
	ConfirmErrorInvalidLink = "invalid_link"
	ConfirmErrorInvalidTok  = "invalid_token"
)

// 分页默认值
const (
	DefaultPage        = 1
	DefaultPageSize    = 20
	MaxPageSize        = 200
	ExportMaxBatchSize = 1000
)
