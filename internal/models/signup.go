package models

import (
	"time"
)

// EarlyAccessSignup 预约登记记录
type EarlyAccessSignup struct {
	ID                uint       `gorm:"primarykey" json:"id"`                          // 主键
	Email             string     `gorm:"uniqueIndex;not null" json:"email"`             // 邮箱（写入前统一小写）
	ConfirmationToken string     `gorm:"not null" json:"-"`                             // 确认令牌（不返回给前端）
	Confirmed         bool       `gorm:"not null;default:false;index" json:"confirmed"` // 是否已确认
	ConfirmedAt       *time.Time `gorm:"index" json:"confirmed_at"`                     // 确认时间（与 Confirmed 同步变更）
	Source            string     `gorm:"index" json:"source"`                           // 来源归因标记
	UserAgent         string     `json:"user_agent"`                                    // 请求 UA（尽力采集）
	IPAddress         string     `json:"ip_address"`                                    // 请求 IP（尽力采集）
	WelcomeSentAt     *time.Time `json:"welcome_sent_at"`                               // 最近一次欢迎邮件发送时间
	ReminderSentAt    *time.Time `gorm:"index" json:"reminder_sent_at"`                 // 提醒邮件发送时间（至多一次）
	CreatedAt         time.Time  `gorm:"index" json:"created_at"`                       // 创建时间
}

// TableName 指定表名
func (EarlyAccessSignup) TableName() string {
	return "early_access_signups"
}
