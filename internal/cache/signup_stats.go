package cache

import (
	"context"
	"time"
)

const signupStatsCacheTTL = 60 * time.Second
const signupStatsCacheKey = "signup:stats"

// SignupStats 预约统计快照
// 仅用于公开统计接口的 Redis 缓存，避免每次请求扫表
type SignupStats struct {
	Total     int64 `json:"total"`
	Confirmed int64 `json:"confirmed"`
	UpdatedAt int64 `json:"updated_at"`
}

// GetSignupStats 获取统计快照
func GetSignupStats(ctx context.Context) (*SignupStats, bool, error) {
	var stats SignupStats
	hit, err := GetJSON(ctx, signupStatsCacheKey, &stats)
	if err != nil || !hit {
		return nil, hit, err
	}
	return &stats, true, nil
}

// SetSignupStats 写入统计快照
func SetSignupStats(ctx context.Context, stats *SignupStats) error {
	if stats == nil {
		return nil
	}
	return SetJSON(ctx, signupStatsCacheKey, stats, signupStatsCacheTTL)
}

// DelSignupStats 删除统计快照
func DelSignupStats(ctx context.Context) error {
	return Del(ctx, signupStatsCacheKey)
}
