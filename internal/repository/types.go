package repository

import "time"

// SignupListFilter 登记列表筛选条件
type SignupListFilter struct {
	Keyword     string // 邮箱模糊匹配
	Confirmed   *bool
	Source      string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Page        int
	PageSize    int
}
