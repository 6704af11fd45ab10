package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/lumeo-api/internal/models"

	"gorm.io/gorm"
)

// ErrDuplicateEmail 邮箱唯一约束冲突
var ErrDuplicateEmail = errors.New("signup email already exists")

// SignupRepository 预约登记数据访问接口
type SignupRepository interface {
	Create(signup *models.EarlyAccessSignup) error
	GetByEmail(email string) (*models.EarlyAccessSignup, error)
	GetByID(id uint) (*models.EarlyAccessSignup, error)
	Confirm(email, token string, confirmedAt time.Time) (int64, error)
	MarkWelcomeSent(id uint, sentAt time.Time) error
	MarkReminderSent(id uint, sentAt time.Time) (int64, error)
	ListPendingForReminder(createdBefore time.Time, limit int) ([]models.EarlyAccessSignup, error)
	List(filter SignupListFilter) ([]models.EarlyAccessSignup, int64, error)
	Counts() (total int64, confirmed int64, err error)
}

// GormSignupRepository GORM 实现
type GormSignupRepository struct {
	db *gorm.DB
}

// NewSignupRepository 创建登记仓库
func NewSignupRepository(db *gorm.DB) *GormSignupRepository {
	return &GormSignupRepository{db: db}
}

// Create 创建登记记录；邮箱唯一约束冲突返回 ErrDuplicateEmail
func (r *GormSignupRepository) Create(signup *models.EarlyAccessSignup) error {
	if err := r.db.Create(signup).Error; err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateEmail
		}
		return err
	}
	return nil
}

// GetByEmail 根据邮箱获取登记记录
func (r *GormSignupRepository) GetByEmail(email string) (*models.EarlyAccessSignup, error) {
	var signup models.EarlyAccessSignup
	if err := r.db.Where("email = ?", email).First(&signup).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &signup, nil
}

// GetByID 根据 ID 获取登记记录
func (r *GormSignupRepository) GetByID(id uint) (*models.EarlyAccessSignup, error) {
	var signup models.EarlyAccessSignup
	if err := r.db.First(&signup, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &signup, nil
}

// Confirm 条件更新确认状态，返回受影响行数。
// 单条 UPDATE ... WHERE 保证并发确认时只有一个请求成功。
func (r *GormSignupRepository) Confirm(email, token string, confirmedAt time.Time) (int64, error) {
	result := r.db.Model(&models.EarlyAccessSignup{}).
		Where("email = ? AND confirmation_token = ? AND confirmed = ?", email, token, false).
		Updates(map[string]interface{}{
			"confirmed":    true,
			"confirmed_at": confirmedAt,
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// MarkWelcomeSent 记录欢迎邮件发送时间
func (r *GormSignupRepository) MarkWelcomeSent(id uint, sentAt time.Time) error {
	return r.db.Model(&models.EarlyAccessSignup{}).
		Where("id = ?", id).
		Update("welcome_sent_at", sentAt).Error
}

// MarkReminderSent 条件写入提醒时间，保证提醒至多发送一次
func (r *GormSignupRepository) MarkReminderSent(id uint, sentAt time.Time) (int64, error) {
	result := r.db.Model(&models.EarlyAccessSignup{}).
		Where("id = ? AND confirmed = ? AND reminder_sent_at IS NULL", id, false).
		Update("reminder_sent_at", sentAt)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// ListPendingForReminder 查询超期未确认且未提醒的登记
func (r *GormSignupRepository) ListPendingForReminder(createdBefore time.Time, limit int) ([]models.EarlyAccessSignup, error) {
	if limit <= 0 {
		limit = 100
	}
	var signups []models.EarlyAccessSignup
	if err := r.db.Where("confirmed = ? AND reminder_sent_at IS NULL AND created_at < ?", false, createdBefore).
		Order("id ASC").
		Limit(limit).
		Find(&signups).Error; err != nil {
		return nil, err
	}
	return signups, nil
}

// List 登记列表
func (r *GormSignupRepository) List(filter SignupListFilter) ([]models.EarlyAccessSignup, int64, error) {
	query := r.db.Model(&models.EarlyAccessSignup{})

	if filter.Keyword != "" {
		query = query.Where("email LIKE ?", "%"+filter.Keyword+"%")
	}
	if filter.Confirmed != nil {
		query = query.Where("confirmed = ?", *filter.Confirmed)
	}
	if filter.Source != "" {
		query = query.Where("source = ?", filter.Source)
	}
	if filter.CreatedFrom != nil {
		query = query.Where("created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		query = query.Where("created_at <= ?", *filter.CreatedTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPagination(query, filter.Page, filter.PageSize)

	var signups []models.EarlyAccessSignup
	if err := query.Order("id DESC").Find(&signups).Error; err != nil {
		return nil, 0, err
	}
	return signups, total, nil
}

// Counts 统计总登记数与已确认数
func (r *GormSignupRepository) Counts() (int64, int64, error) {
	var total int64
	if err := r.db.Model(&models.EarlyAccessSignup{}).Count(&total).Error; err != nil {
		return 0, 0, err
	}
	var confirmed int64
	if err := r.db.Model(&models.EarlyAccessSignup{}).Where("confirmed = ?", true).Count(&confirmed).Error; err != nil {
		return 0, 0, err
	}
	return total, confirmed, nil
}

// isDuplicateKeyError 识别唯一约束冲突。
// gorm 的方言翻译覆盖 postgres（23505），sqlite 驱动按报错文本兜底。
func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	message := strings.ToLower(err.Error())
	keywords := []string{
		"unique constraint",
		"duplicate key",
		"23505",
	}
	for _, keyword := range keywords {
		if strings.Contains(message, keyword) {
			return true
		}
	}
	return false
}
