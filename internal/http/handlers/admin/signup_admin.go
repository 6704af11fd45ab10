package admin

import (
	"encoding/csv"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lumeo-api/internal/constants"
	"github.com/lumeo-api/internal/http/response"
	"github.com/lumeo-api/internal/repository"
	"github.com/lumeo-api/internal/service"

	"github.com/gin-gonic/gin"
)

// GetAdminSignups 获取登记列表 (Admin)
func (h *Handler) GetAdminSignups(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)

	filter, ok := parseSignupListFilter(c)
	if !ok {
		return
	}
	filter.Page = page
	filter.PageSize = pageSize

	signups, total, err := h.SignupRepo.List(filter)
	if err != nil {
		respondError(c, response.CodeInternal, "signup list fetch failed", err)
		return
	}

	pagination := response.Pagination{
		Page:      page,
		PageSize:  pageSize,
		Total:     total,
		TotalPage: (total + int64(pageSize) - 1) / int64(pageSize),
	}
	response.SuccessWithPage(c, signups, pagination)
}

// GetAdminSignup 获取登记详情 (Admin)
func (h *Handler) GetAdminSignup(c *gin.Context) {
	id, err := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if err != nil || id == 0 {
		respondError(c, response.CodeBadRequest, "invalid signup id", nil)
		return
	}

	signup, err := h.SignupRepo.GetByID(uint(id))
	if err != nil {
		respondError(c, response.CodeInternal, "signup fetch failed", err)
		return
	}
	if signup == nil {
		respondError(c, response.CodeNotFound, "signup not found", nil)
		return
	}

	response.Success(c, signup)
}

// ResendAdminSignupEmail 重发欢迎邮件 (Admin，绕过节流)
func (h *Handler) ResendAdminSignupEmail(c *gin.Context) {
	id, err := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if err != nil || id == 0 {
		respondError(c, response.CodeBadRequest, "invalid signup id", nil)
		return
	}

	signup, err := h.SignupRepo.GetByID(uint(id))
	if err != nil {
		respondError(c, response.CodeInternal, "signup fetch failed", err)
		return
	}
	if signup == nil {
		respondError(c, response.CodeNotFound, "signup not found", nil)
		return
	}
	if signup.Confirmed {
		respondError(c, response.CodeBadRequest, "signup already confirmed", nil)
		return
	}

	h.SignupService.DispatchWelcomeEmail(signup)
	requestLog(c).Infow("admin_signup_resend", "signup_id", signup.ID)

	response.SuccessWithMsg(c, "confirmation email dispatched", gin.H{"sent": true})
}

// ExportAdminSignups 导出登记 CSV (Admin)
func (h *Handler) ExportAdminSignups(c *gin.Context) {
	filter, ok := parseSignupListFilter(c)
	if !ok {
		return
	}
	filter.PageSize = constants.ExportMaxBatchSize

	filename := fmt.Sprintf("signups-%s.csv", time.Now().Format("20060102-150405"))
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	writer := csv.NewWriter(c.Writer)
	header := []string{"id", "email", "confirmed", "confirmed_at", "source", "created_at"}
	if err := writer.Write(header); err != nil {
		requestLog(c).Errorw("admin_signup_export_write_failed", "error", err)
		return
	}

	for page := 1; ; page++ {
		filter.Page = page
		signups, _, err := h.SignupRepo.List(filter)
		if err != nil {
			requestLog(c).Errorw("admin_signup_export_list_failed", "page", page, "error", err)
			return
		}
		for _, signup := range signups {
			confirmedAt := ""
			if signup.ConfirmedAt != nil {
				confirmedAt = signup.ConfirmedAt.Format(time.RFC3339)
			}
			record := []string{
				strconv.FormatUint(uint64(signup.ID), 10),
				signup.Email,
				strconv.FormatBool(signup.Confirmed),
				confirmedAt,
				signup.Source,
				signup.CreatedAt.Format(time.RFC3339),
			}
			if err := writer.Write(record); err != nil {
				requestLog(c).Errorw("admin_signup_export_write_failed", "error", err)
				return
			}
		}
		if len(signups) < filter.PageSize {
			break
		}
	}
	writer.Flush()
}

// GetAdminDashboard 后台概览统计 (Admin)
func (h *Handler) GetAdminDashboard(c *gin.Context) {
	stats, err := h.SignupService.Stats(c.Request.Context())
	if err != nil {
		respondError(c, response.CodeInternal, "dashboard fetch failed", err)
		return
	}
	pendingCount := stats.Total - stats.Confirmed
	response.Success(c, gin.H{
		"total":      stats.Total,
		"confirmed":  stats.Confirmed,
		"pending":    pendingCount,
		"updated_at": stats.UpdatedAt,
	})
}

// TestSMTPRequest SMTP 测试发送请求
type TestSMTPRequest struct {
	ToEmail string `json:"to_email" binding:"required"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// TestSMTP 测试 SMTP 配置发送
func (h *Handler) TestSMTP(c *gin.Context) {
	var req TestSMTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "invalid request body", err)
		return
	}

	toEmail := strings.TrimSpace(req.ToEmail)
	if toEmail == "" {
		respondError(c, response.CodeBadRequest, "please provide a valid email address", nil)
		return
	}

	if err := h.EmailService.SendCustomEmail(toEmail, req.Subject, req.Body); err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidEmail):
			respondError(c, response.CodeBadRequest, "please provide a valid email address", nil)
		case errors.Is(err, service.ErrEmailRecipientRejected):
			respondError(c, response.CodeBadRequest, "recipient mailbox rejected the message", nil)
		case errors.Is(err, service.ErrEmailServiceDisabled),
			errors.Is(err, service.ErrEmailServiceNotConfigured):
			respondError(c, response.CodeInternal, "email service not configured", err)
		default:
			respondError(c, response.CodeInternal, "test email send failed", err)
		}
		return
	}

	response.SuccessWithMsg(c, "test email sent", gin.H{"sent": true})
}

func parseSignupListFilter(c *gin.Context) (repository.SignupListFilter, bool) {
	filter := repository.SignupListFilter{
		Keyword: strings.TrimSpace(c.Query("search")),
		Source:  strings.TrimSpace(c.Query("source")),
	}

	if confirmedRaw := strings.TrimSpace(c.Query("confirmed")); confirmedRaw != "" {
		confirmed, err := strconv.ParseBool(confirmedRaw)
		if err != nil {
			respondError(c, response.CodeBadRequest, "invalid confirmed filter", nil)
			return filter, false
		}
		filter.Confirmed = &confirmed
	}
	if fromRaw := strings.TrimSpace(c.Query("created_from")); fromRaw != "" {
		from, err := time.Parse(time.RFC3339, fromRaw)
		if err != nil {
			respondError(c, response.CodeBadRequest, "invalid created_from filter", nil)
			return filter, false
		}
		filter.CreatedFrom = &from
	}
	if toRaw := strings.TrimSpace(c.Query("created_to")); toRaw != "" {
		to, err := time.Parse(time.RFC3339, toRaw)
		if err != nil {
			respondError(c, response.CodeBadRequest, "invalid created_to filter", nil)
			return filter, false
		}
		filter.CreatedTo = &to
	}

	return filter, true
}
