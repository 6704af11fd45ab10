package public

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/lumeo-api/internal/constants"
	"github.com/lumeo-api/internal/http/response"
	"github.com/lumeo-api/internal/service"

	"github.com/gin-gonic/gin"
)

// SubscribeRequest 登记请求
type SubscribeRequest struct {
	Email  string `json:"email" binding:"required"`
	Source string `json:"source"`
}

// Subscribe 登记早期访问申请
func (h *Handler) Subscribe(c *gin.Context) {
	var req SubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "invalid request body", err)
		return
	}

	result, err := h.SignupService.Subscribe(service.SubscribeInput{
		Email:     req.Email,
		Source:    req.Source,
		UserAgent: c.Request.UserAgent(),
		IPAddress: c.ClientIP(),
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidEmail):
			respondError(c, response.CodeBadRequest, "please provide a valid email address", nil)
		default:
			respondError(c, response.CodeInternal, "signup failed, please try again later", err)
		}
		return
	}

	requestLog(c).Infow("signup_subscribe",
		"signup_id", result.Signup.ID,
		"created", result.Created,
		"confirmed", result.Signup.Confirmed,
		"source", result.Signup.Source,
	)

	msg := "you're on the list, check your email to confirm"
	if !result.Created && result.Signup.Confirmed {
		msg = "this email is already confirmed"
	} else if !result.Created {
		msg = "you're already on the list, check your email to confirm"
	}
	response.SuccessWithMsg(c, msg, gin.H{
		"email":     result.Signup.Email,
		"confirmed": result.Signup.Confirmed,
	})
}

// ResendRequest 重发确认邮件请求
type ResendRequest struct {
	Email string `json:"email" binding:"required"`
}

// ResendConfirmation 重发确认邮件
func (h *Handler) ResendConfirmation(c *gin.Context) {
	var req ResendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "invalid request body", err)
		return
	}

	if err := h.SignupService.Resend(req.Email); err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidEmail):
			respondError(c, response.CodeBadRequest, "please provide a valid email address", nil)
		case errors.Is(err, service.ErrSignupNotFound):
			respondError(c, response.CodeNotFound, "email not found on the list", nil)
		case errors.Is(err, service.ErrAlreadyConfirmed):
			respondError(c, response.CodeBadRequest, "this email is already confirmed", nil)
		case errors.Is(err, service.ErrResendTooFrequent):
			respondError(c, response.CodeTooManyRequests, "confirmation email was sent recently, try again later", nil)
		default:
			respondError(c, response.CodeInternal, "resend failed, please try again later", err)
		}
		return
	}

	response.SuccessWithMsg(c, "confirmation email sent", gin.H{"sent": true})
}

// Confirm 消费确认链接并跳转到站点结果页
func (h *Handler) Confirm(c *gin.Context) {
	token := c.Query("token")
	email := c.Query("email")

	signup, err := h.SignupService.Confirm(email, token)
	if err != nil {
		errorCode := constants.ConfirmErrorInvalidLink
		if errors.Is(err, service.ErrConfirmTokenInvalid) {
			errorCode = constants.ConfirmErrorInvalidTok
		}
		if !errors.Is(err, service.ErrConfirmLinkInvalid) &&
			!errors.Is(err, service.ErrConfirmTokenInvalid) &&
			!errors.Is(err, service.ErrAlreadyConfirmed) {
			requestLog(c).Errorw("signup_confirm_failed", "error", err)
		}
		c.Redirect(http.StatusFound, h.buildConfirmErrorURL(errorCode))
		return
	}

	requestLog(c).Infow("signup_confirmed", "signup_id", signup.ID)
	c.Redirect(http.StatusFound, h.siteURL()+constants.ConfirmSuccessPath)
}

// Stats 公开登记统计
func (h *Handler) Stats(c *gin.Context) {
	stats, err := h.SignupService.Stats(c.Request.Context())
	if err != nil {
		respondError(c, response.CodeInternal, "stats unavailable", err)
		return
	}
	response.Success(c, gin.H{
		"total":     stats.Total,
		"confirmed": stats.Confirmed,
	})
}

func (h *Handler) siteURL() string {
	if h.Config != nil && strings.TrimSpace(h.Config.Signup.SiteURL) != "" {
		return strings.TrimRight(strings.TrimSpace(h.Config.Signup.SiteURL), "/")
	}
	return "http://localhost:3000"
}

func (h *Handler) buildConfirmErrorURL(errorCode string) string {
	return fmt.Sprintf("%s%s?error=%s", h.siteURL(), constants.ConfirmErrorPath, errorCode)
}
