package service

import "errors"

// 服务层哨兵错误，handler 通过 errors.Is 映射为响应码
var (
	ErrInvalidEmail              = errors.New("invalid email address")
	ErrSignupNotFound            = errors.New("signup not found")
	ErrAlreadyConfirmed          = errors.New("signup already confirmed")
	ErrConfirmLinkInvalid        = errors.New("confirmation link invalid")
	ErrConfirmTokenInvalid       = errors.New("confirmation token invalid")
	ErrResendTooFrequent         = errors.New("resend requested too frequently")
	ErrInvalidCredentials        = errors.New("invalid username or password")
	ErrNotFound                  = errors.New("record not found")
	ErrEmailServiceDisabled      = errors.New("email service disabled")
	ErrEmailServiceNotConfigured = errors.New("email service not configured")
	ErrEmailRecipientRejected    = errors.New("email recipient rejected")
)
