package service

import (
	"bytes"
	"crypto/tls"
	"fmt"
	"mime"
	"net/mail"
	"net/smtp"
	"net/url"
	"strings"

	"github.com/lumeo-api/internal/config"
)

// EmailService 邮件发送服务
type EmailService struct {
	cfg       *config.EmailConfig
	signupCfg *config.SignupConfig
}

// NewEmailService 创建邮件服务
func NewEmailService(cfg *config.EmailConfig, signupCfg *config.SignupConfig) *EmailService {
	return &EmailService{cfg: cfg, signupCfg: signupCfg}
}

// SetConfig 更新运行时邮件配置
func (s *EmailService) SetConfig(cfg *config.EmailConfig) {
	if cfg == nil {
		return
	}
	s.cfg = cfg
}

// BuildConfirmURL 拼接确认链接（token 与邮箱作为查询参数）
func (s *EmailService) BuildConfirmURL(email, token string) string {
	base := "http://localhost:8080"
	if s.signupCfg != nil && strings.TrimSpace(s.signupCfg.BaseURL) != "" {
		base = strings.TrimRight(strings.TrimSpace(s.signupCfg.BaseURL), "/")
	}
	return fmt.Sprintf("%s/confirm?token=%s&email=%s", base, url.QueryEscape(token), url.QueryEscape(email))
}

// SendWelcomeEmail 发送欢迎邮件（含确认链接）
func (s *EmailService) SendWelcomeEmail(toEmail, token string) error {
	confirmURL := s.BuildConfirmURL(toEmail, token)
	subject := "Lumeo Protocol - Access Granted"
	body := fmt.Sprintf(`Initiation sequence complete.

Welcome to the node network. Your request for early access has been successfully registered on the sequence chain.

Lumeo is dismantling the friction of legacy banking, building a wallet-native, non-custodial protocol where money moves at the speed of data.

Status:      WAITLIST_VERIFIED
Est. Access: Q3 2026

Confirm your position in the protocol queue by opening the link below. This ensures secure transmission of future signals:

%s

We will transmit further signals as we approach the Genesis Block launch.

-- Lumeo`, confirmURL)
	return s.sendTextEmail(toEmail, subject, body)
}

// SendConfirmedEmail 发送确认成功通知邮件
func (s *EmailService) SendConfirmedEmail(toEmail string) error {
	subject := "Lumeo Protocol - Node Authenticated"
	body := `Node authenticated.

Your position in the protocol queue has been confirmed and secured.

You will receive priority access to Lumeo's settlement layer when we launch in Q3 2026.

Stay tuned for exclusive updates, beta access opportunities, and technical previews as we approach the Genesis Block.

-- Lumeo`
	return s.sendTextEmail(toEmail, subject, body)
}

// SendReminderEmail 发送未确认提醒邮件
func (s *EmailService) SendReminderEmail(toEmail, token string) error {
	confirmURL := s.BuildConfirmURL(toEmail, token)
	subject := "Lumeo Protocol - Confirmation Pending"
	body := fmt.Sprintf(`Your early access request is still awaiting confirmation.

Your spot on the sequence chain is reserved, but the verification step has not been completed. Open the link below to confirm your position in the protocol queue:

%s

If you did not request access, you can safely ignore this message.

-- Lumeo`, confirmURL)
	return s.sendTextEmail(toEmail, subject, body)
}

// SendCustomEmail 发送测试邮件或自定义邮件
func (s *EmailService) SendCustomEmail(toEmail, subject, body string) error {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		subject = "Lumeo SMTP Test"
	}
	body = strings.TrimSpace(body)
	if body == "" {
		body = "This is an SMTP test email from Lumeo. Your delivery configuration works."
	}
	return s.sendTextEmail(toEmail, subject, body)
}

func (s *EmailService) sendTextEmail(toEmail, subject, body string) error {
	if s.cfg == nil || !s.cfg.Enabled {
		return ErrEmailServiceDisabled
	}
	if s.cfg.Host == "" || s.cfg.Port == 0 || s.cfg.From == "" {
		return ErrEmailServiceNotConfigured
	}
	if _, err := mail.ParseAddress(toEmail); err != nil {
		return ErrInvalidEmail
	}

	from := buildFromAddress(s.cfg.From, s.cfg.FromName)
	msg := buildEmailMessage(from, toEmail, subject, body)

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	var auth smtp.Auth
	if s.cfg.Username != "" || s.cfg.Password != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}

	if s.cfg.UseSSL {
		return normalizeEmailSendError(sendMailWithSSL(addr, auth, s.cfg.Host, s.cfg.From, []string{toEmail}, []byte(msg)))
	}
	if s.cfg.UseTLS {
		return normalizeEmailSendError(sendMailWithStartTLS(addr, auth, s.cfg.Host, s.cfg.From, []string{toEmail}, []byte(msg)))
	}
	return normalizeEmailSendError(sendMailPlain(addr, auth, s.cfg.Host, s.cfg.From, []string{toEmail}, []byte(msg)))
}

func buildFromAddress(from, name string) string {
	if strings.TrimSpace(name) == "" {
		return from
	}
	encoded := mime.QEncoding.Encode("UTF-8", name)
	return (&mail.Address{Name: encoded, Address: from}).String()
}

func buildEmailMessage(from, to, subject, body string) string {
	var buf bytes.Buffer
	buf.WriteString(fmt.Sprintf("From: %s\r\n", from))
	buf.WriteString(fmt.Sprintf("To: %s\r\n", to))
	buf.WriteString(fmt.Sprintf("Subject: %s\r\n", mime.QEncoding.Encode("UTF-8", subject)))
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	buf.WriteString("\r\n")
	buf.WriteString(body)
	return buf.String()
}

func sendMailWithSSL(addr string, auth smtp.Auth, host, from string, to []string, msg []byte) error {
	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: host})
	if err != nil {
		return err
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, host)
	if err != nil {
		return err
	}
	defer client.Close()

	if auth != nil {
		if ok, _ := client.Extension("AUTH"); ok {
			if err := client.Auth(auth); err != nil {
				return err
			}
		}
	}

	return sendSMTPData(client, from, to, msg)
}

func sendMailWithStartTLS(addr string, auth smtp.Auth, host, from string, to []string, msg []byte) error {
	client, err := smtp.Dial(addr)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.StartTLS(&tls.Config{ServerName: host}); err != nil {
		return err
	}

	if auth != nil {
		if ok, _ := client.Extension("AUTH"); ok {
			if err := client.Auth(auth); err != nil {
				return err
			}
		}
	}

	return sendSMTPData(client, from, to, msg)
}

func sendMailPlain(addr string, auth smtp.Auth, host, from string, to []string, msg []byte) error {
	client, err := smtp.Dial(addr)
	if err != nil {
		return err
	}
	defer client.Close()

	if auth != nil {
		if ok, _ := client.Extension("AUTH"); ok {
			if err := client.Auth(auth); err != nil {
				return err
			}
		}
	}

	return sendSMTPData(client, from, to, msg)
}

func sendSMTPData(client *smtp.Client, from string, to []string, msg []byte) error {
	if err := client.Mail(from); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := client.Rcpt(rcpt); err != nil {
			return err
		}
	}
	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return client.Quit()
}

func normalizeEmailSendError(err error) error {
	if err == nil {
		return nil
	}
	if isEmailRecipientRejected(err) {
		return ErrEmailRecipientRejected
	}
	return err
}

func isEmailRecipientRejected(err error) bool {
	if err == nil {
		return false
	}
	message := strings.ToLower(strings.TrimSpace(err.Error()))
	if message == "" {
		return false
	}
	directKeywords := []string{
		"no such recipient",
		"no such user",
		"recipient not found",
		"recipient address rejected",
		"invalid recipient",
		"user unknown",
		"unknown user",
		"unknown mailbox",
		"mailbox unavailable",
	}
	for _, keyword := range directKeywords {
		if strings.Contains(message, keyword) {
			return true
		}
	}
	if strings.Contains(message, "550") {
		hints := []string{"recipient", "user", "mailbox", "address", "rcpt"}
		for _, hint := range hints {
			if strings.Contains(message, hint) {
				return true
			}
		}
	}
	return false
}
