package pkg

import (
	"crypto/tls"
	"fmt"
	"html"

	"gopkg.in/gomail.v2"
)

type SMTPConfig struct {
	Host     string
	Port     int
	Username string // 发件人邮箱
	Password string // 授权码/密码
	From     string // 显示的发件人，可与 Username 相同
}

func SendEmail(cfg SMTPConfig, to, subject, htmlBody string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", cfg.From)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", htmlBody)

	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	d.TLSConfig = &tls.Config{ServerName: cfg.Host}
	return d.DialAndSend(m)
}

// PendingJoinHTML 待审批加入申请的通知正文
func PendingJoinHTML(circleName, circleID string, userID uint64) string {
	return fmt.Sprintf(`<p>A new join request is waiting for approval.</p><p>Circle: <b>%s</b> (%s)<br>User: <b>%d</b></p>`,
		html.EscapeString(circleName), html.EscapeString(circleID), userID)
}
