package email

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
)

// SMTPSender sends emails via a plain SMTP relay.
type SMTPSender struct {
	host     string
	port     int
	username string
	password string
}

func NewSMTPSender(host string, port int, username, password string) *SMTPSender {
	return &SMTPSender{
		host:     host,
		port:     port,
		username: username,
		password: password,
	}
}

func (s *SMTPSender) Send(_ context.Context, from, recipient Address, subject, body string) error {
	var msg strings.Builder
	msg.WriteString("From: " + string(from) + "\r\n")
	msg.WriteString("To: " + string(recipient) + "\r\n")
	msg.WriteString("Subject: " + subject + "\r\n")
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body)

	var auth smtp.Auth
	if s.username != "" {
		auth = smtp.PlainAuth("", s.username, s.password, s.host)
	}

	addr := fmt.Sprintf("%s:%d", s.host, s.port)
	return smtp.SendMail(addr, auth, string(from), []string{string(recipient)}, []byte(msg.String()))
}
