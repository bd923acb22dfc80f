package sender

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"time"

	"github.com/google/uuid"

	"github.com/yashrajoria/vm-marketplace/services/notification-service/config"
)

type SMTPSender struct {
	addr string
	from string
	auth smtp.Auth
	// send is smtp.SendMail outside tests.
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPSender(cfg config.SMTPConfig) *SMTPSender {
	return &SMTPSender{
		addr: net.JoinHostPort(cfg.Host, cfg.Port),
		from: cfg.From,
		auth: smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host),
		send: smtp.SendMail,
	}
}

func (s *SMTPSender) SendEmail(ctx context.Context, to, subject, body string) (SendResult, error) {
	if err := ctx.Err(); err != nil {
		return SendResult{}, err
	}

	id := fmt.Sprintf("<%s@vm-marketplace>", uuid.NewString())
	msg := buildMessage(s.from, to, subject, id, body)

	if err := s.send(s.addr, s.auth, s.from, []string{to}, msg); err != nil {
		return SendResult{}, fmt.Errorf("smtp send failed: %w", err)
	}
	return SendResult{MessageID: id, SentAt: time.Now()}, nil
}

func buildMessage(from, to, subject, messageID, body string) []byte {
	return []byte(
		"From: " + from + "\r\n" +
			"To: " + to + "\r\n" +
			"Subject: " + subject + "\r\n" +
			"Message-ID: " + messageID + "\r\n" +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: text/html; charset=UTF-8\r\n" +
			"\r\n" +
			body,
	)
}
