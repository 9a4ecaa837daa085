package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/jordan-wright/email"
)

type SmtpConfig struct {
	Server       string   `json:"server"`
	Port         int      `json:"port"`
	EmailAddress string   `json:"email_address"`
	Password     string   `json:"password"`
	Recipients   []string `json:"recipients"`
}

type EmailChannel struct {
	config SmtpConfig
}

func NewEmailChannel(config SmtpConfig) (*EmailChannel, error) {
	if config.Server == "" {
		return nil, fmt.Errorf("email: server is required")
	}
	if len(config.Recipients) == 0 {
		return nil, fmt.Errorf("email: at least one recipient is required")
	}
	return &EmailChannel{config: config}, nil
}

func (c *EmailChannel) Name() string {
	return "email"
}

func (c *EmailChannel) Send(ctx context.Context, title, body string) error {
	mail := email.NewEmail()
	mail.From = fmt.Sprintf("restockd <%s>", c.config.EmailAddress)
	mail.To = c.config.Recipients
	mail.Subject = title
	mail.Text = []byte(body)

	addr := fmt.Sprintf("%s:%d", c.config.Server, c.config.Port)
	err := mail.Send(
		addr,
		smtp.PlainAuth("", c.config.EmailAddress, c.config.Password, c.config.Server),
	)
	if err != nil && strings.Contains(err.Error(), "server doesn't support AUTH") {
		err = mail.Send(addr, nil)
	}
	if err != nil {
		return fmt.Errorf("email: %w", err)
	}
	return nil
}
