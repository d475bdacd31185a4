package notify

import (
	"fmt"

	gomail "gopkg.in/mail.v2"

	"touris/api/internal/config"
)

// Mailer delivers rendered emails over SMTP.
type Mailer struct {
	dialer *gomail.Dialer
	from   string
}

func NewMailer(cfg config.SMTPConfig) *Mailer {
	return &Mailer{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
	}
}

func (m *Mailer) Send(email Email) error {
	message := gomail.NewMessage()
	message.SetHeader("From", m.from)
	message.SetHeader("To", email.To)
	message.SetHeader("Subject", email.Subject)
	message.SetBody("text/plain", email.Text)
	if email.HTML != "" {
		message.AddAlternative("text/html", email.HTML)
	}

	if err := m.dialer.DialAndSend(message); err != nil {
		return fmt.Errorf("send email to %s: %w", email.To, err)
	}
	return nil
}
