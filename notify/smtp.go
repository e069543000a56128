package notify

import (
	"context"
	"fmt"
	"lighthouse-api/logger"

	"gopkg.in/gomail.v2"
)

type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

// dialer is the part of gomail.Dialer the mailer uses.
type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

type SMTPMailer struct {
	dialer   dialer
	from     string
	renderer Renderer
}

func NewSMTPMailer(cfg SMTPConfig, renderer Renderer) *SMTPMailer {
	from := cfg.From
	if from == "" {
		from = cfg.User
	}
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password)
	d.SSL = cfg.Port == 465
	return &SMTPMailer{dialer: d, from: from, renderer: renderer}
}

func (m *SMTPMailer) SendWelcome(ctx context.Context, to, username string) error {
	msg, err := m.renderer.Welcome(to, username)
	if err != nil {
		return err
	}
	return m.send(ctx, msg)
}

func (m *SMTPMailer) SendPasswordReset(ctx context.Context, to, resetToken, username string) error {
	msg, err := m.renderer.PasswordReset(to, resetToken, username)
	if err != nil {
		return err
	}
	return m.send(ctx, msg)
}

func (m *SMTPMailer) send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	gm := gomail.NewMessage()
	gm.SetHeader("From", m.from)
	gm.SetHeader("To", msg.To)
	gm.SetHeader("Subject", msg.Subject)
	gm.SetBody("text/html", msg.HTML)

	log := logger.Log.WithField("to", msg.To).WithField("kind", msg.Kind)

	// gomail has no context support; a hung server is abandoned when ctx ends.
	done := make(chan error, 1)
	go func() { done <- m.dialer.DialAndSend(gm) }()

	select {
	case err := <-done:
		if err != nil {
			log.WithError(err).Error("Failed to send email")
			return fmt.Errorf("smtp send %s: %w", msg.Kind, err)
		}
	case <-ctx.Done():
		log.WithError(ctx.Err()).Error("Email send abandoned")
		return fmt.Errorf("smtp send %s: %w", msg.Kind, ctx.Err())
	}
	log.Info("Email sent")
	return nil
}
