// Package notify delivers the account emails the auth service sends.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"lighthouse-api/logger"
	"net/url"
)

// Mailer sends the two account emails. Implementations return an error when the
// message could not be handed to the delivery provider.
type Mailer interface {
	SendWelcome(ctx context.Context, to, username string) error
	SendPasswordReset(ctx context.Context, to, resetToken, username string) error
}

// Message is a rendered email.
type Message struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
	Kind    string `json:"kind"`
}

const (
	KindWelcome       = "welcome"
	KindPasswordReset = "password_reset"
)

var welcomeTmpl = template.Must(template.New("welcome").Parse(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <h2>Welcome to Universal Lighthouse!</h2>
  <p>Hello {{.Username}},</p>
  <p>Your account has been created. You now have admin access to the Universal Lighthouse platform.</p>
  <p><a href="{{.FrontendURL}}">Access Platform</a></p>
  <p>This email was sent from Universal Lighthouse. Please do not reply to this email.</p>
</div>`))

var resetTmpl = template.Must(template.New("reset").Parse(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <h2>Password Reset Request</h2>
  <p>Hello {{.Username}},</p>
  <p>You have requested to reset your password for Universal Lighthouse.</p>
  <p><a href="{{.ResetURL}}">Reset Password</a></p>
  <p>If the link does not work, copy this address into your browser:</p>
  <p>{{.ResetURL}}</p>
  <p><strong>This link will expire in 1 hour.</strong></p>
  <p>If you did not request this password reset, please ignore this email.</p>
</div>`))

// Renderer builds messages with links pointing at the dashboard frontend.
type Renderer struct {
	FrontendURL string
}

func (r Renderer) Welcome(to, username string) (Message, error) {
	var buf bytes.Buffer
	err := welcomeTmpl.Execute(&buf, struct{ Username, FrontendURL string }{username, r.FrontendURL})
	if err != nil {
		return Message{}, fmt.Errorf("render welcome email: %w", err)
	}
	return Message{To: to, Subject: "Welcome to Universal Lighthouse", HTML: buf.String(), Kind: KindWelcome}, nil
}

func (r Renderer) PasswordReset(to, resetToken, username string) (Message, error) {
	resetURL := r.FrontendURL + "/reset-password?token=" + url.QueryEscape(resetToken)

	var buf bytes.Buffer
	err := resetTmpl.Execute(&buf, struct{ Username, ResetURL string }{username, resetURL})
	if err != nil {
		return Message{}, fmt.Errorf("render password reset email: %w", err)
	}
	return Message{To: to, Subject: "Password Reset Request - Universal Lighthouse", HTML: buf.String(), Kind: KindPasswordReset}, nil
}

// DisabledMailer is used when no delivery provider is configured. Every send is
// logged and reported as successful.
type DisabledMailer struct{}

func (DisabledMailer) SendWelcome(_ context.Context, to, _ string) error {
	logger.Log.WithField("to", to).Warn("Mail delivery not configured. Cannot send welcome email.")
	return nil
}

func (DisabledMailer) SendPasswordReset(_ context.Context, to, _, _ string) error {
	logger.Log.WithField("to", to).Warn("Mail delivery not configured. Cannot send password reset email.")
	return nil
}
