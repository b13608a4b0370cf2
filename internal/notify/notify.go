// Package notify sends transactional e-mail to account holders.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/enrolment-backend/internal/config"
)

// Receipt is the confirmation sent after a registration fee is captured.
type Receipt struct {
	To       string
	Name     string
	OrderID  string
	Amount   string
	Currency string
	PaidAt   time.Time
}

// Message is a rendered e-mail.
type Message struct {
	To      string
	Name    string
	Subject string
	Text    string
	HTML    string
}

// Mailer delivers receipts.
type Mailer interface {
	SendReceipt(ctx context.Context, r Receipt) error
}

var receiptHTML = template.Must(template.New("receipt").Parse(
	`<p>Dear {{.Name}},</p>
<p>We have received your registration fee of <strong>{{.Amount}} {{.Currency}}</strong>.</p>
<p>PayPal order: {{.OrderID}}<br>Paid at: {{.PaidAt.Format "2006-01-02 15:04 MST"}}</p>
<p>Your registration is now complete.</p>`))

// RenderReceipt builds the receipt message.
func RenderReceipt(r Receipt) (Message, error) {
	var html bytes.Buffer
	if err := receiptHTML.Execute(&html, r); err != nil {
		return Message{}, fmt.Errorf("render receipt: %w", err)
	}
	text := fmt.Sprintf(
		"Dear %s,\n\nWe have received your registration fee of %s %s.\nPayPal order: %s\nPaid at: %s\n\nYour registration is now complete.\n",
		r.Name, r.Amount, r.Currency, r.OrderID, r.PaidAt.Format("2006-01-02 15:04 MST"),
	)
	return Message{
		To:      r.To,
		Name:    r.Name,
		Subject: "Registration fee received",
		Text:    text,
		HTML:    html.String(),
	}, nil
}

// NewMailer picks SendGrid when an API key is configured and the log mailer otherwise.
func NewMailer(cfg config.MailConfig, log zerolog.Logger) Mailer {
	if cfg.SendGridAPIKey != "" {
		return NewSendGridMailer(cfg, log)
	}
	log.Warn().Msg("SENDGRID_API_KEY not set, receipts are written to the log")
	return NewLogMailer(log)
}
