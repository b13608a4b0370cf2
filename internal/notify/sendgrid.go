package notify

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/stemsi/enrolment-backend/internal/config"
)

// SendGridMailer delivers mail through the SendGrid v3 API.
type SendGridMailer struct {
	client *sendgrid.Client
	from   *sgmail.Email
	log    zerolog.Logger
}

// NewSendGridMailer creates a SendGridMailer.
func NewSendGridMailer(cfg config.MailConfig, log zerolog.Logger) *SendGridMailer {
	return &SendGridMailer{
		client: sendgrid.NewSendClient(cfg.SendGridAPIKey),
		from:   sgmail.NewEmail(cfg.FromName, cfg.FromAddress),
		log:    log.With().Str("component", "sendgrid").Logger(),
	}
}

func (m *SendGridMailer) SendReceipt(ctx context.Context, r Receipt) error {
	msg, err := RenderReceipt(r)
	if err != nil {
		return err
	}

	mail := sgmail.NewSingleEmail(
		m.from, msg.Subject, sgmail.NewEmail(msg.Name, msg.To), msg.Text, msg.HTML,
	)
	res, err := m.client.SendWithContext(ctx, mail)
	if err != nil {
		return fmt.Errorf("send receipt: %w", err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("send receipt: sendgrid status %d: %s", res.StatusCode, res.Body)
	}

	m.log.Info().Str("order_id", r.OrderID).Int("status", res.StatusCode).Msg("Receipt sent")
	return nil
}
