package notify

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// LogMailer writes messages to the log instead of sending them. Sent keeps
// every rendered message for inspection.
type LogMailer struct {
	log  zerolog.Logger
	mu   sync.Mutex
	sent []Message
}

// NewLogMailer creates a LogMailer.
func NewLogMailer(log zerolog.Logger) *LogMailer {
	return &LogMailer{log: log.With().Str("component", "mailer").Logger()}
}

func (m *LogMailer) SendReceipt(_ context.Context, r Receipt) error {
	msg, err := RenderReceipt(r)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.sent = append(m.sent, msg)
	m.mu.Unlock()

	m.log.Info().
		Str("to", msg.To).
		Str("subject", msg.Subject).
		Str("order_id", r.OrderID).
		Msg("Receipt (not sent, no mail provider configured)")
	return nil
}

// Sent returns a copy of the messages handled so far.
func (m *LogMailer) Sent() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Message, len(m.sent))
	copy(out, m.sent)
	return out
}
