package email

import (
	"context"
	"strings"
)

// Sender is the concrete executors.EmailSender a sendTask delegates to:
// compose an RFC 5322 MIME message from a markdown body and deliver it
// over SMTP.
type Sender struct {
	cfg SMTPConfig
}

// NewSender binds a Sender to one SMTP relay configuration.
func NewSender(cfg SMTPConfig) *Sender {
	return &Sender{cfg: cfg}
}

// Send implements executors.EmailSender. to is a comma-separated
// recipient list, matching the sendTask node's templated "to" property.
func (s *Sender) Send(ctx context.Context, to, subject, body string) error {
	recipients := splitRecipients(to)
	msg, err := composeMessage(composeOptions{
		From:    s.cfg.From,
		To:      recipients,
		Subject: subject,
		Body:    body,
	})
	if err != nil {
		return err
	}
	return sendMail(ctx, s.cfg, recipients, msg)
}

func splitRecipients(to string) []string {
	parts := strings.Split(to, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
