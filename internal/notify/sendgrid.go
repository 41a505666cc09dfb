package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// SendGridSender delivers messages through the SendGrid v3 mail API.
type SendGridSender struct {
	apiKey   string
	from     *mail.Email
	endpoint string // overrides the API host; tests point it at httptest
}

// NewSendGridSender creates a sender that sends as fromName <fromEmail>.
func NewSendGridSender(apiKey, fromEmail, fromName string) (*SendGridSender, error) {
	if apiKey == "" {
		return nil, errors.New("notify: SendGrid API key is required")
	}
	if fromEmail == "" {
		return nil, errors.New("notify: sender address is required")
	}
	return &SendGridSender{
		apiKey: apiKey,
		from:   mail.NewEmail(fromName, fromEmail),
	}, nil
}

// Send posts one message. A client is built per call because
// sendgrid.Client stores the request body on itself.
func (s *SendGridSender) Send(ctx context.Context, msg Message) error {
	client := sendgrid.NewSendClient(s.apiKey)
	if s.endpoint != "" {
		client.BaseURL = s.endpoint + "/v3/mail/send"
	}

	email := mail.NewSingleEmail(s.from, msg.Subject, mail.NewEmail(msg.ToName, msg.ToEmail), msg.Text, "")

	resp, err := client.SendWithContext(ctx, email)
	if err != nil {
		return fmt.Errorf("notify: sending to %s: %w", msg.ToEmail, err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("notify: SendGrid returned status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}
