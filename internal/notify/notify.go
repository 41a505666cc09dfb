// Package notify delivers the account emails: a welcome message after
// registration and a farewell after an account is deleted.
//
// Delivery is fire-and-forget. Callers hand a message to the Dispatcher and
// return immediately; a failed send is logged and never reaches the request
// that caused it.
package notify

import (
	"context"
	"fmt"
	"log/slog"
)

// Message is one outgoing plain-text email.
type Message struct {
	ToName  string
	ToEmail string
	Subject string
	Text    string
}

// Sender delivers a single message. Implementations must be safe for
// concurrent use by the dispatcher's workers.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// WelcomeMessage is sent once a new account exists.
func WelcomeMessage(name, email string) Message {
	return Message{
		ToName:  name,
		ToEmail: email,
		Subject: "Thanks for joining in!",
		Text:    fmt.Sprintf("Welcome to the app, %s. Let me know how you get along with the app.", name),
	}
}

// CancellationMessage is sent after an account is deleted.
func CancellationMessage(name, email string) Message {
	return Message{
		ToName:  name,
		ToEmail: email,
		Subject: "Cancelation Email",
		Text:    fmt.Sprintf("Vuelve pronto %s, esperemos darte un mejor servicio la siguiente", name),
	}
}

// LogSender writes messages to the log instead of sending them. It is used
// when no email provider is configured.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, msg Message) error {
	s.logger.Info("email (not sent, no provider configured)",
		slog.String("to", msg.ToEmail),
		slog.String("subject", msg.Subject),
	)
	return nil
}
