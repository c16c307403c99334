package notifier

import (
	"context"
	"fmt"
	"log/slog"

	"todo_service/internal/models"
)

const welcomeSubject = "Welcome to Todo"

type Sender interface {
	Send(to, subject, body string) error
}

// * Notifier отправляет письма по доменным событиям из брокера
type Notifier struct {
	log    *slog.Logger
	sender Sender
}

func New(log *slog.Logger, sender Sender) *Notifier {
	return &Notifier{
		log:    log,
		sender: sender,
	}
}

func (n *Notifier) Handle(ctx context.Context, event models.Event) error {
	const op = "notifier.Handle"

	log := n.log.With(
		slog.String("op", op),
		slog.String("type", event.Type),
	)

	if event.Type != models.EventUserRegistered {
		log.Debug("event skipped")
		return nil
	}

	if event.Email == "" {
		log.Warn("registration event without email", slog.String("uuid", event.UserUUID))
		return nil
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	body := fmt.Sprintf(
		"Your account has been created on %s.\nYou can now sign in with %s.",
		event.OccurredAt.Format("2006-01-02 15:04 MST"),
		event.Email,
	)

	if err := n.sender.Send(event.Email, welcomeSubject, body); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info("welcome email sent", slog.String("uuid", event.UserUUID))

	return nil
}
