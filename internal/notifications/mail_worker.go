package notifications

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
)

// MailTaskHandler runs queued confirmation mails through a Notifier.
type MailTaskHandler struct {
	notifier Notifier
}

func NewMailTaskHandler(n Notifier) *MailTaskHandler {
	return &MailTaskHandler{notifier: n}
}

func (h *MailTaskHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	in, err := DecodeSignupConfirmation(t.Payload())
	if err != nil {
		// a malformed payload will never succeed
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	if err := h.notifier.SendSignupConfirmation(ctx, in); err != nil {
		if errors.Is(err, ErrCircuitOpen) {
			slog.Default().WarnContext(ctx, "mail_circuit_open", "email", in.Email)
		}
		return err
	}

	return nil
}

func NewMailServeMux(h *MailTaskHandler) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.Handle(TaskSignupConfirmation, h)
	return mux
}
