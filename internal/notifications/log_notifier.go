package notifications

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strconv"
	"time"
)

var ErrProviderDown = errors.New("provider down (simulated)")

// LogNotifier writes the confirmation link to the log. Delay and Fail simulate
// a slow or broken provider.
type LogNotifier struct {
	Delay time.Duration
	Fail  bool
}

func NewLogNotifier() *LogNotifier { return &LogNotifier{} }

// NewLogNotifierFromEnv reads NOTIFIER_SLEEP_MS and NOTIFIER_FAIL.
func NewLogNotifierFromEnv() *LogNotifier {
	n := &LogNotifier{}

	if ms, _ := strconv.Atoi(os.Getenv("NOTIFIER_SLEEP_MS")); ms > 0 {
		n.Delay = time.Duration(ms) * time.Millisecond
	}
	n.Fail = os.Getenv("NOTIFIER_FAIL") == "1"

	return n
}

func (n *LogNotifier) SendSignupConfirmation(ctx context.Context, in SignupConfirmationInput) error {
	if n.Delay > 0 {
		select {
		case <-time.After(n.Delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if n.Fail {
		return ErrProviderDown
	}

	slog.Default().InfoContext(ctx, "notification.signup_confirmation",
		"email", in.Email,
		"name", in.Name,
		"confirm_url", in.ConfirmURL,
		"expires_at", in.ExpiresAt,
	)
	return nil
}
