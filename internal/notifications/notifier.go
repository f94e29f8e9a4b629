package notifications

import (
	"context"
	"time"
)

type SignupConfirmationInput struct {
	Email      string
	Name       string
	Token      string
	ConfirmURL string
	ExpiresAt  time.Time
}

// Notifier delivers the plain confirmation token out of band. It is the only
// channel the token ever leaves the server through.
type Notifier interface {
	SendSignupConfirmation(ctx context.Context, input SignupConfirmationInput) error
}
