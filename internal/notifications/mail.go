package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"
)

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// MailNotifier sends the confirmation mail over SMTP. With no address it
// falls back to logging, which is what local runs use.
type MailNotifier struct {
	addr     string
	from     string
	sendMail sendMailFunc
	fallback Notifier
}

func NewMailNotifier(addr, from string) *MailNotifier {
	return &MailNotifier{
		addr:     addr,
		from:     from,
		sendMail: smtp.SendMail,
		fallback: NewLogNotifier(),
	}
}

func (n *MailNotifier) SendSignupConfirmation(ctx context.Context, in SignupConfirmationInput) error {
	if n.addr == "" {
		return n.fallback.SendSignupConfirmation(ctx, in)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	if err := n.sendMail(n.addr, nil, n.from, []string{in.Email}, buildConfirmationMessage(n.from, in)); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}

	slog.Default().InfoContext(ctx, "mail_sent", "kind", "signup_confirmation", "email", in.Email)
	return nil
}

func buildConfirmationMessage(from string, in SignupConfirmationInput) []byte {
	var b strings.Builder

	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", in.Email)
	b.WriteString("Subject: Confirm your vaulthub account\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")

	fmt.Fprintf(&b, "Hi %s,\r\n\r\n", in.Name)
	b.WriteString("Confirm your email address by opening the link below:\r\n\r\n")
	fmt.Fprintf(&b, "%s\r\n\r\n", in.ConfirmURL)
	fmt.Fprintf(&b, "The link expires at %s.\r\n", in.ExpiresAt.UTC().Format("2006-01-02 15:04 MST"))

	return []byte(b.String())
}
