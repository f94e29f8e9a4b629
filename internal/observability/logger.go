package observability

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// attribute keys whose values never reach the log
var sensitiveKeys = map[string]bool{
	"password":          true,
	"passwordconfirm":   true,
	"currentpassword":   true,
	"token":             true,
	"confirmtoken":      true,
	"authorization":     true,
	"jwt":               true,
	"encryptedpassword": true,
}

// NewLogger returns a JSON logger that stamps otel trace ids onto records.
func NewLogger(env string) *slog.Logger {
	return newLogger(env, os.Stdout)
}

func newLogger(env string, w io.Writer) *slog.Logger {
	level := slog.LevelInfo

	if env == "dev" {
		level = slog.LevelDebug
	}

	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: redactSecrets,
	})

	return slog.New(NewTraceHandler(handler))
}

func redactSecrets(_ []string, a slog.Attr) slog.Attr {
	if sensitiveKeys[strings.ToLower(a.Key)] {
		return slog.String(a.Key, "[REDACTED]")
	}
	return a
}
