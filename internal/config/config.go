package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env   string
	Port  int
	DBURL string
	// Store selects the account/vault backend: "postgres" or "memory".
	Store string

	// WorkerProbePort serves the mail worker's health, readiness and metrics.
	WorkerProbePort int

	// session tokens
	JWTSecret           string
	JWTTTL              time.Duration
	CookieExpiresInDays int

	ConfirmTokenTTL time.Duration
	ConfirmURLBase  string

	VaultSecret string
	VaultSalt   string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Notifier selects signup mail delivery: "queue" (asynq) or "log".
	Notifier        string
	NotifierTimeout time.Duration
	MailFrom        string
	SMTPAddr        string

	CORSAllowedOrigins []string

	OTelEnabled     bool
	OTelEndpoint    string
	OTelSampleRatio float64
}

func Load() Config {
	// .env is optional; real env vars win over it.
	_ = godotenv.Load()

	return Config{
		Env:   getEnv("APP_ENV", "dev"),
		Port:  getEnvInt("PORT", 8080),
		DBURL: buildDBURL(),
		Store: getEnv("STORE", "postgres"),

		WorkerProbePort: getEnvInt("WORKER_PROBE_PORT", 8081),

		JWTSecret:           getEnv("SECRET_KEY", ""),
		JWTTTL:              getEnvDuration("EXPIRE_IN", 24*time.Hour),
		CookieExpiresInDays: getEnvInt("JWT_COOKIE_EXPIRES_IN", 1),

		ConfirmTokenTTL: time.Duration(getEnvInt("CONFIRM_TOKEN_TTL_MINUTES", 10)) * time.Minute,
		ConfirmURLBase:  getEnv("CONFIRM_URL_BASE", "http://localhost:8080/confirm/"),

		VaultSecret: getEnv("VAULT_SECRET", ""),
		VaultSalt:   getEnv("VAULT_SALT", "vaulthub"),

		RedisAddr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		Notifier:        getEnv("NOTIFIER", "log"),
		NotifierTimeout: time.Duration(getEnvInt("NOTIFIER_TIMEOUT_MS", 3000)) * time.Millisecond,
		MailFrom:        getEnv("MAIL_FROM", "no-reply@vaulthub.local"),
		SMTPAddr:        getEnv("SMTP_ADDR", ""),

		CORSAllowedOrigins: splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173")),

		OTelEnabled:     getEnv("OTEL_ENABLED", "false") == "true",
		OTelEndpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		OTelSampleRatio: getEnvFloat("OTEL_TRACES_SAMPLER_ARG", 1),
	}
}

// Validate rejects configurations the server must not start with.
func (c Config) Validate() error {
	if c.JWTSecret == "" {
		if c.Env == "prod" {
			return errors.New("SECRET_KEY is required in prod")
		}
	}
	if c.VaultSecret == "" && c.Env == "prod" {
		return errors.New("VAULT_SECRET is required in prod")
	}
	if c.JWTTTL <= 0 {
		return fmt.Errorf("EXPIRE_IN must be positive, got %s", c.JWTTTL)
	}
	if c.CookieExpiresInDays <= 0 {
		return fmt.Errorf("JWT_COOKIE_EXPIRES_IN must be positive, got %d", c.CookieExpiresInDays)
	}
	switch c.Store {
	case "postgres", "memory":
	default:
		return fmt.Errorf("unknown STORE %q", c.Store)
	}
	switch c.Notifier {
	case "queue", "log":
	default:
		return fmt.Errorf("unknown NOTIFIER %q", c.Notifier)
	}
	return nil
}

// WithDevDefaults fills secrets that may be blank outside prod.
func (c Config) WithDevDefaults() Config {
	if c.JWTSecret == "" {
		c.JWTSecret = "dev-secret-change-me"
	}
	if c.VaultSecret == "" {
		c.VaultSecret = "dev-vault-secret-change-me"
	}
	return c
}

func (c Config) CookieTTL() time.Duration {
	return time.Duration(c.CookieExpiresInDays) * 24 * time.Hour
}

func buildDBURL() string {
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return url
	}

	host := getEnv("DB_HOST", "127.0.0.1")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "vaulthub")
	pass := getEnv("DB_PASSWORD", "vaulthub")
	name := getEnv("DB_NAME", "vaulthub")
	ssl := getEnv("DB_SSLMODE", "disable")

	return "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=" + ssl
}

func WithTimeout(duration time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), duration)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		num, err := strconv.Atoi(v)

		if err != nil {
			return fallback
		}

		return num
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}

	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

// getEnvDuration accepts Go durations ("24h") and a day suffix ("90d").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}

	if days, ok := strings.CutSuffix(v, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return fallback
		}
		return time.Duration(n) * 24 * time.Hour
	}

	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))

	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
