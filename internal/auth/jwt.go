package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TimePrecision is the resolution of session timestamps, both in the signed
// claims and in password change times compared against them.
const TimePrecision = time.Millisecond

var (
	ErrInvalidSignature = errors.New("invalid token signature")
	ErrExpired          = errors.New("token expired")
)

// Claims keeps iat/exp for standard consumers and the exact instants in
// iat_ms/exp_ms, which Verify relies on.
type Claims struct {
	UserID      string `json:"sub"`
	JTI         string `json:"jti"`
	IssuedAtMs  int64  `json:"iat_ms"`
	ExpiresAtMs int64  `json:"exp_ms"`
	jwt.RegisteredClaims
}

// SessionToken is an issued, signed session credential.
type SessionToken struct {
	Raw       string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// SessionClaims is what a verified token proves.
type SessionClaims struct {
	UserID    string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type Manager struct {
	secret []byte
	ttl    time.Duration
}

func NewManager(secret string, ttl time.Duration) *Manager {
	return &Manager{
		secret: []byte(secret),
		ttl:    ttl,
	}
}

func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// SessionTime rounds t down to TimePrecision in UTC.
func SessionTime(t time.Time) time.Time {
	return t.UTC().Truncate(TimePrecision)
}

// Issue signs {userID, issuedAt=now, expiresAt=now+ttl}.
func (m *Manager) Issue(userID string, now time.Time) (SessionToken, error) {
	issuedAt := SessionTime(now)
	expiresAt := issuedAt.Add(m.ttl)

	claims := Claims{
		UserID:      userID,
		JTI:         uuid.NewString(),
		IssuedAtMs:  issuedAt.UnixMilli(),
		ExpiresAtMs: expiresAt.UnixMilli(),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	raw, err := token.SignedString(m.secret)
	if err != nil {
		return SessionToken{}, err
	}

	return SessionToken{Raw: raw, IssuedAt: issuedAt, ExpiresAt: expiresAt}, nil
}

// Verify checks the signature and expiry against now. It does not look at the
// user's password change time; callers do.
func (m *Manager) Verify(tokenStr string, now time.Time) (SessionClaims, error) {
	claims := &Claims{}

	// expiry is evaluated below against the caller's clock
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (interface{}, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithoutClaimsValidation())

	if err != nil || !token.Valid {
		return SessionClaims{}, ErrInvalidSignature
	}

	if claims.UserID == "" || claims.IssuedAtMs == 0 || claims.ExpiresAtMs == 0 {
		return SessionClaims{}, ErrInvalidSignature
	}

	issuedAt := time.UnixMilli(claims.IssuedAtMs).UTC()
	expiresAt := time.UnixMilli(claims.ExpiresAtMs).UTC()

	if now.After(expiresAt) {
		return SessionClaims{}, ErrExpired
	}

	return SessionClaims{
		UserID:    claims.UserID,
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
	}, nil
}
