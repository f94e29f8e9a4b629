// Package authflow drives the account lifecycle: signup, email confirmation,
// login, the session gate and credential changes.
//
// Every operation returns either its result or an *apperr.Error tagged with
// the failure kind; store and crypto errors never leak to callers as-is.
package authflow

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/geocoder89/vaulthub/internal/apperr"
	"github.com/geocoder89/vaulthub/internal/auth"
	"github.com/geocoder89/vaulthub/internal/domain/user"
	"github.com/geocoder89/vaulthub/internal/notifications"
	"github.com/geocoder89/vaulthub/internal/security"
	"github.com/geocoder89/vaulthub/internal/validation"
)

const (
	msgEmailTaken       = "Email is already in use."
	msgDeliveryFailed   = "There is an error while sending the email, please signup again!"
	msgInvalidToken     = "Token is invalid or has been expired!"
	msgMissingEmail     = "You must provide an email address"
	msgMissingPassword  = "You must provide a password"
	msgInvalidLogin     = "There is no user with that email and password"
	msgLoginRequired    = "You must be logged in to access this page"
	msgSessionInvalid   = "Your session is invalid or has expired. Please log in again."
	msgUserGone         = "User not found"
	msgPasswordChanged  = "Password was changed recently. Please log in again."
	msgForbiddenUpdate  = "You can not update crucial data with this regular update route"
	msgCurrentPassword  = "Your current password is wrong"
	msgNothingToUpdate  = "Provide at least one field to update"
	rollbackTimeout     = 3 * time.Second
	dummyPasswordSecret = "vaulthub-timing-equalizer"
)

// SignupAcceptedMessage is what clients are told after a successful signup.
const SignupAcceptedMessage = "An email will be sent to complete the steps"

type AccountStore interface {
	Create(ctx context.Context, in user.NewUser) (user.User, error)
	GetByID(ctx context.Context, id string) (user.User, error)
	GetByEmail(ctx context.Context, email string) (user.User, error)
	SetConfirmation(ctx context.Context, id, tokenHash string, expiresAt time.Time) error
	ConsumeConfirmation(ctx context.Context, tokenHash string, now time.Time) (user.User, error)
	UpdateProfile(ctx context.Context, id string, patch user.Patch) (user.User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string, changedAt time.Time) (user.User, error)
	Delete(ctx context.Context, id string) error
}

type SessionService interface {
	Issue(userID string, now time.Time) (auth.SessionToken, error)
	Verify(token string, now time.Time) (auth.SessionClaims, error)
}

type ConfirmationCodec interface {
	Generate() (plain string, hash string, err error)
	Hash(candidate string) string
}

type Metrics interface {
	AuthEvent(event, result string)
}

type Deps struct {
	Users    AccountStore
	Hasher   security.PasswordHasher
	Codec    ConfirmationCodec
	Sessions SessionService
	Notifier notifications.Notifier
	Metrics  Metrics          // optional
	Now      func() time.Time // optional, defaults to time.Now
}

type Options struct {
	ConfirmTokenTTL time.Duration
	// ConfirmURLBase is prefixed to the plain token in the mailed link.
	ConfirmURLBase string
}

type Service struct {
	users    AccountStore
	hasher   security.PasswordHasher
	codec    ConfirmationCodec
	sessions SessionService
	notifier notifications.Notifier
	metrics  Metrics
	now      func() time.Time
	opts     Options

	dummyOnce sync.Once
	dummyHash string
}

func NewService(deps Deps, opts Options) *Service {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if opts.ConfirmTokenTTL <= 0 {
		opts.ConfirmTokenTTL = 10 * time.Minute
	}

	return &Service{
		users:    deps.Users,
		hasher:   deps.Hasher,
		codec:    deps.Codec,
		sessions: deps.Sessions,
		notifier: deps.Notifier,
		metrics:  deps.Metrics,
		now:      deps.Now,
		opts:     opts,
	}
}

type SignupResult struct {
	User             user.User
	ConfirmExpiresAt time.Time
}

// SessionResult is returned by every operation that logs the user in.
type SessionResult struct {
	User  user.User
	Token auth.SessionToken
}

// Signup creates an unauthenticated account and mails a confirmation link.
// If the mail cannot be handed off the account is deleted again.
func (s *Service) Signup(ctx context.Context, in user.SignupInput) (res SignupResult, err error) {
	defer func() { s.record("signup", err) }()

	in = in.Normalize()

	if err := validation.Struct(in); err != nil {
		return SignupResult{}, validationError(err)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return SignupResult{}, apperr.Internal(err)
	}

	u, err := s.users.Create(ctx, user.NewUser{Name: in.Name, Email: in.Email, PasswordHash: hash})
	if err != nil {
		if errors.Is(err, user.ErrEmailAlreadyUsed) {
			return SignupResult{}, apperr.WithDetails(apperr.KindValidation, msgEmailTaken, []validation.FieldError{
				{Field: "email", Rule: "unique", Message: "is already in use"},
			})
		}
		return SignupResult{}, apperr.Internal(err)
	}

	plain, tokenHash, err := s.codec.Generate()
	if err != nil {
		s.rollbackSignup(ctx, u.ID, err)
		return SignupResult{}, apperr.Internal(err)
	}

	expiresAt := s.now().UTC().Add(s.opts.ConfirmTokenTTL)

	if err := s.users.SetConfirmation(ctx, u.ID, tokenHash, expiresAt); err != nil {
		s.rollbackSignup(ctx, u.ID, err)
		return SignupResult{}, apperr.Internal(err)
	}

	err = s.notifier.SendSignupConfirmation(ctx, notifications.SignupConfirmationInput{
		Email:      u.Email,
		Name:       u.Name,
		Token:      plain,
		ConfirmURL: s.confirmURL(plain),
		ExpiresAt:  expiresAt,
	})
	if err != nil {
		s.rollbackSignup(ctx, u.ID, err)
		return SignupResult{}, apperr.Wrap(apperr.KindDeliveryFailure, msgDeliveryFailed, err)
	}

	u.EmailConfirmTokenHash = &tokenHash
	u.EmailConfirmExpiresAt = &expiresAt

	return SignupResult{User: u, ConfirmExpiresAt: expiresAt}, nil
}

// rollbackSignup is best effort; a crash before it runs leaves an orphaned
// unauthenticated account behind.
func (s *Service) rollbackSignup(ctx context.Context, userID string, cause error) {
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rollbackTimeout)
	defer cancel()

	if err := s.users.Delete(dctx, userID); err != nil && !errors.Is(err, user.ErrUserNotFound) {
		slog.Default().ErrorContext(ctx, "signup_rollback_failed",
			"user_id", userID,
			"cause", cause.Error(),
			"err", err,
		)
		return
	}

	slog.Default().WarnContext(ctx, "signup_rolled_back", "user_id", userID, "cause", cause.Error())
}

func (s *Service) confirmURL(plain string) string {
	base := s.opts.ConfirmURLBase
	if base == "" {
		return plain
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base + url.PathEscape(plain)
}

// ConfirmSignup consumes a confirmation token and logs the user in.
func (s *Service) ConfirmSignup(ctx context.Context, rawToken string) (res SessionResult, err error) {
	defer func() { s.record("confirm", err) }()

	rawToken = strings.TrimSpace(rawToken)
	if rawToken == "" {
		return SessionResult{}, apperr.New(apperr.KindInvalidOrExpiredToken, msgInvalidToken)
	}

	now := s.now()

	u, err := s.users.ConsumeConfirmation(ctx, s.codec.Hash(rawToken), now)
	if err != nil {
		if errors.Is(err, user.ErrConfirmationStale) {
			return SessionResult{}, apperr.New(apperr.KindInvalidOrExpiredToken, msgInvalidToken)
		}
		return SessionResult{}, apperr.Internal(err)
	}

	return s.issue(u, now)
}

// Login never tells the caller which check failed.
func (s *Service) Login(ctx context.Context, in user.LoginInput) (res SessionResult, err error) {
	defer func() { s.record("login", err) }()

	email := user.NormalizeEmail(in.Email)

	if email == "" {
		return SessionResult{}, apperr.New(apperr.KindMissingField, msgMissingEmail)
	}
	if in.Password == "" {
		return SessionResult{}, apperr.New(apperr.KindMissingField, msgMissingPassword)
	}

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			// keep unknown emails as slow as wrong passwords
			_ = s.hasher.Compare(s.dummyPasswordHash(), in.Password)
			return SessionResult{}, apperr.New(apperr.KindInvalidCredentials, msgInvalidLogin)
		}
		return SessionResult{}, apperr.Internal(err)
	}

	if err := s.hasher.Compare(u.PasswordHash, in.Password); err != nil {
		if !errors.Is(err, security.ErrPasswordMismatch) {
			slog.Default().ErrorContext(ctx, "password_compare_failed", "user_id", u.ID, "err", err)
		}
		return SessionResult{}, apperr.New(apperr.KindInvalidCredentials, msgInvalidLogin)
	}

	if !u.Authenticated {
		return SessionResult{}, apperr.New(apperr.KindInvalidCredentials, msgInvalidLogin)
	}

	return s.issue(u, s.now())
}

// Authenticate is the session gate. It resolves the user behind a raw token.
func (s *Service) Authenticate(ctx context.Context, rawToken string) (u user.User, err error) {
	defer func() {
		if err != nil {
			s.record("authenticate", err)
		}
	}()

	if strings.TrimSpace(rawToken) == "" {
		return user.User{}, apperr.New(apperr.KindUnauthenticated, msgLoginRequired)
	}

	claims, err := s.sessions.Verify(rawToken, s.now())
	if err != nil {
		return user.User{}, apperr.Wrap(apperr.KindUnauthenticated, msgSessionInvalid, err)
	}

	u, err = s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return user.User{}, apperr.New(apperr.KindUserNotFound, msgUserGone)
		}
		return user.User{}, apperr.Internal(err)
	}

	if u.IssuedBeforePasswordChange(claims.IssuedAt) {
		return user.User{}, apperr.New(apperr.KindStalePassword, msgPasswordChanged)
	}

	if !u.Authenticated {
		return user.User{}, apperr.New(apperr.KindUnauthenticated, msgLoginRequired)
	}

	return u, nil
}

// UpdateProfile applies non-credential changes. Email and password go
// through their own flows.
func (s *Service) UpdateProfile(ctx context.Context, userID string, in user.ProfileUpdate) (u user.User, err error) {
	defer func() { s.record("update_profile", err) }()

	if in.TouchesCredentials() {
		return user.User{}, apperr.New(apperr.KindForbiddenFieldUpdate, msgForbiddenUpdate)
	}

	if in.Name != nil {
		trimmed := strings.TrimSpace(*in.Name)
		in.Name = &trimmed
	}

	if err := validation.Struct(in); err != nil {
		return user.User{}, validationError(err)
	}

	if in.Name == nil {
		return user.User{}, apperr.New(apperr.KindValidation, msgNothingToUpdate)
	}

	u, err = s.users.UpdateProfile(ctx, userID, user.Patch{Name: in.Name})
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return user.User{}, apperr.New(apperr.KindUserNotFound, msgUserGone)
		}
		return user.User{}, apperr.Internal(err)
	}

	return u, nil
}

// ChangePassword re-checks the current password, stores the new one and
// returns a fresh session. Sessions issued before the change stop working.
func (s *Service) ChangePassword(ctx context.Context, userID string, in user.ChangePasswordInput) (res SessionResult, err error) {
	defer func() { s.record("change_password", err) }()

	if err := validation.Struct(in); err != nil {
		return SessionResult{}, validationError(err)
	}

	current, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return SessionResult{}, apperr.New(apperr.KindUserNotFound, msgUserGone)
		}
		return SessionResult{}, apperr.Internal(err)
	}

	if err := s.hasher.Compare(current.PasswordHash, in.CurrentPassword); err != nil {
		return SessionResult{}, apperr.New(apperr.KindInvalidCredentials, msgCurrentPassword)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return SessionResult{}, apperr.Internal(err)
	}

	// the session issued below carries the same instant, so it is not older
	// than the change
	now := auth.SessionTime(s.now())

	u, err := s.users.UpdatePassword(ctx, userID, hash, now)
	if err != nil {
		return SessionResult{}, apperr.Internal(err)
	}

	return s.issue(u, now)
}

func (s *Service) issue(u user.User, now time.Time) (SessionResult, error) {
	tok, err := s.sessions.Issue(u.ID, now)
	if err != nil {
		return SessionResult{}, apperr.Internal(err)
	}

	return SessionResult{User: u, Token: tok}, nil
}

func (s *Service) dummyPasswordHash() string {
	s.dummyOnce.Do(func() {
		h, err := s.hasher.Hash(dummyPasswordSecret)
		if err == nil {
			s.dummyHash = h
		}
	})
	return s.dummyHash
}

func (s *Service) record(event string, err error) {
	if s.metrics == nil {
		return
	}

	result := "ok"
	if err != nil {
		result = string(apperr.KindOf(err))
	}
	s.metrics.AuthEvent(event, result)
}

func validationError(err error) error {
	msg, fields, ok := validation.Describe(err)
	if !ok {
		return apperr.Internal(err)
	}
	return apperr.WithDetails(apperr.KindValidation, msg, fields)
}
