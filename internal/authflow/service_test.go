package authflow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/geocoder89/vaulthub/internal/apperr"
	"github.com/geocoder89/vaulthub/internal/auth"
	"github.com/geocoder89/vaulthub/internal/domain/user"
	"github.com/geocoder89/vaulthub/internal/notifications"
	"github.com/geocoder89/vaulthub/internal/repo/memory"
	"github.com/geocoder89/vaulthub/internal/security"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type captureNotifier struct {
	mu   sync.Mutex
	sent []notifications.SignupConfirmationInput
	err  error
}

func (n *captureNotifier) SendSignupConfirmation(_ context.Context, in notifications.SignupConfirmationInput) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, in)
	return n.err
}

func (n *captureNotifier) last(t *testing.T) notifications.SignupConfirmationInput {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	require.NotEmpty(t, n.sent, "no confirmation was sent")
	return n.sent[len(n.sent)-1]
}

type countingMetrics struct {
	events map[string]int
}

func (m *countingMetrics) AuthEvent(event, result string) {
	m.events[event+":"+result]++
}

type fixture struct {
	svc      *Service
	users    *memory.UsersRepo
	notifier *captureNotifier
	codec    *auth.TokenCodec
	sessions *auth.Manager
	clock    *clock
	metrics  *countingMetrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		users:    memory.NewUsersRepo(),
		notifier: &captureNotifier{},
		codec:    auth.NewTokenCodec("pepper"),
		sessions: auth.NewManager("secret", time.Hour),
		clock:    &clock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)},
		metrics:  &countingMetrics{events: map[string]int{}},
	}

	f.svc = NewService(Deps{
		Users:    f.users,
		Hasher:   security.NewBcryptHasher(bcrypt.MinCost),
		Codec:    f.codec,
		Sessions: f.sessions,
		Notifier: f.notifier,
		Metrics:  f.metrics,
		Now:      f.clock.Now,
	}, Options{
		ConfirmTokenTTL: 10 * time.Minute,
		ConfirmURLBase:  "http://localhost:8080/confirm",
	})

	return f
}

func validSignup() user.SignupInput {
	return user.SignupInput{Name: "Al", Email: "al@x.com", Password: "pw123456", PasswordConfirm: "pw123456"}
}

// signupAndConfirm returns a confirmed user and a live session token.
func (f *fixture) signupAndConfirm(t *testing.T) SessionResult {
	t.Helper()

	_, err := f.svc.Signup(context.Background(), validSignup())
	require.NoError(t, err)

	res, err := f.svc.ConfirmSignup(context.Background(), f.notifier.last(t).Token)
	require.NoError(t, err)
	return res
}

func assertKind(t *testing.T, err error, kind apperr.Kind) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, kind, apperr.KindOf(err), "unexpected error: %v", err)
}

func TestSignup_CreatesPendingUser(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.Signup(context.Background(), validSignup())
	require.NoError(t, err)

	assert.False(t, res.User.Authenticated)
	assert.Equal(t, f.clock.Now().Add(10*time.Minute), res.ConfirmExpiresAt)

	sent := f.notifier.last(t)
	assert.NotEmpty(t, sent.Token)
	assert.Equal(t, "al@x.com", sent.Email)
	assert.Equal(t, "http://localhost:8080/confirm/"+sent.Token, sent.ConfirmURL)

	stored, err := f.users.GetByEmail(context.Background(), "al@x.com")
	require.NoError(t, err)
	assert.False(t, stored.Authenticated)
	require.NotNil(t, stored.EmailConfirmTokenHash)
	assert.Equal(t, f.codec.Hash(sent.Token), *stored.EmailConfirmTokenHash)
	assert.NotEqual(t, sent.Token, *stored.EmailConfirmTokenHash)
	assert.NotEqual(t, "pw123456", stored.PasswordHash)

	assert.Equal(t, 1, f.metrics.events["signup:ok"])
}

func TestSignup_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		in   func(in user.SignupInput) user.SignupInput
	}{
		{"password mismatch", func(in user.SignupInput) user.SignupInput { in.PasswordConfirm = "pw999999"; return in }},
		{"password too short", func(in user.SignupInput) user.SignupInput { in.Password, in.PasswordConfirm = "short", "short"; return in }},
		{"bad email", func(in user.SignupInput) user.SignupInput { in.Email = "not-an-email"; return in }},
		{"missing name", func(in user.SignupInput) user.SignupInput { in.Name = "  "; return in }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)

			_, err := f.svc.Signup(context.Background(), tt.in(validSignup()))
			assertKind(t, err, apperr.KindValidation)
			assert.Empty(t, f.notifier.sent)
		})
	}
}

func TestSignup_DuplicateEmail(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Signup(context.Background(), validSignup())
	require.NoError(t, err)

	in := validSignup()
	in.Email = "AL@x.com"
	_, err = f.svc.Signup(context.Background(), in)
	assertKind(t, err, apperr.KindValidation)
	assert.Len(t, f.notifier.sent, 1)
}

func TestSignup_NotifierFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	f.notifier.err = errors.New("smtp down")

	_, err := f.svc.Signup(context.Background(), validSignup())
	assertKind(t, err, apperr.KindDeliveryFailure)

	var appErr *apperr.Error
	require.True(t, errors.As(err, &appErr))
	assert.NotContains(t, appErr.Message, f.notifier.last(t).Token)

	_, err = f.users.GetByEmail(context.Background(), "al@x.com")
	assert.ErrorIs(t, err, user.ErrUserNotFound)

	// the address is free again
	f.notifier.err = nil
	_, err = f.svc.Signup(context.Background(), validSignup())
	assert.NoError(t, err)
}

func TestSignup_RollbackSurvivesCanceledContext(t *testing.T) {
	f := newFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	f.notifier.err = context.Canceled
	cancel()

	_, err := f.svc.Signup(ctx, validSignup())
	assertKind(t, err, apperr.KindDeliveryFailure)

	_, err = f.users.GetByEmail(context.Background(), "al@x.com")
	assert.ErrorIs(t, err, user.ErrUserNotFound)
}

func TestConfirmSignup(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Signup(context.Background(), validSignup())
	require.NoError(t, err)
	plain := f.notifier.last(t).Token

	_, err = f.svc.ConfirmSignup(context.Background(), "not-the-token")
	assertKind(t, err, apperr.KindInvalidOrExpiredToken)

	_, err = f.svc.ConfirmSignup(context.Background(), "")
	assertKind(t, err, apperr.KindInvalidOrExpiredToken)

	res, err := f.svc.ConfirmSignup(context.Background(), plain)
	require.NoError(t, err)
	assert.True(t, res.User.Authenticated)
	assert.Nil(t, res.User.EmailConfirmTokenHash)

	claims, err := f.sessions.Verify(res.Token.Raw, f.clock.Now())
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, claims.UserID)

	// single use
	_, err = f.svc.ConfirmSignup(context.Background(), plain)
	assertKind(t, err, apperr.KindInvalidOrExpiredToken)
}

func TestConfirmSignup_Expired(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Signup(context.Background(), validSignup())
	require.NoError(t, err)
	plain := f.notifier.last(t).Token

	f.clock.Advance(10*time.Minute + time.Second)

	_, err = f.svc.ConfirmSignup(context.Background(), plain)
	assertKind(t, err, apperr.KindInvalidOrExpiredToken)

	stored, err := f.users.GetByEmail(context.Background(), "al@x.com")
	require.NoError(t, err)
	assert.False(t, stored.Authenticated)
}

func TestLogin_FailuresAreIndistinguishable(t *testing.T) {
	f := newFixture(t)

	// confirmed account
	f.signupAndConfirm(t)

	// unconfirmed account
	pending := validSignup()
	pending.Email = "pending@x.com"
	_, err := f.svc.Signup(context.Background(), pending)
	require.NoError(t, err)

	cases := []user.LoginInput{
		{Email: "nobody@x.com", Password: "pw123456"},
		{Email: "al@x.com", Password: "wrong-password"},
		{Email: "pending@x.com", Password: "pw123456"},
	}

	var messages []string
	for _, in := range cases {
		_, err := f.svc.Login(context.Background(), in)
		assertKind(t, err, apperr.KindInvalidCredentials)

		var appErr *apperr.Error
		require.True(t, errors.As(err, &appErr))
		messages = append(messages, appErr.Message)
	}

	assert.Equal(t, messages[0], messages[1])
	assert.Equal(t, messages[1], messages[2])
	assert.NotContains(t, messages[0], "wrong password")
}

func TestLogin_MissingFields(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Login(context.Background(), user.LoginInput{Password: "pw123456"})
	assertKind(t, err, apperr.KindMissingField)

	_, err = f.svc.Login(context.Background(), user.LoginInput{Email: "al@x.com"})
	assertKind(t, err, apperr.KindMissingField)
}

func TestLogin_Success(t *testing.T) {
	f := newFixture(t)
	f.signupAndConfirm(t)

	res, err := f.svc.Login(context.Background(), user.LoginInput{Email: " AL@x.com ", Password: "pw123456"})
	require.NoError(t, err)
	assert.Equal(t, "al@x.com", res.User.Email)
	assert.NotEmpty(t, res.Token.Raw)
	assert.Equal(t, f.clock.Now().Add(time.Hour), res.Token.ExpiresAt)
}

func TestAuthenticate(t *testing.T) {
	f := newFixture(t)
	session := f.signupAndConfirm(t)

	u, err := f.svc.Authenticate(context.Background(), session.Token.Raw)
	require.NoError(t, err)
	assert.Equal(t, session.User.ID, u.ID)

	_, err = f.svc.Authenticate(context.Background(), "")
	assertKind(t, err, apperr.KindUnauthenticated)

	_, err = f.svc.Authenticate(context.Background(), "garbage")
	assertKind(t, err, apperr.KindUnauthenticated)

	forged, err := auth.NewManager("other-secret", time.Hour).Issue(session.User.ID, f.clock.Now())
	require.NoError(t, err)
	_, err = f.svc.Authenticate(context.Background(), forged.Raw)
	assertKind(t, err, apperr.KindUnauthenticated)
}

func TestAuthenticate_Expired(t *testing.T) {
	f := newFixture(t)
	session := f.signupAndConfirm(t)

	f.clock.Advance(time.Hour + time.Second)

	_, err := f.svc.Authenticate(context.Background(), session.Token.Raw)
	assertKind(t, err, apperr.KindUnauthenticated)
}

func TestAuthenticate_DeletedUser(t *testing.T) {
	f := newFixture(t)
	session := f.signupAndConfirm(t)

	require.NoError(t, f.users.Delete(context.Background(), session.User.ID))

	_, err := f.svc.Authenticate(context.Background(), session.Token.Raw)
	assertKind(t, err, apperr.KindUserNotFound)
}

func TestAuthenticate_StaleAfterPasswordChange(t *testing.T) {
	f := newFixture(t)
	old := f.signupAndConfirm(t)

	f.clock.Advance(5 * time.Second)

	fresh, err := f.svc.ChangePassword(context.Background(), old.User.ID, user.ChangePasswordInput{
		CurrentPassword: "pw123456",
		Password:        "new-password-1",
		PasswordConfirm: "new-password-1",
	})
	require.NoError(t, err)

	_, err = f.svc.Authenticate(context.Background(), old.Token.Raw)
	assertKind(t, err, apperr.KindStalePassword)

	u, err := f.svc.Authenticate(context.Background(), fresh.Token.Raw)
	require.NoError(t, err)
	assert.Equal(t, old.User.ID, u.ID)

	_, err = f.svc.Login(context.Background(), user.LoginInput{Email: "al@x.com", Password: "pw123456"})
	assertKind(t, err, apperr.KindInvalidCredentials)

	_, err = f.svc.Login(context.Background(), user.LoginInput{Email: "al@x.com", Password: "new-password-1"})
	assert.NoError(t, err)
}

func TestAuthenticate_StaleWithinTheSecond(t *testing.T) {
	f := newFixture(t)
	old := f.signupAndConfirm(t)

	f.clock.Advance(800 * time.Millisecond)

	fresh, err := f.svc.ChangePassword(context.Background(), old.User.ID, user.ChangePasswordInput{
		CurrentPassword: "pw123456",
		Password:        "new-password-1",
		PasswordConfirm: "new-password-1",
	})
	require.NoError(t, err)

	f.clock.Advance(time.Second)

	_, err = f.svc.Authenticate(context.Background(), old.Token.Raw)
	assertKind(t, err, apperr.KindStalePassword)

	_, err = f.svc.Authenticate(context.Background(), fresh.Token.Raw)
	assert.NoError(t, err)
}

func TestAuthenticate_LoginJustBeforeChangeIsStale(t *testing.T) {
	f := newFixture(t)
	f.signupAndConfirm(t)

	f.clock.Advance(1500 * time.Millisecond)
	login, err := f.svc.Login(context.Background(), user.LoginInput{Email: "al@x.com", Password: "pw123456"})
	require.NoError(t, err)

	f.clock.Advance(time.Millisecond)
	_, err = f.svc.ChangePassword(context.Background(), login.User.ID, user.ChangePasswordInput{
		CurrentPassword: "pw123456",
		Password:        "new-password-1",
		PasswordConfirm: "new-password-1",
	})
	require.NoError(t, err)

	_, err = f.svc.Authenticate(context.Background(), login.Token.Raw)
	assertKind(t, err, apperr.KindStalePassword)
}

func TestChangePassword_WrongCurrent(t *testing.T) {
	f := newFixture(t)
	session := f.signupAndConfirm(t)

	_, err := f.svc.ChangePassword(context.Background(), session.User.ID, user.ChangePasswordInput{
		CurrentPassword: "nope-nope",
		Password:        "new-password-1",
		PasswordConfirm: "new-password-1",
	})
	assertKind(t, err, apperr.KindInvalidCredentials)

	_, err = f.svc.ChangePassword(context.Background(), session.User.ID, user.ChangePasswordInput{
		CurrentPassword: "pw123456",
		Password:        "new-password-1",
		PasswordConfirm: "new-password-2",
	})
	assertKind(t, err, apperr.KindValidation)
}

func TestUpdateProfile(t *testing.T) {
	f := newFixture(t)
	session := f.signupAndConfirm(t)

	email := "new@x.com"
	_, err := f.svc.UpdateProfile(context.Background(), session.User.ID, user.ProfileUpdate{Email: &email})
	assertKind(t, err, apperr.KindForbiddenFieldUpdate)

	pw := "whatever1"
	_, err = f.svc.UpdateProfile(context.Background(), session.User.ID, user.ProfileUpdate{Password: &pw})
	assertKind(t, err, apperr.KindForbiddenFieldUpdate)

	empty := "   "
	_, err = f.svc.UpdateProfile(context.Background(), session.User.ID, user.ProfileUpdate{Name: &empty})
	assertKind(t, err, apperr.KindValidation)

	_, err = f.svc.UpdateProfile(context.Background(), session.User.ID, user.ProfileUpdate{})
	assertKind(t, err, apperr.KindValidation)

	name := "Alan"
	u, err := f.svc.UpdateProfile(context.Background(), session.User.ID, user.ProfileUpdate{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Alan", u.Name)
	assert.Equal(t, "al@x.com", u.Email)
}
