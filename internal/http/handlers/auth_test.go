package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/geocoder89/vaulthub/internal/apperr"
	"github.com/geocoder89/vaulthub/internal/auth"
	"github.com/geocoder89/vaulthub/internal/authflow"
	"github.com/geocoder89/vaulthub/internal/domain/user"
	"github.com/geocoder89/vaulthub/internal/http/handlers"
	"github.com/geocoder89/vaulthub/internal/http/middlewares"
	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeAuthFlow struct {
	signupFn         func(ctx context.Context, in user.SignupInput) (authflow.SignupResult, error)
	confirmFn        func(ctx context.Context, raw string) (authflow.SessionResult, error)
	loginFn          func(ctx context.Context, in user.LoginInput) (authflow.SessionResult, error)
	updateProfileFn  func(ctx context.Context, userID string, in user.ProfileUpdate) (user.User, error)
	changePasswordFn func(ctx context.Context, userID string, in user.ChangePasswordInput) (authflow.SessionResult, error)
}

func (f *fakeAuthFlow) Signup(ctx context.Context, in user.SignupInput) (authflow.SignupResult, error) {
	if f.signupFn != nil {
		return f.signupFn(ctx, in)
	}
	return authflow.SignupResult{}, nil
}

func (f *fakeAuthFlow) ConfirmSignup(ctx context.Context, raw string) (authflow.SessionResult, error) {
	if f.confirmFn != nil {
		return f.confirmFn(ctx, raw)
	}
	return authflow.SessionResult{}, nil
}

func (f *fakeAuthFlow) Login(ctx context.Context, in user.LoginInput) (authflow.SessionResult, error) {
	if f.loginFn != nil {
		return f.loginFn(ctx, in)
	}
	return authflow.SessionResult{}, nil
}

func (f *fakeAuthFlow) UpdateProfile(ctx context.Context, userID string, in user.ProfileUpdate) (user.User, error) {
	if f.updateProfileFn != nil {
		return f.updateProfileFn(ctx, userID, in)
	}
	return user.User{}, nil
}

func (f *fakeAuthFlow) ChangePassword(ctx context.Context, userID string, in user.ChangePasswordInput) (authflow.SessionResult, error) {
	if f.changePasswordFn != nil {
		return f.changePasswordFn(ctx, userID, in)
	}
	return authflow.SessionResult{}, nil
}

var testCookie = handlers.SessionCookie{TTL: 90 * 24 * time.Hour, Secure: true}

// asUser plays the session gate for routes that need an identity.
func asUser(id string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if id != "" {
			ctx.Set(middlewares.CtxUser, user.User{ID: id, Authenticated: true})
		}
		ctx.Next()
	}
}

func setupAuthRouter(flow handlers.AuthFlow, userID string) *gin.Engine {
	r := gin.New()
	h := handlers.NewAuthHandler(flow, testCookie)

	r.POST("/signup", h.SignUp)
	r.GET("/confirm/:confirmToken", h.ConfirmSignup)
	r.POST("/login", h.Login)
	r.POST("/logout", h.Logout)
	r.PATCH("/me", asUser(userID), h.UpdateMe)
	r.PATCH("/me/password", asUser(userID), h.ChangePassword)

	return r
}

func doJSON(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("invalid JSON body: %v body=%s", err, w.Body.String())
	}
	return out
}

func sessionCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()

	for _, c := range w.Result().Cookies() {
		if c.Name == middlewares.SessionCookieName {
			return c
		}
	}
	t.Fatalf("no %q cookie set", middlewares.SessionCookieName)
	return nil
}

func session(id string) authflow.SessionResult {
	return authflow.SessionResult{
		User:  user.User{ID: id, Name: "Ada", Email: "ada@example.com", Authenticated: true},
		Token: auth.SessionToken{Raw: "signed.jwt.token"},
	}
}

func TestSignUp_AcceptedWithoutToken(t *testing.T) {
	var got user.SignupInput
	flow := &fakeAuthFlow{
		signupFn: func(ctx context.Context, in user.SignupInput) (authflow.SignupResult, error) {
			got = in
			return authflow.SignupResult{User: user.User{ID: "u1"}}, nil
		},
	}

	w := doJSON(setupAuthRouter(flow, ""), http.MethodPost, "/signup",
		`{"name":"Ada","email":"ada@example.com","password":"pass1234","passwordConfirm":"pass1234"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", w.Code, w.Body.String())
	}

	body := decode(t, w)
	if body["status"] != "success" || body["message"] != authflow.SignupAcceptedMessage {
		t.Fatalf("unexpected body: %v", body)
	}
	if _, ok := body["token"]; ok {
		t.Fatalf("signup must not return a token")
	}
	if len(w.Result().Cookies()) != 0 {
		t.Fatalf("signup must not set cookies")
	}
	if got.Email != "ada@example.com" || got.PasswordConfirm != "pass1234" {
		t.Fatalf("input not forwarded: %+v", got)
	}
}

func TestSignUp_MapsFlowErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"missing field", apperr.New(apperr.KindMissingField, "Please provide email"), http.StatusBadRequest, "missing_field"},
		{"delivery failure", apperr.New(apperr.KindDeliveryFailure, "There is an error while sending the email, please signup again!"), http.StatusInternalServerError, "delivery_failure"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flow := &fakeAuthFlow{
				signupFn: func(ctx context.Context, in user.SignupInput) (authflow.SignupResult, error) {
					return authflow.SignupResult{}, tt.err
				},
			}

			w := doJSON(setupAuthRouter(flow, ""), http.MethodPost, "/signup", `{"name":"Ada"}`)
			if w.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d body=%s", tt.wantStatus, w.Code, w.Body.String())
			}

			body := decode(t, w)
			if body["status"] != "fail" || body["code"] != tt.wantCode {
				t.Fatalf("unexpected body: %v", body)
			}
			if tt.wantCode == "internal_error" && body["message"] == "boom" {
				t.Fatalf("internal cause leaked to client")
			}
		})
	}
}

func TestConfirmSignup_SetsSessionCookie(t *testing.T) {
	var gotToken string
	flow := &fakeAuthFlow{
		confirmFn: func(ctx context.Context, raw string) (authflow.SessionResult, error) {
			gotToken = raw
			return session("u1"), nil
		},
	}

	w := doJSON(setupAuthRouter(flow, ""), http.MethodGet, "/confirm/abc123", "")

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", w.Code, w.Body.String())
	}
	if gotToken != "abc123" {
		t.Fatalf("expected path token forwarded, got %q", gotToken)
	}

	body := decode(t, w)
	if body["token"] != "signed.jwt.token" {
		t.Fatalf("unexpected token: %v", body["token"])
	}
	u, _ := body["user"].(map[string]any)
	if u["id"] != "u1" || u["authenticated"] != true {
		t.Fatalf("unexpected user: %v", body["user"])
	}
	if _, leaked := u["PasswordHash"]; leaked {
		t.Fatalf("password hash leaked")
	}

	c := sessionCookie(t, w)
	if c.Value != "signed.jwt.token" || !c.HttpOnly || !c.Secure {
		t.Fatalf("unexpected cookie: %+v", c)
	}
	if c.SameSite != http.SameSiteStrictMode {
		t.Fatalf("expected SameSite=Strict, got %v", c.SameSite)
	}
	if c.MaxAge != int((90 * 24 * time.Hour).Seconds()) {
		t.Fatalf("unexpected MaxAge %d", c.MaxAge)
	}
}

func TestConfirmSignup_InvalidToken(t *testing.T) {
	flow := &fakeAuthFlow{
		confirmFn: func(ctx context.Context, raw string) (authflow.SessionResult, error) {
			return authflow.SessionResult{}, apperr.New(apperr.KindInvalidOrExpiredToken, "Token is invalid or has been expired!")
		},
	}

	w := doJSON(setupAuthRouter(flow, ""), http.MethodGet, "/confirm/nope", "")

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if len(w.Result().Cookies()) != 0 {
		t.Fatalf("failed confirmation must not set a cookie")
	}
}

func TestLogin(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		flow := &fakeAuthFlow{
			loginFn: func(ctx context.Context, in user.LoginInput) (authflow.SessionResult, error) {
				if in.Email != "ada@example.com" || in.Password != "pass1234" {
					t.Errorf("unexpected input: %+v", in)
				}
				return session("u1"), nil
			},
		}

		w := doJSON(setupAuthRouter(flow, ""), http.MethodPost, "/login", `{"email":"ada@example.com","password":"pass1234"}`)
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d body=%s", w.Code, w.Body.String())
		}
		if sessionCookie(t, w).Value != "signed.jwt.token" {
			t.Fatalf("cookie does not carry the token")
		}
	})

	t.Run("bad credentials", func(t *testing.T) {
		flow := &fakeAuthFlow{
			loginFn: func(ctx context.Context, in user.LoginInput) (authflow.SessionResult, error) {
				return authflow.SessionResult{}, apperr.New(apperr.KindInvalidCredentials, "There is no user with that email and password")
			},
		}

		w := doJSON(setupAuthRouter(flow, ""), http.MethodPost, "/login", `{"email":"x@example.com","password":"wrong"}`)
		if w.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", w.Code)
		}
		if decode(t, w)["message"] != "There is no user with that email and password" {
			t.Fatalf("unexpected message: %s", w.Body.String())
		}
	})
}

func TestLogout_ExpiresCookie(t *testing.T) {
	w := doJSON(setupAuthRouter(&fakeAuthFlow{}, ""), http.MethodPost, "/logout", "")

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	c := sessionCookie(t, w)
	if c.MaxAge >= 0 {
		t.Fatalf("expected an expired cookie, got MaxAge %d", c.MaxAge)
	}
}

func TestUpdateMe(t *testing.T) {
	t.Run("requires identity", func(t *testing.T) {
		w := doJSON(setupAuthRouter(&fakeAuthFlow{}, ""), http.MethodPatch, "/me", `{"name":"Bob"}`)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", w.Code)
		}
	})

	t.Run("updates name", func(t *testing.T) {
		flow := &fakeAuthFlow{
			updateProfileFn: func(ctx context.Context, userID string, in user.ProfileUpdate) (user.User, error) {
				if userID != "u1" || in.Name == nil || *in.Name != "Bob" {
					t.Errorf("unexpected call: %s %+v", userID, in)
				}
				return user.User{ID: "u1", Name: "Bob"}, nil
			},
		}

		w := doJSON(setupAuthRouter(flow, "u1"), http.MethodPatch, "/me", `{"name":"Bob"}`)
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d body=%s", w.Code, w.Body.String())
		}

		data, _ := decode(t, w)["data"].(map[string]any)
		u, _ := data["user"].(map[string]any)
		if u["name"] != "Bob" {
			t.Fatalf("unexpected body: %s", w.Body.String())
		}
	})

	t.Run("credential fields refused", func(t *testing.T) {
		flow := &fakeAuthFlow{
			updateProfileFn: func(ctx context.Context, userID string, in user.ProfileUpdate) (user.User, error) {
				return user.User{}, apperr.New(apperr.KindForbiddenFieldUpdate, "This route is not for password updates. Please use /me/password")
			},
		}

		w := doJSON(setupAuthRouter(flow, "u1"), http.MethodPatch, "/me", `{"password":"x"}`)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", w.Code)
		}
	})
}

func TestChangePassword_ReissuesSession(t *testing.T) {
	flow := &fakeAuthFlow{
		changePasswordFn: func(ctx context.Context, userID string, in user.ChangePasswordInput) (authflow.SessionResult, error) {
			if userID != "u1" || in.CurrentPassword != "old12345" {
				t.Errorf("unexpected call: %s %+v", userID, in)
			}
			return session("u1"), nil
		},
	}

	w := doJSON(setupAuthRouter(flow, "u1"), http.MethodPatch, "/me/password",
		`{"currentPassword":"old12345","password":"new12345","passwordConfirm":"new12345"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", w.Code, w.Body.String())
	}
	if decode(t, w)["token"] != "signed.jwt.token" {
		t.Fatalf("expected new token in body")
	}
	if sessionCookie(t, w).Value != "signed.jwt.token" {
		t.Fatalf("expected cookie to be replaced")
	}
}
