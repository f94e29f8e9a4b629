package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/geocoder89/vaulthub/internal/authflow"
	"github.com/geocoder89/vaulthub/internal/domain/user"
	"github.com/geocoder89/vaulthub/internal/http/middlewares"
	"github.com/gin-gonic/gin"
)

type AuthFlow interface {
	Signup(ctx context.Context, in user.SignupInput) (authflow.SignupResult, error)
	ConfirmSignup(ctx context.Context, rawToken string) (authflow.SessionResult, error)
	Login(ctx context.Context, in user.LoginInput) (authflow.SessionResult, error)
	UpdateProfile(ctx context.Context, userID string, in user.ProfileUpdate) (user.User, error)
	ChangePassword(ctx context.Context, userID string, in user.ChangePasswordInput) (authflow.SessionResult, error)
}

type AuthHandler struct {
	flow   AuthFlow
	cookie SessionCookie
}

func NewAuthHandler(flow AuthFlow, cookie SessionCookie) *AuthHandler {
	return &AuthHandler{
		flow:   flow,
		cookie: cookie,
	}
}

// signup waits on the notifier, so it gets more time than the rest
const (
	signupTimeout  = 10 * time.Second
	defaultTimeout = 3 * time.Second
)

func requestContext(ctx *gin.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx.Request.Context(), d)
}

func (h *AuthHandler) SignUp(ctx *gin.Context) {
	var req user.SignupInput

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := requestContext(ctx, signupTimeout)
	defer cancel()

	if _, err := h.flow.Signup(cctx, req); err != nil {
		RespondAppError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": authflow.SignupAcceptedMessage,
	})
}

func (h *AuthHandler) ConfirmSignup(ctx *gin.Context) {
	cctx, cancel := requestContext(ctx, defaultTimeout)
	defer cancel()

	res, err := h.flow.ConfirmSignup(cctx, ctx.Param("confirmToken"))
	if err != nil {
		RespondAppError(ctx, err)
		return
	}

	h.sendSession(ctx, http.StatusCreated, res)
}

func (h *AuthHandler) Login(ctx *gin.Context) {
	var req user.LoginInput

	if !BindJSON(ctx, &req) {
		return
	}
	// short timeout for DB lookup
	cctx, cancel := requestContext(ctx, defaultTimeout)
	defer cancel()

	res, err := h.flow.Login(cctx, req)
	if err != nil {
		RespondAppError(ctx, err)
		return
	}

	h.sendSession(ctx, http.StatusOK, res)
}

// Logout is stateless: the token itself stays valid until it expires.
func (h *AuthHandler) Logout(ctx *gin.Context) {
	h.cookie.clear(ctx)
	ctx.JSON(http.StatusOK, gin.H{"status": "success"})
}

func (h *AuthHandler) UpdateMe(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)
	if !ok {
		RespondUnauthorized(ctx, "unauthenticated", "You must be logged in to access this page")
		return
	}

	var req user.ProfileUpdate

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := requestContext(ctx, defaultTimeout)
	defer cancel()

	u, err := h.flow.UpdateProfile(cctx, userID, req)
	if err != nil {
		RespondAppError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   gin.H{"user": u},
	})
}

func (h *AuthHandler) ChangePassword(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)
	if !ok {
		RespondUnauthorized(ctx, "unauthenticated", "You must be logged in to access this page")
		return
	}

	var req user.ChangePasswordInput

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := requestContext(ctx, defaultTimeout)
	defer cancel()

	res, err := h.flow.ChangePassword(cctx, userID, req)
	if err != nil {
		RespondAppError(ctx, err)
		return
	}

	h.sendSession(ctx, http.StatusOK, res)
}

func (h *AuthHandler) sendSession(ctx *gin.Context, status int, res authflow.SessionResult) {
	h.cookie.set(ctx, res.Token.Raw)

	ctx.JSON(status, gin.H{
		"status": "success",
		"token":  res.Token.Raw,
		"user":   res.User,
	})
}
