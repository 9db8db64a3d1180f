package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/model-booking/internal/access"
	"github.com/iliyamo/model-booking/internal/apperror"
	"github.com/iliyamo/model-booking/internal/clock"
	"github.com/iliyamo/model-booking/internal/config"
	"github.com/iliyamo/model-booking/internal/middleware"
	"github.com/iliyamo/model-booking/internal/model"
	"github.com/iliyamo/model-booking/internal/repository"
	"github.com/iliyamo/model-booking/internal/session"
	"github.com/iliyamo/model-booking/internal/utils"
)

// AuthHandler serves the /auth endpoints and /me.
type AuthHandler struct {
	Cfg         config.AuthConfig
	Users       repository.UserStore
	Tokens      repository.TokenStore
	Issuer      *session.Issuer
	Revocations session.RevocationStore
	Clock       clock.Clock
}

func NewAuthHandler(cfg config.AuthConfig, u repository.UserStore, t repository.TokenStore, issuer *session.Issuer, rev session.RevocationStore, clk clock.Clock) *AuthHandler {
	if clk == nil {
		clk = clock.System()
	}
	return &AuthHandler{Cfg: cfg, Users: u, Tokens: t, Issuer: issuer, Revocations: rev, Clock: clk}
}

type registerReq struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}
type loginReq struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}
type refreshReq struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}
type passwordReq struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=72,nefield=CurrentPassword"`
}
type logoutReq struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}
type userPart struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}
type authResp struct {
	User    userPart  `json:"user"`
	Access  tokenPart `json:"access"`
	Refresh tokenPart `json:"refresh"`
}

func invalidCredentials() *apperror.AppError {
	return apperror.New("INVALID_CREDENTIALS", "invalid credentials", http.StatusUnauthorized)
}

func invalidRefresh() *apperror.AppError {
	return apperror.New("INVALID_REFRESH", "refresh token is invalid, expired or revoked", http.StatusUnauthorized)
}

// Register creates a USER account and returns a token pair immediately.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := bind(c, &req); err != nil {
		return middleware.WriteError(c, err)
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	ctx, cancel := requestCtx(c)
	defer cancel()

	role := string(access.RoleUser)
	uid, err := h.Users.Create(ctx, email, req.Password, role, h.Cfg.BcryptCost)
	if err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return middleware.WriteError(c, apperror.Conflict("email already registered"))
		}
		return middleware.WriteError(c, apperror.Internal("create user failed", err))
	}

	resp, err := h.issuePair(ctx, userPart{ID: uid, Email: email, Role: role})
	if err != nil {
		return middleware.WriteError(c, err)
	}
	return c.JSON(http.StatusCreated, resp)
}

// Login verifies the password and returns a new token pair.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := bind(c, &req); err != nil {
		return middleware.WriteError(c, err)
	}

	ctx, cancel := requestCtx(c)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return middleware.WriteError(c, invalidCredentials())
		}
		return middleware.WriteError(c, apperror.Internal("query failed", err))
	}
	if !u.IsActive || !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return middleware.WriteError(c, invalidCredentials())
	}

	resp, err := h.issuePair(ctx, userPart{ID: u.ID, Email: u.Email, Role: u.Role})
	if err != nil {
		return middleware.WriteError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// Refresh rotates a refresh token: the old one is revoked and a new pair
// is issued.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := bind(c, &req); err != nil {
		return middleware.WriteError(c, err)
	}
	hash := utils.HashRefreshRaw(strings.TrimSpace(req.RefreshToken))

	ctx, cancel := requestCtx(c)
	defer cancel()

	u, err := h.userForRefresh(ctx, hash)
	if err != nil {
		return middleware.WriteError(c, err)
	}
	if err := h.Tokens.RevokeByHash(ctx, hash); err != nil {
		return middleware.WriteError(c, apperror.Internal("revoke refresh failed", err))
	}

	resp, err := h.issuePair(ctx, userPart{ID: u.ID, Email: u.Email, Role: u.Role})
	if err != nil {
		return middleware.WriteError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// RefreshAccess returns a new access credential and leaves the refresh
// token in place.
func (h *AuthHandler) RefreshAccess(c echo.Context) error {
	var req refreshReq
	if err := bind(c, &req); err != nil {
		return middleware.WriteError(c, err)
	}
	hash := utils.HashRefreshRaw(strings.TrimSpace(req.RefreshToken))

	ctx, cancel := requestCtx(c)
	defer cancel()

	u, err := h.userForRefresh(ctx, hash)
	if err != nil {
		return middleware.WriteError(c, err)
	}
	cred, err := h.Issuer.Issue(u.ID, access.ParseRole(u.Role))
	if err != nil {
		return middleware.WriteError(c, apperror.Internal("issue access failed", err))
	}
	return c.JSON(http.StatusOK, echo.Map{
		"access": tokenPart{Token: cred.Token, Expires: cred.Session.ExpiresAt},
	})
}

// Logout revokes the presented access credential. With a refresh_token in
// the body only that refresh token is revoked as well; without one every
// refresh token of the user is.
func (h *AuthHandler) Logout(c echo.Context) error {
	sess, ok := middleware.SessionFrom(c)
	if !ok {
		return middleware.WriteError(c, apperror.AuthMalformed(errors.New("missing session")))
	}
	var req logoutReq
	_ = c.Bind(&req)
	refresh := strings.TrimSpace(req.RefreshToken)

	ctx, cancel := requestCtx(c)
	defer cancel()

	if err := h.Revocations.Revoke(ctx, sess.ID, sess.ExpiresAt); err != nil {
		return middleware.WriteError(c, apperror.StoreUnavailable(err))
	}

	if refresh == "" {
		if err := h.Tokens.RevokeAllForUser(ctx, sess.SubjectID); err != nil {
			return middleware.WriteError(c, apperror.Internal("logout failed", err))
		}
		return c.NoContent(http.StatusNoContent)
	}

	hash := utils.HashRefreshRaw(refresh)
	owner, err := h.Tokens.ValidateRefresh(ctx, hash)
	if err != nil || owner != sess.SubjectID {
		return middleware.WriteError(c, invalidRefresh())
	}
	if err := h.Tokens.RevokeByHash(ctx, hash); err != nil {
		return middleware.WriteError(c, apperror.Internal("logout failed", err))
	}
	return c.NoContent(http.StatusNoContent)
}

// ChangePassword replaces the caller's password after checking the current
// one. Every refresh token of the account is revoked; the access token that
// made the call stays valid until it expires.
func (h *AuthHandler) ChangePassword(c echo.Context) error {
	s := middleware.SubjectFrom(c)
	var req passwordReq
	if err := bind(c, &req); err != nil {
		return middleware.WriteError(c, err)
	}

	ctx, cancel := requestCtx(c)
	defer cancel()

	u, err := h.Users.GetByID(ctx, s.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return middleware.WriteError(c, invalidCredentials())
		}
		return middleware.WriteError(c, apperror.Internal("load user failed", err))
	}
	if !utils.VerifyPassword(u.PasswordHash, req.CurrentPassword) {
		return middleware.WriteError(c, invalidCredentials())
	}
	if err := h.Users.UpdatePassword(ctx, u.ID, req.NewPassword, h.Cfg.BcryptCost); err != nil {
		return middleware.WriteError(c, apperror.Internal("update password failed", err))
	}
	if err := h.Tokens.RevokeAllForUser(ctx, u.ID); err != nil {
		return middleware.WriteError(c, apperror.Internal("revoke refresh tokens failed", err))
	}
	return c.NoContent(http.StatusNoContent)
}

// Me returns the authenticated account.
func (h *AuthHandler) Me(c echo.Context) error {
	s := middleware.SubjectFrom(c)
	ctx, cancel := requestCtx(c)
	defer cancel()

	u, err := h.Users.GetByID(ctx, s.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return middleware.WriteError(c, apperror.NotFound("user", s.ID))
		}
		return middleware.WriteError(c, apperror.Internal("load user failed", err))
	}
	return c.JSON(http.StatusOK, userPart{ID: u.ID, Email: u.Email, Role: u.Role})
}

func (h *AuthHandler) userForRefresh(ctx context.Context, hash string) (model.User, error) {
	userID, err := h.Tokens.ValidateRefresh(ctx, hash)
	if err != nil {
		return model.User{}, invalidRefresh()
	}
	u, err := h.Users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.User{}, invalidRefresh()
		}
		return model.User{}, apperror.Internal("load user failed", err)
	}
	if !u.IsActive {
		return model.User{}, invalidRefresh()
	}
	return u, nil
}

func (h *AuthHandler) issuePair(ctx context.Context, u userPart) (authResp, error) {
	cred, err := h.Issuer.Issue(u.ID, access.ParseRole(u.Role))
	if err != nil {
		return authResp{}, apperror.Internal("issue access failed", err)
	}
	refresh, err := utils.NewRefreshToken(h.Clock.Now(), h.Cfg.RefreshTTL())
	if err != nil {
		return authResp{}, apperror.Internal("issue refresh failed", err)
	}
	if err := h.Tokens.StoreRefresh(ctx, u.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		return authResp{}, apperror.Internal("save refresh failed", err)
	}
	return authResp{
		User:    u,
		Access:  tokenPart{Token: cred.Token, Expires: cred.Session.ExpiresAt},
		Refresh: tokenPart{Token: refresh.Raw, Expires: refresh.Exp}, // raw back to client
	}, nil
}
