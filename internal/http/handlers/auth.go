package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spothq/spothub/internal/auth"
	"github.com/spothq/spothub/internal/config"
	"github.com/spothq/spothub/internal/domain/user"
	"github.com/spothq/spothub/internal/observability"
	"github.com/spothq/spothub/internal/repo/postgres"
)

type Authenticator interface {
	Register(ctx context.Context, username, email, password, role string) (user.User, auth.TokenPair, error)
	Login(ctx context.Context, username, password string) (user.User, auth.TokenPair, error)
}

type RefreshVerifier interface {
	VerifyRefreshToken(token string) (*auth.Claims, error)
	GenerateAccessToken(username, role string) (string, error)
	GenerateRefreshToken(username, role string) (raw string, jti string, expiresAt time.Time, err error)
	HashRefreshToken(raw string) string
}

type RefreshTokenStore interface {
	BeginTx(ctx context.Context) (postgres.Tx, error)
	Create(ctx context.Context, tx postgres.Tx, row postgres.RefreshTokenRow) error
	GetForUpdate(ctx context.Context, tx postgres.Tx, id string) (postgres.RefreshTokenRow, error)
	Revoke(ctx context.Context, tx postgres.Tx, id string, replacedBy *string) error
	RevokeAllForUser(ctx context.Context, tx postgres.Tx, username string) error
}

type AuthHandler struct {
	svc          Authenticator
	jwt          RefreshVerifier
	refreshStore RefreshTokenStore
	metrics      *observability.Prom
	cfg          config.Config
}

func NewAuthHandler(svc Authenticator, jwt RefreshVerifier, refreshStore RefreshTokenStore, metrics *observability.Prom, cfg config.Config) *AuthHandler {
	return &AuthHandler{
		svc:          svc,
		jwt:          jwt,
		refreshStore: refreshStore,
		metrics:      metrics,
		cfg:          cfg,
	}
}

type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=40"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *AuthHandler) Register(ctx *gin.Context) {
	var req RegisterRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)

	defer cancel()

	// public registration always creates a plain user
	u, pair, err := h.svc.Register(cctx, req.Username, req.Email, req.Password, user.RoleUser)

	if err != nil {
		switch {
		case errors.Is(err, user.ErrUsernameTaken):
			h.countAuth("register", "rejected")
			RespondConflict(ctx, "username_taken", "Username is already in use.")
		case errors.Is(err, user.ErrEmailTaken):
			h.countAuth("register", "rejected")
			RespondConflict(ctx, "email_taken", "Email is already in use.")
		default:
			h.countAuth("register", "error")
			RespondInternal(ctx, "Could not create user")
		}
		return
	}

	err = h.storeRefreshToken(cctx, u.Username, pair)

	if err != nil {
		h.countAuth("register", "error")
		RespondInternal(ctx, "Could not create session")
		return
	}

	h.setRefreshCookie(ctx, pair.RefreshToken, pair.RefreshExpiresAt)

	h.countAuth("register", "ok")

	ctx.JSON(http.StatusCreated, gin.H{
		"accessToken": pair.AccessToken,
		"user":        u,
	})
}

func (h *AuthHandler) Login(ctx *gin.Context) {
	var req LoginRequest

	if !BindJSON(ctx, &req) {
		return
	}
	// short timeout for DB lookup
	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	u, pair, err := h.svc.Login(cctx, req.Username, req.Password)

	if err != nil {
		// same answer for unknown username and wrong password
		if errors.Is(err, auth.ErrInvalidCredentials) {
			h.countAuth("login", "rejected")
			RespondUnAuthorized(ctx, "invalid_credentials", "Username or password is incorrect.")
			return
		}

		h.countAuth("login", "error")
		RespondInternal(ctx, "Could not log in")
		return
	}

	if err := h.storeRefreshToken(cctx, u.Username, pair); err != nil {
		h.countAuth("login", "error")
		RespondInternal(ctx, "Could not create session")
		return
	}

	h.setRefreshCookie(ctx, pair.RefreshToken, pair.RefreshExpiresAt)

	h.countAuth("login", "ok")

	ctx.JSON(http.StatusOK, gin.H{
		"accessToken": pair.AccessToken,
	})
}

// Refresh rotates the presented refresh token inside a row-locked tx.

func (h *AuthHandler) Refresh(ctx *gin.Context) {
	raw, err := ctx.Cookie(h.refreshCookieName())

	if err != nil || raw == "" {
		RespondUnAuthorized(ctx, "no_refresh", "Missing refresh token")
		return
	}

	claims, err := h.jwt.VerifyRefreshToken(raw)

	if err != nil {
		RespondUnAuthorized(ctx, "invalid_refresh", "Invalid refresh token")
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)

	defer cancel()

	tx, err := h.refreshStore.BeginTx(cctx)

	if err != nil {
		RespondInternal(ctx, "Could not refresh session")
		return
	}

	defer func() { _ = tx.Rollback(cctx) }()

	row, err := h.refreshStore.GetForUpdate(cctx, tx, claims.JTI)

	if err != nil {
		RespondUnAuthorized(ctx, "invalid_refresh", "Invalid refresh token")
		return
	}

	//  check if it is revoked/expired

	if row.RevokedAt != nil {
		RespondUnAuthorized(ctx, "invalid_refresh", "Invalid refresh token")
		return
	}

	if time.Now().UTC().After(row.ExpiresAt) {
		RespondUnAuthorized(ctx, "expired_refresh", "Refresh token expired.")
		return
	}

	// verify hash matches the presented token (prevents token substitution)

	if row.TokenHash != h.jwt.HashRefreshToken(raw) {
		RespondUnAuthorized(ctx, "invalid_refresh", "Invalid refresh token.")
		return
	}

	// if these checks pass issue a new refresh token

	newRaw, newJTI, newExpiresAt, err := h.jwt.GenerateRefreshToken(row.Username, claims.Role)
	if err != nil {
		RespondInternal(ctx, "Could not refresh session")
		return
	}

	// revoke old, insert new

	err = h.refreshStore.Revoke(cctx, tx, row.ID, &newJTI)

	if err != nil {
		RespondInternal(ctx, "Could not refresh session")
		return
	}

	newRow := postgres.RefreshTokenRow{
		ID:        newJTI,
		Username:  row.Username,
		TokenHash: h.jwt.HashRefreshToken(newRaw),
		ExpiresAt: newExpiresAt,
		CreatedAt: time.Now().UTC(),
	}

	err = h.refreshStore.Create(cctx, tx, newRow)

	if err != nil {
		RespondInternal(ctx, "Could not refresh session")
		return
	}

	err = tx.Commit(cctx)

	if err != nil {
		RespondInternal(ctx, "Could not refresh session")
		return
	}

	// Generate a new access token
	accessToken, err := h.jwt.GenerateAccessToken(row.Username, claims.Role)
	if err != nil {
		RespondInternal(ctx, "Could not generate access token")
		return
	}

	h.setRefreshCookie(ctx, newRaw, newExpiresAt)

	h.countAuth("refresh", "ok")

	ctx.JSON(http.StatusOK, gin.H{
		"accessToken": accessToken,
	})
}

// Logout revokes the presented refresh token; always clears the cookie.

func (h *AuthHandler) Logout(ctx *gin.Context) {
	raw, err := ctx.Cookie(h.refreshCookieName())

	if err != nil || raw == "" {
		h.clearRefreshCookie(ctx)
		ctx.Status(http.StatusNoContent)
		return
	}

	claims, err := h.jwt.VerifyRefreshToken(raw)
	if err != nil {
		h.clearRefreshCookie(ctx)
		ctx.Status(http.StatusNoContent)
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	tx, err := h.refreshStore.BeginTx(cctx)
	if err != nil {
		h.clearRefreshCookie(ctx)
		ctx.Status(http.StatusNoContent)
		return
	}
	defer func() { _ = tx.Rollback(cctx) }()

	// revoke that one token (idempotent)
	_ = h.refreshStore.Revoke(cctx, tx, claims.JTI, nil)
	_ = tx.Commit(cctx)

	h.clearRefreshCookie(ctx)
	ctx.Status(http.StatusNoContent)
}

// Helper functions

func (h *AuthHandler) storeRefreshToken(ctx context.Context, username string, pair auth.TokenPair) error {
	tx, err := h.refreshStore.BeginTx(ctx)

	if err != nil {
		return err
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	row := postgres.RefreshTokenRow{
		ID:        pair.RefreshJTI,
		Username:  username,
		TokenHash: h.jwt.HashRefreshToken(pair.RefreshToken),
		ExpiresAt: pair.RefreshExpiresAt,
		CreatedAt: time.Now().UTC(),
	}

	err = h.refreshStore.Create(ctx, tx, row)

	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (h *AuthHandler) countAuth(op, result string) {
	if h.metrics == nil {
		return
	}

	h.metrics.AuthResults.WithLabelValues(op, result).Inc()
}

func (h *AuthHandler) refreshCookieName() string {
	return "refresh_token"
}

func (h *AuthHandler) setRefreshCookie(ctx *gin.Context, raw string, expiresAt time.Time) {
	secure := h.cfg.Env == "prod"

	maxAge := int(time.Until(expiresAt).Seconds())

	ctx.SetSameSite(http.SameSiteStrictMode)

	ctx.SetCookie(
		h.refreshCookieName(),
		raw,
		maxAge,
		"/auth",
		"",
		secure,
		true, // HttpOnly.
	)
}

func (h *AuthHandler) clearRefreshCookie(ctx *gin.Context) {
	secure := h.cfg.Env == "prod"
	ctx.SetSameSite(http.SameSiteStrictMode)
	ctx.SetCookie(
		h.refreshCookieName(),
		"",

		-1,
		"/auth",
		"",
		secure,
		true,
	)
}
