package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spothq/spothub/internal/authz"
	"github.com/spothq/spothub/internal/config"
	"github.com/spothq/spothub/internal/domain/user"
	"github.com/spothq/spothub/internal/observability"
	"github.com/spothq/spothub/internal/security"
	"github.com/spothq/spothub/internal/utils"
)

type UsersRepo interface {
	GetByID(ctx context.Context, id string) (user.User, error)
	List(ctx context.Context) ([]user.User, error)
	Create(ctx context.Context, username, email, passwordHash, role string) (user.User, error)
	Update(ctx context.Context, id, email, passwordHash, role string) (user.User, error)
	Delete(ctx context.Context, id string) error
}

type UsersHandler struct {
	repo         UsersRepo
	refreshStore RefreshTokenStore
	metrics      *observability.Prom
}

func NewUsersHandler(repo UsersRepo, refreshStore RefreshTokenStore, metrics *observability.Prom) *UsersHandler {
	return &UsersHandler{repo: repo, refreshStore: refreshStore, metrics: metrics}
}

// ListUsers is admin-only (enforced by RequireRole on the route).
func (h *UsersHandler) ListUsers(ctx *gin.Context) {
	cctx, cancel := config.WithTimeout(2 * time.Second)

	defer cancel()

	var users []user.User

	err := h.observeDB("users.list", func() error {
		var err error
		users, err = h.repo.List(cctx)
		return err
	})

	if err != nil {
		RespondInternal(ctx, "Could not list users")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"items": users,
		"count": len(users),
	})
}

// GetUserById: admin or the account owner. Another user's profile is
// denied with 403, never revealed through a different status.
func (h *UsersHandler) GetUserById(ctx *gin.Context) {
	id := ctx.Param("id")

	if !utils.IsUUID(id) {
		RespondBadRequest(ctx, "user id must be a valid UUID", nil)
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)

	defer cancel()

	u, err := h.repo.GetByID(cctx, id)

	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			RespondNotFound(ctx, "User not found")
			return
		}
		RespondInternal(ctx, "Could not fetch user")
		return
	}

	if !authz.Can(callerFrom(ctx), authz.ActionRead, authz.Resource{Owner: u.Username}) {
		RespondForbidden(ctx, "You cannot view this user")
		return
	}

	ctx.JSON(http.StatusOK, u)
}

// CreateUser is the admin surface; unlike self-registration it may set
// the role.
func (h *UsersHandler) CreateUser(ctx *gin.Context) {
	var req user.CreateUserRequest

	if !BindJSON(ctx, &req) {
		return
	}

	role := req.Role

	if role == "" {
		role = user.RoleUser
	}

	hash, err := security.HashPassword(req.Password)

	if err != nil {
		RespondInternal(ctx, "Could not create user")
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)

	defer cancel()

	var u user.User

	err = h.observeDB("users.create", func() error {
		var err error
		u, err = h.repo.Create(cctx, req.Username, req.Email, hash, role)
		return err
	})

	if err != nil {
		switch {
		case errors.Is(err, user.ErrUsernameTaken):
			RespondConflict(ctx, "username_taken", "Username is already in use.")
		case errors.Is(err, user.ErrEmailTaken):
			RespondConflict(ctx, "email_taken", "Email is already in use.")
		default:
			RespondInternal(ctx, "Could not create user")
		}
		return
	}

	ctx.JSON(http.StatusCreated, u)
}

// UpdateUser: admin or owner. Role changes stay admin-only; a password
// change revokes the account's refresh tokens.
func (h *UsersHandler) UpdateUser(ctx *gin.Context) {
	id := ctx.Param("id")

	if !utils.IsUUID(id) {
		RespondBadRequest(ctx, "user id must be a valid UUID", nil)
		return
	}

	var req user.UpdateUserRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)

	defer cancel()

	target, err := h.repo.GetByID(cctx, id)

	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			RespondNotFound(ctx, "User not found")
			return
		}
		RespondInternal(ctx, "Could not update user")
		return
	}

	caller := callerFrom(ctx)

	if !authz.Can(caller, authz.ActionWrite, authz.Resource{Owner: target.Username}) {
		RespondForbidden(ctx, "You cannot modify this user")
		return
	}

	role := target.Role

	if req.Role != "" && req.Role != target.Role {
		if caller.Role != user.RoleAdmin {
			RespondForbidden(ctx, "Only an admin can change roles")
			return
		}
		role = req.Role
	}

	passwordHash := target.PasswordHash
	passwordChanged := false

	if req.Password != "" {
		passwordHash, err = security.HashPassword(req.Password)

		if err != nil {
			RespondInternal(ctx, "Could not update user")
			return
		}

		passwordChanged = true
	}

	var updated user.User

	err = h.observeDB("users.update", func() error {
		var err error
		updated, err = h.repo.Update(cctx, id, req.Email, passwordHash, role)
		return err
	})

	if err != nil {
		switch {
		case errors.Is(err, user.ErrNotFound):
			RespondNotFound(ctx, "User not found")
		case errors.Is(err, user.ErrEmailTaken):
			RespondConflict(ctx, "email_taken", "Email is already in use.")
		default:
			RespondInternal(ctx, "Could not update user")
		}
		return
	}

	if passwordChanged {
		// best effort; the new password already took effect
		h.revokeSessions(cctx, target.Username)
	}

	ctx.JSON(http.StatusOK, updated)
}

// DeleteUser is admin-only (enforced by RequireRole on the route).
func (h *UsersHandler) DeleteUser(ctx *gin.Context) {
	id := ctx.Param("id")

	if !utils.IsUUID(id) {
		RespondBadRequest(ctx, "user id must be a valid UUID", nil)
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)

	defer cancel()

	target, err := h.repo.GetByID(cctx, id)

	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			RespondNotFound(ctx, "User not found")
			return
		}
		RespondInternal(ctx, "Could not delete user")
		return
	}

	err = h.observeDB("users.delete", func() error {
		return h.repo.Delete(cctx, id)
	})

	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			RespondNotFound(ctx, "User not found")
			return
		}
		RespondInternal(ctx, "Could not delete user")
		return
	}

	h.revokeSessions(cctx, target.Username)

	ctx.Status(http.StatusNoContent)
}

func (h *UsersHandler) revokeSessions(ctx context.Context, username string) {
	if h.refreshStore == nil {
		return
	}

	tx, err := h.refreshStore.BeginTx(ctx)

	if err != nil {
		return
	}

	defer func() { _ = tx.Rollback(ctx) }()

	if err := h.refreshStore.RevokeAllForUser(ctx, tx, username); err != nil {
		return
	}

	_ = tx.Commit(ctx)
}

func (h *UsersHandler) observeDB(op string, fn func() error) error {
	if h.metrics == nil {
		return fn()
	}

	return h.metrics.ObserveDB(op, fn)
}
