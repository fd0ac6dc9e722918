package handlers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spothq/spothub/internal/authz"
	"github.com/spothq/spothub/internal/cache"
	"github.com/spothq/spothub/internal/config"
	"github.com/spothq/spothub/internal/domain/spot"
	"github.com/spothq/spothub/internal/http/middlewares"
	"github.com/spothq/spothub/internal/observability"
	"github.com/spothq/spothub/internal/utils"
)

type SpotsRepo interface {
	Create(ctx context.Context, req spot.CreateSpotRequest, createdBy string) (spot.Spot, error)
	List(ctx context.Context, filter spot.ListSpotsFilter) ([]spot.Spot, int, error)
	GetByID(ctx context.Context, id string) (spot.Spot, error)
	Update(ctx context.Context, id string, req spot.UpdateSpotRequest) (spot.Spot, error)
	Delete(ctx context.Context, id string) error
}

type SpotsHandler struct {
	repo    SpotsRepo
	cache   cache.Store
	metrics *observability.Prom
}

func NewSpotsHandler(repo SpotsRepo, store cache.Store, metrics *observability.Prom) *SpotsHandler {
	return &SpotsHandler{repo: repo, cache: store, metrics: metrics}
}

func (h *SpotsHandler) CreateSpot(ctx *gin.Context) {
	var req spot.CreateSpotRequest

	if !BindJSON(ctx, &req) {
		return
	}

	// ownership comes from the verified token, never the payload
	username, ok := middlewares.UsernameFromContext(ctx)

	if !ok || username == "" {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity")
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)

	defer cancel()

	var s spot.Spot

	err := h.observeDB("spots.create", func() error {
		var err error
		s, err = h.repo.Create(cctx, req, username)
		return err
	})

	if err != nil {
		RespondInternal(ctx, "Could not create spot")
		return
	}

	h.invalidateListCache(cctx)

	ctx.JSON(http.StatusCreated, s)
}

func (h *SpotsHandler) ListSpots(ctx *gin.Context) {
	filter := parseListFilter(ctx)

	if filter == nil {
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)

	defer cancel()

	key := utils.BuildSpotsListCacheKey(filter.Limit, filter.Offset, filter.Query, filter.CreatedBy)

	if h.cache != nil {
		if b, ok := h.cache.Get(cctx, key); ok {
			respondRawJSONWithETag(ctx, b)
			return
		}
	}

	var (
		spots []spot.Spot
		total int
	)

	err := h.observeDB("spots.list", func() error {
		var err error
		spots, total, err = h.repo.List(cctx, *filter)
		return err
	})

	if err != nil {
		RespondInternal(ctx, "Could not list spots")
		return
	}

	payload := gin.H{
		"items":  spots,
		"count":  len(spots),
		"total":  total,
		"limit":  filter.Limit,
		"offset": filter.Offset,
	}

	if h.cache != nil {
		if b, err := json.Marshal(payload); err == nil {
			h.cache.Set(cctx, key, b)
		}
	}

	RespondJSONWithETag(ctx, http.StatusOK, payload)
}

func (h *SpotsHandler) GetSpotById(ctx *gin.Context) {
	id := ctx.Param("id")

	if !utils.IsUUID(id) {
		RespondBadRequest(ctx, "spot id must be a valid UUID", nil)
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)

	defer cancel()

	var s spot.Spot

	err := h.observeDB("spots.get", func() error {
		var err error
		s, err = h.repo.GetByID(cctx, id)
		return err
	})

	if err != nil {
		if errors.Is(err, spot.ErrNotFound) {
			RespondNotFound(ctx, "Spot not found")
			return
		}
		RespondInternal(ctx, "Could not fetch spot")
		return
	}

	// spots are public reads; the guard call keeps the policy in one place
	if !authz.Can(callerFrom(ctx), authz.ActionRead, authz.Resource{Owner: s.CreatedBy, Public: true}) {
		RespondForbidden(ctx, "You cannot view this spot")
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, s)
}

func (h *SpotsHandler) UpdateSpot(ctx *gin.Context) {
	id := ctx.Param("id")

	if !utils.IsUUID(id) {
		RespondBadRequest(ctx, "spot id must be a valid UUID", nil)
		return
	}

	var req spot.UpdateSpotRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)

	defer cancel()

	existing, err := h.repo.GetByID(cctx, id)

	if err != nil {
		if errors.Is(err, spot.ErrNotFound) {
			RespondNotFound(ctx, "Spot not found")
			return
		}
		RespondInternal(ctx, "Could not update spot")
		return
	}

	// only the owner (or an admin) may write
	if !authz.Can(callerFrom(ctx), authz.ActionWrite, authz.Resource{Owner: existing.CreatedBy, Public: true}) {
		RespondForbidden(ctx, "You cannot modify this spot")
		return
	}

	var updated spot.Spot

	err = h.observeDB("spots.update", func() error {
		var err error
		updated, err = h.repo.Update(cctx, id, req)
		return err
	})

	if err != nil {
		if errors.Is(err, spot.ErrNotFound) {
			RespondNotFound(ctx, "Spot not found")
			return
		}
		RespondInternal(ctx, "Could not update spot")
		return
	}

	h.invalidateListCache(cctx)

	ctx.JSON(http.StatusOK, updated)
}

func (h *SpotsHandler) DeleteSpot(ctx *gin.Context) {
	id := ctx.Param("id")

	if !utils.IsUUID(id) {
		RespondBadRequest(ctx, "spot id must be a valid UUID", nil)
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)

	defer cancel()

	existing, err := h.repo.GetByID(cctx, id)

	if err != nil {
		if errors.Is(err, spot.ErrNotFound) {
			RespondNotFound(ctx, "Spot not found")
			return
		}
		RespondInternal(ctx, "Could not delete spot")
		return
	}

	if !authz.Can(callerFrom(ctx), authz.ActionDelete, authz.Resource{Owner: existing.CreatedBy, Public: true}) {
		RespondForbidden(ctx, "You cannot delete this spot")
		return
	}

	err = h.observeDB("spots.delete", func() error {
		return h.repo.Delete(cctx, id)
	})

	if err != nil {
		if errors.Is(err, spot.ErrNotFound) {
			RespondNotFound(ctx, "Spot not found")
			return
		}
		RespondInternal(ctx, "Could not delete spot")
		return
	}

	h.invalidateListCache(cctx)

	ctx.Status(http.StatusNoContent)
}

// helpers

func callerFrom(ctx *gin.Context) authz.Caller {
	username, _ := middlewares.UsernameFromContext(ctx)
	role, _ := middlewares.RoleFromContext(ctx)

	return authz.Caller{Subject: username, Role: role}
}

func parseListFilter(ctx *gin.Context) *spot.ListSpotsFilter {
	limit := 20
	offset := 0

	if v := ctx.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)

		if err != nil || n < 1 || n > 100 {
			RespondBadRequest(ctx, "limit must be an integer between 1 and 100", nil)
			return nil
		}
		limit = n
	}

	if v := ctx.Query("offset"); v != "" {
		n, err := strconv.Atoi(v)

		if err != nil || n < 0 {
			RespondBadRequest(ctx, "offset must be a non-negative integer", nil)
			return nil
		}
		offset = n
	}

	filter := spot.ListSpotsFilter{Limit: limit, Offset: offset}

	if q := ctx.Query("q"); q != "" {
		filter.Query = &q
	}

	// ?mine=true narrows the listing to the caller's own spots
	if ctx.Query("mine") == "true" {
		if username, ok := middlewares.UsernameFromContext(ctx); ok && username != "" {
			filter.CreatedBy = &username
		}
	}

	return &filter
}

func (h *SpotsHandler) observeDB(op string, fn func() error) error {
	if h.metrics == nil {
		return fn()
	}

	return h.metrics.ObserveDB(op, fn)
}

func (h *SpotsHandler) invalidateListCache(ctx context.Context) {
	if h.cache != nil {
		h.cache.Invalidate(ctx, utils.SpotsListCachePrefix)
	}
}

// cache hits are already-marshaled JSON; hash the bytes for the ETag
func respondRawJSONWithETag(ctx *gin.Context, b []byte) {
	sum := sha256.Sum256(b)
	etag := `"` + hex.EncodeToString(sum[:]) + `"`

	ctx.Header("ETag", etag)

	if ifNoneMatchMatches(ctx.GetHeader("If-None-Match"), etag) {
		ctx.Status(http.StatusNotModified)
		return
	}

	ctx.Data(http.StatusOK, "application/json; charset=utf-8", b)
}
