package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/spothq/spothub/internal/cache"
	"github.com/spothq/spothub/internal/domain/spot"
	"github.com/spothq/spothub/internal/domain/user"
	"github.com/spothq/spothub/internal/http/handlers"
	"github.com/spothq/spothub/internal/http/middlewares"
)

// Make sure Gin does not spam the console during the test

func init() {
	gin.SetMode(gin.TestMode)
}

// Fake repository implementation of the handlers.SpotsRepo interface

type fakeSpotsRepo struct {
	createFn func(ctx context.Context, req spot.CreateSpotRequest, createdBy string) (spot.Spot, error)
	listFn   func(ctx context.Context, filter spot.ListSpotsFilter) ([]spot.Spot, int, error)
	getFn    func(ctx context.Context, id string) (spot.Spot, error)
	updateFn func(ctx context.Context, id string, req spot.UpdateSpotRequest) (spot.Spot, error)
	deleteFn func(ctx context.Context, id string) error
}

func (f *fakeSpotsRepo) Create(ctx context.Context, req spot.CreateSpotRequest, createdBy string) (spot.Spot, error) {
	if f.createFn != nil {
		return f.createFn(ctx, req, createdBy)
	}

	return spot.Spot{}, nil
}

func (f *fakeSpotsRepo) List(ctx context.Context, filter spot.ListSpotsFilter) ([]spot.Spot, int, error) {
	if f.listFn != nil {
		return f.listFn(ctx, filter)
	}

	return nil, 0, nil
}

func (f *fakeSpotsRepo) GetByID(ctx context.Context, id string) (spot.Spot, error) {
	if f.getFn != nil {
		return f.getFn(ctx, id)
	}

	return spot.Spot{}, nil
}

func (f *fakeSpotsRepo) Update(ctx context.Context, id string, req spot.UpdateSpotRequest) (spot.Spot, error) {
	if f.updateFn != nil {
		return f.updateFn(ctx, id, req)
	}

	return spot.Spot{}, nil
}

func (f *fakeSpotsRepo) Delete(ctx context.Context, id string) error {
	if f.deleteFn != nil {
		return f.deleteFn(ctx, id)
	}

	return nil
}

// small helper which mounts one handler behind a fake identity

func setupRouterAs(method, path, username, role string, h gin.HandlerFunc) *gin.Engine {
	r := gin.New()

	identity := func(c *gin.Context) {
		if username != "" {
			c.Set(middlewares.CtxUsername, username)
			c.Set(middlewares.CtxRole, role)
		}
	}

	r.Handle(method, path, identity, h)

	return r
}

func newSpotsHandler(repo *fakeSpotsRepo) *handlers.SpotsHandler {
	return handlers.NewSpotsHandler(repo, cache.NewMemory(time.Second), nil)
}

func ownedSpot(id, owner string) spot.Spot {
	now := time.Now().UTC()

	return spot.Spot{
		ID:        id,
		Name:      "Ledge Plaza",
		Location:  "Downtown",
		CreatedBy: owner,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestCreateSpotHandler(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		username       string
		repoSetUp      func(*fakeSpotsRepo)
		wantStatusCode int
	}{
		{
			name:     "success",
			body:     `{"name": "Ledge Plaza", "description": "smooth ledges", "location": "Downtown"}`,
			username: "alice",
			repoSetUp: func(f *fakeSpotsRepo) {
				f.createFn = func(ctx context.Context, req spot.CreateSpotRequest, createdBy string) (spot.Spot, error) {
					if createdBy != "alice" {
						t.Fatalf("createdBy should come from the token, got %q", createdBy)
					}

					s := spot.NewFromCreateRequest(req, createdBy)
					return s, nil
				}
			},
			wantStatusCode: http.StatusCreated,
		},
		{
			name:           "missing name fails validation",
			body:           `{"description": "no name"}`,
			username:       "alice",
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name:           "missing identity",
			body:           `{"name": "Ledge Plaza"}`,
			username:       "",
			wantStatusCode: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &fakeSpotsRepo{}

			if tt.repoSetUp != nil {
				tt.repoSetUp(repo)
			}

			h := newSpotsHandler(repo)
			r := setupRouterAs(http.MethodPost, "/spots", tt.username, user.RoleUser, h.CreateSpot)

			req := httptest.NewRequest(http.MethodPost, "/spots", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")

			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}
		})
	}
}

func TestGetSpotByIdHandler(t *testing.T) {
	spotID := uuid.NewString()

	tests := []struct {
		name           string
		id             string
		repoSetUp      func(*fakeSpotsRepo)
		wantStatusCode int
	}{
		{
			name: "found",
			id:   spotID,
			repoSetUp: func(f *fakeSpotsRepo) {
				f.getFn = func(ctx context.Context, id string) (spot.Spot, error) {
					return ownedSpot(id, "bob"), nil
				}
			},
			// spots are public reads, any authenticated user may look
			wantStatusCode: http.StatusOK,
		},
		{
			name: "not found",
			id:   spotID,
			repoSetUp: func(f *fakeSpotsRepo) {
				f.getFn = func(ctx context.Context, id string) (spot.Spot, error) {
					return spot.Spot{}, spot.ErrNotFound
				}
			},
			wantStatusCode: http.StatusNotFound,
		},
		{
			name:           "invalid id",
			id:             "not-a-uuid",
			wantStatusCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &fakeSpotsRepo{}

			if tt.repoSetUp != nil {
				tt.repoSetUp(repo)
			}

			h := newSpotsHandler(repo)
			r := setupRouterAs(http.MethodGet, "/spots/:id", "alice", user.RoleUser, h.GetSpotById)

			req := httptest.NewRequest(http.MethodGet, "/spots/"+tt.id, nil)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}
		})
	}
}

func TestUpdateSpotOwnership(t *testing.T) {
	spotID := uuid.NewString()
	body := `{"name": "Renamed Plaza"}`

	tests := []struct {
		name           string
		username       string
		role           string
		owner          string
		wantStatusCode int
	}{
		{
			name:           "owner can update",
			username:       "alice",
			role:           user.RoleUser,
			owner:          "alice",
			wantStatusCode: http.StatusOK,
		},
		{
			name:           "non-owner is denied",
			username:       "alice",
			role:           user.RoleUser,
			owner:          "bob",
			wantStatusCode: http.StatusForbidden,
		},
		{
			name:           "admin can update anyone's spot",
			username:       "root",
			role:           user.RoleAdmin,
			owner:          "bob",
			wantStatusCode: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &fakeSpotsRepo{
				getFn: func(ctx context.Context, id string) (spot.Spot, error) {
					return ownedSpot(id, tt.owner), nil
				},
				updateFn: func(ctx context.Context, id string, req spot.UpdateSpotRequest) (spot.Spot, error) {
					s := ownedSpot(id, tt.owner)
					s.Name = req.Name
					return s, nil
				},
			}

			h := newSpotsHandler(repo)
			r := setupRouterAs(http.MethodPut, "/spots/:id", tt.username, tt.role, h.UpdateSpot)

			req := httptest.NewRequest(http.MethodPut, "/spots/"+spotID, bytes.NewBufferString(body))
			req.Header.Set("Content-Type", "application/json")

			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}
		})
	}
}

func TestDeleteSpotOwnership(t *testing.T) {
	spotID := uuid.NewString()

	tests := []struct {
		name           string
		username       string
		role           string
		owner          string
		wantStatusCode int
	}{
		{
			name:           "owner can delete",
			username:       "alice",
			role:           user.RoleUser,
			owner:          "alice",
			wantStatusCode: http.StatusNoContent,
		},
		{
			name:           "non-owner is denied",
			username:       "alice",
			role:           user.RoleUser,
			owner:          "bob",
			wantStatusCode: http.StatusForbidden,
		},
		{
			name:           "admin can delete anyone's spot",
			username:       "root",
			role:           user.RoleAdmin,
			owner:          "bob",
			wantStatusCode: http.StatusNoContent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &fakeSpotsRepo{
				getFn: func(ctx context.Context, id string) (spot.Spot, error) {
					return ownedSpot(id, tt.owner), nil
				},
			}

			h := newSpotsHandler(repo)
			r := setupRouterAs(http.MethodDelete, "/spots/:id", tt.username, tt.role, h.DeleteSpot)

			req := httptest.NewRequest(http.MethodDelete, "/spots/"+spotID, nil)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}
		})
	}
}

func TestListSpotsUsesCache(t *testing.T) {
	calls := 0

	repo := &fakeSpotsRepo{
		listFn: func(ctx context.Context, filter spot.ListSpotsFilter) ([]spot.Spot, int, error) {
			calls++
			return []spot.Spot{ownedSpot(uuid.NewString(), "alice")}, 1, nil
		},
	}

	h := newSpotsHandler(repo)
	r := setupRouterAs(http.MethodGet, "/spots", "alice", user.RoleUser, h.ListSpots)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/spots?limit=10", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("got status %d, body=%s", w.Code, w.Body.String())
		}

		var payload struct {
			Count int `json:"count"`
			Total int `json:"total"`
		}

		if err := json.Unmarshal(w.Body.Bytes(), &payload); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}

		if payload.Count != 1 || payload.Total != 1 {
			t.Fatalf("unexpected payload: %+v", payload)
		}
	}

	if calls != 1 {
		t.Fatalf("second request should be served from cache, repo called %d times", calls)
	}
}

func TestListSpotsRejectsBadPagination(t *testing.T) {
	h := newSpotsHandler(&fakeSpotsRepo{})
	r := setupRouterAs(http.MethodGet, "/spots", "alice", user.RoleUser, h.ListSpots)

	for _, q := range []string{"?limit=0", "?limit=1000", "?limit=abc", "?offset=-1"} {
		req := httptest.NewRequest(http.MethodGet, "/spots"+q, nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != http.StatusBadRequest {
			t.Fatalf("query %q: got status %d, want 400", q, w.Code)
		}
	}
}
