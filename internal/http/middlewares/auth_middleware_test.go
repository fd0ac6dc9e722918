package middlewares_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spothq/spothub/internal/auth"
	"github.com/spothq/spothub/internal/domain/user"
	"github.com/spothq/spothub/internal/http/middlewares"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeVerifier struct {
	verifyFn func(token string) (*auth.Claims, error)
}

func (f *fakeVerifier) VerifyAccessToken(token string) (*auth.Claims, error) {
	return f.verifyFn(token)
}

func protectedRouter(v middlewares.TokenVerifier) *gin.Engine {
	r := gin.New()
	m := middlewares.NewAuthMiddleware(v)

	r.GET("/whoami", m.RequireAuth(), func(c *gin.Context) {
		username, _ := middlewares.UsernameFromContext(c)
		role, _ := middlewares.RoleFromContext(c)

		c.JSON(http.StatusOK, gin.H{"username": username, "role": role})
	})

	return r
}

func TestRequireAuth(t *testing.T) {
	okVerifier := &fakeVerifier{
		verifyFn: func(token string) (*auth.Claims, error) {
			if token != "good-token" {
				return nil, auth.ErrTokenMalformed
			}

			return &auth.Claims{Username: "alice", Role: user.RoleUser, TokenType: "access"}, nil
		},
	}

	tests := []struct {
		name           string
		header         string
		verifier       middlewares.TokenVerifier
		wantStatusCode int
	}{
		{
			name:           "valid token",
			header:         "Bearer good-token",
			verifier:       okVerifier,
			wantStatusCode: http.StatusOK,
		},
		{
			name:           "missing header",
			header:         "",
			verifier:       okVerifier,
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name:           "wrong scheme",
			header:         "Basic good-token",
			verifier:       okVerifier,
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name:           "empty bearer",
			header:         "Bearer ",
			verifier:       okVerifier,
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name:   "expired token",
			header: "Bearer stale",
			verifier: &fakeVerifier{
				verifyFn: func(string) (*auth.Claims, error) {
					return nil, auth.ErrTokenExpired
				},
			},
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name:   "verifier error",
			header: "Bearer whatever",
			verifier: &fakeVerifier{
				verifyFn: func(string) (*auth.Claims, error) {
					return nil, errors.New("boom")
				},
			},
			wantStatusCode: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := protectedRouter(tt.verifier)

			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)

			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}
		})
	}
}

func TestRequireAuthWithRealTokens(t *testing.T) {
	mgr := auth.NewManager("test-secret", time.Minute, time.Hour)
	r := protectedRouter(mgr)

	access, err := mgr.GenerateAccessToken("alice", user.RoleUser)

	if err != nil {
		t.Fatalf("access token: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+access)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, body=%s", w.Code, w.Body.String())
	}

	// refresh tokens never pass the access gate
	refresh, _, _, err := mgr.GenerateRefreshToken("alice", user.RoleUser)

	if err != nil {
		t.Fatalf("refresh token: %v", err)
	}

	req2 := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req2.Header.Set("Authorization", "Bearer "+refresh)

	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, req2)

	if w2.Code != http.StatusUnauthorized {
		t.Fatalf("refresh token accepted as access token, status %d", w2.Code)
	}
}
