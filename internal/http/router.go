package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spothq/spothub/internal/auth"
	"github.com/spothq/spothub/internal/cache"
	"github.com/spothq/spothub/internal/config"
	"github.com/spothq/spothub/internal/domain/user"
	"github.com/spothq/spothub/internal/http/handlers"
	"github.com/spothq/spothub/internal/http/middlewares"
	"github.com/spothq/spothub/internal/observability"
	"github.com/spothq/spothub/internal/repo/postgres"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// Optional collaborators main wires in; nil fields get safe defaults.
type RouterDeps struct {
	Cache          cache.Store
	Metrics        *observability.Prom
	MetricsHandler http.Handler
	ExtraPings     map[string]func() error
}

func NewRouter(log *slog.Logger, pool *pgxpool.Pool, cfg config.Config, deps RouterDeps) *gin.Engine {
	if cfg.Env != "dev" && cfg.Env != "test" {
		gin.SetMode(gin.ReleaseMode)
	}

	slog.SetDefault(log)

	r := gin.New()

	// middleware

	r.Use(gin.Recovery())
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger())
	r.Use(otelgin.Middleware("spothub"))
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddleware(cfg.CORSOrigins))
	r.Use(middlewares.MaxBodyBytes(1 << 20))
	r.Use(middlewares.RequireJSON())

	if deps.Metrics != nil {
		r.Use(deps.Metrics.GinHandleMiddleware())
	}

	// health
	pings := map[string]func() error{
		"db": func() error {
			if pool == nil {
				return nil
			}

			ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
			defer cancel()

			return pool.Ping(ctx)
		},
	}

	for name, ping := range deps.ExtraPings {
		pings[name] = ping
	}

	h := handlers.NewHealthHandler(pings)
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)

	if deps.MetricsHandler != nil {
		r.GET("/metrics", gin.WrapH(deps.MetricsHandler))
	}

	listCache := deps.Cache

	if listCache == nil {
		listCache = cache.NewMemory(5 * time.Second)
	}

	// wire up repositories
	usersRepo := postgres.NewUsersRepo(pool)
	spotsRepo := postgres.NewSpotsRepo(pool)
	refreshRepo := postgres.NewRefreshTokensRepo(pool)

	// auth core
	jwtManager := auth.NewManager(cfg.JWTSecret, cfg.AccessTTL(), cfg.RefreshTTL())
	authService := auth.NewService(usersRepo, jwtManager)

	// wire up handlers
	authHandler := handlers.NewAuthHandler(authService, jwtManager, refreshRepo, deps.Metrics, cfg)
	spotsHandler := handlers.NewSpotsHandler(spotsRepo, listCache, deps.Metrics)
	usersHandler := handlers.NewUsersHandler(usersRepo, refreshRepo, deps.Metrics)

	authMw := middlewares.NewAuthMiddleware(jwtManager)

	// stricter window on the credential endpoints
	authLimiter := middlewares.NewRateLimiter(10, time.Minute)
	apiLimiter := middlewares.NewRateLimiter(120, time.Minute)

	authRoutes := r.Group("/auth")
	authRoutes.Use(authLimiter.RateLimiterMiddleware(middlewares.KeyByIP))
	{
		authRoutes.POST("/register", authHandler.Register)
		authRoutes.POST("/login", authHandler.Login)
		authRoutes.POST("/refresh", authHandler.Refresh)
		authRoutes.POST("/logout", authHandler.Logout)
	}

	spots := r.Group("/spots")
	spots.Use(authMw.RequireAuth(), apiLimiter.RateLimiterMiddleware(middlewares.KeyByUserOrIP))
	{
		spots.GET("", spotsHandler.ListSpots)
		spots.GET("/:id", spotsHandler.GetSpotById)
		spots.POST("", spotsHandler.CreateSpot)
		spots.PUT("/:id", spotsHandler.UpdateSpot)
		spots.DELETE("/:id", spotsHandler.DeleteSpot)
	}

	users := r.Group("/users")
	users.Use(authMw.RequireAuth(), apiLimiter.RateLimiterMiddleware(middlewares.KeyByUserOrIP))
	{
		users.GET("", authMw.RequireRole(user.RoleAdmin), usersHandler.ListUsers)
		users.GET("/:id", usersHandler.GetUserById)
		users.POST("", authMw.RequireRole(user.RoleAdmin), usersHandler.CreateUser)
		users.PUT("/:id", usersHandler.UpdateUser)
		users.DELETE("/:id", authMw.RequireRole(user.RoleAdmin), usersHandler.DeleteUser)
	}

	return r
}
