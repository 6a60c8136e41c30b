package main

import (
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/jisazamp/carelink/internal/config"
	"github.com/jisazamp/carelink/internal/domain/attendance"
	"github.com/jisazamp/carelink/internal/domain/billing"
	"github.com/jisazamp/carelink/internal/domain/visits"
	"github.com/jisazamp/carelink/internal/platform/auth"
	"github.com/jisazamp/carelink/internal/platform/cache"
	"github.com/jisazamp/carelink/internal/platform/db"
	"github.com/jisazamp/carelink/internal/platform/middleware"
	"github.com/jisazamp/carelink/internal/platform/websocket"
)

const version = "0.1.0"

// newServer wires repositories, services and routes onto a new echo
// instance. pool may be nil in tests that never reach the database.
func newServer(cfg *config.Config, pool *pgxpool.Pool, store cache.Store, logger zerolog.Logger) (*echo.Echo, *websocket.Hub, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, nil, err
	}
	tx := db.NewTxRunner(pool)
	hub := websocket.NewHub(logger)

	billingSvc := billing.NewService(
		billing.NewInvoiceRepoPG(pool),
		billing.NewPaymentRepoPG(pool),
		billing.NewReferenceRepoPG(pool),
		tx,
	)
	billingSvc.SetCache(store, cfg.CacheTTL)
	billingSvc.SetPublisher(hub)
	billingSvc.SetLogger(logger)
	billingSvc.SetLocation(loc)

	attendanceSvc := attendance.NewService(
		attendance.NewEntryRepoPG(pool),
		attendance.NewScheduleRepoPG(pool),
		attendance.NewAllotmentRepoPG(pool),
		tx,
	)
	attendanceSvc.SetGate(attendance.NewGate(loc))
	attendanceSvc.SetPublisher(hub)
	attendanceSvc.SetLogger(logger)

	visitSvc := visits.NewService(visits.NewRepoPG(pool))
	visitSvc.SetPublisher(hub)
	visitSvc.SetLogger(logger)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:  cfg.CORSOrigins,
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders:  []string{echo.HeaderAuthorization, echo.HeaderContentType, middleware.RequestIDHeader},
		ExposeHeaders: []string{middleware.RequestIDHeader, "Retry-After"},
	}))
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok", "version": version})
	})
	var stats func() *db.PoolStats
	if pool != nil {
		stats = func() *db.PoolStats { return db.GetPoolStats(pool) }
	}
	e.GET("/health/db", db.HealthHandler(pool, stats))

	authMW := authMiddleware(cfg)
	websocket.NewHandler(hub, cfg.CORSOrigins).RegisterRoutes(e, authMW)

	api := e.Group("/api")
	api.Use(middleware.RateLimit(rateLimitConfig(cfg)))
	api.Use(authMW)

	billing.NewHandler(billingSvc).RegisterRoutes(api)
	attendance.NewHandler(attendanceSvc).RegisterRoutes(api)
	visits.NewHandler(visitSvc).RegisterRoutes(api)

	logger.Debug().Int("routes", len(e.Routes())).Msg("routes registered")
	return e, hub, nil
}

func authMiddleware(cfg *config.Config) echo.MiddlewareFunc {
	jwtCfg := auth.JWTConfig{
		Issuer:   cfg.AuthIssuer,
		Audience: cfg.AuthAudience,
		JWKSURL:  cfg.AuthJWKSURL,
	}
	if cfg.JWTSecret != "" {
		jwtCfg.SigningKey = []byte(cfg.JWTSecret)
	}
	if cfg.IsDev() {
		return auth.DevAuthMiddleware(jwtCfg)
	}
	return auth.JWTMiddleware(jwtCfg)
}

func rateLimitConfig(cfg *config.Config) middleware.RateLimitConfig {
	rl := middleware.DefaultRateLimitConfig()
	if cfg.RateLimitRPS > 0 {
		rl.RequestsPerSecond = cfg.RateLimitRPS
	}
	if cfg.RateLimitBurst > 0 {
		rl.BurstSize = cfg.RateLimitBurst
	}
	return rl
}
