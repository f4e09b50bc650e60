// Package router registers every HTTP route on an Echo instance.
package router

import (
    "database/sql"

    "github.com/labstack/echo/v4"
    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/promhttp"
    "github.com/redis/go-redis/v9"

    "github.com/iliyamo/trunk-player/internal/config"
    "github.com/iliyamo/trunk-player/internal/handler"
    "github.com/iliyamo/trunk-player/internal/live"
    "github.com/iliyamo/trunk-player/internal/middleware"
    "github.com/iliyamo/trunk-player/internal/model"
)

// Deps carries everything the routes need.  Redis and Gatherer may be nil.
type Deps struct {
    DB        *sql.DB
    API       *handler.API
    Import    *handler.ImportHandler
    Gateway   *live.Gateway
    JWTSecret string
    Redis     *redis.Client
    Cache     config.CacheConfig
    RateLimit config.RateLimitConfig
    Gatherer  prometheus.Gatherer
}

// Register maps all routes.
//
//   - /healthz, /metrics: operations
//   - /api/v2/import_transmission: recorders, import token only
//   - /api/v2/...: read API with an optional bearer principal
//   - /ws/...: live gateway, which authenticates on its own
func Register(e *echo.Echo, d Deps) {
    e.GET("/healthz", handler.Health(d.DB))
    if d.Gatherer != nil {
        e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
    }

    // The import endpoint is never rate limited or cached: a rejected
    // recorder post is a lost transmission.
    importAuth := middleware.ImportToken(d.Import.Authorize)
    e.POST("/api/v2/import_transmission", d.Import.Import, importAuth)
    e.POST("/api/v2/import_transmission/", d.Import.Import, importAuth)

    api := e.Group("/api/v2",
        middleware.Authenticate(d.JWTSecret),
        middleware.NewRateLimiter(d.RateLimit, d.Redis),
    )
    user := middleware.RequireUser()
    admin := middleware.RequireRole(model.RoleAdmin)
    cache := middleware.NewRedisCache(d.Cache, d.Redis)

    a := d.API
    api.GET("/systems", a.ListSystems, cache)
    api.GET("/systems/:slug", a.GetSystem, cache)
    api.GET("/talkgroups", a.ListTalkGroups, cache)
    api.GET("/talkgroups/:slug", a.GetTalkGroup, cache)
    api.PUT("/talkgroups/:slug", a.UpdateTalkGroup, admin)
    api.GET("/units", a.ListUnits, cache)
    api.GET("/units/:slug", a.GetUnit, cache)
    api.GET("/plans", a.ListPlans, cache)
    api.POST("/plans", a.CreatePlan, admin)
    api.PUT("/plans/:id/default", a.SetDefaultPlan, admin)

    api.GET("/transmissions", a.ListTransmissions)
    api.GET("/transmissions/:slug", a.GetTransmission)
    api.GET("/transcriptions/:slug", a.GetTranscription)
    api.PUT("/transcriptions/:slug", a.PutTranscription, user)

    api.GET("/profile", a.GetProfile, user)
    api.POST("/profile/favorites/:slug", a.AddFavorite, user)
    api.DELETE("/profile/favorites/:slug", a.RemoveFavorite, user)

    api.GET("/scanlists", a.ListScanLists)
    api.POST("/scanlists", a.CreateScanList, user)
    api.GET("/scanlists/:slug", a.GetScanList)
    api.GET("/incidents", a.ListIncidents)
    api.POST("/incidents", a.CreateIncident, user)
    api.GET("/incidents/:slug", a.GetIncident)

    api.GET("/recent", a.RecentTransmissions)
    api.GET("/tg/:slug", a.TalkGroupTransmissions)
    api.GET("/unit/:slug", a.UnitTransmissions)
    api.GET("/scan/:slug", a.ScanListTransmissions)
    api.GET("/inc/:slug", a.IncidentTransmissions)

    e.GET("/ws", d.Gateway.Handle)
    e.GET("/ws/", d.Gateway.Handle)
    e.GET("/ws/:kind/:label", d.Gateway.Handle)
    e.GET("/ws/:kind/:label/", d.Gateway.Handle)
}
