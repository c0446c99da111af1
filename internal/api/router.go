package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"turnero-desk/config"
	"turnero-desk/internal/mw"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(cfg config.ServerConfig, d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), mw.Logger())

	handler := NewHandler(d)

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst)

	ttl := time.Duration(cfg.CacheTTLSeconds) * time.Second
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	cacheStore := cache.New(ttl, 2*ttl)
	caching := mw.Cache(cacheStore, ttl)

	// The event stream is long lived and stays outside the limiter.
	r.GET("/api/ws", handler.Stream)

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.GET("/areas", caching, handler.GetAreas)

		api.GET("/turnos", handler.ListTurns)
		api.POST("/turnos", handler.CreateTurn)
		api.POST("/turnos/:id/autorizar", handler.AuthorizeTurn)
		api.POST("/turnos/:id/atender", handler.AttendTurn)

		api.POST("/login", handler.Login)
		api.POST("/logout", handler.Logout)
		api.GET("/session", handler.GetSession)

		api.GET("/toasts", handler.GetToasts)
		api.POST("/sound/toggle", handler.ToggleSound)
		api.GET("/chime.wav", handler.GetChime)

		api.GET("/notifications", handler.GetNotifications)
		api.POST("/notifications/permission", handler.SetPermission)
		api.POST("/notifications/tapped", handler.Tapped)

		api.GET("/subscriptions", handler.GetSubscription)
		api.PUT("/subscriptions", handler.PutSubscription)
		api.DELETE("/subscriptions", handler.DeleteSubscription)
		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)
	}

	return r
}
