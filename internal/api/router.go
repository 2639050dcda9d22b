// Package api 路由注册
package api

import (
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/d60-Lab/clicker/config"
	_ "github.com/d60-Lab/clicker/docs"
	"github.com/d60-Lab/clicker/internal/api/handler"
	"github.com/d60-Lab/clicker/internal/api/middleware"
	"github.com/d60-Lab/clicker/pkg/logger"
	"github.com/d60-Lab/clicker/pkg/monitor"
	"github.com/d60-Lab/clicker/pkg/response"
)

// NewRouter 注册全部路由
func NewRouter(cfg *config.Config, h *handler.Handler) *gin.Engine {
	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), logger.GinLogger())
	if cfg.Sentry.DSN != "" {
		r.Use(sentrygin.New(sentrygin.Options{Repanic: true}), monitor.GinErrors())
	}
	if cfg.Tracing.Enabled {
		r.Use(otelgin.Middleware(cfg.Tracing.ServiceName))
	}
	// websocket 连接不能被 gzip 包装
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/presence/", "/metrics"})))

	r.GET("/healthz", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	stats := r.Group("/stats")
	{
		stats.GET("/summary", h.Summary)
		stats.GET("/leaderboard", h.Leaderboard)
		stats.GET("/user/:userId", h.UserStats)
	}

	auth := middleware.Auth(cfg.Auth.JWTSecret, cfg.Auth.Issuer)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/shop/items", h.ShopItems)

		user := v1.Group("", auth)
		user.POST("/clicks", h.Click)
		user.GET("/me", h.Me)
		user.PUT("/me/loadout", h.Equip)
		user.GET("/me/purchases", h.MyPurchases)
		user.POST("/shop/purchases", h.Purchase)

		admin := v1.Group("/admin", auth, middleware.RequireAdmin(cfg.Auth.AdminRole, cfg.Auth.AdminKeyHash))
		admin.GET("/items", h.ListItems)
		admin.POST("/items", h.CreateItem)
		admin.PUT("/items/:id", h.UpdateItem)
		admin.DELETE("/items/:id", h.DeactivateItem)
	}

	presence := r.Group("/presence")
	{
		presence.GET("/:room", h.RoomMembers)
		presence.GET("/:room/ws", auth, h.PresenceSocket)
	}

	r.NoRoute(func(c *gin.Context) {
		response.NotFound(c, "route not found")
	})
	return r
}
