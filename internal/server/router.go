package server

import (
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/Aleut-Geoff-Vaughan/myOpsHub-sub005/internal/handlers"
	"github.com/Aleut-Geoff-Vaughan/myOpsHub-sub005/internal/middleware"
)

type RouterConfig struct {
	AllowedOrigins   []string
	TenantMiddleware *middleware.TenantMiddleware
	VersionHandler   *handlers.VersionHandler
	ForecastHandler  *handlers.ForecastHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()
	router.Use(otelgin.Middleware("myopshub-forecast"))

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With", "X-Tenant-ID", "X-User-ID"},
		AllowCredentials: true,
	}))

	router.GET("/healthcheck", handlers.HealthCheck)

	api := router.Group("/api")
	api.Use(cfg.TenantMiddleware.RequireTenant())

	versions := api.Group("/forecast-versions")
	{
		versions.POST("", cfg.VersionHandler.Create)
		versions.GET("", cfg.VersionHandler.ListByScope)
		versions.GET("/current", cfg.VersionHandler.GetCurrent)
		versions.GET("/compare", cfg.VersionHandler.Compare)
		versions.GET("/:id", cfg.VersionHandler.GetByID)
		versions.POST("/:id/clone", cfg.VersionHandler.Clone)
		versions.POST("/:id/promote", cfg.VersionHandler.Promote)
		versions.POST("/:id/archive", cfg.VersionHandler.Archive)
		versions.DELETE("/:id", cfg.VersionHandler.Delete)
	}

	forecasts := api.Group("/forecasts")
	{
		forecasts.POST("", cfg.ForecastHandler.Create)
		forecasts.GET("", cfg.ForecastHandler.List)
		forecasts.POST("/bulk", cfg.ForecastHandler.BulkCreate)
		forecasts.POST("/bulk-approve", cfg.ForecastHandler.BulkApprove)
		forecasts.POST("/lock-month", cfg.ForecastHandler.LockMonth)
		forecasts.GET("/:id", cfg.ForecastHandler.GetByID)
		forecasts.PUT("/:id", cfg.ForecastHandler.Update)
		forecasts.DELETE("/:id", cfg.ForecastHandler.Delete)
		forecasts.GET("/:id/history", cfg.ForecastHandler.GetHistory)
		forecasts.POST("/:id/submit", cfg.ForecastHandler.Submit)
		forecasts.POST("/:id/review", cfg.ForecastHandler.Review)
		forecasts.POST("/:id/approve", cfg.ForecastHandler.Approve)
		forecasts.POST("/:id/reject", cfg.ForecastHandler.Reject)
		forecasts.POST("/:id/override", cfg.ForecastHandler.Override)
	}

	return router
}

// SplitOrigins parses a comma separated origin list from configuration.
func SplitOrigins(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
