package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/Aleut-Geoff-Vaughan/myOpsHub-sub005/internal/db"
	"github.com/Aleut-Geoff-Vaughan/myOpsHub-sub005/internal/handlers"
	"github.com/Aleut-Geoff-Vaughan/myOpsHub-sub005/internal/logger"
	"github.com/Aleut-Geoff-Vaughan/myOpsHub-sub005/internal/middleware"
	"github.com/Aleut-Geoff-Vaughan/myOpsHub-sub005/internal/observability"
	"github.com/Aleut-Geoff-Vaughan/myOpsHub-sub005/internal/repos"
	"github.com/Aleut-Geoff-Vaughan/myOpsHub-sub005/internal/server"
	"github.com/Aleut-Geoff-Vaughan/myOpsHub-sub005/internal/services"
	"github.com/Aleut-Geoff-Vaughan/myOpsHub-sub005/internal/utils"
)

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Tracing
	shutdownOtel := observability.InitOTel(context.Background(), log, observability.OtelConfig{
		ServiceName: "myopshub-forecast",
		Environment: utils.GetEnv("DEPLOY_ENV", "development", log),
		Version:     utils.GetEnv("SERVICE_VERSION", "dev", log),
	})
	if shutdownOtel != nil {
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdownOtel(ctx)
		}()
	}

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Error("Postgres auto migration failed", "error", err)
		os.Exit(1)
	}
	thePG := postgresService.DB()

	// Repos
	log.Info("Setting up repos...")
	versionRepo := repos.NewForecastVersionRepo(thePG, log)
	forecastRepo := repos.NewForecastRepo(thePG, log)
	historyRepo := repos.NewForecastHistoryRepo(thePG, log)
	assignmentRepo := repos.NewAssignmentRepo(thePG, log)

	// Services
	log.Info("Setting up services...")
	versionService := services.NewVersionService(thePG, log, versionRepo, forecastRepo, historyRepo)
	forecastService := services.NewForecastService(thePG, log, forecastRepo, versionRepo, assignmentRepo, historyRepo)
	workflowService := services.NewWorkflowService(thePG, log, forecastRepo, versionRepo, historyRepo)
	comparisonService := services.NewComparisonService(thePG, log, versionRepo, forecastRepo, assignmentRepo)

	// Handlers
	versionHandler := handlers.NewVersionHandler(versionService, comparisonService)
	forecastHandler := handlers.NewForecastHandler(forecastService, workflowService)

	// Middleware
	tenantMiddleware := middleware.NewTenantMiddleware(log)

	// Router
	router := server.NewRouter(server.RouterConfig{
		AllowedOrigins:   server.SplitOrigins(utils.GetEnv("CORS_ALLOWED_ORIGINS", "", log)),
		TenantMiddleware: tenantMiddleware,
		VersionHandler:   versionHandler,
		ForecastHandler:  forecastHandler,
	})

	port := utils.GetEnv("PORT", "8080", log)
	log.Info("Starting server...", "port", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatal("Server exited", "error", err)
	}
}
