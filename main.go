package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/getsentry/sentry-go"
	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"

	"emailforge/config"
	"emailforge/middleware"
	"emailforge/routes"
	"emailforge/worker"
)

func main() {
	logger := log.StandardLogger()
	logger.SetFormatter(&log.JSONFormatter{})

	if err := config.LoadConfig(); err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	if config.AppConfig.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         config.AppConfig.SentryDSN,
			Environment: config.AppConfig.Environment,
		}); err != nil {
			logger.Warnf("Sentry initialization failed: %v", err)
		}
	}

	if err := config.ConnectDB(); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}

	app := fiber.New()

	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowedOrigins = []string{config.AppConfig.FrontendURL}
	app.Use(middleware.CORS(corsConfig))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	campaignWorker := worker.NewCampaignWorker(config.DB, logger)
	go campaignWorker.Start(ctx)
	go campaignWorker.ResetDailyCounters(ctx)

	inboxWorker := worker.NewInboxWorker(config.DB, logger)
	go inboxWorker.Start(ctx)

	routes.SetupRoutes(app, config.DB)

	// Shut workers down cleanly on SIGINT/SIGTERM
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		cancel()
		_ = app.Shutdown()
	}()

	logger.Infof("Server starting on port %s", config.AppConfig.ServerPort)
	if err := app.Listen(":" + config.AppConfig.ServerPort); err != nil {
		logger.Fatalf("Failed to start server: %v", err)
	}
}
