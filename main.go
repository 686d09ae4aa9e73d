package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/cmla-cc/shortlink/config"
	db "github.com/cmla-cc/shortlink/internal/database"
	"github.com/cmla-cc/shortlink/internal/handler"
	"github.com/cmla-cc/shortlink/internal/metrics"
	"github.com/cmla-cc/shortlink/internal/qr"
	"github.com/cmla-cc/shortlink/internal/repository"
	route "github.com/cmla-cc/shortlink/internal/routes"
	"github.com/cmla-cc/shortlink/internal/service"
	"github.com/cmla-cc/shortlink/internal/tracing"
)

func main() {
	logger := zap.Must(zap.NewProduction())
	defer logger.Sync()

	zap.ReplaceGlobals(logger)

	secrets, err := config.LoadConfig()
	if err != nil {
		logger.Fatal(
			"error loading configuration",
			zap.Error(err),
		)
	}

	shutdownTracer, err := tracing.InitTracer(context.Background())
	if err != nil {
		logger.Warn("tracing disabled", zap.Error(err))
	} else {
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTracer(ctx); err != nil {
				logger.Warn("tracer shutdown failed", zap.Error(err))
			}
		}()
	}

	redisClient, err := db.NewRedisClient(secrets)
	if err != nil {
		logger.Fatal("redis failed to initialize",
			zap.Error(err),
		)
	}
	logger.Info("redis connection established")

	metrics.StartSystemMetricsCollection()

	repo := repository.NewRedisLinkRepository(redisClient)
	renderer := qr.NewRenderer(secrets.BaseDomain)
	links := service.NewLinkService(repo, renderer, secrets.BaseDomain)
	linkHandler := handler.NewLinkHandler(links)

	r := route.SetupRouter(linkHandler, secrets.AllowedOrigin)
	logger.Info("starting server", zap.String("port", secrets.Port))
	if err := r.Run(":" + secrets.Port); err != nil {
		logger.Fatal("server failed to start", zap.Error(err))
	}
}
