package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"kpiscout/adapters/filewatcher"
	"kpiscout/app"
	domainInsight "kpiscout/domain/insight"
	"kpiscout/internal/api"
	"kpiscout/internal/config"
	"kpiscout/internal/container"
	"kpiscout/internal/logging"
	"kpiscout/ui"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	appConfig, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.New(appConfig.Logging.Level, appConfig.Logging.Format)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := container.New(appConfig, logger)
	if err != nil {
		logger.Fatal("failed to create application container", zap.Error(err))
	}
	if err := c.InitWithDatabase(ctx); err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}
	defer c.Shutdown(context.Background())

	gin.SetMode(appConfig.Server.GinMode)
	apiServer := api.NewServer(api.Config{
		MaxConcurrentAnalyses: appConfig.Server.MaxConcurrentAnalyses,
		MaxUploadBytes:        appConfig.Server.MaxUploadBytes(),
	}, c.Runs, c.Exporter, nil, logger.Named("api"))

	root, err := ui.NewApp(c.Runs, c.Exporter, apiServer.Handler(), logger.Named("ui"))
	if err != nil {
		logger.Fatal("failed to create UI", zap.Error(err))
	}

	if dir := appConfig.Watch.Dir; dir != "" {
		go watchFolder(ctx, c, apiServer.Hub(), dir, logger)
	}

	srv := &http.Server{
		Addr:              ":" + appConfig.Server.Port,
		Handler:           root,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr), zap.String("store", appConfig.Database.Driver()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), appConfig.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

// watchFolder analyzes files dropped into dir and announces each run
func watchFolder(ctx context.Context, c *container.Container, hub *api.EventHub, dir string, logger *zap.Logger) {
	watcher, err := filewatcher.NewFSNotifyWatcher(c.Reader.Supports, c.Config.Watch.Debounce, logger.Named("watcher"))
	if err != nil {
		logger.Error("failed to start file watcher", zap.Error(err))
		return
	}
	defer watcher.Close()

	svc := app.NewWatchService(c.Runs, watcher, logger.Named("watch"))
	err = svc.Run(ctx, dir, app.Options{}, func(_ string, results *domainInsight.Results) {
		hub.Publish(api.CompletedEvent("watch", results))
	})
	if err != nil {
		logger.Error("watch folder stopped", zap.String("dir", dir), zap.Error(err))
	}
}
