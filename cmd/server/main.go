package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Riddhimaan-Senapati/vantage-bench/internal/app"
	"github.com/Riddhimaan-Senapati/vantage-bench/internal/config"
	"github.com/Riddhimaan-Senapati/vantage-bench/pkg/logger"
	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	logger.Init(cfg.Log.Level)
	gin.SetMode(cfg.Server.Mode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(cfg, app.Options{Seed: cfg.Seed.Enabled})
	if err != nil {
		logger.Fatalf("Failed to initialize: %v", err)
	}
	bg := bootstrap(ctx, a)

	r := gin.New()
	registerRoutes(ctx, r, a)

	srv := &http.Server{
		Addr:              cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Infof("[Server] Listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Infof("[Server] Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("[Server] Shutdown: %v", err)
	}
	bg.shutdown()
	a.Close()
	logger.Infof("[Server] Shutdown complete")
}
