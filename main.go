package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/linesmerrill/ambulance-dispatch-api/api/handlers"
	"github.com/linesmerrill/ambulance-dispatch-api/api/scheduler"
	"github.com/linesmerrill/ambulance-dispatch-api/config"
)

func main() {
	a := handlers.App{}
	a.Config = *config.New()
	defer zap.L().Sync()

	if err := a.Initialize(); err != nil { //initialize database and router
		zap.S().Fatalw("failed to initialize", "error", err)
	}

	s := scheduler.NewScheduler(a.Store, a.Metrics, a.Config.FleetSchedule)
	if err := s.Start(); err != nil {
		zap.S().Fatalw("failed to start scheduler", "error", err)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%v", a.Config.Port),
		Handler:           a.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		zap.S().Infow("ambulance-dispatch-api is up and running",
			"port", a.Config.Port,
			"url", a.Config.BaseURL,
			"store", a.Config.StoreDriver,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zap.S().Fatalw("http server failed", "error", err)
		}
	}()

	<-ctx.Done()
	zap.S().Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zap.S().Warnw("http shutdown incomplete", "error", err)
	}
	s.Stop()
	if err := a.Shutdown(shutdownCtx); err != nil {
		zap.S().Warnw("failed to close store", "error", err)
	}
}
