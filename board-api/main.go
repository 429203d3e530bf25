package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"duoboard/api"
	"duoboard/app"
	"duoboard/config"
)

func main() {
	config.LoadDotEnv()
	cfg := config.Load()
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := log.StandardLogger()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	openCtx, cancel := context.WithTimeout(ctx, time.Minute)
	b, shutdown, err := app.Open(openCtx, cfg, logger)
	cancel()
	if err != nil {
		log.Fatalf("board: %v", err)
	}

	e := api.NewServer(b, logger)
	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()
	logger.WithFields(log.Fields{"port": cfg.Port, "board": cfg.BoardID, "backend": cfg.Backend}).Info("board api started")

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("server shutdown")
	}
	shutdown()
	logger.WithField("persist", b.PersistStats()).Info("board api stopped")
}
