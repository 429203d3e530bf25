package main

import (
	"context"
	"os"
	"os/signal"

	log "github.com/sirupsen/logrus"

	"duoboard/app"
	"duoboard/board"
	"duoboard/boardctl/cli"
	"duoboard/config"
)

func main() {
	config.LoadDotEnv()
	cfg := config.Load()

	logger := log.New()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(log.WarnLevel)
	if cfg.Debug {
		logger.SetLevel(log.DebugLevel)
	}

	open := func(ctx context.Context) (*board.Board, func(), error) {
		if err := cfg.Validate(); err != nil {
			return nil, nil, err
		}
		return app.Open(ctx, cfg, logger)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := cli.NewRoot(open).ExecuteContext(ctx); err != nil {
		// cobra already printed the error
		stop()
		os.Exit(1)
	}
}
