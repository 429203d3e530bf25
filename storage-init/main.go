package main

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"duoboard/config"
	"duoboard/storage"
)

func main() {
	config.LoadDotEnv()
	cfg := config.Load()
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	}
	log.Info("storage init starting")

	if cfg.StorageConnectionString == "" {
		log.Fatal("missing STORAGE_CONNECTION_STRING")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	logger := log.StandardLogger()
	if err := storage.EnsureTables(ctx, cfg.StorageConnectionString, logger, cfg.TasksTable, cfg.ConfigTable); err != nil {
		log.Fatalf("create tables: %v", err)
	}

	// Reading the profiles row seeds the defaults for a new board.
	tables, err := storage.NewTables(cfg.StorageConnectionString, cfg.BoardID, cfg.TasksTable, cfg.ConfigTable)
	if err != nil {
		log.Fatalf("tables: %v", err)
	}
	if _, err := tables.FetchProfiles(ctx); err != nil {
		log.Fatalf("seed profiles: %v", err)
	}

	log.WithField("board", cfg.BoardID).Info("storage init complete")
}
