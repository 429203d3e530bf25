// Package app assembles a running board from configuration.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"duoboard/board"
	"duoboard/config"
	"duoboard/magic"
	"duoboard/storage"
)

// OpenStore connects the task store selected by cfg.Backend. The returned
// function releases its connections.
func OpenStore(ctx context.Context, cfg config.Config, logger *log.Logger) (board.TaskStore, func(), error) {
	switch cfg.Backend {
	case config.BackendMemory:
		logger.Warn("using in-memory store; tasks are lost on exit")
		return storage.NewMemory(), func() {}, nil
	case config.BackendTables:
		tables, err := storage.NewTables(cfg.StorageConnectionString, cfg.BoardID, cfg.TasksTable, cfg.ConfigTable)
		if err != nil {
			return nil, nil, fmt.Errorf("storage: %w", err)
		}
		opts, err := config.RedisOptions(cfg.RedisConnectionString)
		if err != nil {
			return nil, nil, err
		}
		rc := redis.NewClient(opts)
		if err := rc.Ping(ctx).Err(); err != nil {
			_ = rc.Close()
			return nil, nil, fmt.Errorf("redis: %w", err)
		}
		synced := storage.NewSynced(tables, rc, cfg.BoardID, cfg.SnapshotCacheTTL, logger)
		return synced, func() { _ = rc.Close() }, nil
	case config.BackendFirestore:
		fs, err := storage.NewFirestore(ctx, cfg.FirestoreProjectID, cfg.CredentialsFile, logger)
		if err != nil {
			return nil, nil, err
		}
		return fs, func() { _ = fs.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

// NewParser returns the magic-add parser, or magic.Disabled without an API key.
func NewParser(ctx context.Context, cfg config.Config, logger *log.Logger) magic.Parser {
	if cfg.GeminiAPIKey == "" {
		logger.Info("GEMINI_API_KEY not set; magic add uses the fallback task")
		return magic.Disabled{}
	}
	p, err := magic.NewGemini(ctx, cfg.GeminiAPIKey, cfg.MagicModel, cfg.MagicTimeout, logger)
	if err != nil {
		logger.WithError(err).Warn("magic add disabled")
		return magic.Disabled{}
	}
	return p
}

// Open starts a board on the configured store and waits until the first
// snapshot has arrived. The returned function stops the board, waits for
// pending writes and closes the store.
func Open(ctx context.Context, cfg config.Config, logger *log.Logger) (*board.Board, func(), error) {
	store, closeStore, err := OpenStore(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	b := board.New(store, board.Options{
		Logger: logger,
		Magic:  NewParser(ctx, cfg, logger),
		Persist: board.PersistConfig{
			Workers:        cfg.PersistWorkers,
			Buffer:         cfg.PersistBuffer,
			Timeout:        cfg.PersistTimeout,
			HandoffTimeout: cfg.PersistHandoffTimeout,
		},
	})
	if err := b.Start(context.WithoutCancel(ctx)); err != nil {
		closeStore()
		return nil, nil, err
	}
	shutdown := func() {
		b.Close()
		closeStore()
	}
	if err := WaitSynced(ctx, b); err != nil {
		shutdown()
		return nil, nil, err
	}
	return b, shutdown, nil
}

// WaitSynced blocks until b has applied its first task snapshot.
func WaitSynced(ctx context.Context, b *board.Board) error {
	ch, stop := b.Watch()
	defer stop()
	for !b.View().Synced {
		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for first snapshot: %w", ctx.Err())
		case <-b.Done():
			return errors.New("board stopped before first snapshot")
		case <-ch:
		}
	}
	return nil
}
