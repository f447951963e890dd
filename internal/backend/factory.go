package backend

import (
	"context"
	"fmt"

	"tally/internal/config"
	"tally/internal/ledger/memory"
	"tally/internal/log"
	"tally/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &DefaultFactory{
		logger: logger.WithComponent(log.ComponentBackend),
	}
}

// CreateBackend opens the store named by cfg.DataBackend.
func (f *DefaultFactory) CreateBackend(ctx context.Context, cfg *config.Config) (*BackendResult, error) {
	if cfg == nil {
		return nil, fmt.Errorf("app config is nil")
	}

	switch cfg.DataBackend {
	case config.BackendSQLite:
		if cfg.SQLiteDBPath == "" {
			return nil, fmt.Errorf("SQLite database path is required for sqlite backend")
		}
		return f.createSQLiteBackend(ctx, cfg.SQLiteDBPath)
	case config.BackendMemory:
		return f.createMemoryBackend(), nil
	default:
		return nil, fmt.Errorf("unsupported backend type: %q", cfg.DataBackend)
	}
}

func (f *DefaultFactory) createSQLiteBackend(ctx context.Context, path string) (*BackendResult, error) {
	store, err := storage.Open(ctx, path, storage.WithLogger(f.logger.WithComponent(log.ComponentStorage)))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite store: %w", err)
	}

	f.logger.InfoContext(ctx, "Initialized SQLite backend", "db_path", path)

	return &BackendResult{
		Store:   store,
		SQLite:  store,
		Cleanup: store.Close,
	}, nil
}

func (f *DefaultFactory) createMemoryBackend() *BackendResult {
	f.logger.Info("Initialized memory backend; data is lost on exit")
	return &BackendResult{Store: memory.New()}
}
