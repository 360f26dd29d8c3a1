package backend

import (
	"context"
	"fmt"

	"expenses/internal/log"
	"expenses/internal/storage/memory"
	"expenses/internal/storage/mongo"
	"expenses/internal/storage/sqlite"
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

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		store Store
		err   error
	)
	switch config.Type {
	case MongoBackend:
		store, err = f.createMongoBackend(ctx, config)
	case SQLiteBackend:
		store = sqlite.New(config.SQLiteDBPath)
		f.logger.InfoContext(ctx, "Initialized SQLite backend", "db_path", config.SQLiteDBPath)
	case MemoryBackend:
		store = memory.New()
		f.logger.InfoContext(ctx, "Initialized memory backend")
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}

	return &BackendResult{Type: config.Type, Store: store}, nil
}

func (f *DefaultFactory) createMongoBackend(ctx context.Context, config Config) (Store, error) {
	store, err := mongo.New(mongo.Config{
		URI:      config.MongoURI,
		Database: config.MongoDatabase,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize MongoDB store: %w", err)
	}
	f.logger.InfoContext(ctx, "Initialized MongoDB backend", "database", store.Database())
	return store, nil
}
