package cli

import (
	"context"
	"fmt"

	"expenses/internal/backend"
	"expenses/internal/config"
	"expenses/internal/database"
	"expenses/internal/log"
)

// StartStore builds the configured backend and starts a connection manager
// for it. The manager connects in the background, so the store may still be
// unusable when this returns; callers check the manager's state.
func StartStore(ctx context.Context, cfg *config.Config, logger *log.Logger, opts ...database.Option) (backend.Store, *database.Manager, error) {
	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, nil, err
	}

	result, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("create %s backend: %w", backendCfg.Type, err)
	}

	opts = append([]database.Option{database.WithLogger(logger)}, opts...)
	manager := database.NewManager(result.Store, cfg.DatabaseConfig(), opts...)
	manager.Start(ctx)

	logger.InfoContext(ctx, "Store connection manager started",
		log.FieldBackend, result.Type.String(),
		log.FieldOperation, log.OpStartup)
	return result.Store, manager, nil
}
