package fx

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"
	"go.uber.org/fx"

	"rps-tracker/internal/config"
	"rps-tracker/internal/database"
	"rps-tracker/internal/db"
	"rps-tracker/internal/game"
	"rps-tracker/internal/ledger"
	"rps-tracker/internal/logger"
	"rps-tracker/internal/repository"
	"rps-tracker/internal/server"
	"rps-tracker/internal/service"
)

// ProvideStore opens the backend selected by STORAGE_BACKEND and closes it on stop.
func ProvideStore(lc fx.Lifecycle, cfg *config.Config, logger zerolog.Logger) (ledger.Store, error) {
	switch cfg.StorageBackend {
	case config.BackendValkey:
		client, err := repository.NewValkeyClient(cfg.Valkey)
		if err != nil {
			return nil, err
		}
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				client.Close()
				return nil
			},
		})
		logger.Info().Str("addr", cfg.Valkey.Addr).Msg("using valkey store")
		return repository.NewValkeyStore(client, cfg.Valkey.KeyPrefix, logger), nil

	case config.BackendSQLite:
		sqlDB, err := database.New(cfg.DBPath, logger)
		if err != nil {
			return nil, err
		}
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return closeDB(sqlDB, logger)
			},
		})
		logger.Info().Str("path", cfg.DBPath).Msg("using sqlite store")
		return repository.NewSQLiteStore(sqlDB, db.New(sqlDB), logger), nil
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
}

func closeDB(sqlDB *sql.DB, logger zerolog.Logger) error {
	if err := sqlDB.Close(); err != nil {
		logger.Warn().Err(err).Msg("error closing database connection")
		return err
	}
	return nil
}

func ProvideChooser() game.Chooser {
	return game.NewRandomChooser(nil)
}

func ProvideLedger(store ledger.Store, logger zerolog.Logger) service.SessionLedger {
	return ledger.New(store, logger)
}

var Module = fx.Options(
	fx.Provide(logger.New),
	fx.Provide(config.Load),
	// storage
	fx.Provide(ProvideStore),
	fx.Provide(ProvideLedger),
	// game
	fx.Provide(ProvideChooser),
	// svc
	fx.Provide(service.NewRoundService),
	// server
	fx.Provide(server.NewRoundServer),
)
