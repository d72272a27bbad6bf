package storage

import (
	"fmt"

	"repaytrack/internal/config"
	"repaytrack/internal/database"
	"repaytrack/internal/logger"
)

// Open returns the backend selected by cfg.StorageDriver. Relational
// backends are connected and migrated before returning; the returned
// store's Close releases the connection.
func Open(cfg *config.Config) (Store, error) {
	switch cfg.StorageDriver {
	case config.DriverFile, "":
		logger.Get().Infof("Using file storage at %s", cfg.DataFile)
		return NewJSONStore(cfg.DataFile), nil

	case config.DriverPostgres, config.DriverSQLite:
		manager, err := database.NewManager(database.NewConfig(cfg))
		if err != nil {
			return nil, err
		}
		if err := manager.Migrate(); err != nil {
			_ = manager.Close()
			return nil, err
		}

		logger.Get().Infof("Using %s storage", cfg.StorageDriver)
		store := NewSQLStore(manager.DB())
		store.closer = manager.Close
		return store, nil

	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
}
