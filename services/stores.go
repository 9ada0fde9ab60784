package services

import (
	"fmt"
	"os"

	"github.com/mudler/remindbot/core/scheduler"
	"github.com/mudler/remindbot/pkg/config"
	"github.com/mudler/xlog"
)

var AvailableStores = []string{
	config.StoreJSON,
	config.StoreSQLite,
}

// Store opens the reminder store selected by the configuration, creating
// the state directory when needed.
func Store(cfg *config.Config) (scheduler.ReminderStore, error) {
	if err := os.MkdirAll(cfg.StateDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	path := cfg.StorePath()
	xlog.Info("Opening reminder store", "driver", cfg.Store, "path", path)

	switch cfg.Store {
	case config.StoreSQLite:
		return scheduler.NewSQLiteStore(path)
	case config.StoreJSON:
		return scheduler.NewJSONStore(path)
	}
	return nil, fmt.Errorf("unknown store %q", cfg.Store)
}
