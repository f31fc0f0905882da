package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/area51/internal/config"
)

// Open builds the row store selected by cfg.StoreDriver.
func Open(ctx context.Context, cfg *config.Config) (Backend, error) {
	switch cfg.StoreDriver {
	case config.DriverMemory, "":
		return NewMemStore(), nil
	case config.DriverSQLite:
		return NewSQLiteStore(ctx, cfg.StorePath, cfg.StoreTable)
	case config.DriverBolt:
		return NewBoltStore(cfg.StorePath)
	case config.DriverREST:
		return NewRESTStore(cfg.StoreURL, cfg.StoreTable,
			WithAPIKey(cfg.StoreAPIKey),
			WithTimeout(time.Duration(cfg.StoreTimeoutMS)*time.Millisecond),
		)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.StoreDriver)
	}
}
