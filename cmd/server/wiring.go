package main

import (
	"context"
	"fmt"

	"github.com/rpm-monitor/backend/internal/catalog"
	"github.com/rpm-monitor/backend/internal/config"
	"github.com/rpm-monitor/backend/internal/storage"
)

// stores bundles the persistence backends selected by the config.
type stores struct {
	state  storage.StateStore
	assets storage.AssetStore
	close  func() error
}

// openStores opens the state store and drawing store for the configured
// backend. With sqlite, drawings live in the same local database.
func openStores(ctx context.Context, cfg *config.AppConfig) (*stores, error) {
	switch cfg.Persistence.Backend {
	case config.BackendSQLite:
		db, err := storage.OpenSQLite(cfg.Persistence.SQLiteFile)
		if err != nil {
			return nil, err
		}
		state, err := storage.NewSQLiteStateStore(ctx, db)
		if err != nil {
			db.Close()
			return nil, err
		}
		kv, err := storage.NewLocalKV(ctx, db)
		if err != nil {
			db.Close()
			return nil, err
		}
		return &stores{state: state, assets: kv, close: state.Close}, nil

	case config.BackendDuckDB:
		state, err := storage.NewDuckStateStore(cfg.Persistence.DuckDBFile,
			cfg.Persistence.DuckDBThreads, cfg.Persistence.DuckDBMemoryLimit)
		if err != nil {
			return nil, err
		}
		assets, err := storage.NewFileAssetStore(cfg.Storage.AssetsDirectory)
		if err != nil {
			state.Close()
			return nil, err
		}
		return &stores{state: state, assets: assets, close: state.Close}, nil
	}
	return nil, fmt.Errorf("unknown persistence backend %q", cfg.Persistence.Backend)
}

// loadCatalog reads the configured catalog file, or the built-in one.
func loadCatalog(cfg *config.AppConfig) (*catalog.Catalog, error) {
	if cfg.Storage.CatalogFile == "" {
		return catalog.Default()
	}
	return catalog.Load(cfg.Storage.CatalogFile)
}
