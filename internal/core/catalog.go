package core

import (
	"context"
	"fmt"

	"strmatch/internal/config"
	"strmatch/internal/infra/persistence/memory"
	"strmatch/internal/infra/persistence/postgres"
	"strmatch/internal/infra/persistence/sqlite"
	"strmatch/pkg/domain"
)

// Catalog supplies the reference cell lines of a species, each carrying its
// resolved candidate profiles. Returned values are shared and must be cloned
// before mutation.
type Catalog interface {
	Release() string
	CellLines(ctx context.Context, species string) ([]domain.CellLine, error)
}

// CatalogStore is a Catalog that can be replaced wholesale from a snapshot.
type CatalogStore interface {
	Catalog
	Import(ctx context.Context, snapshot domain.CatalogSnapshot) error
	Snapshot() domain.CatalogSnapshot
	Close() error
}

var (
	_ CatalogStore = (*memory.Store)(nil)
	_ CatalogStore = (*sqlite.Store)(nil)
	_ CatalogStore = (*postgres.Store)(nil)
)

// OpenCatalog opens the catalog backend named by cfg.Driver.
func OpenCatalog(ctx context.Context, cfg config.Storage) (CatalogStore, error) {
	switch cfg.Driver {
	case "", config.StorageMemory:
		return memory.NewStore(cfg.ResolverCacheSize)
	case config.StorageSQLite:
		return sqlite.NewStore(ctx, cfg.SQLitePath, cfg.ResolverCacheSize)
	case config.StoragePostgres:
		return postgres.NewStore(ctx, cfg.PostgresDSN, cfg.ResolverCacheSize)
	default:
		return nil, fmt.Errorf("unknown storage driver %s", cfg.Driver)
	}
}

type releaseCatalog struct {
	Catalog
	release string
}

func (c releaseCatalog) Release() string { return c.release }

// OverrideRelease returns c reporting release as its dataset release. An empty
// release returns c unchanged.
func OverrideRelease(c Catalog, release string) Catalog {
	if release == "" {
		return c
	}
	return releaseCatalog{Catalog: c, release: release}
}
