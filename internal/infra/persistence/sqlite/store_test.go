package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"strmatch/internal/infra/persistence/memory"
	"strmatch/internal/testhelper"
	"strmatch/pkg/domain"
)

func TestSQLiteStorePersistAndReload(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "catalog.db")
	store, err := NewStore(ctx, path, 0)
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	if err := store.Import(ctx, testhelper.Catalog()); err != nil {
		t.Fatalf("import: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reloaded, err := NewStore(ctx, path, 0)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	t.Cleanup(func() { _ = reloaded.Close() })
	if reloaded.Release() != testhelper.FixtureRelease || reloaded.Len() != 7 {
		t.Fatalf("unexpected reload release=%q len=%d", reloaded.Release(), reloaded.Len())
	}
	lines, err := reloaded.CellLines(ctx, domain.SpeciesHuman)
	if err != nil {
		t.Fatalf("cell lines: %v", err)
	}
	if len(lines) != 5 || lines[2].Accession != testhelper.AccessionOneFifty || len(lines[2].Profiles) != 150 {
		t.Fatalf("unexpected reloaded human catalog")
	}
	if reloaded.Path() != path {
		t.Fatalf("unexpected path %s", reloaded.Path())
	}
}

func TestSQLiteStoreReplacesStaleBuckets(t *testing.T) {
	ctx := context.Background()
	store, err := NewStore(ctx, filepath.Join(t.TempDir(), "catalog.db"), 0)
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	if err := store.Import(ctx, testhelper.Catalog()); err != nil {
		t.Fatalf("import: %v", err)
	}
	humanOnly := domain.CatalogSnapshot{Release: "fixture-2", Records: []domain.ReferenceRecord{testhelper.Sparse()}}
	if err := store.Import(ctx, humanOnly); err != nil {
		t.Fatalf("import: %v", err)
	}
	var n int
	if err := store.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM catalog WHERE bucket = ?`, memory.SpeciesBucket(domain.SpeciesMouse)).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Fatalf("mouse bucket must be removed after replacing import")
	}
}

func TestSQLiteStoreRejectsInvalidImport(t *testing.T) {
	ctx := context.Background()
	store, err := NewStore(ctx, filepath.Join(t.TempDir(), "catalog.db"), 0)
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	bad := domain.CatalogSnapshot{Records: []domain.ReferenceRecord{{Species: domain.SpeciesHuman}}}
	if err := store.Import(ctx, bad); err == nil {
		t.Fatalf("expected validation error")
	}
	var n int
	if err := store.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM catalog`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Fatalf("invalid import must not be persisted")
	}
}
