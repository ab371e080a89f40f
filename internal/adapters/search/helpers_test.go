package search_test

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"strmatch/internal/config"
	"strmatch/internal/core"
	"strmatch/internal/testhelper"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newService(t *testing.T) *core.Service {
	t.Helper()
	store, err := core.OpenCatalog(context.Background(), config.Storage{Driver: config.StorageMemory})
	if err != nil {
		t.Fatalf("open catalog: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	if err := store.Import(context.Background(), testhelper.Catalog()); err != nil {
		t.Fatalf("import: %v", err)
	}
	var seq atomic.Int64
	return core.NewService(store,
		core.WithClock(func() time.Time { return fixedNow }),
		core.WithIDGenerator(func() string { return fmt.Sprintf("search-%d", seq.Add(1)) }),
	)
}

func genotypeQuery(extra ...string) map[string]string {
	return testhelper.Query(testhelper.UnambiguousGenotype, extra...)
}
