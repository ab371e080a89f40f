// Package memory provides the in-memory reference catalog. The persistent
// stores embed it and snapshot its state after every import.
package memory

import (
	"context"
	"sync"

	"strmatch/internal/resolver"
	"strmatch/pkg/domain"
)

// Store holds reference records grouped by species in import order and
// resolves their candidate profiles through an LRU cache.
type Store struct {
	mu        sync.RWMutex
	release   string
	records   []domain.ReferenceRecord
	bySpecies map[string][]int
	cache     *resolver.Cache
}

// NewStore returns an empty store whose resolver cache initially holds
// cacheSize records. Imports grow the cache to the catalog size.
func NewStore(cacheSize int) (*Store, error) {
	cache, err := resolver.NewCache(cacheSize)
	if err != nil {
		return nil, err
	}
	return &Store{cache: cache, bySpecies: make(map[string][]int)}, nil
}

// Release returns the dataset release tag of the loaded catalog.
func (s *Store) Release() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.release
}

// Len returns the number of loaded records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// CellLines returns the cell lines of species in import order with their
// candidate profiles. Profiles are shared with the resolver cache.
func (s *Store) CellLines(ctx context.Context, species string) ([]domain.CellLine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := s.bySpecies[species]
	out := make([]domain.CellLine, 0, len(idx))
	for _, i := range idx {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out = append(out, s.cache.CellLine(s.records[i]))
	}
	return out, nil
}

// Record returns the raw record for accession.
func (s *Store) Record(accession string) (domain.ReferenceRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, rec := range s.records {
		if rec.Accession == accession {
			return rec, true
		}
	}
	return domain.ReferenceRecord{}, false
}

// Import validates snapshot and replaces the catalog with it.
func (s *Store) Import(_ context.Context, snapshot domain.CatalogSnapshot) error {
	snapshot = cloneSnapshot(snapshot)
	if err := snapshot.Validate(); err != nil {
		return err
	}
	s.ImportState(snapshot)
	return nil
}

// ImportState replaces the catalog without validation. Callers pass
// snapshots produced by ExportState or already validated.
func (s *Store) ImportState(snapshot domain.CatalogSnapshot) {
	snapshot = cloneSnapshot(snapshot)
	bySpecies := make(map[string][]int)
	for i, rec := range snapshot.Records {
		bySpecies[rec.Species] = append(bySpecies[rec.Species], i)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.release = snapshot.Release
	s.records = snapshot.Records
	s.bySpecies = bySpecies
	s.cache.Purge()
	s.cache.Reserve(len(snapshot.Records))
}

// ExportState returns a deep copy of the catalog.
func (s *Store) ExportState() domain.CatalogSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneSnapshot(domain.CatalogSnapshot{Release: s.release, Records: s.records})
}

// Snapshot is ExportState.
func (s *Store) Snapshot() domain.CatalogSnapshot { return s.ExportState() }

// CacheStats returns the resolver cache hit and miss counters.
func (s *Store) CacheStats() (hits, misses uint64) { return s.cache.Stats() }

// Close is a no-op.
func (s *Store) Close() error { return nil }

func cloneSnapshot(in domain.CatalogSnapshot) domain.CatalogSnapshot {
	out := domain.CatalogSnapshot{Release: in.Release}
	if in.Records == nil {
		return out
	}
	out.Records = make([]domain.ReferenceRecord, len(in.Records))
	for i, rec := range in.Records {
		out.Records[i] = cloneRecord(rec)
	}
	return out
}

func cloneRecord(rec domain.ReferenceRecord) domain.ReferenceRecord {
	dup := rec
	if rec.Markers == nil {
		return dup
	}
	dup.Markers = make([]domain.ReferenceMarker, len(rec.Markers))
	for i, m := range rec.Markers {
		cm := domain.ReferenceMarker{Name: m.Name}
		if m.Alternatives != nil {
			cm.Alternatives = make([]domain.AlleleSet, len(m.Alternatives))
			for j, alt := range m.Alternatives {
				cm.Alternatives[j] = domain.AlleleSet{
					Alleles: append([]string(nil), alt.Alleles...),
					Sources: append([]string(nil), alt.Sources...),
				}
			}
		}
		dup.Markers[i] = cm
	}
	return dup
}
