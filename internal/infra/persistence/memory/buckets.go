package memory

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"strmatch/pkg/domain"
)

// ReleaseBucket holds the JSON-encoded release tag.
const ReleaseBucket = "release"

const speciesBucketPrefix = "species:"

// Bucket is one row of a persistent snapshot table.
type Bucket struct {
	Name    string
	Payload []byte
}

// SpeciesBucket returns the bucket name holding the records of species.
func SpeciesBucket(species string) string {
	return speciesBucketPrefix + species
}

// EncodeBuckets splits a snapshot into the release bucket followed by one
// bucket per species, each a JSON array of records in import order.
func EncodeBuckets(snapshot domain.CatalogSnapshot) ([]Bucket, error) {
	release, err := json.Marshal(snapshot.Release)
	if err != nil {
		return nil, fmt.Errorf("encode release: %w", err)
	}
	grouped := make(map[string][]domain.ReferenceRecord)
	for _, rec := range snapshot.Records {
		grouped[rec.Species] = append(grouped[rec.Species], rec)
	}
	out := []Bucket{{Name: ReleaseBucket, Payload: release}}
	for _, species := range speciesOrder(grouped) {
		data, err := json.Marshal(grouped[species])
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", species, err)
		}
		out = append(out, Bucket{Name: SpeciesBucket(species), Payload: data})
	}
	return out, nil
}

// DecodeBuckets reverses EncodeBuckets. Unknown bucket names are ignored.
func DecodeBuckets(buckets []Bucket) (domain.CatalogSnapshot, error) {
	var snapshot domain.CatalogSnapshot
	grouped := make(map[string][]domain.ReferenceRecord)
	for _, b := range buckets {
		if len(b.Payload) == 0 {
			continue
		}
		if b.Name == ReleaseBucket {
			if err := json.Unmarshal(b.Payload, &snapshot.Release); err != nil {
				return domain.CatalogSnapshot{}, fmt.Errorf("decode release: %w", err)
			}
			continue
		}
		species, ok := strings.CutPrefix(b.Name, speciesBucketPrefix)
		if !ok {
			continue
		}
		var recs []domain.ReferenceRecord
		if err := json.Unmarshal(b.Payload, &recs); err != nil {
			return domain.CatalogSnapshot{}, fmt.Errorf("decode %s: %w", species, err)
		}
		grouped[species] = recs
	}
	for _, species := range speciesOrder(grouped) {
		snapshot.Records = append(snapshot.Records, grouped[species]...)
	}
	return snapshot, nil
}

// speciesOrder lists built-in species first, in table order, then any others by name.
func speciesOrder(grouped map[string][]domain.ReferenceRecord) []string {
	out := make([]string, 0, len(grouped))
	known := make(map[string]struct{})
	for _, sp := range domain.AllSpecies() {
		known[sp.Name] = struct{}{}
		if _, ok := grouped[sp.Name]; ok {
			out = append(out, sp.Name)
		}
	}
	var rest []string
	for name := range grouped {
		if _, ok := known[name]; !ok {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}
