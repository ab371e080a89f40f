package domain

import (
	"encoding/json"
	"fmt"
	"io"
)

// AlleleSet is one reported genotype for a marker together with the sources
// that reported it.
type AlleleSet struct {
	Alleles []string `json:"alleles"`
	Sources []string `json:"sources,omitempty"`
}

// ReferenceMarker is a marker of a raw reference record. More than one
// alternative means the sources disagree; zero alternatives (or only empty
// ones) means no result was reported.
type ReferenceMarker struct {
	Name         string      `json:"name"`
	Alternatives []AlleleSet `json:"alternatives"`
}

// Reported returns the alternatives that carry at least one allele.
func (m ReferenceMarker) Reported() []AlleleSet {
	out := make([]AlleleSet, 0, len(m.Alternatives))
	for _, alt := range m.Alternatives {
		for _, a := range alt.Alleles {
			if a != "" {
				out = append(out, alt)
				break
			}
		}
	}
	return out
}

// ReferenceRecord is the raw, possibly ambiguous genotype record of a
// reference cell line as loaded from the catalog source.
type ReferenceRecord struct {
	Accession   string            `json:"accession"`
	Name        string            `json:"name"`
	Species     string            `json:"species"`
	Problematic bool              `json:"problematic,omitempty"`
	Problem     string            `json:"problem,omitempty"`
	Markers     []ReferenceMarker `json:"markers"`
}

// Identity returns a cell line carrying the record's identity and no profiles.
func (r ReferenceRecord) Identity() CellLine {
	return CellLine{
		Accession:   r.Accession,
		Name:        r.Name,
		Species:     r.Species,
		Problematic: r.Problematic,
		Problem:     r.Problem,
	}
}

// CatalogSnapshot is the interchange form of a reference catalog.
type CatalogSnapshot struct {
	Release string            `json:"release"`
	Records []ReferenceRecord `json:"records"`
}

// DecodeCatalog reads a JSON catalog snapshot and validates it.
func DecodeCatalog(r io.Reader) (CatalogSnapshot, error) {
	var snapshot CatalogSnapshot
	if err := json.NewDecoder(r).Decode(&snapshot); err != nil {
		return CatalogSnapshot{}, fmt.Errorf("decode catalog: %w", err)
	}
	if err := snapshot.Validate(); err != nil {
		return CatalogSnapshot{}, err
	}
	return snapshot, nil
}

// Validate checks that every record has a unique accession and a known
// species, rewriting species codes to the canonical species name.
func (s *CatalogSnapshot) Validate() error {
	seen := make(map[string]struct{}, len(s.Records))
	for i := range s.Records {
		rec := &s.Records[i]
		if rec.Accession == "" {
			return fmt.Errorf("catalog record %d: accession required", i)
		}
		if _, dup := seen[rec.Accession]; dup {
			return fmt.Errorf("catalog record %s: duplicate accession", rec.Accession)
		}
		seen[rec.Accession] = struct{}{}
		sp, ok := LookupSpecies(rec.Species)
		if !ok {
			return ErrUnknownSpecies{Code: rec.Species}
		}
		rec.Species = sp.Name
	}
	return nil
}
