// Package domain defines the genotype value types, reference records and
// species catalogs used by strmatch.
package domain

import "sort"

// AmelogeninMarker is the canonical name of the sex-typing marker. It is scored
// as a binary marker rather than a repeat-count locus.
const AmelogeninMarker = "Amelogenin"

// Allele is one measured value at a marker: a repeat count such as "9.3" or a
// sentinel such as "X". Matched is a display annotation written during scoring.
type Allele struct {
	Value   string `json:"value"`
	Matched *bool  `json:"matched,omitempty"`
}

// NewAllele returns an allele holding value.
func NewAllele(value string) Allele {
	return Allele{Value: value}
}

// Marker is a named locus with its ordered, value-unique alleles.
// Conflicted, Searched and Sources are annotations: Conflicted is set by the
// resolver, Searched by the scoring engine, Sources carries provenance tags.
type Marker struct {
	Name       string   `json:"name"`
	Alleles    []Allele `json:"alleles"`
	Conflicted *bool    `json:"conflicted,omitempty"`
	Searched   *bool    `json:"searched,omitempty"`
	Sources    []string `json:"sources,omitempty"`
}

// NewMarker builds a marker from raw allele values, dropping empty and duplicate values.
func NewMarker(name string, values ...string) Marker {
	m := Marker{Name: name}
	for _, v := range values {
		m.AddAllele(v)
	}
	return m
}

// AddAllele appends value unless it is empty or already present. It reports
// whether the allele was added.
func (m *Marker) AddAllele(value string) bool {
	if value == "" || m.HasAllele(value) {
		return false
	}
	m.Alleles = append(m.Alleles, NewAllele(value))
	return true
}

// HasAllele reports whether the marker carries value.
func (m Marker) HasAllele(value string) bool {
	for _, a := range m.Alleles {
		if a.Value == value {
			return true
		}
	}
	return false
}

// Called reports whether the marker has at least one allele.
func (m Marker) Called() bool {
	return len(m.Alleles) > 0
}

// Values returns the allele values in marker order.
func (m Marker) Values() []string {
	out := make([]string, len(m.Alleles))
	for i, a := range m.Alleles {
		out[i] = a.Value
	}
	return out
}

// Clone returns a deep copy of the marker including its annotations.
func (m Marker) Clone() Marker {
	dup := Marker{
		Name:       m.Name,
		Conflicted: cloneBool(m.Conflicted),
		Searched:   cloneBool(m.Searched),
	}
	if m.Alleles != nil {
		dup.Alleles = make([]Allele, len(m.Alleles))
		for i, a := range m.Alleles {
			dup.Alleles[i] = Allele{Value: a.Value, Matched: cloneBool(a.Matched)}
		}
	}
	if m.Sources != nil {
		dup.Sources = append([]string(nil), m.Sources...)
	}
	return dup
}

// ClearAnnotations drops every transient annotation from the marker and its alleles.
func (m *Marker) ClearAnnotations() {
	m.Conflicted = nil
	m.Searched = nil
	m.Sources = nil
	for i := range m.Alleles {
		m.Alleles[i].Matched = nil
	}
}

// MarkerCollection orders markers by name.
type MarkerCollection []Marker

func (c MarkerCollection) Len() int           { return len(c) }
func (c MarkerCollection) Less(i, j int) bool { return c[i].Name < c[j].Name }
func (c MarkerCollection) Swap(i, j int)      { c[i], c[j] = c[j], c[i] }

// Profile maps marker names to markers. Score is written by the caller of the
// scoring engine.
type Profile struct {
	Markers      []Marker `json:"markers"`
	MarkerNumber int      `json:"markerNumber"`
	Size         int      `json:"size"`
	Score        float64  `json:"score"`
}

// NewProfile builds a profile from markers, keeping the first marker for any
// repeated name.
func NewProfile(markers ...Marker) Profile {
	var p Profile
	for _, m := range markers {
		p.AddMarker(m)
	}
	return p
}

// AddMarker appends m unless a marker with the same name is already present.
// Derived counters are refreshed. It reports whether the marker was added.
func (p *Profile) AddMarker(m Marker) bool {
	if _, ok := p.Marker(m.Name); ok {
		return false
	}
	p.Markers = append(p.Markers, m)
	p.Recount()
	return true
}

// Marker returns the marker named name.
func (p *Profile) Marker(name string) (*Marker, bool) {
	for i := range p.Markers {
		if p.Markers[i].Name == name {
			return &p.Markers[i], true
		}
	}
	return nil, false
}

// Index returns a name to marker lookup over the profile's markers. The
// pointers alias the profile's storage.
func (p *Profile) Index() map[string]*Marker {
	out := make(map[string]*Marker, len(p.Markers))
	for i := range p.Markers {
		out[p.Markers[i].Name] = &p.Markers[i]
	}
	return out
}

// SortMarkers orders markers by name.
func (p *Profile) SortMarkers() {
	sort.Sort(MarkerCollection(p.Markers))
}

// Recount refreshes Size and MarkerNumber from the current markers.
func (p *Profile) Recount() {
	p.Size = len(p.Markers)
	n := 0
	for _, m := range p.Markers {
		if m.Called() {
			n++
		}
	}
	p.MarkerNumber = n
}

// Clone returns a deep copy of the profile.
func (p Profile) Clone() Profile {
	dup := Profile{MarkerNumber: p.MarkerNumber, Size: p.Size, Score: p.Score}
	if p.Markers != nil {
		dup.Markers = make([]Marker, len(p.Markers))
		for i, m := range p.Markers {
			dup.Markers[i] = m.Clone()
		}
	}
	return dup
}

// CellLine is a reference entity: its identity, the candidate profiles resolved
// from its reference record and, after a search, the best score among them.
type CellLine struct {
	Accession   string    `json:"accession"`
	Name        string    `json:"name"`
	Species     string    `json:"species"`
	Problematic bool      `json:"problematic"`
	Problem     string    `json:"problem,omitempty"`
	BestScore   float64   `json:"bestScore"`
	Profiles    []Profile `json:"profiles"`
}

// Clone returns a deep copy of the cell line and all of its profiles.
func (c CellLine) Clone() CellLine {
	dup := c
	if c.Profiles != nil {
		dup.Profiles = make([]Profile, len(c.Profiles))
		for i, p := range c.Profiles {
			dup.Profiles[i] = p.Clone()
		}
	}
	return dup
}

// Best returns the retained profile after reduction.
func (c CellLine) Best() (Profile, bool) {
	if len(c.Profiles) == 0 {
		return Profile{}, false
	}
	return c.Profiles[0], true
}

// BoolPtr returns a pointer to v.
func BoolPtr(v bool) *bool {
	return &v
}

func cloneBool(in *bool) *bool {
	if in == nil {
		return nil
	}
	v := *in
	return &v
}
