// Package resolver expands ambiguous reference records into the concrete
// candidate profiles consistent with them.
package resolver

import "strmatch/pkg/domain"

// slot is one marker position of the enumeration with its reported alternatives.
type slot struct {
	name string
	alts []domain.AlleleSet
}

// slots groups the record's reported alternatives by marker name, in order of
// first appearance. Markers without any reported result are skipped.
func slots(rec domain.ReferenceRecord) []slot {
	out := make([]slot, 0, len(rec.Markers))
	pos := make(map[string]int, len(rec.Markers))
	for _, m := range rec.Markers {
		alts := m.Reported()
		if len(alts) == 0 {
			continue
		}
		if i, ok := pos[m.Name]; ok {
			out[i].alts = append(out[i].alts, alts...)
			continue
		}
		pos[m.Name] = len(out)
		out = append(out, slot{name: m.Name, alts: alts})
	}
	return out
}

// Count returns the number of candidate profiles Resolve would produce: the
// product over markers of max(1, alternatives).
func Count(rec domain.ReferenceRecord) int {
	n := 1
	for _, s := range slots(rec) {
		n *= len(s.alts)
	}
	return n
}

// Resolve returns every concrete profile consistent with rec. Each candidate
// keeps the full marker scaffold and commits to one alternative per marker.
//
// Enumeration is an odometer over markers in record order with the last
// marker varying fastest and alternatives taken in recorded order, so the
// output is reproducible for a given record.
func Resolve(rec domain.ReferenceRecord) []domain.Profile {
	ss := slots(rec)
	out := make([]domain.Profile, 0, Count(rec))
	idx := make([]int, len(ss))
	for {
		markers := make([]domain.Marker, 0, len(ss))
		for i, s := range ss {
			alt := s.alts[idx[i]]
			m := domain.NewMarker(s.name, alt.Alleles...)
			m.Conflicted = domain.BoolPtr(len(s.alts) > 1)
			if len(alt.Sources) > 0 {
				m.Sources = append([]string(nil), alt.Sources...)
			}
			markers = append(markers, m)
		}
		out = append(out, domain.NewProfile(markers...))

		i := len(ss) - 1
		for ; i >= 0; i-- {
			idx[i]++
			if idx[i] < len(ss[i].alts) {
				break
			}
			idx[i] = 0
		}
		if i < 0 {
			return out
		}
	}
}

// CellLine resolves rec into a cell line carrying all of its candidate profiles.
func CellLine(rec domain.ReferenceRecord) domain.CellLine {
	cl := rec.Identity()
	cl.Profiles = Resolve(rec)
	return cl
}
