package scoring

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"strmatch/pkg/domain"
)

// ComputeScore returns the similarity of candidate to query in [0,100].
//
// The query is only read. The candidate receives display annotations: each
// scored marker gets Searched, and alleles of searched markers get Matched.
// Annotations never affect the result. Calls may run concurrently as long as
// candidates are distinct values.
//
// Score = 100 * sum(credit) / counted markers, rounded half away from zero to
// two decimals; 0 when no marker is counted.
func ComputeScore(alg Algorithm, mode Mode, query, candidate *domain.Profile, includeAmelogenin bool) float64 {
	q := make(map[string]*domain.Marker, len(query.Markers))
	for i := range query.Markers {
		q[query.Markers[i].Name] = &query.Markers[i]
	}

	var credit float64
	counted := 0
	for i := range candidate.Markers {
		cm := &candidate.Markers[i]
		amel := cm.Name == domain.AmelogeninMarker
		if amel && !includeAmelogenin {
			continue
		}
		qm := q[cm.Name]
		searched := qm != nil && qm.Called()
		cm.Searched = domain.BoolPtr(searched)
		if !searched {
			continue
		}
		for j := range cm.Alleles {
			cm.Alleles[j].Matched = domain.BoolPtr(qm.HasAllele(cm.Alleles[j].Value))
		}
		if !cm.Called() {
			continue
		}
		counted++
		credit += markerCredit(alg, mode, qm, cm, amel)
	}

	if mode == ModeLenient {
		for i := range query.Markers {
			qm := &query.Markers[i]
			if !qm.Called() || (qm.Name == domain.AmelogeninMarker && !includeAmelogenin) {
				continue
			}
			if cm, ok := candidate.Marker(qm.Name); ok && cm.Called() {
				continue
			}
			counted++
		}
	}

	if counted == 0 {
		return 0
	}
	return round2(100 * credit / float64(counted))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func markerCredit(alg Algorithm, mode Mode, q, r *domain.Marker, amel bool) float64 {
	shared := sharedCount(q, r)
	if amel {
		if shared == len(q.Alleles) && shared == len(r.Alleles) {
			return 1
		}
		return 0
	}
	width := max(len(q.Alleles), len(r.Alleles))

	var c float64
	switch alg {
	case AlgorithmExact:
		if shared == len(q.Alleles) && shared == len(r.Alleles) {
			c = 1
		}
	case AlgorithmOverlap:
		c = float64(shared) / float64(width)
	case AlgorithmTolerant:
		c = (float64(shared) + 0.5*float64(nearPairs(q, r))) / float64(width)
		if c > 1 {
			c = 1
		}
	}
	if mode == ModePartial && shared == 1 && (len(q.Alleles) > 1 || len(r.Alleles) > 1) && c < 0.5 {
		c = 0.5
	}
	return c
}

func sharedCount(q, r *domain.Marker) int {
	n := 0
	for _, a := range q.Alleles {
		if r.HasAllele(a.Value) {
			n++
		}
	}
	return n
}

// repeat is a parsed repeat-count call such as "9" or "9.3".
type repeat struct {
	whole   int
	partial int
	micro   bool
}

func parseRepeat(s string) (repeat, bool) {
	wholeStr, fracStr, micro := strings.Cut(s, ".")
	whole, err := strconv.Atoi(wholeStr)
	if err != nil || whole < 0 {
		return repeat{}, false
	}
	r := repeat{whole: whole, micro: micro}
	if micro {
		frac, err := strconv.Atoi(fracStr)
		if err != nil || frac < 0 {
			return repeat{}, false
		}
		r.partial = frac
	}
	return r, true
}

// near reports whether two distinct calls are a microvariant of the same
// repeat (9 vs 9.3) or whole repeats one unit apart (9 vs 10).
func near(a, b repeat) bool {
	if a.whole == b.whole {
		return a.micro != b.micro || a.partial != b.partial
	}
	if a.micro || b.micro {
		return false
	}
	d := a.whole - b.whole
	return d == 1 || d == -1
}

// nearPairs pairs unmatched query alleles with unmatched candidate alleles,
// greedily in ascending repeat order, each allele used at most once.
func nearPairs(q, r *domain.Marker) int {
	uq := unmatched(q, r)
	ur := unmatched(r, q)
	used := make([]bool, len(ur))
	n := 0
	for _, a := range uq {
		for j, b := range ur {
			if !used[j] && near(a, b) {
				used[j] = true
				n++
				break
			}
		}
	}
	return n
}

func unmatched(m, other *domain.Marker) []repeat {
	var out []repeat
	for _, a := range m.Alleles {
		if other.HasAllele(a.Value) {
			continue
		}
		if rep, ok := parseRepeat(a.Value); ok {
			out = append(out, rep)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].whole != out[j].whole {
			return out[i].whole < out[j].whole
		}
		return out[i].partial < out[j].partial
	})
	return out
}
