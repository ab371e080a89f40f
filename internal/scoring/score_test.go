package scoring

import (
	"errors"
	"sync"
	"testing"

	"strmatch/internal/resolver"
	"strmatch/internal/testhelper"
	"strmatch/pkg/domain"
)

func profile(genotype map[string]string) domain.Profile {
	var p domain.Profile
	for _, name := range sortedKeys(genotype) {
		p.AddMarker(domain.NewMarker(name, testhelper.Alt(genotype[name]).Alleles...))
	}
	return p
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j] < keys[j-1]; j-- {
			keys[j], keys[j-1] = keys[j-1], keys[j]
		}
	}
	return keys
}

func TestSelfMatchScoresMaximum(t *testing.T) {
	query := profile(testhelper.UnambiguousGenotype)
	candidates := resolver.Resolve(testhelper.Unambiguous())
	for _, alg := range Algorithms() {
		for _, mode := range Modes() {
			for _, amel := range []bool{false, true} {
				c := candidates[0].Clone()
				if got := ComputeScore(alg, mode, &query, &c, amel); got != 100 {
					t.Fatalf("%s/%s amel=%v: expected 100, got %v", alg, mode, amel, got)
				}
			}
		}
	}
}

func TestPerMarkerCredit(t *testing.T) {
	cases := []struct {
		name  string
		alg   Algorithm
		mode  Mode
		q, r  string
		score float64
	}{
		{"exact equal", AlgorithmExact, ModeStrict, "11,12", "11,12", 100},
		{"exact one shared", AlgorithmExact, ModeStrict, "11,12", "12,13", 0},
		{"exact partial mode half", AlgorithmExact, ModePartial, "11,12", "12,13", 50},
		{"exact partial homozygous pair", AlgorithmExact, ModePartial, "11", "12", 0},
		{"exact partial het vs hom", AlgorithmExact, ModePartial, "12", "11,12", 50},
		{"overlap two shared", AlgorithmOverlap, ModeStrict, "11,12", "12,11", 100},
		{"overlap one shared", AlgorithmOverlap, ModeStrict, "11,12", "12,13", 50},
		{"overlap none", AlgorithmOverlap, ModeStrict, "11,12", "13,14", 0},
		{"overlap homozygous vs het", AlgorithmOverlap, ModeStrict, "12", "12,13", 50},
		{"overlap triallelic", AlgorithmOverlap, ModeStrict, "10,11,12", "10", 33.33},
		{"overlap triallelic partial", AlgorithmOverlap, ModePartial, "10,11,12", "10", 50},
		{"tolerant microvariant", AlgorithmTolerant, ModeStrict, "9.3", "9", 50},
		{"tolerant adjacent", AlgorithmTolerant, ModeStrict, "11,12", "11,13", 75},
		{"tolerant far", AlgorithmTolerant, ModeStrict, "11,12", "11,15", 50},
		{"tolerant micro vs adjacent whole", AlgorithmTolerant, ModeStrict, "9.3", "10", 0},
		{"tolerant sentinel", AlgorithmTolerant, ModeStrict, "X", "Y", 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			q := profile(map[string]string{"TH01": tc.q})
			r := profile(map[string]string{"TH01": tc.r})
			if got := ComputeScore(tc.alg, tc.mode, &q, &r, false); got != tc.score {
				t.Fatalf("expected %v, got %v", tc.score, got)
			}
		})
	}
}

func TestModeDenominators(t *testing.T) {
	query := profile(map[string]string{"TH01": "6,9.3", "vWA": "17,19", "FGA": "21,24", "TPOX": "8"})
	// candidate lacks TPOX and carries D5S818 which the query lacks
	cand := profile(map[string]string{"TH01": "6,9.3", "vWA": "17,19", "FGA": "20,22", "D5S818": "11"})

	cases := []struct {
		mode Mode
		want float64
	}{
		{ModeStrict, 66.67},
		{ModeLenient, 50},
		{ModePartial, 66.67},
	}
	for _, tc := range cases {
		c := cand.Clone()
		if got := ComputeScore(AlgorithmExact, tc.mode, &query, &c, false); got != tc.want {
			t.Fatalf("%s: expected %v, got %v", tc.mode, tc.want, got)
		}
	}
}

func TestAmelogeninIsBinaryAndOptional(t *testing.T) {
	query := profile(map[string]string{"Amelogenin": "X", "TH01": "6,7"})
	cand := profile(map[string]string{"Amelogenin": "X,Y", "TH01": "6,7"})

	c := cand.Clone()
	if got := ComputeScore(AlgorithmOverlap, ModeStrict, &query, &c, false); got != 100 {
		t.Fatalf("excluded amelogenin must not count, got %v", got)
	}
	amel, _ := c.Marker(domain.AmelogeninMarker)
	if amel.Searched != nil {
		t.Fatalf("excluded amelogenin must not be annotated")
	}
	c = cand.Clone()
	if got := ComputeScore(AlgorithmOverlap, ModeStrict, &query, &c, true); got != 50 {
		t.Fatalf("X vs X,Y must score zero credit under overlap, got %v", got)
	}
}

func TestNoComparableMarkersScoresZero(t *testing.T) {
	query := profile(map[string]string{"TH01": "6"})
	cand := profile(map[string]string{"vWA": "17"})
	if got := ComputeScore(AlgorithmExact, ModeStrict, &query, &cand, false); got != 0 {
		t.Fatalf("expected 0, got %v", got)
	}
}

func TestAnnotationsWrittenOnCandidateOnly(t *testing.T) {
	query := profile(map[string]string{"TH01": "6,9.3", "vWA": "17"})
	before := query.Clone()
	cand := profile(map[string]string{"TH01": "6,7", "FGA": "20"})
	ComputeScore(AlgorithmOverlap, ModeStrict, &query, &cand, false)

	th01, _ := cand.Marker("TH01")
	if th01.Searched == nil || !*th01.Searched {
		t.Fatalf("expected TH01 searched")
	}
	if !*th01.Alleles[0].Matched || *th01.Alleles[1].Matched {
		t.Fatalf("unexpected matched annotations %+v", th01.Alleles)
	}
	fga, _ := cand.Marker("FGA")
	if fga.Searched == nil || *fga.Searched || fga.Alleles[0].Matched != nil {
		t.Fatalf("unexpected FGA annotations %+v", fga)
	}
	for i, m := range query.Markers {
		if m.Searched != nil || m.Alleles[0].Matched != nil || m.Name != before.Markers[i].Name {
			t.Fatalf("query was mutated: %+v", m)
		}
	}
}

func TestConcurrentScoringOnDistinctCandidates(t *testing.T) {
	query := profile(testhelper.UnambiguousGenotype)
	candidates := resolver.Resolve(testhelper.OneFifty())
	want := make([]float64, len(candidates))
	for i := range candidates {
		c := candidates[i].Clone()
		want[i] = ComputeScore(AlgorithmTolerant, ModeLenient, &query, &c, true)
	}
	got := make([]float64, len(candidates))
	var wg sync.WaitGroup
	for i := range candidates {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c := candidates[i].Clone()
			got[i] = ComputeScore(AlgorithmTolerant, ModeLenient, &query, &c, true)
		}(i)
	}
	wg.Wait()
	for i := range want {
		if want[i] != got[i] {
			t.Fatalf("candidate %d: sequential %v, concurrent %v", i, want[i], got[i])
		}
	}
}

func TestIndexMapping(t *testing.T) {
	for i, alg := range Algorithms() {
		got, err := AlgorithmFromIndex(i + 1)
		if err != nil || got != alg || alg.Index() != i+1 {
			t.Fatalf("algorithm index %d: got %v err=%v", i+1, got, err)
		}
	}
	for i, mode := range Modes() {
		got, err := ModeFromIndex(i + 1)
		if err != nil || got != mode || mode.Index() != i+1 {
			t.Fatalf("mode index %d: got %v err=%v", i+1, got, err)
		}
	}
	for _, bad := range []int{0, 4, -1} {
		_, err := AlgorithmFromIndex(bad)
		var invalid domain.ErrInvalidParameter
		if !errors.As(err, &invalid) {
			t.Fatalf("expected invalid parameter for %d, got %v", bad, err)
		}
		if _, err := ModeFromIndex(bad); err == nil {
			t.Fatalf("expected error for mode %d", bad)
		}
	}
	if a, err := ParseAlgorithm(" Tolerant "); err != nil || a != AlgorithmTolerant {
		t.Fatalf("parse by name: %v %v", a, err)
	}
	if m, err := ParseMode("2"); err != nil || m != ModeLenient {
		t.Fatalf("parse by index: %v %v", m, err)
	}
	if _, err := ParseMode("fuzzy"); err == nil {
		t.Fatalf("expected error for unknown mode")
	}
}
