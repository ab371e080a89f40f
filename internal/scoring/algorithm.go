// Package scoring computes the similarity of a query STR profile to a
// candidate reference profile.
package scoring

import (
	"strconv"
	"strings"

	"strmatch/pkg/domain"
)

// Algorithm selects the per-marker equality judgment.
type Algorithm string

const (
	// AlgorithmExact credits a marker only when both allele sets are equal.
	AlgorithmExact Algorithm = "exact"
	// AlgorithmOverlap credits the fraction of shared allele values.
	AlgorithmOverlap Algorithm = "overlap"
	// AlgorithmTolerant extends overlap with half credit for microvariant or
	// adjacent repeat-count calls.
	AlgorithmTolerant Algorithm = "tolerant"
)

// Mode selects which markers enter the denominator and how partial matches are credited.
type Mode string

const (
	// ModeStrict counts only markers called in both profiles.
	ModeStrict Mode = "strict"
	// ModeLenient counts every marker called in the query; markers missing
	// from the query are neutral, markers missing from the candidate score zero.
	ModeLenient Mode = "lenient"
	// ModePartial counts like ModeStrict and grants heterozygous markers with
	// exactly one shared allele at least half credit.
	ModePartial Mode = "partial"
)

var (
	algorithms = []Algorithm{AlgorithmExact, AlgorithmOverlap, AlgorithmTolerant}
	modes      = []Mode{ModeStrict, ModeLenient, ModePartial}
)

// Algorithms returns the supported algorithms in index order.
func Algorithms() []Algorithm { return append([]Algorithm(nil), algorithms...) }

// Modes returns the supported modes in index order.
func Modes() []Mode { return append([]Mode(nil), modes...) }

// Index returns the 1-based external index of the algorithm, or 0 if unknown.
func (a Algorithm) Index() int {
	for i, v := range algorithms {
		if v == a {
			return i + 1
		}
	}
	return 0
}

// Index returns the 1-based external index of the mode, or 0 if unknown.
func (m Mode) Index() int {
	for i, v := range modes {
		if v == m {
			return i + 1
		}
	}
	return 0
}

// AlgorithmFromIndex maps a 1-based external index to an algorithm.
func AlgorithmFromIndex(i int) (Algorithm, error) {
	if i < 1 || i > len(algorithms) {
		return "", domain.ErrInvalidParameter{Name: "algorithm", Value: strconv.Itoa(i), Reason: "expected 1, 2 or 3"}
	}
	return algorithms[i-1], nil
}

// ModeFromIndex maps a 1-based external index to a mode.
func ModeFromIndex(i int) (Mode, error) {
	if i < 1 || i > len(modes) {
		return "", domain.ErrInvalidParameter{Name: "scoringMode", Value: strconv.Itoa(i), Reason: "expected 1, 2 or 3"}
	}
	return modes[i-1], nil
}

// ParseAlgorithm accepts either a 1-based index or an algorithm name.
func ParseAlgorithm(s string) (Algorithm, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if i, err := strconv.Atoi(s); err == nil {
		return AlgorithmFromIndex(i)
	}
	for _, a := range algorithms {
		if string(a) == s {
			return a, nil
		}
	}
	return "", domain.ErrInvalidParameter{Name: "algorithm", Value: s}
}

// ParseMode accepts either a 1-based index or a mode name.
func ParseMode(s string) (Mode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if i, err := strconv.Atoi(s); err == nil {
		return ModeFromIndex(i)
	}
	for _, m := range modes {
		if string(m) == s {
			return m, nil
		}
	}
	return "", domain.ErrInvalidParameter{Name: "scoringMode", Value: s}
}
