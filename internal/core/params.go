package core

import (
	"sort"
	"strconv"
	"strings"

	"strmatch/internal/scoring"
	"strmatch/pkg/domain"
)

// Search parameter defaults.
const (
	DefaultScoreFilter = 60
	DefaultMinMarkers  = 8
	DefaultMaxResults  = 200
)

// Reserved request keys, in normalized form.
const (
	KeySpecies           = "SPECIES"
	KeyAlgorithm         = "ALGORITHM"
	KeyScoringMode       = "SCORINGMODE"
	KeyScoreFilter       = "SCOREFILTER"
	KeyMinMarkers        = "MINMARKERS"
	KeyMaxResults        = "MAXRESULTS"
	KeyIncludeAmelogenin = "INCLUDEAMELOGENIN"
	KeyDescription       = "DESCRIPTION"
	KeyOutputFormat      = "OUTPUTFORMAT"
)

// Parameters are the normalized settings of one search, echoed in its output.
type Parameters struct {
	Species           string            `json:"species"`
	Algorithm         scoring.Algorithm `json:"algorithm"`
	ScoringMode       scoring.Mode      `json:"scoringMode"`
	ScoreFilter       int               `json:"scoreFilter"`
	MinMarkers        int               `json:"minMarkers"`
	MaxResults        int               `json:"maxResults"`
	IncludeAmelogenin bool              `json:"includeAmelogenin"`
	Markers           []domain.Marker   `json:"markers"`
}

// Request is a parsed search: parameters, description and query profile.
type Request struct {
	Parameters
	Description string
	Query       domain.Profile
}

var (
	markerAliases = map[string]string{
		"AM":         domain.AmelogeninMarker,
		"AMEL":       domain.AmelogeninMarker,
		"AMELOGENIN": domain.AmelogeninMarker,
		"CSF1P0":     "CSF1PO",
		"F13A1":      "F13A01",
		"FES/FPS":    "FESFPS",
		"FES":        "FESFPS",
		"FPS":        "FESFPS",
		"PENTA_C":    "Penta_C",
		"PENTA_D":    "Penta_D",
		"PENTA_E":    "Penta_E",
		"THO1":       "TH01",
		"VWA":        "vWA",
	}

	speciesPrefixes = []string{"MOUSE_STR_", "MOUSE_STR", "MOUSE_", "DOG_", "STR_"}
)

// NormalizeKey maps a raw request key to its canonical form: trimmed,
// upper-cased, whitespace runs collapsed to "_", species prefixes stripped and
// known marker aliases resolved. Reserved keys come out in upper case.
func NormalizeKey(key string) string {
	k := strings.Join(strings.Fields(strings.ToUpper(key)), "_")
	for _, prefix := range speciesPrefixes {
		if rest, ok := strings.CutPrefix(k, prefix); ok && rest != "" {
			k = rest
			break
		}
	}
	if canonical, ok := markerAliases[k]; ok {
		return canonical
	}
	return k
}

// canonicalMarker resolves a normalized key against the species catalog,
// whose names may be mixed case (vWA, Penta_D).
func canonicalMarker(sp domain.Species, key string) (string, bool) {
	if sp.Accepts(key) {
		return key, true
	}
	for _, name := range sp.Markers() {
		if strings.ToUpper(name) == key {
			return name, true
		}
	}
	return "", false
}

// ParseRequest validates a raw key/value search request. Keys are matched
// after NormalizeKey; unknown keys that are not species markers are dropped.
// Marker keys are applied in sorted raw-key order so that when two raw keys
// normalize to the same marker the outcome is deterministic.
func ParseRequest(raw map[string]string) (Request, error) {
	values := make(map[string]string, len(raw))
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	markerKeys := make([]string, 0, len(keys))
	for _, k := range keys {
		nk := NormalizeKey(k)
		switch nk {
		case KeySpecies, KeyAlgorithm, KeyScoringMode, KeyScoreFilter, KeyMinMarkers,
			KeyMaxResults, KeyIncludeAmelogenin, KeyDescription, KeyOutputFormat:
			if _, seen := values[nk]; !seen {
				values[nk] = raw[k]
			}
		default:
			markerKeys = append(markerKeys, k)
		}
	}

	req := Request{Parameters: Parameters{
		Species:     domain.DefaultSpecies,
		Algorithm:   scoring.AlgorithmExact,
		ScoringMode: scoring.ModeStrict,
		ScoreFilter: DefaultScoreFilter,
		MinMarkers:  DefaultMinMarkers,
		MaxResults:  DefaultMaxResults,
	}}

	sp, _ := domain.LookupSpecies(domain.DefaultSpecies)
	if v, ok := values[KeySpecies]; ok && strings.TrimSpace(v) != "" {
		found, ok := domain.LookupSpecies(v)
		if !ok {
			return Request{}, domain.ErrInvalidParameter{Name: "species", Value: v, Reason: "unknown species"}
		}
		sp = found
	}
	req.Species = sp.Name

	var err error
	if v, ok := values[KeyAlgorithm]; ok {
		if req.Algorithm, err = scoring.ParseAlgorithm(v); err != nil {
			return Request{}, err
		}
	}
	if v, ok := values[KeyScoringMode]; ok {
		if req.ScoringMode, err = scoring.ParseMode(v); err != nil {
			return Request{}, err
		}
	}
	if req.ScoreFilter, err = intParam(values, KeyScoreFilter, "scoreFilter", req.ScoreFilter); err != nil {
		return Request{}, err
	}
	if req.MinMarkers, err = intParam(values, KeyMinMarkers, "minMarkers", req.MinMarkers); err != nil {
		return Request{}, err
	}
	if req.MaxResults, err = intParam(values, KeyMaxResults, "maxResults", req.MaxResults); err != nil {
		return Request{}, err
	}
	if req.MaxResults < 0 {
		return Request{}, domain.ErrInvalidParameter{Name: "maxResults", Value: values[KeyMaxResults], Reason: "must not be negative"}
	}
	req.IncludeAmelogenin = strings.EqualFold(strings.TrimSpace(values[KeyIncludeAmelogenin]), "true")
	req.Description = values[KeyDescription]

	for _, k := range markerKeys {
		name, ok := canonicalMarker(sp, NormalizeKey(k))
		if !ok {
			continue
		}
		m := domain.Marker{Name: name}
		for _, v := range strings.Split(raw[k], ",") {
			if v = strings.ToUpper(strings.TrimSpace(v)); v != "" {
				m.AddAllele(v)
			}
		}
		req.Query.AddMarker(m)
	}
	req.Query.SortMarkers()
	req.Markers = req.Query.Markers
	return req, nil
}

func intParam(values map[string]string, key, name string, def int) (int, error) {
	v, ok := values[key]
	if !ok || strings.TrimSpace(v) == "" {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, domain.ErrInvalidParameter{Name: name, Value: v, Reason: "not an integer"}
	}
	return n, nil
}
