package domain

import (
	"sort"
	"strings"
)

// Species describes a supported organism and the marker names its STR
// profiles may carry. Marker names are stored in their canonical form.
type Species struct {
	Name            string   `json:"name"`
	Codes           []string `json:"codes"`
	DefaultMarkers  []string `json:"defaultMarkers"`
	OptionalMarkers []string `json:"optionalMarkers,omitempty"`
}

// Supported species names.
const (
	SpeciesHuman = "Homo sapiens"
	SpeciesMouse = "Mus musculus"
	SpeciesDog   = "Canis lupus familiaris"
)

// DefaultSpecies is used when a request does not name a species.
const DefaultSpecies = SpeciesHuman

var builtinSpecies = []Species{
	{
		Name:  SpeciesHuman,
		Codes: []string{"human", "hs", "9606"},
		DefaultMarkers: []string{
			AmelogeninMarker, "CSF1PO", "D2S1338", "D3S1358", "D5S818", "D7S820", "D8S1179",
			"D13S317", "D16S539", "D18S51", "D19S433", "D21S11", "FGA", "Penta_D", "Penta_E",
			"TH01", "TPOX", "vWA",
		},
		OptionalMarkers: []string{
			"D1S1656", "D2S441", "D6S1043", "D10S1248", "D12S391", "D22S1045", "DXS101",
			"DYS391", "F13A01", "F13B", "FESFPS", "LPL", "Penta_C", "SE33",
		},
	},
	{
		Name:  SpeciesMouse,
		Codes: []string{"mouse", "mm", "10090"},
		DefaultMarkers: []string{
			"1-1", "1-2", "2-1", "3-2", "4-2", "5-5", "6-4", "6-7", "7-1", "8-1", "11-2",
			"12-1", "13-1", "15-3", "17-2", "18-3", "19-2", "X-1",
		},
	},
	{
		Name:  SpeciesDog,
		Codes: []string{"dog", "cf", "9615"},
		DefaultMarkers: []string{
			AmelogeninMarker, "FHC2010", "FHC2054", "FHC2079", "PEZ1", "PEZ3", "PEZ5", "PEZ6",
			"PEZ8", "PEZ12", "PEZ20", "VGL0760", "VGL0910", "VGL1063", "VGL1165", "VGL1828",
			"VGL2009", "VGL2409", "VGL2918", "VGL3008", "VGL3235",
		},
	},
}

// AllSpecies returns the built-in species table in declaration order.
func AllSpecies() []Species {
	out := make([]Species, len(builtinSpecies))
	copy(out, builtinSpecies)
	return out
}

// LookupSpecies finds a species by name or code, ignoring case and treating
// runs of whitespace and underscores as a single space.
func LookupSpecies(code string) (Species, bool) {
	key := foldSpeciesKey(code)
	if key == "" {
		return Species{}, false
	}
	for _, sp := range builtinSpecies {
		if foldSpeciesKey(sp.Name) == key {
			return sp, true
		}
		for _, c := range sp.Codes {
			if foldSpeciesKey(c) == key {
				return sp, true
			}
		}
	}
	return Species{}, false
}

func foldSpeciesKey(s string) string {
	s = strings.ReplaceAll(s, "_", " ")
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// Accepts reports whether name is one of the species' default or optional markers.
func (s Species) Accepts(name string) bool {
	for _, m := range s.DefaultMarkers {
		if m == name {
			return true
		}
	}
	for _, m := range s.OptionalMarkers {
		if m == name {
			return true
		}
	}
	return false
}

// Markers returns the default and optional marker names sorted by name.
func (s Species) Markers() []string {
	out := make([]string, 0, len(s.DefaultMarkers)+len(s.OptionalMarkers))
	out = append(out, s.DefaultMarkers...)
	out = append(out, s.OptionalMarkers...)
	sort.Strings(out)
	return out
}
