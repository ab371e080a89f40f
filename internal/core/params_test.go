package core

import (
	"errors"
	"reflect"
	"testing"

	"strmatch/internal/scoring"
	"strmatch/pkg/domain"
)

func TestNormalizeKey(t *testing.T) {
	cases := map[string]string{
		" am ":                    domain.AmelogeninMarker,
		"Amel":                    domain.AmelogeninMarker,
		"amelogenin":              domain.AmelogeninMarker,
		"csf1p0":                  "CSF1PO",
		"F13A1":                   "F13A01",
		"FES/FPS":                 "FESFPS",
		"fps":                     "FESFPS",
		"penta  d":                "Penta_D",
		"Penta\tD":                "Penta_D",
		"\npenta \t\r e\n":        "Penta_E",
		"mouse\u00a0str\u00a01-1": "1-1",
		"Penta_E":                 "Penta_E",
		"tho1":                    "TH01",
		"vwa":                     "vWA",
		"Mouse_STR_1-1":           "1-1",
		"mouse str 4-2":           "4-2",
		"MOUSE_X-1":               "X-1",
		"dog_fhc2010":             "FHC2010",
		"STR_TH01":                "TH01",
		"scoreFilter":             KeyScoreFilter,
		"D5S818":                  "D5S818",
	}
	for in, want := range cases {
		if got := NormalizeKey(in); got != want {
			t.Errorf("NormalizeKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalizeKeyVariantsAgree(t *testing.T) {
	groups := [][]string{
		{"vWA", "VWA", " vwa ", "STR_vWA"},
		{"TH01", "THO1", "tho1", "MOUSE_TH01"},
		{"Penta_D", "PENTA D", "penta_d"},
	}
	for _, g := range groups {
		want := NormalizeKey(g[0])
		for _, v := range g[1:] {
			if got := NormalizeKey(v); got != want {
				t.Errorf("%q normalized to %q, want %q", v, got, want)
			}
		}
	}
}

func TestParseRequestDefaults(t *testing.T) {
	req, err := ParseRequest(map[string]string{})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := Parameters{
		Species:     domain.SpeciesHuman,
		Algorithm:   scoring.AlgorithmExact,
		ScoringMode: scoring.ModeStrict,
		ScoreFilter: 60,
		MinMarkers:  8,
		MaxResults:  200,
	}
	got := req.Parameters
	got.Markers = nil
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected defaults %+v", got)
	}
	if req.Description != "" || req.IncludeAmelogenin || len(req.Query.Markers) != 0 {
		t.Fatalf("unexpected request %+v", req)
	}
}

func TestParseRequestOverrides(t *testing.T) {
	req, err := ParseRequest(map[string]string{
		"species":           "mm",
		"Algorithm":         "3",
		"scoringMode":       "2",
		"scoreFilter":       "0",
		"minMarkers":        "-4",
		"maxResults":        "0",
		"includeAmelogenin": "TRUE",
		"description":       "my sample",
		"outputFormat":      "csv",
	})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if req.Species != domain.SpeciesMouse || req.Algorithm != scoring.AlgorithmTolerant || req.ScoringMode != scoring.ModeLenient {
		t.Fatalf("unexpected selection %+v", req.Parameters)
	}
	if req.ScoreFilter != 0 || req.MinMarkers != -4 || req.MaxResults != 0 || !req.IncludeAmelogenin {
		t.Fatalf("unexpected numeric params %+v", req.Parameters)
	}
	if req.Description != "my sample" || len(req.Query.Markers) != 0 {
		t.Fatalf("reserved keys must not become markers: %+v", req)
	}
}

func TestParseRequestIncludeAmelogeninOnlyTrue(t *testing.T) {
	for _, v := range []string{"yes", "1", "", "false"} {
		req, err := ParseRequest(map[string]string{"includeAmelogenin": v})
		if err != nil || req.IncludeAmelogenin {
			t.Fatalf("%q must read as false (err=%v)", v, err)
		}
	}
}

func TestParseRequestErrors(t *testing.T) {
	cases := []struct {
		key, value, name string
	}{
		{"algorithm", "4", "algorithm"},
		{"algorithm", "0", "algorithm"},
		{"scoringMode", "9", "scoringMode"},
		{"species", "martian", "species"},
		{"scoreFilter", "sixty", "scoreFilter"},
		{"minMarkers", "8.5", "minMarkers"},
		{"maxResults", "-1", "maxResults"},
	}
	for _, tc := range cases {
		_, err := ParseRequest(map[string]string{tc.key: tc.value, "TH01": "6"})
		var invalid domain.ErrInvalidParameter
		if !errors.As(err, &invalid) {
			t.Fatalf("%s=%s: expected invalid parameter, got %v", tc.key, tc.value, err)
		}
		if invalid.Name != tc.name {
			t.Fatalf("%s=%s: expected parameter name %s, got %s", tc.key, tc.value, tc.name, invalid.Name)
		}
	}
}

func TestParseRequestMarkers(t *testing.T) {
	req, err := ParseRequest(map[string]string{
		"tho1":    " 6 , 9.3 ",
		"d5s818":  "11,11,",
		"SE33":    "",
		"Unknown": "1",
		"1-1":     "12",
		"amel":    "x",
	})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	names := make([]string, len(req.Query.Markers))
	for i, m := range req.Query.Markers {
		names[i] = m.Name
	}
	want := []string{"Amelogenin", "D5S818", "SE33", "TH01"}
	if len(names) != len(want) {
		t.Fatalf("unexpected markers %v", names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("unexpected markers %v", names)
		}
	}
	th01, _ := req.Query.Marker("TH01")
	if vals := th01.Values(); len(vals) != 2 || vals[0] != "6" || vals[1] != "9.3" {
		t.Fatalf("unexpected TH01 alleles %v", vals)
	}
	d5, _ := req.Query.Marker("D5S818")
	if len(d5.Alleles) != 1 {
		t.Fatalf("duplicate alleles must collapse, got %v", d5.Values())
	}
	se33, _ := req.Query.Marker("SE33")
	if se33.Called() {
		t.Fatalf("empty value must yield an uncalled marker")
	}
	amel, _ := req.Query.Marker(domain.AmelogeninMarker)
	if amel.Values()[0] != "X" {
		t.Fatalf("allele values must be upper-cased, got %v", amel.Values())
	}
	if req.Query.MarkerNumber != 3 {
		t.Fatalf("expected 3 called markers, got %d", req.Query.MarkerNumber)
	}
}

func TestParseRequestDuplicateMarkerKeysFirstSortedWins(t *testing.T) {
	req, err := ParseRequest(map[string]string{"VWA": "17", "vWA": "18", "STR_vWA": "19"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(req.Query.Markers) != 1 {
		t.Fatalf("expected one marker, got %d", len(req.Query.Markers))
	}
	// sorted raw keys: STR_vWA, VWA, vWA
	if got := req.Query.Markers[0].Values(); got[0] != "19" {
		t.Fatalf("expected first sorted key to win, got %v", got)
	}
}

func TestParseRequestSpeciesScopesMarkers(t *testing.T) {
	req, err := ParseRequest(map[string]string{"species": "Mus musculus", "MOUSE_STR_1-1": "12,13", "TH01": "6"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(req.Query.Markers) != 1 || req.Query.Markers[0].Name != "1-1" {
		t.Fatalf("expected only the mouse marker, got %+v", req.Query.Markers)
	}
}
