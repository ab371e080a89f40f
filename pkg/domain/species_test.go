package domain

import (
	"errors"
	"sort"
	"strings"
	"testing"
)

func TestLookupSpecies(t *testing.T) {
	tests := []struct {
		code string
		want string
		ok   bool
	}{
		{"Homo sapiens", SpeciesHuman, true},
		{"homo_sapiens", SpeciesHuman, true},
		{"  HOMO   Sapiens ", SpeciesHuman, true},
		{"human", SpeciesHuman, true},
		{"9606", SpeciesHuman, true},
		{"Mus musculus", SpeciesMouse, true},
		{"MOUSE", SpeciesMouse, true},
		{"canis_lupus_familiaris", SpeciesDog, true},
		{"dog", SpeciesDog, true},
		{"", "", false},
		{"rat", "", false},
	}
	for _, tt := range tests {
		sp, ok := LookupSpecies(tt.code)
		if ok != tt.ok || sp.Name != tt.want {
			t.Fatalf("LookupSpecies(%q) = %q,%v want %q,%v", tt.code, sp.Name, ok, tt.want, tt.ok)
		}
	}
}

func TestAllSpeciesReturnsCopy(t *testing.T) {
	all := AllSpecies()
	if len(all) != 3 || all[0].Name != DefaultSpecies {
		t.Fatalf("unexpected species table %+v", all)
	}
	all[0].Name = "changed"
	if AllSpecies()[0].Name != SpeciesHuman {
		t.Fatal("AllSpecies exposed the built-in table")
	}
}

func TestSpeciesMarkers(t *testing.T) {
	human, _ := LookupSpecies(SpeciesHuman)
	if !human.Accepts("vWA") || !human.Accepts("SE33") || human.Accepts("VWA") || human.Accepts("1-1") {
		t.Fatal("unexpected Accepts result for human markers")
	}
	markers := human.Markers()
	if len(markers) != len(human.DefaultMarkers)+len(human.OptionalMarkers) || !sort.StringsAreSorted(markers) {
		t.Fatalf("markers must be the sorted union, got %v", markers)
	}
	mouse, _ := LookupSpecies(SpeciesMouse)
	if mouse.Accepts(AmelogeninMarker) {
		t.Fatal("mouse profiles carry no Amelogenin")
	}
}

func TestDecodeCatalog(t *testing.T) {
	in := `{"release":"52","records":[
		{"accession":"CVCL_0001","name":"A","species":"human","markers":[{"name":"TH01","alternatives":[{"alleles":["6","9.3"]}]}]},
		{"accession":"CVCL_0002","name":"B","species":"mouse","markers":[]}
	]}`
	snapshot, err := DecodeCatalog(strings.NewReader(in))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snapshot.Release != "52" || len(snapshot.Records) != 2 {
		t.Fatalf("unexpected snapshot %+v", snapshot)
	}
	if snapshot.Records[0].Species != SpeciesHuman || snapshot.Records[1].Species != SpeciesMouse {
		t.Fatalf("species codes not canonicalized: %+v", snapshot.Records)
	}
	if id := snapshot.Records[0].Identity(); id.Accession != "CVCL_0001" || id.Profiles != nil {
		t.Fatalf("unexpected identity %+v", id)
	}
}

func TestDecodeCatalogRejects(t *testing.T) {
	tests := map[string]string{
		"not json":          `[`,
		"missing accession": `{"records":[{"species":"human"}]}`,
		"duplicate":         `{"records":[{"accession":"A","species":"human"},{"accession":"A","species":"human"}]}`,
		"unknown species":   `{"records":[{"accession":"A","species":"rat"}]}`,
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := DecodeCatalog(strings.NewReader(in)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
	_, err := DecodeCatalog(strings.NewReader(`{"records":[{"accession":"A","species":"rat"}]}`))
	var unknown ErrUnknownSpecies
	if !errors.As(err, &unknown) || unknown.Code != "rat" {
		t.Fatalf("expected ErrUnknownSpecies, got %v", err)
	}
}

func TestReportedSkipsEmptyAlternatives(t *testing.T) {
	m := ReferenceMarker{Name: "TH01", Alternatives: []AlleleSet{{Alleles: []string{""}}, {Alleles: []string{"6"}}, {}}}
	if got := m.Reported(); len(got) != 1 || got[0].Alleles[0] != "6" {
		t.Fatalf("unexpected reported alternatives %+v", got)
	}
}

func TestErrorMessages(t *testing.T) {
	if got := (ErrInvalidParameter{Name: "maxResults", Value: "-1"}).Error(); got != `invalid parameter maxResults="-1"` {
		t.Fatalf("unexpected message %q", got)
	}
	if got := (ErrInvalidParameter{Name: "algorithm", Value: "9", Reason: "expected 1, 2 or 3"}).Error(); !strings.HasSuffix(got, ": expected 1, 2 or 3") {
		t.Fatalf("unexpected message %q", got)
	}
	if got := (ErrUnknownSpecies{Code: "rat"}).Error(); got != `unknown species "rat"` {
		t.Fatalf("unexpected message %q", got)
	}
}
