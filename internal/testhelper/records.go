// Package testhelper provides reference-record fixtures shared by package tests.
package testhelper

import (
	"strings"

	"strmatch/pkg/domain"
)

// Fixture accessions.
const (
	AccessionUnambiguous = "CVCL_X001"
	AccessionSixteen     = "CVCL_X016"
	AccessionOneFifty    = "CVCL_X150"
	AccessionSibling     = "CVCL_X002"
	AccessionSparse      = "CVCL_X003"
	AccessionMouse       = "CVCL_M001"
	AccessionDog         = "CVCL_D001"
	FixtureRelease       = "fixture-1"
)

// Alt builds an alternative from a comma-separated allele list and optional sources.
func Alt(alleles string, sources ...string) domain.AlleleSet {
	set := domain.AlleleSet{Sources: sources}
	for _, a := range strings.Split(alleles, ",") {
		if a = strings.TrimSpace(a); a != "" {
			set.Alleles = append(set.Alleles, a)
		}
	}
	return set
}

// Marker builds a reference marker whose alternatives are comma-separated allele lists.
func Marker(name string, alts ...string) domain.ReferenceMarker {
	m := domain.ReferenceMarker{Name: name}
	for _, a := range alts {
		m.Alternatives = append(m.Alternatives, Alt(a))
	}
	return m
}

// Record builds a reference record.
func Record(accession, name, species string, markers ...domain.ReferenceMarker) domain.ReferenceRecord {
	return domain.ReferenceRecord{Accession: accession, Name: name, Species: species, Markers: markers}
}

// UnambiguousGenotype is the single profile of the unambiguous fixture as
// marker name to comma-separated alleles.
var UnambiguousGenotype = map[string]string{
	"Amelogenin": "X",
	"CSF1PO":     "10,12",
	"D13S317":    "11,12",
	"D16S539":    "11,12",
	"D18S51":     "13",
	"D21S11":     "29,30",
	"D3S1358":    "15,17",
	"D5S818":     "11,12",
	"D7S820":     "10",
	"D8S1179":    "13,14",
	"FGA":        "21,24",
	"Penta_D":    "9,13",
	"Penta_E":    "7,17",
	"TH01":       "6,9.3",
	"TPOX":       "8,9",
	"vWA":        "17,19",
}

var unambiguousOrder = []string{
	"Amelogenin", "CSF1PO", "D13S317", "D16S539", "D18S51", "D21S11", "D3S1358", "D5S818",
	"D7S820", "D8S1179", "FGA", "Penta_D", "Penta_E", "TH01", "TPOX", "vWA",
}

// Unambiguous resolves to exactly one candidate.
func Unambiguous() domain.ReferenceRecord {
	markers := make([]domain.ReferenceMarker, 0, len(unambiguousOrder)+1)
	for _, name := range unambiguousOrder {
		markers = append(markers, Marker(name, UnambiguousGenotype[name]))
	}
	// reported locus without a result stays absent from the candidate
	markers = append(markers, Marker("SE33"))
	return Record(AccessionUnambiguous, "Fixture-1", domain.SpeciesHuman, markers...)
}

// Sibling shares most of the unambiguous genotype but differs at four loci.
func Sibling() domain.ReferenceRecord {
	return Record(AccessionSibling, "Fixture-1/Sub", domain.SpeciesHuman,
		Marker("Amelogenin", "X"),
		Marker("CSF1PO", "10,12"),
		Marker("D13S317", "11,12"),
		Marker("D16S539", "11,12"),
		Marker("D18S51", "13,14"),
		Marker("D21S11", "29,30"),
		Marker("D3S1358", "15,17"),
		Marker("D5S818", "11,12"),
		Marker("D7S820", "10,11"),
		Marker("D8S1179", "13,14"),
		Marker("FGA", "21,24"),
		Marker("Penta_D", "9,13"),
		Marker("Penta_E", "7,17"),
		Marker("TH01", "6,9"),
		Marker("TPOX", "8,9"),
		Marker("vWA", "16,19"),
	)
}

// Sparse carries only a handful of markers, all identical to the unambiguous genotype.
func Sparse() domain.ReferenceRecord {
	return Record(AccessionSparse, "Fixture-Sparse", domain.SpeciesHuman,
		Marker("D3S1358", "15,17"),
		Marker("TH01", "6,9.3"),
		Marker("vWA", "17,19"),
		Marker("FGA", "21,24"),
	)
}

// Sixteen resolves to exactly 16 candidates: four markers with two alternatives each.
func Sixteen() domain.ReferenceRecord {
	rec := Record(AccessionSixteen, "Fixture-16", domain.SpeciesHuman,
		Marker("Amelogenin", "X,Y"),
		Marker("CSF1PO", "11,12"),
		Marker("D13S317", "8,11"),
		Marker("D16S539", "9,13"),
		Marker("D18S51", "15,17"),
		Marker("D21S11", "28,31.2"),
		Marker("D3S1358", "14,16"),
		Marker("D5S818", "11,12", "12"),
		Marker("D7S820", "9,10", "10"),
		Marker("D8S1179", "12,13"),
		Marker("FGA", "20,22"),
		Marker("TH01", "7", "7,9"),
		Marker("TPOX", "8,11"),
		Marker("vWA", "16,18", "16"),
	)
	rec.Markers[7].Alternatives[0].Sources = []string{"ATCC", "DSMZ"}
	rec.Markers[7].Alternatives[1].Sources = []string{"JCRB"}
	return rec
}

// OneFifty resolves to exactly 150 candidates: alternatives 2 x 3 x 5 x 5.
func OneFifty() domain.ReferenceRecord {
	rec := Record(AccessionOneFifty, "Fixture-150", domain.SpeciesHuman,
		Marker("Amelogenin", "X"),
		Marker("CSF1PO", "9,10"),
		Marker("D13S317", "9,12", "12"),
		Marker("D16S539", "10,11", "11", "10"),
		Marker("D18S51", "12,16"),
		Marker("D21S11", "27,30", "27", "30", "27,29", "29,30"),
		Marker("D3S1358", "16"),
		Marker("D5S818", "10,13"),
		Marker("D7S820", "8,12"),
		Marker("D8S1179", "10,14"),
		Marker("FGA", "19,23", "19", "23", "19,22", "22,23"),
		Marker("TH01", "6,8"),
		Marker("TPOX", "9,10"),
		Marker("vWA", "15,18"),
	)
	rec.Problematic = true
	rec.Problem = "Contaminated. Shown to be a fixture derivative."
	return rec
}

// Mouse is a mouse reference record.
func Mouse() domain.ReferenceRecord {
	return Record(AccessionMouse, "Fixture-Mouse", domain.SpeciesMouse,
		Marker("1-1", "12,13"),
		Marker("1-2", "17"),
		Marker("2-1", "9,10"),
		Marker("3-2", "14"),
		Marker("4-2", "20.3"),
		Marker("5-5", "15,16"),
		Marker("6-4", "18"),
		Marker("6-7", "12"),
		Marker("7-1", "26"),
		Marker("8-1", "16"),
	)
}

// Dog is a dog reference record.
func Dog() domain.ReferenceRecord {
	return Record(AccessionDog, "Fixture-Dog", domain.SpeciesDog,
		Marker("Amelogenin", "X"),
		Marker("FHC2010", "235,239"),
		Marker("FHC2054", "152,168"),
		Marker("FHC2079", "275"),
		Marker("PEZ1", "115,119"),
		Marker("PEZ3", "119,128"),
		Marker("PEZ5", "107"),
		Marker("PEZ6", "179,183"),
		Marker("PEZ8", "231,239"),
		Marker("PEZ12", "266,278"),
	)
}

// Catalog returns every fixture record in catalog order.
func Catalog() domain.CatalogSnapshot {
	return domain.CatalogSnapshot{
		Release: FixtureRelease,
		Records: []domain.ReferenceRecord{
			Unambiguous(), Sixteen(), OneFifty(), Sibling(), Sparse(), Mouse(), Dog(),
		},
	}
}

// Query returns search parameters carrying genotype with the given extra parameters.
func Query(genotype map[string]string, extra ...string) map[string]string {
	params := make(map[string]string, len(genotype)+len(extra)/2)
	for k, v := range genotype {
		params[k] = v
	}
	for i := 0; i+1 < len(extra); i += 2 {
		params[extra[i]] = extra[i+1]
	}
	return params
}
