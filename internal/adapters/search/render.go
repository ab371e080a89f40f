// Package search exposes STR searches over HTTP, renders search results as
// JSON, CSV or zipped CSV, and runs asynchronous exports into blob storage.
package search

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"strmatch/internal/core"
	"strmatch/pkg/domain"
)

// Format is a rendering of search results.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// ContentType returns the MIME type of a single rendered search.
func (f Format) ContentType() string {
	if f == FormatCSV {
		return "text/csv"
	}
	return "application/json"
}

// OutputFormat reads the outputFormat request key. It defaults to JSON. When
// several raw keys normalize to outputFormat the first in sorted order wins,
// as for every other search parameter.
func OutputFormat(raw map[string]string) (Format, error) {
	f, _, err := requestFormat(raw)
	return f, err
}

// BatchOutputFormat applies OutputFormat to every request; the last request
// naming a format decides.
func BatchOutputFormat(raws []map[string]string) (Format, error) {
	format := FormatJSON
	for _, raw := range raws {
		f, named, err := requestFormat(raw)
		if err != nil {
			return "", err
		}
		if named {
			format = f
		}
	}
	return format, nil
}

func requestFormat(raw map[string]string) (Format, bool, error) {
	keys := make([]string, 0, len(raw))
	for k := range raw {
		if core.NormalizeKey(k) == core.KeyOutputFormat {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return FormatJSON, false, nil
	}
	sort.Strings(keys)
	f, err := parseFormat(raw[keys[0]])
	return f, true, err
}

func parseFormat(v string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(v))); f {
	case FormatJSON, FormatCSV:
		return f, nil
	case "":
		return FormatJSON, nil
	case "xlsx":
		return "", domain.ErrInvalidParameter{Name: "outputFormat", Value: v, Reason: "xlsx not supported, use json or csv"}
	default:
		return "", domain.ErrInvalidParameter{Name: "outputFormat", Value: v, Reason: "expected json or csv"}
	}
}

// RenderJSON writes one search as a JSON document.
func RenderJSON(w io.Writer, s core.Search) error {
	return json.NewEncoder(w).Encode(s)
}

// RenderBatchJSON writes searches as a JSON array.
func RenderBatchJSON(w io.Writer, searches []core.Search) error {
	if searches == nil {
		searches = []core.Search{}
	}
	return json.NewEncoder(w).Encode(searches)
}

// Metadata returns the comment line heading a CSV rendering.
func Metadata(s core.Search) string {
	p := s.Parameters
	return fmt.Sprintf("#Description: '%s';Data set: 'Cellosaurus release %s';Run on: '%s';Tool version: '%s';"+
		"Algorithm: '%d';Scoring mode: '%d';Score filter: '%d';Max results: '%d';Include Amelogenin: '%t'",
		s.Description, s.DatasetRelease, s.RunOn.UTC().Format(time.RFC3339), s.ToolVersion,
		p.Algorithm.Index(), p.ScoringMode.Index(), p.ScoreFilter, p.MaxResults, p.IncludeAmelogenin)
}

// RenderCSV writes the metadata line, a header row, the query row and one row
// per result. Marker columns follow the species' marker order, then any
// other marker seen in the query or results, sorted.
func RenderCSV(w io.Writer, s core.Search) error {
	if _, err := io.WriteString(w, Metadata(s)+"\n"); err != nil {
		return err
	}
	columns := markerColumns(s)
	cw := csv.NewWriter(w)
	header := append([]string{"Accession", "Name", "Species", "Problematic", "Score", "Markers"}, columns...)
	if err := cw.Write(header); err != nil {
		return err
	}
	query := domain.NewProfile(s.Parameters.Markers...)
	if err := cw.Write(row("", "Query", s.Parameters.Species, "", "", query, columns)); err != nil {
		return err
	}
	for _, cl := range s.Results {
		best, _ := cl.Best()
		problematic := "false"
		if cl.Problematic {
			problematic = "true"
			if cl.Problem != "" {
				problematic = cl.Problem
			}
		}
		score := strconv.FormatFloat(cl.BestScore, 'f', 2, 64)
		if err := cw.Write(row(cl.Accession, cl.Name, cl.Species, problematic, score, best, columns)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func row(accession, name, species, problematic, score string, p domain.Profile, columns []string) []string {
	out := []string{accession, name, species, problematic, score, strconv.Itoa(p.MarkerNumber)}
	index := p.Index()
	for _, c := range columns {
		if m, ok := index[c]; ok {
			out = append(out, strings.Join(m.Values(), ","))
		} else {
			out = append(out, "")
		}
	}
	return out
}

func markerColumns(s core.Search) []string {
	seen := map[string]bool{}
	var columns []string
	if sp, ok := domain.LookupSpecies(s.Parameters.Species); ok {
		for _, name := range sp.DefaultMarkers {
			seen[name] = true
			columns = append(columns, name)
		}
	}
	var extra []string
	add := func(markers []domain.Marker) {
		for _, m := range markers {
			if !seen[m.Name] {
				seen[m.Name] = true
				extra = append(extra, m.Name)
			}
		}
	}
	add(s.Parameters.Markers)
	for _, cl := range s.Results {
		if best, ok := cl.Best(); ok {
			add(best.Markers)
		}
	}
	sort.Strings(extra)
	return append(columns, extra...)
}

// RenderBatchZip writes one CSV file per search into a zip archive. Entries
// are named after the search description, falling back to "Sample N"; a name
// already in the archive gets the first free "_N" suffix.
func RenderBatchZip(w io.Writer, searches []core.Search) error {
	zw := zip.NewWriter(w)
	used := map[string]bool{}
	for i, s := range searches {
		name := entryName(s.Description, i)
		for n, base := 2, name; used[name]; n++ {
			name = fmt.Sprintf("%s_%d", base, n)
		}
		used[name] = true
		f, err := zw.CreateHeader(&zip.FileHeader{Name: name + ".csv", Method: zip.Deflate, Modified: s.RunOn})
		if err != nil {
			return err
		}
		if err := RenderCSV(f, s); err != nil {
			return fmt.Errorf("render %s: %w", name, err)
		}
	}
	return zw.Close()
}

func entryName(description string, i int) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, strings.TrimSpace(description))
	if name == "" || name == "." || name == ".." {
		name = fmt.Sprintf("Sample %d", i+1)
	}
	return name
}

// Render writes a single search in format f.
func Render(w io.Writer, f Format, s core.Search) error {
	if f == FormatCSV {
		return RenderCSV(w, s)
	}
	return RenderJSON(w, s)
}

// RenderBatch writes searches in format f: a JSON array, or a zip of CSVs.
func RenderBatch(w io.Writer, f Format, searches []core.Search) error {
	if f == FormatCSV {
		return RenderBatchZip(w, searches)
	}
	return RenderBatchJSON(w, searches)
}

// BatchContentType returns the MIME type of a rendered batch.
func BatchContentType(f Format) string {
	if f == FormatCSV {
		return "application/zip"
	}
	return "application/json"
}

func renderBytes(render func(io.Writer) error) ([]byte, error) {
	var buf bytes.Buffer
	if err := render(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
