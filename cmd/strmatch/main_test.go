package main

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"strmatch/internal/core"
	"strmatch/internal/testhelper"
)

func TestParseMarkerFlags(t *testing.T) {
	tests := []struct {
		name    string
		in      []string
		want    map[string]string
		wantErr string
	}{
		{name: "empty", in: nil, want: map[string]string{}},
		{name: "single", in: []string{"TH01=6,9.3"}, want: map[string]string{"TH01": "6,9.3"}},
		{name: "repeat merges", in: []string{"vWA=17", "vWA=19"}, want: map[string]string{"vWA": "17,19"}},
		{name: "trimmed name", in: []string{" D5S818 =11"}, want: map[string]string{"D5S818": "11"}},
		{name: "empty alleles kept", in: []string{"TPOX="}, want: map[string]string{"TPOX": ""}},
		{name: "missing separator", in: []string{"TH01"}, wantErr: "expected NAME=ALLELES"},
		{name: "missing name", in: []string{"=12"}, wantErr: "expected NAME=ALLELES"},
		{name: "reserved key", in: []string{"species=mouse"}, wantErr: "is a search parameter"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseMarkerFlags(tt.in)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("got %v want %v", got, tt.want)
			}
		})
	}
}

// writeFixtures writes a config pointing at a fresh SQLite catalog plus a
// JSON catalog file, returning their paths.
func writeFixtures(t *testing.T) (configPath, catalogPath string) {
	t.Helper()
	dir := t.TempDir()
	configPath = filepath.Join(dir, "strmatch.yaml")
	cfg := "storage:\n  driver: sqlite\n  sqlite_path: " + filepath.Join(dir, "catalog.db") + "\n" +
		"blob:\n  driver: memory\n" +
		"log:\n  level: error\n"
	if err := os.WriteFile(configPath, []byte(cfg), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	raw, err := json.Marshal(testhelper.Catalog())
	if err != nil {
		t.Fatalf("marshal catalog: %v", err)
	}
	catalogPath = filepath.Join(dir, "catalog.json")
	if err := os.WriteFile(catalogPath, raw, 0o600); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	return configPath, catalogPath
}

func run(t *testing.T, args ...string) (string, string, int) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := cli(args, &stdout, &stderr)
	return stdout.String(), stderr.String(), code
}

func markerArgs() []string {
	names := make([]string, 0, len(testhelper.UnambiguousGenotype))
	for name := range testhelper.UnambiguousGenotype {
		names = append(names, name)
	}
	sort.Strings(names)
	args := make([]string, 0, 2*len(names))
	for _, name := range names {
		args = append(args, "--marker", name+"="+testhelper.UnambiguousGenotype[name])
	}
	return args
}

func TestCLIImportThenSearch(t *testing.T) {
	configPath, catalogPath := writeFixtures(t)

	out, stderr, code := run(t, "--config", configPath, "import", catalogPath)
	if code != 0 {
		t.Fatalf("import exit %d: %s", code, stderr)
	}
	if !strings.Contains(out, "imported") || !strings.Contains(out, testhelper.FixtureRelease) {
		t.Fatalf("unexpected import output %q", out)
	}

	args := append([]string{"--config", configPath, "search", "--description", "cli query"}, markerArgs()...)
	out, stderr, code = run(t, args...)
	if code != 0 {
		t.Fatalf("search exit %d: %s", code, stderr)
	}
	var res core.Search
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decode search output: %v\n%s", err, out)
	}
	if res.Description != "cli query" || res.DatasetRelease != testhelper.FixtureRelease {
		t.Fatalf("unexpected metadata %+v", res)
	}
	if len(res.Results) == 0 || res.Results[0].Accession != testhelper.AccessionUnambiguous {
		t.Fatalf("expected %s first, got %+v", testhelper.AccessionUnambiguous, res.Results)
	}
	if res.Results[0].BestScore != 100 {
		t.Fatalf("expected exact match score 100, got %v", res.Results[0].BestScore)
	}
}

func TestCLISearchCSV(t *testing.T) {
	configPath, catalogPath := writeFixtures(t)
	if _, stderr, code := run(t, "--config", configPath, "import", catalogPath); code != 0 {
		t.Fatalf("import exit %d: %s", code, stderr)
	}
	args := append([]string{"--config", configPath, "search", "--format", "csv"}, markerArgs()...)
	out, stderr, code := run(t, args...)
	if code != 0 {
		t.Fatalf("search exit %d: %s", code, stderr)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) < 4 {
		t.Fatalf("expected metadata, header, query and result rows, got %q", out)
	}
	if !strings.HasPrefix(lines[0], "#Description:") || !strings.HasPrefix(lines[1], "Accession,") {
		t.Fatalf("unexpected csv head %q / %q", lines[0], lines[1])
	}
	if !strings.HasPrefix(lines[3], testhelper.AccessionUnambiguous+",") {
		t.Fatalf("expected best match row, got %q", lines[3])
	}
}

func TestCLIBatchZip(t *testing.T) {
	configPath, catalogPath := writeFixtures(t)
	if _, stderr, code := run(t, "--config", configPath, "import", catalogPath); code != 0 {
		t.Fatalf("import exit %d: %s", code, stderr)
	}
	first := testhelper.Query(testhelper.UnambiguousGenotype, "description", "first")
	second := testhelper.Query(testhelper.UnambiguousGenotype)
	raw, err := json.Marshal([]map[string]string{first, second})
	if err != nil {
		t.Fatalf("marshal batch: %v", err)
	}
	batchPath := filepath.Join(t.TempDir(), "batch.json")
	if err := os.WriteFile(batchPath, raw, 0o600); err != nil {
		t.Fatalf("write batch: %v", err)
	}
	zipPath := filepath.Join(t.TempDir(), "out.zip")
	if _, stderr, code := run(t, "--config", configPath, "batch", batchPath, "--format", "csv", "-o", zipPath); code != 0 {
		t.Fatalf("batch exit %d: %s", code, stderr)
	}
	zr, err := zip.OpenReader(zipPath)
	if err != nil {
		t.Fatalf("open zip: %v", err)
	}
	defer func() { _ = zr.Close() }()
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	if want := []string{"first.csv", "Sample 2.csv"}; !reflect.DeepEqual(names, want) {
		t.Fatalf("zip entries %v want %v", names, want)
	}
}

func TestCLIErrors(t *testing.T) {
	configPath, _ := writeFixtures(t)
	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "unknown command", args: []string{"frobnicate"}, want: "unknown command"},
		{name: "missing config", args: []string{"--config", "/does/not/exist.yaml", "species"}, want: "read config"},
		{name: "bad format", args: []string{"--config", configPath, "search", "--format", "xlsx"}, want: "outputFormat"},
		{name: "bad marker", args: []string{"--config", configPath, "search", "--marker", "TH01"}, want: "NAME=ALLELES"},
		{name: "import needs file", args: []string{"--config", configPath, "import"}, want: "accepts 1 arg"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, stderr, code := run(t, tt.args...)
			if code != 1 {
				t.Fatalf("expected exit 1, got %d", code)
			}
			if !strings.HasPrefix(stderr, "strmatch: ") || !strings.Contains(stderr, tt.want) {
				t.Fatalf("stderr %q missing %q", stderr, tt.want)
			}
		})
	}
}

func TestSpeciesCommand(t *testing.T) {
	configPath, _ := writeFixtures(t)
	out, stderr, code := run(t, "--config", configPath, "species")
	if code != 0 {
		t.Fatalf("species exit %d: %s", code, stderr)
	}
	for _, want := range []string{"NAME", "Homo sapiens", "Mus musculus", "Canis lupus familiaris"} {
		if !strings.Contains(out, want) {
			t.Fatalf("species output missing %q:\n%s", want, out)
		}
	}
}

func TestMainUsesExitFunc(t *testing.T) {
	orig := exitFunc
	origArgs := os.Args
	t.Cleanup(func() {
		exitFunc = orig
		os.Args = origArgs
	})
	got := -1
	exitFunc = func(code int) { got = code }
	os.Args = []string{"strmatch", "--version"}
	main()
	if got != 0 {
		t.Fatalf("expected exit 0, got %d", got)
	}
}

func TestBuildMux(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := core.NewPrometheusMetricsRecorder(reg); err != nil {
		t.Fatalf("register metrics: %v", err)
	}
	api := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusTeapot) })
	srv := httptest.NewServer(buildMux(api, reg))
	t.Cleanup(srv.Close)

	cases := map[string]int{
		"/healthz":        http.StatusOK,
		"/metrics":        http.StatusOK,
		"/debug/vars":     http.StatusOK,
		"/api/v1/species": http.StatusTeapot,
		"/nope":           http.StatusNotFound,
	}
	for path, want := range cases {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		body, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if resp.StatusCode != want {
			t.Fatalf("GET %s: status %d want %d", path, resp.StatusCode, want)
		}
		if path == "/metrics" && !strings.Contains(string(body), "strmatch_search_results") {
			t.Fatalf("metrics output missing histogram:\n%s", body)
		}
	}
}

func TestLogRequestsRecordsStatus(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)
	h := logRequests(logger, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/exports", nil))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status %d", rec.Code)
	}
	if !strings.Contains(buf.String(), "status=202") || !strings.Contains(buf.String(), "path=/api/v1/exports") {
		t.Fatalf("unexpected log line %q", buf.String())
	}
}
