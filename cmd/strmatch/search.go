package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"strmatch/internal/adapters/search"
	"strmatch/internal/core"
)

type searchFlags struct {
	species           string
	algorithm         string
	mode              string
	scoreFilter       int
	minMarkers        int
	maxResults        int
	includeAmelogenin bool
	description       string
	markers           []string
	format            string
}

func newSearchCmd(a *app) *cobra.Command {
	var f searchFlags
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Run one STR similarity search",
		Example: `  strmatch search --marker Amelogenin=X --marker TH01=6,9.3 --marker vWA=17,19
  strmatch search --species mouse --marker 1-1=13 --format csv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			raw, err := f.params()
			if err != nil {
				return err
			}
			format, err := search.OutputFormat(raw)
			if err != nil {
				return err
			}
			store, err := a.openCatalog(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()
			res, err := a.newService(store).Search(cmd.Context(), raw)
			if err != nil {
				return err
			}
			return search.Render(a.stdout, format, res)
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.species, "species", "", "species name or code (default Homo sapiens)")
	fl.StringVar(&f.algorithm, "algorithm", "1", "scoring algorithm: 1|exact, 2|overlap, 3|tolerant")
	fl.StringVar(&f.mode, "mode", "1", "scoring mode: 1|strict, 2|lenient, 3|partial")
	fl.IntVar(&f.scoreFilter, "score-filter", core.DefaultScoreFilter, "minimum score of reported cell lines")
	fl.IntVar(&f.minMarkers, "min-markers", core.DefaultMinMarkers, "minimum called markers of reported profiles")
	fl.IntVar(&f.maxResults, "max-results", core.DefaultMaxResults, "maximum number of reported cell lines")
	fl.BoolVar(&f.includeAmelogenin, "include-amelogenin", false, "score Amelogenin")
	fl.StringVar(&f.description, "description", "", "free-text description echoed in the output")
	fl.StringArrayVar(&f.markers, "marker", nil, "query marker as NAME=ALLELES, repeatable")
	fl.StringVar(&f.format, "format", "json", "output format: json or csv")
	return cmd
}

// params converts flags into the key/value form accepted by core.ParseRequest.
func (f searchFlags) params() (map[string]string, error) {
	raw, err := parseMarkerFlags(f.markers)
	if err != nil {
		return nil, err
	}
	raw[core.KeyAlgorithm] = f.algorithm
	raw[core.KeyScoringMode] = f.mode
	raw[core.KeyScoreFilter] = strconv.Itoa(f.scoreFilter)
	raw[core.KeyMinMarkers] = strconv.Itoa(f.minMarkers)
	raw[core.KeyMaxResults] = strconv.Itoa(f.maxResults)
	raw[core.KeyIncludeAmelogenin] = strconv.FormatBool(f.includeAmelogenin)
	raw[core.KeyDescription] = f.description
	raw[core.KeyOutputFormat] = f.format
	if f.species != "" {
		raw[core.KeySpecies] = f.species
	}
	return raw, nil
}

// parseMarkerFlags splits NAME=ALLELES values. Repeating a name merges its
// alleles; reserved parameter names are rejected.
func parseMarkerFlags(values []string) (map[string]string, error) {
	raw := make(map[string]string, len(values))
	for _, v := range values {
		name, alleles, ok := strings.Cut(v, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --marker %q: expected NAME=ALLELES", v)
		}
		switch core.NormalizeKey(name) {
		case core.KeySpecies, core.KeyAlgorithm, core.KeyScoringMode, core.KeyScoreFilter, core.KeyMinMarkers,
			core.KeyMaxResults, core.KeyIncludeAmelogenin, core.KeyDescription, core.KeyOutputFormat:
			return nil, fmt.Errorf("invalid --marker %q: %s is a search parameter", v, name)
		}
		if prev, seen := raw[name]; seen && prev != "" {
			alleles = prev + "," + alleles
		}
		raw[name] = alleles
	}
	return raw, nil
}
