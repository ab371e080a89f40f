// Package core runs STR similarity searches over a reference catalog.
package core

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"strmatch/internal/scoring"
	"strmatch/pkg/domain"
)

// Version is reported as the tool version of every search.
var Version = "1.0.0"

// Search is the outcome of one search request.
type Search struct {
	ID             string            `json:"id"`
	Description    string            `json:"description"`
	DatasetRelease string            `json:"datasetRelease"`
	RunOn          time.Time         `json:"runOn"`
	ToolVersion    string            `json:"toolVersion"`
	Parameters     Parameters        `json:"parameters"`
	Results        []domain.CellLine `json:"results"`
}

// Service orchestrates parameter parsing, catalog scans, scoring and ranking.
// It is safe for concurrent use; every request works on private copies of
// the catalog's cell lines.
type Service struct {
	catalog     Catalog
	logger      *slog.Logger
	metrics     MetricsRecorder
	tracer      Tracer
	parallelism int
	now         func() time.Time
	newID       func() string
}

// Option customizes a Service.
type Option func(*Service)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithTracer sets the tracer.
func WithTracer(t Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithParallelism bounds concurrent scoring per request; n <= 0 uses GOMAXPROCS.
func WithParallelism(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.parallelism = n
		}
	}
}

// WithClock overrides the time source used for RunOn.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator overrides search ID generation.
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// NewService returns a service searching catalog.
func NewService(catalog Catalog, opts ...Option) *Service {
	s := &Service{
		catalog:     catalog,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		metrics:     noopMetrics{},
		tracer:      noopTracer{},
		parallelism: runtime.GOMAXPROCS(0),
		now:         time.Now,
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Species lists the supported species.
func (s *Service) Species() []domain.Species {
	return domain.AllSpecies()
}

// Search parses raw parameters and runs one search.
func (s *Service) Search(ctx context.Context, raw map[string]string) (result Search, err error) {
	ctx, span := s.tracer.Start(ctx, OpSearch)
	start := time.Now()
	defer func() {
		span.End(err)
		s.metrics.Observe(ctx, OpSearch, err == nil, time.Since(start))
	}()
	req, err := ParseRequest(raw)
	if err != nil {
		return Search{}, err
	}
	return s.run(ctx, req)
}

// Batch runs every request in order. All requests are validated first; a
// single invalid request fails the batch before any catalog scan. Requests
// without a description are labelled "Sample N", N being 1-based.
func (s *Service) Batch(ctx context.Context, raws []map[string]string) (results []Search, err error) {
	ctx, span := s.tracer.Start(ctx, OpBatch)
	start := time.Now()
	defer func() {
		span.End(err)
		s.metrics.Observe(ctx, OpBatch, err == nil, time.Since(start))
	}()

	reqs := make([]Request, len(raws))
	for i, raw := range raws {
		req, err := ParseRequest(raw)
		if err != nil {
			return nil, fmt.Errorf("sample %d: %w", i+1, err)
		}
		if !hasKey(raw, KeyDescription) {
			req.Description = fmt.Sprintf("Sample %d", i+1)
		}
		reqs[i] = req
	}
	results = make([]Search, 0, len(reqs))
	for _, req := range reqs {
		res, err := s.run(ctx, req)
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, nil
}

func hasKey(raw map[string]string, key string) bool {
	for k := range raw {
		if NormalizeKey(k) == key {
			return true
		}
	}
	return false
}

func (s *Service) run(ctx context.Context, req Request) (Search, error) {
	lines, err := s.catalog.CellLines(ctx, req.Species)
	if err != nil {
		return Search{}, fmt.Errorf("load catalog: %w", err)
	}

	accepted := make([]*domain.CellLine, len(lines))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallelism)
	for i := range lines {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			cl := lines[i].Clone()
			for j := range cl.Profiles {
				cl.Profiles[j].Score = scoring.ComputeScore(req.Algorithm, req.ScoringMode, &req.Query, &cl.Profiles[j], req.IncludeAmelogenin)
			}
			ReduceProfiles(&cl)
			if accept(req, cl) {
				accepted[i] = &cl
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Search{}, err
	}

	results := make([]domain.CellLine, 0)
	for _, cl := range accepted {
		if cl != nil {
			results = append(results, *cl)
		}
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].BestScore > results[j].BestScore
	})
	if len(results) > req.MaxResults {
		results = results[:req.MaxResults]
	}

	params := req.Parameters
	params.Markers = make([]domain.Marker, len(req.Query.Markers))
	for i, m := range req.Query.Markers {
		m = m.Clone()
		m.ClearAnnotations()
		params.Markers[i] = m
	}
	sort.Sort(domain.MarkerCollection(params.Markers))

	if ro, ok := s.metrics.(resultObserver); ok {
		ro.ObserveResults(len(results))
	}
	s.logger.DebugContext(ctx, "search completed",
		"species", req.Species,
		"algorithm", req.Algorithm,
		"mode", req.ScoringMode,
		"markers", len(params.Markers),
		"scanned", len(lines),
		"results", len(results))

	return Search{
		ID:             s.newID(),
		Description:    req.Description,
		DatasetRelease: s.catalog.Release(),
		RunOn:          s.now().UTC(),
		ToolVersion:    Version,
		Parameters:     params,
		Results:        results,
	}, nil
}

func accept(req Request, cl domain.CellLine) bool {
	best, ok := cl.Best()
	if !ok {
		return false
	}
	n := best.MarkerNumber
	if req.IncludeAmelogenin {
		n--
	}
	return cl.BestScore >= float64(req.ScoreFilter) && n >= req.MinMarkers
}
