package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"strmatch/internal/core"
	"strmatch/pkg/domain"
)

// Service is the search surface the HTTP handler needs.
type Service interface {
	Search(ctx context.Context, raw map[string]string) (core.Search, error)
	Batch(ctx context.Context, raws []map[string]string) ([]core.Search, error)
	Species() []domain.Species
}

// Handler serves the search API under /api/v1.
type Handler struct {
	Service Service
	Exports ExportScheduler
	Logger  *slog.Logger
}

// NewHandler constructs a search HTTP handler.
func NewHandler(svc Service, exports ExportScheduler, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Handler{Service: svc, Exports: exports, Logger: logger}
}

const maxBodyBytes = 8 << 20

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.Service == nil {
		writeError(w, http.StatusInternalServerError, "search service not configured")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	path := strings.TrimSuffix(r.URL.Path, "/")
	switch {
	case path == "/api/v1/search":
		if r.Method != http.MethodGet && r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		h.handleSearch(w, r)
	case path == "/api/v1/batch":
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		h.handleBatch(w, r)
	case path == "/api/v1/species":
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"species": h.Service.Species()})
	case strings.HasPrefix(path, "/api/v1/exports"):
		if h.Exports == nil {
			http.NotFound(w, r)
			return
		}
		h.handleExports(w, r, path)
	default:
		http.NotFound(w, r)
	}
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	raw, err := requestParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	format, err := OutputFormat(raw)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.Service.Search(r.Context(), raw)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := Render(&buf, format, res); err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	if format == FormatCSV {
		w.Header().Set("Content-Disposition", `attachment; filename="STR_Results.csv"`)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (h *Handler) handleBatch(w http.ResponseWriter, r *http.Request) {
	raws, err := DecodeBatch(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	format, err := BatchOutputFormat(raws)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	results, err := h.Service.Batch(r.Context(), raws)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := RenderBatch(&buf, format, results); err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", BatchContentType(format))
	if format == FormatCSV {
		w.Header().Set("Content-Disposition", `attachment; filename="STR_Results.zip"`)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

type exportRequest struct {
	Requests    []map[string]any `json:"requests"`
	Formats     []string         `json:"formats"`
	RequestedBy string           `json:"requested_by"`
	Reason      string           `json:"reason"`
}

func (h *Handler) handleExports(w http.ResponseWriter, r *http.Request, path string) {
	if path == "/api/v1/exports" {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		h.handleExportCreate(w, r)
		return
	}
	rest, ok := strings.CutPrefix(path, "/api/v1/exports/")
	parts := strings.Split(rest, "/")
	if !ok || parts[0] == "" || (len(parts) != 1 && (len(parts) != 3 || parts[1] != "artifacts")) {
		http.NotFound(w, r)
		return
	}
	id := parts[0]
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if len(parts) == 3 {
		h.handleArtifact(w, r, id, parts[2])
		return
	}
	record, found := h.Exports.GetExport(id)
	if !found {
		writeError(w, http.StatusNotFound, "export not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"export": record})
}

// handleArtifact streams a stored export rendering.
func (h *Handler) handleArtifact(w http.ResponseWriter, r *http.Request, id, rawFormat string) {
	f, err := parseFormat(rawFormat)
	if err != nil || rawFormat == "" {
		writeError(w, http.StatusNotFound, "artifact not found")
		return
	}
	art, payload, err := h.Exports.Artifact(r.Context(), id, f)
	switch {
	case errors.Is(err, ErrExportNotFound), errors.Is(err, ErrArtifactNotFound):
		writeError(w, http.StatusNotFound, err.Error())
		return
	case errors.Is(err, ErrExportPending):
		writeError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		h.fail(w, r, err)
		return
	}
	contentType := art.ContentType
	if contentType == "" {
		contentType = BatchContentType(f)
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", ArtifactFilename(f)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

func (h *Handler) handleExportCreate(w http.ResponseWriter, r *http.Request) {
	var req exportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid export request payload")
		return
	}
	raws, err := flattenAll(req.Requests)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	formats := make([]Format, len(req.Formats))
	for i, f := range req.Formats {
		formats[i] = Format(f)
	}
	record, err := h.Exports.EnqueueExport(r.Context(), ExportInput{
		Requests:    raws,
		Formats:     formats,
		RequestedBy: req.RequestedBy,
		Reason:      req.Reason,
	})
	switch {
	case errors.Is(err, ErrQueueFull):
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"export": record})
}

// fail maps parameter errors to 400 and everything else to 500.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if IsClientError(err) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.WarnContext(r.Context(), "search request failed", "path", r.URL.Path, "error", err)
	writeError(w, http.StatusInternalServerError, err.Error())
}

// IsClientError reports whether err was caused by request parameters.
func IsClientError(err error) bool {
	var invalid domain.ErrInvalidParameter
	var species domain.ErrUnknownSpecies
	return errors.As(err, &invalid) || errors.As(err, &species)
}

// requestParams collects search parameters from the query string and, for
// POST, either a JSON object body or a form body. Body values win.
func requestParams(r *http.Request) (map[string]string, error) {
	raw := make(map[string]string)
	for k, v := range r.URL.Query() {
		if len(v) > 0 {
			raw[k] = v[0]
		}
	}
	if r.Method != http.MethodPost {
		return raw, nil
	}
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		var obj map[string]any
		if err := json.NewDecoder(r.Body).Decode(&obj); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("invalid search payload: %v", err)
		}
		flat, err := flatten(obj)
		if err != nil {
			return nil, err
		}
		for k, v := range flat {
			raw[k] = v
		}
		return raw, nil
	}
	if err := r.ParseForm(); err != nil {
		return nil, fmt.Errorf("invalid form payload: %v", err)
	}
	for k, v := range r.PostForm {
		if len(v) > 0 {
			raw[k] = v[0]
		}
	}
	return raw, nil
}

// DecodeBatch reads a JSON array of search objects into raw parameter maps.
func DecodeBatch(r io.Reader) ([]map[string]string, error) {
	var objects []map[string]any
	if err := json.NewDecoder(r).Decode(&objects); err != nil {
		return nil, fmt.Errorf("invalid batch payload: expected a JSON array of objects: %v", err)
	}
	return flattenAll(objects)
}

func flattenAll(objects []map[string]any) ([]map[string]string, error) {
	raws := make([]map[string]string, len(objects))
	for i, obj := range objects {
		flat, err := flatten(obj)
		if err != nil {
			return nil, fmt.Errorf("sample %d: %w", i+1, err)
		}
		raws[i] = flat
	}
	return raws, nil
}

// flatten converts a decoded JSON object into string parameters. Arrays of
// scalars become comma-separated allele lists.
func flatten(obj map[string]any) (map[string]string, error) {
	out := make(map[string]string, len(obj))
	for k, v := range obj {
		s, err := scalar(v)
		if err != nil {
			return nil, fmt.Errorf("parameter %s: %w", k, err)
		}
		out[k] = s
	}
	return out, nil
}

func scalar(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	case bool:
		return strconv.FormatBool(t), nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case []any:
		parts := make([]string, 0, len(t))
		for _, e := range t {
			if _, nested := e.([]any); nested {
				return "", errors.New("nested arrays are not supported")
			}
			s, err := scalar(e)
			if err != nil {
				return "", err
			}
			parts = append(parts, s)
		}
		return strings.Join(parts, ","), nil
	default:
		return "", fmt.Errorf("unsupported value of type %T", v)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}
