package search

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"path"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"strmatch/internal/blob"
	"strmatch/internal/core"
	"strmatch/pkg/domain"
)

// ExportStatus describes the lifecycle stage of an export request.
type ExportStatus string

const (
	ExportStatusQueued    ExportStatus = "queued"
	ExportStatusRunning   ExportStatus = "running"
	ExportStatusSucceeded ExportStatus = "succeeded"
	ExportStatusFailed    ExportStatus = "failed"
)

// ErrQueueFull is returned when no more exports can be queued.
var ErrQueueFull = errors.New("export queue full")

var (
	// ErrExportNotFound is returned for unknown export ids.
	ErrExportNotFound = errors.New("export not found")
	// ErrExportPending is returned when artifacts are requested before the
	// export has succeeded.
	ErrExportPending = errors.New("export has not succeeded")
	// ErrArtifactNotFound is returned when an export has no artifact in the
	// requested format.
	ErrArtifactNotFound = errors.New("artifact not found")
)

// DefaultQueueSize bounds pending exports when no size is configured.
const DefaultQueueSize = 32

// ExportArtifact captures a stored rendering of an export.
type ExportArtifact struct {
	Key         string            `json:"key"`
	Format      Format            `json:"format"`
	ContentType string            `json:"content_type"`
	SizeBytes   int64             `json:"size_bytes"`
	URL         string            `json:"url,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

// ExportRecord tracks an export request and its artifacts.
type ExportRecord struct {
	ID          string           `json:"id"`
	Samples     int              `json:"samples"`
	Formats     []Format         `json:"formats"`
	Status      ExportStatus     `json:"status"`
	Error       string           `json:"error,omitempty"`
	SearchIDs   []string         `json:"search_ids,omitempty"`
	Artifacts   []ExportArtifact `json:"artifacts,omitempty"`
	RequestedBy string           `json:"requested_by,omitempty"`
	Reason      string           `json:"reason,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
}

// ExportInput is an enqueue request: a batch of raw search requests and the
// renderings to store.
type ExportInput struct {
	Requests    []map[string]string
	Formats     []Format
	RequestedBy string
	Reason      string
}

// ExportScheduler queues exports and exposes their status.
type ExportScheduler interface {
	EnqueueExport(ctx context.Context, input ExportInput) (ExportRecord, error)
	GetExport(id string) (ExportRecord, bool)
	Artifact(ctx context.Context, id string, f Format) (ExportArtifact, []byte, error)
}

// Searcher runs batches of searches.
type Searcher interface {
	Batch(ctx context.Context, raws []map[string]string) ([]core.Search, error)
}

// ObjectStore persists export artifacts.
type ObjectStore interface {
	// Put stores a new immutable object and fails if key exists.
	Put(ctx context.Context, key string, payload []byte, contentType string, metadata map[string]string) (ExportArtifact, error)
	// Get returns the artifact metadata and payload.
	Get(ctx context.Context, key string) (ExportArtifact, []byte, error)
	// Delete removes the object and reports whether it existed.
	Delete(ctx context.Context, key string) (bool, error)
	// List returns artifacts whose keys start with prefix.
	List(ctx context.Context, prefix string) ([]ExportArtifact, error)
}

// AuditLogger records export audit entries.
type AuditLogger interface {
	Record(ctx context.Context, entry AuditEntry)
}

// AuditEntry captures one export state transition.
type AuditEntry struct {
	ID         string            `json:"id"`
	ExportID   string            `json:"export_id"`
	Action     string            `json:"action"`
	Actor      string            `json:"actor"`
	Status     ExportStatus      `json:"status"`
	Reason     string            `json:"reason,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

const auditAction = "search_export"

// Worker executes exports asynchronously on a single goroutine.
type Worker struct {
	searcher Searcher
	store    ObjectStore
	audit    AuditLogger
	logger   *slog.Logger

	queue chan exportTask
	mu    sync.RWMutex
	jobs  map[string]*ExportRecord

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type exportTask struct {
	id       string
	requests []map[string]string
	// ready is closed once the queued audit entry is written.
	ready chan struct{}
}

// WorkerOption customizes a Worker.
type WorkerOption func(*Worker)

// WithQueueSize bounds the number of pending exports.
func WithQueueSize(n int) WorkerOption {
	return func(w *Worker) {
		if n > 0 {
			w.queue = make(chan exportTask, n)
		}
	}
}

// WithWorkerLogger sets the logger used for export failures.
func WithWorkerLogger(l *slog.Logger) WorkerOption {
	return func(w *Worker) {
		if l != nil {
			w.logger = l
		}
	}
}

// NewWorker constructs an export worker. audit may be nil.
func NewWorker(s Searcher, store ObjectStore, audit AuditLogger, opts ...WorkerOption) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	w := &Worker{
		searcher: s,
		store:    store,
		audit:    audit,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		queue:    make(chan exportTask, DefaultQueueSize),
		jobs:     make(map[string]*ExportRecord),
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start begins processing export requests.
func (w *Worker) Start() {
	w.wg.Add(1)
	go w.loop()
}

// Stop signals the worker to halt and waits for the running export to finish.
func (w *Worker) Stop(ctx context.Context) error {
	w.cancel()
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case task := <-w.queue:
			w.process(task)
		}
	}
}

// EnqueueExport validates the requests and schedules an export. Parameter
// errors are returned synchronously so callers can reject the request.
func (w *Worker) EnqueueExport(ctx context.Context, input ExportInput) (ExportRecord, error) {
	if w.searcher == nil {
		return ExportRecord{}, errors.New("export searcher not configured")
	}
	if len(input.Requests) == 0 {
		return ExportRecord{}, errors.New("at least one search request required")
	}
	for i, raw := range input.Requests {
		if _, err := core.ParseRequest(raw); err != nil {
			return ExportRecord{}, fmt.Errorf("sample %d: %w", i+1, err)
		}
	}
	formats := input.Formats
	if len(formats) == 0 {
		formats = []Format{FormatJSON, FormatCSV}
	}
	uniq := make([]Format, 0, len(formats))
	seen := make(map[Format]struct{})
	for _, raw := range formats {
		f, err := parseFormat(string(raw))
		if err != nil || raw == "" {
			return ExportRecord{}, domain.ErrInvalidParameter{Name: "formats", Value: string(raw), Reason: "expected json or csv"}
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		uniq = append(uniq, f)
	}

	id := uuid.NewString()
	now := time.Now().UTC()
	record := ExportRecord{
		ID:          id,
		Samples:     len(input.Requests),
		Formats:     uniq,
		Status:      ExportStatusQueued,
		RequestedBy: input.RequestedBy,
		Reason:      input.Reason,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	requests := make([]map[string]string, len(input.Requests))
	for i, raw := range input.Requests {
		requests[i] = maps.Clone(raw)
	}

	w.mu.Lock()
	w.jobs[id] = &record
	queued := record.copy()
	w.mu.Unlock()

	task := exportTask{id: id, requests: requests, ready: make(chan struct{})}
	select {
	case w.queue <- task:
	default:
		w.mu.Lock()
		delete(w.jobs, id)
		w.mu.Unlock()
		return ExportRecord{}, ErrQueueFull
	}
	w.record(ctx, id, ExportStatusQueued, nil)
	close(task.ready)
	return queued, nil
}

// GetExport returns a snapshot of the export record.
func (w *Worker) GetExport(id string) (ExportRecord, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	record, ok := w.jobs[id]
	if !ok {
		return ExportRecord{}, false
	}
	return record.copy(), true
}

// Artifact loads the stored rendering of a succeeded export.
func (w *Worker) Artifact(ctx context.Context, id string, f Format) (ExportArtifact, []byte, error) {
	w.mu.RLock()
	record, ok := w.jobs[id]
	var status ExportStatus
	var formats []Format
	if ok {
		status = record.Status
		formats = append(formats, record.Formats...)
	}
	w.mu.RUnlock()
	if !ok {
		return ExportArtifact{}, nil, ErrExportNotFound
	}
	if status != ExportStatusSucceeded {
		return ExportArtifact{}, nil, fmt.Errorf("%w: status %s", ErrExportPending, status)
	}
	if !slices.Contains(formats, f) {
		return ExportArtifact{}, nil, ErrArtifactNotFound
	}
	art, payload, err := w.store.Get(ctx, artifactKey(id, f))
	if err != nil {
		if blob.IsNotFound(err) {
			return ExportArtifact{}, nil, fmt.Errorf("%w: %v", ErrArtifactNotFound, err)
		}
		return ExportArtifact{}, nil, err
	}
	art.Format = f
	return art, payload, nil
}

// ArtifactPath is the API route serving an export rendering.
func ArtifactPath(id string, f Format) string {
	return "/api/v1/exports/" + id + "/artifacts/" + string(f)
}

// ArtifactFilename is the download name of an export rendering.
func ArtifactFilename(f Format) string {
	return path.Base(artifactKey("", f))
}

func (w *Worker) process(task exportTask) {
	select {
	case <-task.ready:
	case <-w.ctx.Done():
		return
	}
	w.mu.Lock()
	record, ok := w.jobs[task.id]
	if !ok {
		w.mu.Unlock()
		return
	}
	record.Status = ExportStatusRunning
	record.UpdatedAt = time.Now().UTC()
	formats := append([]Format(nil), record.Formats...)
	w.mu.Unlock()
	w.record(w.ctx, task.id, ExportStatusRunning, nil)

	searches, err := w.searcher.Batch(w.ctx, task.requests)
	if err != nil {
		w.fail(task.id, fmt.Sprintf("search failed: %v", err))
		return
	}
	ids := make([]string, len(searches))
	for i, s := range searches {
		ids[i] = s.ID
	}

	artifacts := make([]ExportArtifact, 0, len(formats))
	for _, f := range formats {
		payload, err := renderBytes(func(buf io.Writer) error { return RenderBatch(buf, f, searches) })
		if err != nil {
			w.discard(task.id, artifacts)
			w.fail(task.id, fmt.Sprintf("render %s: %v", f, err))
			return
		}
		key := artifactKey(task.id, f)
		metadata := map[string]string{"export": task.id, "format": string(f), "samples": fmt.Sprint(len(searches))}
		stored, err := w.store.Put(w.ctx, key, payload, BatchContentType(f), metadata)
		if err != nil {
			w.discard(task.id, artifacts)
			w.fail(task.id, fmt.Sprintf("store artifact failed: %v", err))
			return
		}
		stored.Format = f
		if stored.URL == "" {
			stored.URL = ArtifactPath(task.id, f)
		}
		artifacts = append(artifacts, stored)
	}
	w.complete(task.id, ids, artifacts)
}

// artifactKey places every artifact of an export under exports/<id>/.
func artifactKey(id string, f Format) string {
	ext := "json"
	if f == FormatCSV {
		ext = "zip"
	}
	return fmt.Sprintf("exports/%s/results.%s", id, ext)
}

// discard removes the artifacts a failed export managed to store.
func (w *Worker) discard(id string, stored []ExportArtifact) {
	if len(stored) == 0 {
		return
	}
	listed, err := w.store.List(w.ctx, "exports/"+id+"/")
	if err != nil {
		w.logger.Warn("list export artifacts failed", "export", id, "error", err)
		return
	}
	ours := make(map[string]bool, len(stored))
	for _, art := range stored {
		ours[art.Key] = true
	}
	for _, art := range listed {
		if !ours[art.Key] {
			continue
		}
		if _, err := w.store.Delete(w.ctx, art.Key); err != nil {
			w.logger.Warn("delete export artifact failed", "export", id, "key", art.Key, "error", err)
		}
	}
}

func (w *Worker) complete(id string, searchIDs []string, artifacts []ExportArtifact) {
	now := time.Now().UTC()
	w.mu.Lock()
	if record, ok := w.jobs[id]; ok {
		record.Status = ExportStatusSucceeded
		record.Error = ""
		record.SearchIDs = searchIDs
		record.Artifacts = artifacts
		record.UpdatedAt = now
		record.CompletedAt = &now
	}
	w.mu.Unlock()
	w.record(w.ctx, id, ExportStatusSucceeded, map[string]string{"artifacts": fmt.Sprint(len(artifacts))})
}

func (w *Worker) fail(id, reason string) {
	now := time.Now().UTC()
	w.mu.Lock()
	if record, ok := w.jobs[id]; ok {
		record.Status = ExportStatusFailed
		record.Error = reason
		record.UpdatedAt = now
		record.CompletedAt = &now
	}
	w.mu.Unlock()
	w.logger.Warn("export failed", "export", id, "error", reason)
	w.record(w.ctx, id, ExportStatusFailed, map[string]string{"error": reason})
}

func (w *Worker) record(ctx context.Context, id string, status ExportStatus, metadata map[string]string) {
	if w.audit == nil {
		return
	}
	w.mu.RLock()
	var actor, reason string
	if record, ok := w.jobs[id]; ok {
		actor, reason = record.RequestedBy, record.Reason
	}
	w.mu.RUnlock()
	w.audit.Record(ctx, AuditEntry{
		ID:         uuid.NewString(),
		ExportID:   id,
		Action:     auditAction,
		Actor:      actor,
		Status:     status,
		Reason:     reason,
		Metadata:   metadata,
		OccurredAt: time.Now().UTC(),
	})
}

func (r ExportRecord) copy() ExportRecord {
	dup := r
	dup.Formats = append([]Format(nil), r.Formats...)
	dup.SearchIDs = append([]string(nil), r.SearchIDs...)
	if len(r.Artifacts) > 0 {
		dup.Artifacts = make([]ExportArtifact, len(r.Artifacts))
		for i, a := range r.Artifacts {
			a.Metadata = maps.Clone(a.Metadata)
			dup.Artifacts[i] = a
		}
	}
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		dup.CompletedAt = &t
	}
	return dup
}

// BlobObjectStore adapts a blob.Store to ObjectStore. Artifact URLs are
// presigned when the backend supports it.
type BlobObjectStore struct {
	store  blob.Store
	expiry time.Duration
}

// NewBlobObjectStore wraps store. expiry bounds presigned URLs; zero uses the
// backend default.
func NewBlobObjectStore(store blob.Store, expiry time.Duration) *BlobObjectStore {
	return &BlobObjectStore{store: store, expiry: expiry}
}

// Put implements ObjectStore.
func (s *BlobObjectStore) Put(ctx context.Context, key string, payload []byte, contentType string, metadata map[string]string) (ExportArtifact, error) {
	info, err := s.store.Put(ctx, key, bytes.NewReader(payload), blob.PutOptions{ContentType: contentType, Metadata: metadata})
	if err != nil {
		return ExportArtifact{}, err
	}
	art := s.artifact(info)
	if art.ContentType == "" {
		art.ContentType = contentType
	}
	if url, err := s.store.PresignURL(ctx, key, blob.SignedURLOptions{Method: "GET", Expiry: s.expiry}); err == nil {
		art.URL = url
	} else if !errors.Is(err, blob.ErrUnsupported) {
		return ExportArtifact{}, fmt.Errorf("presign %s: %w", key, err)
	}
	return art, nil
}

// Get implements ObjectStore.
func (s *BlobObjectStore) Get(ctx context.Context, key string) (ExportArtifact, []byte, error) {
	info, rc, err := s.store.Get(ctx, key)
	if err != nil {
		return ExportArtifact{}, nil, err
	}
	defer func() { _ = rc.Close() }()
	payload, err := io.ReadAll(rc)
	if err != nil {
		return ExportArtifact{}, nil, err
	}
	return s.artifact(info), payload, nil
}

// Delete implements ObjectStore.
func (s *BlobObjectStore) Delete(ctx context.Context, key string) (bool, error) {
	return s.store.Delete(ctx, key)
}

// List implements ObjectStore.
func (s *BlobObjectStore) List(ctx context.Context, prefix string) ([]ExportArtifact, error) {
	infos, err := s.store.List(ctx, prefix)
	if err != nil {
		return nil, err
	}
	out := make([]ExportArtifact, len(infos))
	for i, info := range infos {
		out[i] = s.artifact(info)
	}
	return out, nil
}

func (s *BlobObjectStore) artifact(info blob.Info) ExportArtifact {
	return ExportArtifact{
		Key:         info.Key,
		Format:      Format(info.Metadata["format"]),
		ContentType: info.ContentType,
		SizeBytes:   info.Size,
		URL:         info.URL,
		Metadata:    maps.Clone(info.Metadata),
		CreatedAt:   info.LastModified,
	}
}

// MemoryObjectStore is an in-memory ObjectStore.
type MemoryObjectStore struct {
	mu      sync.RWMutex
	objects map[string]storedObject
}

type storedObject struct {
	artifact ExportArtifact
	payload  []byte
}

// NewMemoryObjectStore constructs an in-memory object store.
func NewMemoryObjectStore() *MemoryObjectStore {
	return &MemoryObjectStore{objects: make(map[string]storedObject)}
}

// Put implements ObjectStore.
func (s *MemoryObjectStore) Put(_ context.Context, key string, payload []byte, contentType string, metadata map[string]string) (ExportArtifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.objects[key]; exists {
		return ExportArtifact{}, fmt.Errorf("object %s: %w", key, blob.ErrExists)
	}
	artifact := ExportArtifact{
		Key:         key,
		Format:      Format(metadata["format"]),
		ContentType: contentType,
		SizeBytes:   int64(len(payload)),
		Metadata:    maps.Clone(metadata),
		CreatedAt:   time.Now().UTC(),
		URL:         "memory://" + key,
	}
	s.objects[key] = storedObject{artifact: artifact, payload: bytes.Clone(payload)}
	return copyArtifact(artifact), nil
}

// Get implements ObjectStore.
func (s *MemoryObjectStore) Get(_ context.Context, key string) (ExportArtifact, []byte, error) {
	s.mu.RLock()
	obj, ok := s.objects[key]
	s.mu.RUnlock()
	if !ok {
		return ExportArtifact{}, nil, blob.ErrNotFound{Key: key}
	}
	return copyArtifact(obj.artifact), bytes.Clone(obj.payload), nil
}

// Delete implements ObjectStore.
func (s *MemoryObjectStore) Delete(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, existed := s.objects[key]
	delete(s.objects, key)
	return existed, nil
}

// List implements ObjectStore.
func (s *MemoryObjectStore) List(_ context.Context, prefix string) ([]ExportArtifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ExportArtifact, 0, len(s.objects))
	for key, obj := range s.objects {
		if strings.HasPrefix(key, prefix) {
			out = append(out, copyArtifact(obj.artifact))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func copyArtifact(a ExportArtifact) ExportArtifact {
	a.Metadata = maps.Clone(a.Metadata)
	return a
}

// MemoryAuditLog captures audit entries in memory.
type MemoryAuditLog struct {
	mu      sync.Mutex
	entries []AuditEntry
}

// Record stores an audit entry.
func (l *MemoryAuditLog) Record(_ context.Context, entry AuditEntry) {
	l.mu.Lock()
	l.entries = append(l.entries, entry)
	l.mu.Unlock()
}

// Entries returns a copy of the recorded entries.
func (l *MemoryAuditLog) Entries() []AuditEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]AuditEntry(nil), l.entries...)
}

// SlogAuditLogger writes audit entries to a structured logger at Info.
type SlogAuditLogger struct {
	Logger *slog.Logger
}

// Record implements AuditLogger.
func (l SlogAuditLogger) Record(ctx context.Context, entry AuditEntry) {
	if l.Logger == nil {
		return
	}
	l.Logger.InfoContext(ctx, "export audit",
		"export", entry.ExportID,
		"action", entry.Action,
		"actor", entry.Actor,
		"status", string(entry.Status),
		"reason", entry.Reason)
}
