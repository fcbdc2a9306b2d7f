package summarize

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"neurolearn/internal/blob"
	"neurolearn/internal/core"
	"neurolearn/pkg/domain"
)

// JobStatus describes the lifecycle stage of a summarization request.
type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
)

// Job tracks a summarization request and its outcome.
type Job struct {
	ID          string     `json:"id"`
	DocumentID  string     `json:"document_id"`
	Status      JobStatus  `json:"status"`
	Error       string     `json:"error,omitempty"`
	SummaryKey  string     `json:"summary_key,omitempty"`
	RequestedBy string     `json:"requested_by,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func (j Job) copy() Job { return j }

// Scheduler queues summarization requests and exposes status.
type Scheduler interface {
	Enqueue(ctx context.Context, documentID, requestedBy string) (Job, error)
	GetJob(id string) (Job, bool)
}

type task struct {
	id         string
	documentID string
}

// Worker executes summarizations asynchronously off a bounded queue.
type Worker struct {
	svc        *core.Service
	blobs      blob.Store
	summarizer Summarizer
	audit      core.AuditSink
	logger     *zap.Logger

	queue chan task
	mu    sync.RWMutex
	jobs  map[string]*Job

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// WorkerOption customizes worker construction.
type WorkerOption func(*Worker)

// WithQueueSize bounds the pending job queue.
func WithQueueSize(n int) WorkerOption {
	return func(w *Worker) {
		if n > 0 {
			w.queue = make(chan task, n)
		}
	}
}

// WithWorkerLogger attaches a structured logger.
func WithWorkerLogger(logger *zap.Logger) WorkerOption {
	return func(w *Worker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithAudit attaches an audit sink receiving per-job entries.
func WithAudit(sink core.AuditSink) WorkerOption {
	return func(w *Worker) { w.audit = sink }
}

// NewWorker constructs a summarization worker.
func NewWorker(svc *core.Service, blobs blob.Store, summarizer Summarizer, opts ...WorkerOption) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	w := &Worker{
		svc:        svc,
		blobs:      blobs,
		summarizer: summarizer,
		logger:     zap.NewNop(),
		queue:      make(chan task, 32),
		jobs:       make(map[string]*Job),
		ctx:        ctx,
		cancel:     cancel,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start begins processing summarization requests.
func (w *Worker) Start() {
	w.wg.Add(1)
	go w.loop()
}

// Stop signals the worker to halt and waits for completion.
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
		case t := <-w.queue:
			w.process(t)
		}
	}
}

// Enqueue schedules a summarization job for an uploaded document. The
// document moves to the summarizing state synchronously so callers observe
// the transition immediately.
func (w *Worker) Enqueue(ctx context.Context, documentID, requestedBy string) (Job, error) {
	if _, ok := w.svc.GetDocument(documentID); !ok {
		return Job{}, domain.ErrNotFound{Entity: domain.EntityDocument, ID: documentID}
	}

	// The summarizing-state transition doubles as the duplicate-enqueue
	// guard: it rejects inside the transaction, so two concurrent enqueues
	// of the same document cannot both pass.
	if _, _, err := w.svc.MarkDocumentSummarizing(ctx, documentID); err != nil {
		return Job{}, err
	}

	now := time.Now().UTC()
	job := Job{
		ID:          uuid.NewString(),
		DocumentID:  documentID,
		Status:      JobQueued,
		RequestedBy: requestedBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	w.mu.Lock()
	w.jobs[job.ID] = &job
	queued := job.copy()
	w.mu.Unlock()

	if w.audit != nil {
		w.audit.Record(ctx, core.AuditEntry{
			Operation: "summarize_enqueue",
			Actor:     requestedBy,
			Entity:    domain.EntityDocument,
			EntityID:  documentID,
			Status:    core.AuditOK,
		})
	}

	select {
	case w.queue <- task{id: job.ID, documentID: documentID}:
	default:
		w.fail(job.ID, "summarization queue full")
		if _, _, err := w.svc.MarkDocumentFailed(ctx, documentID, "summarization queue full"); err != nil {
			w.logger.Warn("failed to mark document after queue overflow", zap.String("document_id", documentID), zap.Error(err))
		}
		return Job{}, fmt.Errorf("summarization queue full")
	}
	return queued, nil
}

// GetJob returns a snapshot of the job record.
func (w *Worker) GetJob(id string) (Job, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	job, ok := w.jobs[id]
	if !ok {
		return Job{}, false
	}
	return job.copy(), true
}

// ListJobs returns snapshots of all known jobs.
func (w *Worker) ListJobs() []Job {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]Job, 0, len(w.jobs))
	for _, job := range w.jobs {
		out = append(out, job.copy())
	}
	return out
}

func (w *Worker) process(t task) {
	w.setStatus(t.id, JobRunning, "")

	doc, ok := w.svc.GetDocument(t.documentID)
	if !ok {
		w.failAndMark(t, "document disappeared before summarization")
		return
	}

	_, rc, err := w.blobs.Get(w.ctx, doc.BlobKey)
	if err != nil {
		w.failAndMark(t, fmt.Sprintf("read document blob: %v", err))
		return
	}
	content, err := io.ReadAll(rc)
	_ = rc.Close()
	if err != nil {
		w.failAndMark(t, fmt.Sprintf("read document blob: %v", err))
		return
	}

	summary, err := w.summarizer.Summarize(w.ctx, doc, content)
	if err != nil {
		w.failAndMark(t, fmt.Sprintf("summarize: %v", err))
		return
	}

	// Re-summarization reuses the per-document key; Put is create-only, so
	// drop any stale artifact from a previous run first.
	key := fmt.Sprintf("summaries/%s.txt", doc.ID)
	if _, err := w.blobs.Delete(w.ctx, key); err != nil {
		w.failAndMark(t, fmt.Sprintf("replace stale summary: %v", err))
		return
	}
	if _, err := w.blobs.Put(w.ctx, key, strings.NewReader(summary.Text), blob.PutOptions{
		ContentType: "text/plain; charset=utf-8",
		Metadata:    map[string]string{"document_id": doc.ID},
	}); err != nil {
		w.failAndMark(t, fmt.Sprintf("store summary: %v", err))
		return
	}

	if _, _, err := w.svc.MarkDocumentSummarized(w.ctx, doc.ID, key); err != nil {
		w.failAndMark(t, fmt.Sprintf("record summary: %v", err))
		return
	}

	w.complete(t.id, key)
	w.logger.Info("document summarized",
		zap.String("document_id", doc.ID),
		zap.String("summary_key", key))
}

func (w *Worker) failAndMark(t task, reason string) {
	w.fail(t.id, reason)
	if _, _, err := w.svc.MarkDocumentFailed(w.ctx, t.documentID, reason); err != nil {
		w.logger.Warn("failed to mark document failed",
			zap.String("document_id", t.documentID), zap.Error(err))
	}
	w.logger.Warn("summarization failed",
		zap.String("document_id", t.documentID),
		zap.String("reason", reason))
	if w.audit != nil {
		w.audit.Record(w.ctx, core.AuditEntry{
			Operation: "summarize",
			Entity:    domain.EntityDocument,
			EntityID:  t.documentID,
			Status:    core.AuditError,
			Detail:    reason,
		})
	}
}

func (w *Worker) setStatus(id string, status JobStatus, errMsg string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	job, ok := w.jobs[id]
	if !ok {
		return
	}
	job.Status = status
	job.Error = errMsg
	job.UpdatedAt = time.Now().UTC()
}

func (w *Worker) fail(id, reason string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	job, ok := w.jobs[id]
	if !ok {
		return
	}
	now := time.Now().UTC()
	job.Status = JobFailed
	job.Error = reason
	job.UpdatedAt = now
	job.CompletedAt = &now
}

func (w *Worker) complete(id, summaryKey string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	job, ok := w.jobs[id]
	if !ok {
		return
	}
	now := time.Now().UTC()
	job.Status = JobSucceeded
	job.SummaryKey = summaryKey
	job.UpdatedAt = now
	job.CompletedAt = &now
}
