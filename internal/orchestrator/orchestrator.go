// Package orchestrator coordinates download jobs: it owns the worker pool,
// drives the per-job state machine, and composes the registry, retry
// coordinator, file store and cleanup collaborators.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/nkoval/videofetch/internal/domain"
	apperrors "github.com/nkoval/videofetch/internal/errors"
	"github.com/nkoval/videofetch/internal/events"
	"github.com/nkoval/videofetch/internal/filestore"
	"github.com/nkoval/videofetch/internal/metrics"
	"github.com/nkoval/videofetch/internal/provider"
	"github.com/nkoval/videofetch/internal/registry"
	"github.com/nkoval/videofetch/internal/repository"
	"github.com/nkoval/videofetch/internal/retry"
)

// Options configures an Orchestrator.
type Options struct {
	MaxConcurrent    int
	QueueSize        int
	HistoryListLimit int
}

// Orchestrator accepts download requests and runs them under bounded
// concurrency. All in-memory state lives in the registry; persistence writes
// and event emission always happen outside its lock.
type Orchestrator struct {
	opts    Options
	reg     *registry.Registry
	retries *retry.Coordinator
	files   *filestore.Store
	fetcher provider.Fetcher
	history repository.HistoryStore
	bus     events.Bus
	logger  *slog.Logger

	queue  chan string
	pool   *errgroup.Group
	ctx    context.Context
	cancel context.CancelFunc

	// cancelMu guards per-job fetch cancellation functions; Cancel uses
	// them for best-effort teardown of an in-flight fetch.
	cancelMu sync.Mutex
	cancels  map[string]context.CancelFunc
}

// New creates an Orchestrator and starts its worker pool.
func New(
	opts Options,
	reg *registry.Registry,
	retries *retry.Coordinator,
	files *filestore.Store,
	fetcher provider.Fetcher,
	history repository.HistoryStore,
	bus events.Bus,
	logger *slog.Logger,
) *Orchestrator {
	if opts.MaxConcurrent < 1 {
		opts.MaxConcurrent = 1
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 100
	}

	ctx, cancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		opts:    opts,
		reg:     reg,
		retries: retries,
		files:   files,
		fetcher: fetcher,
		history: history,
		bus:     bus,
		logger:  logger,
		queue:   make(chan string, opts.QueueSize),
		pool:    &errgroup.Group{},
		ctx:     ctx,
		cancel:  cancel,
		cancels: make(map[string]context.CancelFunc),
	}

	for i := 0; i < opts.MaxConcurrent; i++ {
		workerID := i + 1
		o.pool.Go(func() error {
			o.run(workerID)
			return nil
		})
	}

	logger.Info("orchestrator started", "workers", opts.MaxConcurrent)
	return o
}

// Create registers a new download job and submits it to the worker pool.
// When a live job already targets the same resource (by URL fingerprint),
// its id is returned instead of creating a duplicate.
func (o *Orchestrator) Create(ctx context.Context, url string, opts domain.Options) (string, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return "", apperrors.Wrap(apperrors.KindValidation, apperrors.ErrEmptyURL, "create download")
	}
	if o.ctx.Err() != nil {
		return "", apperrors.ErrShuttingDown
	}

	job := &domain.Job{
		ID:          uuid.NewString(),
		URL:         url,
		Fingerprint: domain.Fingerprint(url),
		Status:      domain.StatusPending,
		CreatedAt:   time.Now(),
		Options:     opts,
	}

	id, inserted := o.reg.PutIfNoLive(job)
	if !inserted {
		metrics.JobsDeduplicated.Inc()
		o.logger.Info("duplicate download request", "job_id", id, "url", url)
		return id, nil
	}

	if err := o.history.Save(ctx, *job); err != nil {
		o.logger.Error("failed to persist new job", "job_id", job.ID, "error", err)
	}
	o.bus.Emit(events.DownloadStarted, o.payload(*job))
	metrics.JobsCreated.Inc()
	o.logger.Info("download created", "job_id", job.ID, "url", url)

	return job.ID, o.enqueue(job.ID)
}

// Get returns a snapshot of the job.
func (o *Orchestrator) Get(id string) (domain.Job, error) {
	if job, ok := o.reg.Get(id); ok {
		return job, nil
	}
	return domain.Job{}, apperrors.ErrJobNotFound
}

// List returns the union of live registry state and durable history,
// deduplicated by id with the live entry winning, newest first.
func (o *Orchestrator) List(ctx context.Context) []domain.Job {
	jobs := o.reg.List()
	seen := make(map[string]struct{}, len(jobs))
	for _, job := range jobs {
		seen[job.ID] = struct{}{}
	}

	records, err := o.history.LoadRecent(ctx, o.opts.HistoryListLimit)
	if err != nil {
		o.logger.Error("failed to load history for list", "error", err)
		return jobs
	}
	for _, rec := range records {
		if _, ok := seen[rec.ID]; !ok {
			jobs = append(jobs, rec)
		}
	}

	// Registry and history are each sorted; merging may interleave.
	sortJobs(jobs)
	return jobs
}

// Cancel flips a live job to cancelled. The status changes immediately
// under the registry lock; teardown of an in-flight fetch is best-effort,
// so a cancelled job may occupy a worker slot briefly. Returns false for
// unknown or already-terminal jobs.
func (o *Orchestrator) Cancel(id string) bool {
	now := time.Now()
	var flipped bool
	job, ok := o.reg.Update(id, func(j *domain.Job) {
		if j.Status.IsLive() {
			j.Status = domain.StatusCancelled
			j.CompletedAt = &now
			flipped = true
		}
	})
	if !ok || !flipped {
		return false
	}

	o.cancelFetch(id)
	o.retries.Clear(id)

	o.persist(id, domain.StatusCancelled, domain.JobUpdate{CompletedAt: &now})
	o.bus.Emit(events.DownloadCancelled, o.payload(job))
	metrics.JobsCancelled.Inc()
	o.logger.Info("download cancelled", "job_id", id)
	return true
}

// Resume re-runs a terminal job under its original id. It is only permitted
// for records sourced from durable history: a still-live in-memory entry
// means an execution could still race the resume, so it is refused even
// when that entry is terminal. It is likewise refused when another live job
// already targets the same resource by fingerprint. Resume counts as a
// fresh user-initiated attempt and resets the retry budget.
func (o *Orchestrator) Resume(ctx context.Context, id string) (string, error) {
	if _, ok := o.reg.Get(id); ok {
		return "", apperrors.ErrNotResumable
	}

	records, err := o.history.LoadRecent(ctx, 0)
	if err != nil {
		return "", fmt.Errorf("load history: %w", err)
	}

	var rec *domain.Job
	for i := range records {
		if records[i].ID == id {
			rec = &records[i]
			break
		}
	}
	if rec == nil {
		return "", apperrors.ErrNoHistoryItem
	}
	if !rec.Status.IsTerminal() {
		return "", apperrors.ErrNotResumable
	}

	fingerprint := rec.Fingerprint
	if fingerprint == "" {
		fingerprint = domain.Fingerprint(rec.URL)
	}
	job := &domain.Job{
		ID:          rec.ID,
		URL:         rec.URL,
		Fingerprint: fingerprint,
		Status:      domain.StatusPending,
		Title:       rec.Title,
		CreatedAt:   time.Now(),
		Options:     rec.Options,
	}

	o.retries.Clear(id)
	if _, inserted := o.reg.PutIfNoLive(job); !inserted {
		// Another live job already targets the same resource.
		return "", apperrors.ErrNotResumable
	}

	if err := o.history.Save(ctx, *job); err != nil {
		o.logger.Error("failed to persist resumed job", "job_id", id, "error", err)
	}
	o.bus.Emit(events.DownloadResumed, o.payload(*job))
	o.logger.Info("download resumed", "job_id", id, "url", job.URL)

	return id, o.enqueue(id)
}

// RecoverInterrupted marks history records left in a live state by an
// unclean shutdown as failed. Interrupted jobs are never restarted
// automatically; resume is an explicit user operation.
func (o *Orchestrator) RecoverInterrupted(ctx context.Context) error {
	records, err := o.history.LoadRecent(ctx, 0)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}

	reason := "interrupted by restart"
	recovered := 0
	for _, rec := range records {
		if !rec.Status.IsLive() {
			continue
		}
		now := time.Now()
		update := domain.JobUpdate{ErrorReason: &reason, CompletedAt: &now}
		if err := o.history.UpdateStatus(ctx, rec.ID, domain.StatusFailed, update); err != nil {
			o.logger.Error("failed to recover interrupted job", "job_id", rec.ID, "error", err)
			continue
		}
		recovered++
	}

	if recovered > 0 {
		o.logger.Info("marked interrupted jobs as failed", "count", recovered)
	}
	return nil
}

// Shutdown stops the retry timers, cancels in-flight fetches and waits for
// the worker pool to drain or ctx to expire.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.logger.Info("shutting down orchestrator")

	o.retries.Stop()
	o.cancel()

	done := make(chan struct{})
	go func() {
		_ = o.pool.Wait()
		close(done)
	}()

	select {
	case <-done:
		o.logger.Info("orchestrator shutdown completed")
		return nil
	case <-ctx.Done():
		o.logger.Warn("orchestrator shutdown timed out")
		return ctx.Err()
	}
}

func (o *Orchestrator) enqueue(id string) error {
	select {
	case o.queue <- id:
		return nil
	case <-o.ctx.Done():
		return apperrors.ErrShuttingDown
	}
}

// resubmit re-queues a job whose backoff delay elapsed. The job may have
// been cancelled while waiting; execute re-checks before touching it.
func (o *Orchestrator) resubmit(id string) {
	if job, ok := o.reg.Get(id); !ok || job.Status != domain.StatusRetrying {
		return
	}
	if err := o.enqueue(id); err != nil {
		o.logger.Warn("dropping retry during shutdown", "job_id", id)
	}
}

func (o *Orchestrator) run(workerID int) {
	for {
		select {
		case id := <-o.queue:
			o.execute(id)
		case <-o.ctx.Done():
			o.logger.Debug("worker stopped", "worker_id", workerID)
			return
		}
	}
}

// execute runs one download attempt. Every failure inside it is normalized
// at this boundary; nothing escapes the pool uncaught.
func (o *Orchestrator) execute(id string) {
	var started bool
	job, ok := o.reg.Update(id, func(j *domain.Job) {
		if j.Status.CanTransition(domain.StatusDownloading) {
			j.Status = domain.StatusDownloading
			started = true
		}
	})
	if !ok || !started {
		// Cancelled (or pruned) while queued.
		return
	}

	o.persist(id, domain.StatusDownloading, domain.JobUpdate{})

	jobCtx, cancelFetch := context.WithCancel(o.ctx)
	defer cancelFetch()
	o.trackCancel(id, cancelFetch)
	defer o.untrackCancel(id)

	start := time.Now()

	meta, err := o.fetcher.ExtractMetadata(jobCtx, job.URL, job.Options)
	if err != nil {
		o.handleFailure(id, err)
		return
	}
	if meta.Title != "" {
		title := meta.Title
		o.reg.Update(id, func(j *domain.Job) {
			if j.Title == "" {
				j.Title = title
			}
		})
		o.persist(id, domain.StatusDownloading, domain.JobUpdate{Title: &title})
	}

	req := provider.FetchRequest{
		URL:      job.URL,
		Options:  job.Options,
		Dir:      o.files.StagingDir(job.Options),
		BaseName: job.Fingerprint,
	}

	path, err := o.fetcher.Fetch(jobCtx, req, o.progressFunc(id, cancelFetch))
	if err != nil {
		o.handleFailure(id, err)
		return
	}

	finalPath, size, err := o.files.Finalize(jobCtx, path, job.Fingerprint, job.Options)
	if err != nil {
		o.handleFailure(id, err)
		return
	}

	o.complete(id, finalPath, size, start)
}

func (o *Orchestrator) complete(id, finalPath string, size int64, start time.Time) {
	retryCount := o.retries.Attempts(id)
	now := time.Now()
	var completed bool
	job, ok := o.reg.Update(id, func(j *domain.Job) {
		if !j.Status.CanTransition(domain.StatusCompleted) {
			return
		}
		j.Status = domain.StatusCompleted
		j.Progress = 100
		j.OutputPath = finalPath
		j.FileSize = size
		j.RetryCount = retryCount
		j.CompletedAt = &now
		completed = true
	})
	if !ok || !completed {
		// Cancelled in the window between fetch return and completion;
		// the artifact stays on disk for the cleanup engine to reclaim.
		o.retries.Clear(id)
		return
	}

	o.retries.Clear(id)

	progress := 100
	o.persist(id, domain.StatusCompleted, domain.JobUpdate{
		Progress:    &progress,
		OutputPath:  &finalPath,
		FileSize:    &size,
		RetryCount:  &retryCount,
		CompletedAt: &now,
	})

	metrics.JobsCompleted.Inc()
	metrics.DownloadDuration.Observe(time.Since(start).Seconds())
	metrics.BytesDownloaded.Add(float64(size))

	// Rename happens after the terminal transition so a rename fault can
	// never take down a finished download.
	if name := displayName(job); name != "" {
		if renamed, err := o.files.SmartRename(finalPath, name); err != nil {
			o.logger.Warn("smart rename failed, keeping fingerprint name",
				"job_id", id, "error", err)
		} else if renamed != finalPath {
			job, _ = o.reg.Update(id, func(j *domain.Job) { j.OutputPath = renamed })
			o.persist(id, domain.StatusCompleted, domain.JobUpdate{OutputPath: &renamed})
		}
	}

	o.bus.Emit(events.DownloadCompleted, o.payload(job))
	o.logger.Info("download completed",
		"job_id", id,
		"path", job.OutputPath,
		"size", size,
		"retries", retryCount,
	)
}

// handleFailure normalizes a worker error and forwards the retry decision
// to the coordinator.
func (o *Orchestrator) handleFailure(id string, err error) {
	job, ok := o.reg.Get(id)
	if !ok {
		return
	}
	if apperrors.KindOf(err) == apperrors.KindCancelled || job.Status == domain.StatusCancelled {
		// Cancel already transitioned and persisted the job.
		o.retries.Clear(id)
		return
	}

	reason := err.Error()

	if o.retries.ShouldRetry(id, err) {
		attempt := o.retries.ScheduleRetry(id, err, func() { o.resubmit(id) })

		var scheduled bool
		job, ok = o.reg.Update(id, func(j *domain.Job) {
			if j.Status.CanTransition(domain.StatusRetrying) {
				j.Status = domain.StatusRetrying
				j.RetryCount = attempt
				j.ErrorReason = reason
				scheduled = true
			}
		})
		if ok && scheduled {
			metrics.RetriesScheduled.Inc()
			o.persist(id, domain.StatusRetrying, domain.JobUpdate{
				RetryCount:  &attempt,
				ErrorReason: &reason,
			})
			o.bus.Emit(events.DownloadRetrying, o.payload(job))
			o.logger.Warn("download failed, retry scheduled",
				"job_id", id, "attempt", attempt, "error", err)
			return
		}

		// Cancelled between the failure and the transition.
		o.retries.Clear(id)
		return
	}

	attempts := o.retries.Attempts(id)
	now := time.Now()
	var failed bool
	job, ok = o.reg.Update(id, func(j *domain.Job) {
		if j.Status.CanTransition(domain.StatusFailed) {
			j.Status = domain.StatusFailed
			j.ErrorReason = reason
			j.RetryCount = attempts
			j.CompletedAt = &now
			failed = true
		}
	})
	o.retries.Clear(id)
	if !ok || !failed {
		return
	}

	o.persist(id, domain.StatusFailed, domain.JobUpdate{
		ErrorReason: &reason,
		RetryCount:  &attempts,
		CompletedAt: &now,
	})
	o.bus.Emit(events.DownloadFailed, o.payload(job))
	metrics.JobsFailed.Inc()
	o.logger.Error("download failed terminally",
		"job_id", id,
		"error_kind", apperrors.KindOf(err).String(),
		"error", err,
	)
}

// progressFunc builds the provider progress callback for one job. Percent
// never regresses within an execution: multi-fragment sources report
// out-of-order partial totals, and the clamp keeps the surfaced value
// monotonic. The callback also observes cancellation: once the job status
// flips to cancelled, the in-flight fetch context is torn down so the next
// provider read unwinds.
func (o *Orchestrator) progressFunc(id string, cancelFetch context.CancelFunc) provider.ProgressFunc {
	lastEmitted := -1
	return func(downloaded, total int64) {
		pct := 0
		if total > 0 {
			pct = int(downloaded * 100 / total)
			if pct > 100 {
				pct = 100
			}
		}

		job, ok := o.reg.Update(id, func(j *domain.Job) {
			if pct > j.Progress {
				j.Progress = pct
			}
		})
		if !ok {
			return
		}
		if job.Status == domain.StatusCancelled {
			cancelFetch()
			return
		}
		if job.Progress > lastEmitted {
			lastEmitted = job.Progress
			o.bus.Emit(events.DownloadProgress, o.payload(job))
		}
	}
}

func (o *Orchestrator) trackCancel(id string, cancel context.CancelFunc) {
	o.cancelMu.Lock()
	defer o.cancelMu.Unlock()
	o.cancels[id] = cancel
}

func (o *Orchestrator) untrackCancel(id string) {
	o.cancelMu.Lock()
	defer o.cancelMu.Unlock()
	delete(o.cancels, id)
}

func (o *Orchestrator) cancelFetch(id string) {
	o.cancelMu.Lock()
	defer o.cancelMu.Unlock()
	if cancel, ok := o.cancels[id]; ok {
		cancel()
	}
}

// persist forwards a status change to the durable store, outside any lock.
func (o *Orchestrator) persist(id string, status domain.JobStatus, update domain.JobUpdate) {
	if err := o.history.UpdateStatus(context.Background(), id, status, update); err != nil {
		o.logger.Error("failed to persist job update",
			"job_id", id, "status", status, "error", err)
	}
}

func (o *Orchestrator) payload(job domain.Job) map[string]any {
	p := map[string]any{
		"job_id":   job.ID,
		"url":      job.URL,
		"status":   string(job.Status),
		"progress": job.Progress,
	}
	if job.Title != "" {
		p["title"] = job.Title
	}
	if job.ErrorReason != "" {
		p["error"] = job.ErrorReason
	}
	if job.RetryCount > 0 {
		p["retry_count"] = job.RetryCount
	}
	if job.Options.Notify {
		p["notify"] = true
	}
	return p
}

func displayName(job domain.Job) string {
	if job.Options.Filename != "" {
		return job.Options.Filename
	}
	return job.Title
}

func sortJobs(jobs []domain.Job) {
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
}
