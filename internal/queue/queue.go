// Package queue is the training orchestrator. It splits a batch of files
// into bounded-size jobs, runs the jobs against the training backend under a
// global concurrency cap, relays every progress event onto the batch's
// broadcast channel, and aggregates the final batch outcome.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/kiranshivaraju/trainhub/internal/hub"
	"github.com/kiranshivaraju/trainhub/internal/trainer"
	"github.com/kiranshivaraju/trainhub/pkg/models"
)

// Defaults for queue sizing, overridable via Config.
const (
	DefaultMaxFilesPerJob    = 5
	DefaultMaxConcurrentJobs = 3
	DefaultCapacity          = 100

	dispatchBuffer = 16
	snapshotTTL    = 24 * time.Hour
)

// Batch outcome tags carried by the all_jobs_completed event.
const (
	BatchStatusSuccess        = "success"
	BatchStatusPartialFailure = "partial_failure"
)

var ErrStoreRequired = errors.New("queue requires a store")
var ErrNoFiles = errors.New("batch has no files")

// Broadcaster publishes messages onto a channel's subscriber set.
type Broadcaster interface {
	Broadcast(channel, messageType string, data any, progress *hub.Progress, err error)
}

// Store is the slice of the persistent store the queue needs at batch
// completion.
type Store interface {
	UpdateVersionStatus(ctx context.Context, versionID int64, status string, completedAt *time.Time) error
	RefreshVersionMetrics(ctx context.Context, versionID int64) error
	UpdateKnowledgeBaseStatus(ctx context.Context, kbID int64, status string) error
}

// Cache persists terminal batch snapshots for status polling. Optional;
// failures are logged, never propagated.
type Cache interface {
	SetBatchStatus(ctx context.Context, channel string, data []byte, ttl time.Duration) error
}

// Config tunes queue sizing. Zero values fall back to defaults. UploadDir
// is the base for relative stored file paths.
type Config struct {
	MaxFilesPerJob    int
	MaxConcurrentJobs int
	Capacity          int
	UploadDir         string
}

func (c Config) withDefaults() Config {
	if c.MaxFilesPerJob <= 0 {
		c.MaxFilesPerJob = DefaultMaxFilesPerJob
	}
	if c.MaxConcurrentJobs <= 0 {
		c.MaxConcurrentJobs = DefaultMaxConcurrentJobs
	}
	if c.Capacity <= 0 {
		c.Capacity = DefaultCapacity
	}
	return c
}

// Queue owns every training job for its lifetime. Mutable job state is
// guarded by mu; execution is fanned out by a dispatcher feeding a bounded
// work queue drained under a concurrency semaphore.
type Queue struct {
	cfg         Config
	broadcaster Broadcaster
	trainer     trainer.Client
	store       Store
	cache       Cache

	mu   sync.Mutex
	jobs []*models.TrainingJob

	dispatch chan []*models.TrainingJob
	work     chan *models.TrainingJob
	stop     chan struct{}
}

// New creates a Queue. The caller must Start it before submitting batches.
func New(b Broadcaster, tc trainer.Client, st Store, ca Cache, cfg Config) *Queue {
	cfg = cfg.withDefaults()
	return &Queue{
		cfg:         cfg,
		broadcaster: b,
		trainer:     tc,
		store:       st,
		cache:       ca,
		dispatch:    make(chan []*models.TrainingJob, dispatchBuffer),
		work:        make(chan *models.TrainingJob, cfg.Capacity),
		stop:        make(chan struct{}),
	}
}

// Start launches the dispatcher and scheduler loops. Both stop when ctx is
// canceled; in-flight jobs observe the cancellation through their backend
// call contexts.
func (q *Queue) Start(ctx context.Context) {
	go q.dispatchLoop(ctx)
	go q.scheduleLoop(ctx)
	go func() {
		<-ctx.Done()
		close(q.stop)
	}()
}

// Submit partitions files into ordered jobs, announces the batch manifest on
// channel, and hands the jobs to the dispatcher. It returns once the jobs
// are queued; it never waits for worker availability. All further progress
// is observed via the channel.
func (q *Queue) Submit(ctx context.Context, kbID, versionID int64, files []*models.KnowledgeBaseFile, channel string) error {
	if q.store == nil {
		return ErrStoreRequired
	}
	if len(files) == 0 {
		return ErrNoFiles
	}

	totalFiles := len(files)
	totalJobs := (totalFiles + q.cfg.MaxFilesPerJob - 1) / q.cfg.MaxFilesPerJob

	slog.Info("partitioning batch",
		"channel", channel,
		"total_files", totalFiles,
		"total_jobs", totalJobs,
		"max_files_per_job", q.cfg.MaxFilesPerJob,
	)

	jobs := make([]*models.TrainingJob, 0, totalJobs)
	for i := 0; i < totalJobs; i++ {
		start := i * q.cfg.MaxFilesPerJob
		end := min(start+q.cfg.MaxFilesPerJob, totalFiles)

		jobs = append(jobs, &models.TrainingJob{
			ID:              fmt.Sprintf("%s_job_%d", channel, i+1),
			KnowledgeBaseID: kbID,
			VersionID:       versionID,
			Channel:         channel,
			Files:           files[start:end],
			JobIndex:        i + 1,
			TotalJobs:       totalJobs,
			Status:          models.JobStatusPending,
		})
	}

	manifest := make([]models.JobSnapshot, len(jobs))
	for i, j := range jobs {
		manifest[i] = j.Snapshot()
	}

	q.mu.Lock()
	q.jobs = append(q.jobs, jobs...)
	q.mu.Unlock()

	// The manifest reaches subscribers before any job_started event: jobs
	// are handed to the dispatcher only after this broadcast is enqueued.
	q.broadcaster.Broadcast(channel, "job_queue_created", map[string]any{
		"total_jobs":  totalJobs,
		"total_files": totalFiles,
		"jobs":        manifest,
	}, nil, nil)

	select {
	case q.dispatch <- jobs:
	default:
		// Sustained overload: park the hand-off on a background goroutine
		// rather than blocking the caller. The hand-off is tied to the
		// queue's lifetime, not the submitter's: the submitting request
		// returns long before a dispatch slot opens, and an announced batch
		// must still reach the workers.
		go func() {
			select {
			case q.dispatch <- jobs:
			case <-q.stop:
			}
		}()
	}

	return nil
}

// dispatchLoop feeds batches into the bounded work queue in submission
// order, blocking when the queue is full instead of dropping or reordering.
func (q *Queue) dispatchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case batch := <-q.dispatch:
			for _, job := range batch {
				select {
				case q.work <- job:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}

// scheduleLoop drains the work queue under a semaphore sized by
// MaxConcurrentJobs. Queued jobs wait for a slot; they are never rejected.
func (q *Queue) scheduleLoop(ctx context.Context) {
	sem := make(chan struct{}, q.cfg.MaxConcurrentJobs)

	for {
		select {
		case <-ctx.Done():
			return
		case job := <-q.work:
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return
			}
			go func(j *models.TrainingJob) {
				defer func() { <-sem }()
				q.runJob(ctx, j)
			}(job)
		}
	}
}

// runJob executes one job end to end: backend call, event relay, terminal
// bookkeeping, and the batch completion check.
func (q *Queue) runJob(ctx context.Context, job *models.TrainingJob) {
	q.mu.Lock()
	now := time.Now()
	job.Status = models.JobStatusProcessing
	job.StartedAt = &now
	q.mu.Unlock()

	slog.Info("processing job", "job_id", job.ID, "job_index", job.JobIndex,
		"total_jobs", job.TotalJobs, "files", len(job.Files))

	q.broadcaster.Broadcast(job.Channel, "job_started", map[string]any{
		"job_id":     job.ID,
		"job_index":  job.JobIndex,
		"total_jobs": job.TotalJobs,
		"file_count": len(job.Files),
		"files":      job.Files,
	}, nil, nil)

	err := q.callTrainer(ctx, job)

	// Terminal write and the batch-done decision share one critical section
	// so the decision fires exactly once, on whichever job finishes last.
	q.mu.Lock()
	end := time.Now()
	job.CompletedAt = &end
	if err != nil {
		job.Status = models.JobStatusFailed
		job.Error = err
	} else {
		job.Status = models.JobStatusCompleted
	}
	decision := q.evaluateBatchLocked(job.Channel)
	q.mu.Unlock()

	if err != nil {
		slog.Error("job failed", "job_id", job.ID, "error", err)
		q.broadcaster.Broadcast(job.Channel, "job_failed", map[string]any{
			"job_id":     job.ID,
			"job_index":  job.JobIndex,
			"total_jobs": job.TotalJobs,
			"error":      err.Error(),
		}, nil, nil)
	} else {
		slog.Info("job completed", "job_id", job.ID)
		q.broadcaster.Broadcast(job.Channel, "job_completed", map[string]any{
			"job_id":     job.ID,
			"job_index":  job.JobIndex,
			"total_jobs": job.TotalJobs,
		}, nil, nil)
	}

	if decision != nil {
		q.finalizeBatch(ctx, job, *decision)
	}
}

// progressPayload is a stream event re-tagged with the identity of the job
// that produced it.
type progressPayload struct {
	trainer.StreamEvent
	JobID     string `json:"job_id"`
	JobIndex  int    `json:"job_index"`
	TotalJobs int    `json:"total_jobs"`
}

// callTrainer issues the job's backend call and relays every non-terminal
// event to the batch channel.
func (q *Queue) callTrainer(ctx context.Context, job *models.TrainingJob) error {
	refs := make([]trainer.FileRef, len(job.Files))
	for i, f := range job.Files {
		refs[i] = trainer.FileRef{
			ID:       strconv.FormatInt(f.ID, 10),
			Name:     f.Name,
			Path:     ResolvePath(q.cfg.UploadDir, f.FilePath),
			MimeType: f.MimeType,
			Size:     f.FileSize,
		}
	}

	req := trainer.StreamRequest{
		KnowledgeBaseID: strconv.FormatInt(job.KnowledgeBaseID, 10),
		VersionID:       strconv.FormatInt(job.VersionID, 10),
		Files:           refs,
		JobID:           job.ID,
		JobIndex:        job.JobIndex,
		TotalJobs:       job.TotalJobs,
	}

	return q.trainer.Stream(ctx, req, func(ev trainer.StreamEvent) {
		q.broadcaster.Broadcast(job.Channel, ev.EventType(), progressPayload{
			StreamEvent: ev,
			JobID:       job.ID,
			JobIndex:    job.JobIndex,
			TotalJobs:   job.TotalJobs,
		}, ev.Progress(job.ID, job.JobIndex, job.TotalJobs), nil)
	})
}

type batchDecision struct {
	completed int
	failed    int
}

// evaluateBatchLocked counts the channel's jobs by status and returns a
// decision once none remain pending or processing. Callers hold mu.
func (q *Queue) evaluateBatchLocked(channel string) *batchDecision {
	var pending, processing, completed, failed int
	for _, j := range q.jobs {
		if j.Channel != channel {
			continue
		}
		switch j.Status {
		case models.JobStatusPending:
			pending++
		case models.JobStatusProcessing:
			processing++
		case models.JobStatusCompleted:
			completed++
		case models.JobStatusFailed:
			failed++
		}
	}

	if pending > 0 || processing > 0 {
		return nil
	}
	return &batchDecision{completed: completed, failed: failed}
}

// finalizeBatch publishes the single terminal batch event and, on full
// success, advances the persisted version and knowledge-base state.
func (q *Queue) finalizeBatch(ctx context.Context, job *models.TrainingJob, d batchDecision) {
	if d.failed > 0 {
		slog.Warn("batch finished with failures", "channel", job.Channel,
			"completed", d.completed, "failed", d.failed)
		q.broadcaster.Broadcast(job.Channel, "all_jobs_completed", map[string]any{
			"status":    BatchStatusPartialFailure,
			"completed": d.completed,
			"failed":    d.failed,
			"error":     fmt.Sprintf("%d jobs failed", d.failed),
		}, nil, nil)
		// The version is deliberately not marked completed: a partial
		// failure needs caller attention before the version is usable.
	} else {
		slog.Info("batch completed", "channel", job.Channel, "completed", d.completed)
		q.broadcaster.Broadcast(job.Channel, "all_jobs_completed", map[string]any{
			"status":    BatchStatusSuccess,
			"completed": d.completed,
		}, nil, nil)

		now := time.Now()
		if err := q.store.UpdateVersionStatus(ctx, job.VersionID, models.VersionStatusCompleted, &now); err != nil {
			slog.Error("failed to mark version completed", "version_id", job.VersionID, "error", err)
		}
		if err := q.store.RefreshVersionMetrics(ctx, job.VersionID); err != nil {
			// Best effort; the version stays completed.
			slog.Warn("failed to refresh version metrics", "version_id", job.VersionID, "error", err)
		}
		if err := q.store.UpdateKnowledgeBaseStatus(ctx, job.KnowledgeBaseID, models.KnowledgeBaseStatusActive); err != nil {
			slog.Error("failed to reactivate knowledge base", "knowledge_base_id", job.KnowledgeBaseID, "error", err)
		}
	}

	if q.cacheBatchStatus(ctx, job.Channel) {
		q.evictChannel(job.Channel)
	}
}

// cacheBatchStatus writes the batch's terminal snapshot to the cache so
// status polling keeps working after the run. Best effort; reports whether
// the snapshot was persisted.
func (q *Queue) cacheBatchStatus(ctx context.Context, channel string) bool {
	if q.cache == nil {
		return false
	}
	status, ok := q.Status(channel)
	if !ok {
		return false
	}
	data, err := json.Marshal(status)
	if err != nil {
		return false
	}
	if err := q.cache.SetBatchStatus(ctx, channel, data, snapshotTTL); err != nil {
		slog.Warn("failed to cache batch status", "channel", channel, "error", err)
		return false
	}
	return true
}

// evictChannel drops a finished channel's jobs from the in-memory list.
// Only called once the terminal snapshot is in the cache, which serves
// status polls for the channel from then on.
func (q *Queue) evictChannel(channel string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	kept := q.jobs[:0]
	for _, j := range q.jobs {
		if j.Channel != channel {
			kept = append(kept, j)
		}
	}
	q.jobs = kept
}

// Status returns a read-only snapshot of the channel's jobs, for polling
// when no live subscriber is attached. ok is false for an unknown channel.
func (q *Queue) Status(channel string) (models.BatchStatus, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	status := models.BatchStatus{Channel: channel}
	for _, j := range q.jobs {
		if j.Channel != channel {
			continue
		}
		status.Jobs = append(status.Jobs, j.Snapshot())
		switch j.Status {
		case models.JobStatusPending:
			status.Pending++
		case models.JobStatusProcessing:
			status.Processing++
		case models.JobStatusCompleted:
			status.Completed++
		case models.JobStatusFailed:
			status.Failed++
		}
	}

	return status, len(status.Jobs) > 0
}
