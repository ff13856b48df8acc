package sync

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/xelth-com/ordsyncgo/internal/errlog"
	"github.com/xelth-com/ordsyncgo/internal/models"
	"gorm.io/datatypes"
)

// Batch defaults
const (
	DefaultBatchSize    = 50
	DefaultBatchDelay   = 30 * time.Second
	DefaultJobRetention = 10
)

// OrderSyncer is the per-order entry point the batch runner drives.
// Orchestrator.SyncRemote is the production implementation.
type OrderSyncer interface {
	SyncRemote(remoteID int64) (bool, error)
}

// JobStatus is the read-only projection of a job returned to callers
type JobStatus struct {
	ID              string                   `json:"id"`
	Status          models.SyncJobStatus     `json:"status"`
	StartDate       time.Time                `json:"start_date"`
	EndDate         time.Time                `json:"end_date"`
	BatchSize       int                      `json:"batch_size"`
	TotalOrders     int                      `json:"total_orders"`
	ProcessedOrders int                      `json:"processed_orders"`
	Progress        float64                  `json:"progress"` // percent
	FailedOrders    []map[string]interface{} `json:"failed_orders"`
	LastProcessedID int64                    `json:"last_processed_id"`
	StartTime       time.Time                `json:"start_time"`
	EndTime         *time.Time               `json:"end_time,omitempty"`
}

// Runner executes bulk sync jobs: the full candidate set is fetched up front
// and persisted, then consumed one batch slice per scheduled tick. The runner
// keeps no state between ticks beyond the job record, so a restart resumes
// from storage.
type Runner struct {
	jobs   JobStore
	remote RemoteOrderSource
	syncer OrderSyncer
	sched  Scheduler
	errors ErrorReporter
	events EventBroadcaster // optional

	batchDelay time.Duration
	retention  int
}

// NewRunner wires the batch runner. batchDelay <= 0 and retention <= 0 fall
// back to the package defaults.
func NewRunner(jobs JobStore, remote RemoteOrderSource, syncer OrderSyncer, sched Scheduler, errors ErrorReporter, events EventBroadcaster, batchDelay time.Duration, retention int) *Runner {
	if batchDelay <= 0 {
		batchDelay = DefaultBatchDelay
	}
	if retention <= 0 {
		retention = DefaultJobRetention
	}
	return &Runner{
		jobs:       jobs,
		remote:     remote,
		syncer:     syncer,
		sched:      sched,
		errors:     errors,
		events:     events,
		batchDelay: batchDelay,
		retention:  retention,
	}
}

// Start validates the range, snapshots the candidate order set and schedules
// the first tick. includePending=false drops remote orders still pending on
// the marketplace.
func (r *Runner) Start(startDate, endDate time.Time, batchSize int, includePending bool) (*models.SyncJob, error) {
	if startDate.After(endDate) {
		return nil, fmt.Errorf("%w: %s is after %s", ErrInvalidDateRange,
			startDate.Format("2006-01-02"), endDate.Format("2006-01-02"))
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	remoteOrders, err := r.remote.ListOrders(startDate, endDate)
	if err != nil {
		r.errors.Log(errlog.CategoryAPI, errlog.SeverityHigh,
			fmt.Sprintf("bulk sync candidate fetch failed: %v", err),
			models.JSONB{"start_date": startDate, "end_date": endDate})
		return nil, fmt.Errorf("list remote orders: %w", err)
	}

	candidates := make([]models.SyncJobOrder, 0, len(remoteOrders))
	for _, ro := range remoteOrders {
		if !includePending && NormalizeRemoteStatus(ro.Status) == "pending" {
			continue
		}
		candidates = append(candidates, models.SyncJobOrder{RemoteOrderID: ro.ID})
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: no orders between %s and %s", ErrNoOrdersFound,
			startDate.Format("2006-01-02"), endDate.Format("2006-01-02"))
	}

	job := &models.SyncJob{
		ID:             uuid.NewString(),
		Status:         models.SyncJobProcessing,
		StartDate:      startDate,
		EndDate:        endDate,
		BatchSize:      batchSize,
		IncludePending: includePending,
		TotalOrders:    len(candidates),
		FailedOrders:   datatypes.JSON([]byte("[]")),
		StartTime:      time.Now().UTC(),
	}
	for i := range candidates {
		candidates[i].JobID = job.ID
	}

	if err := r.jobs.CreateJob(job, candidates); err != nil {
		return nil, err
	}

	log.Printf("🔄 bulk sync job %s started: %d orders, batch size %d", job.ID, job.TotalOrders, batchSize)
	r.broadcast("job:started", models.JSONB{"job_id": job.ID, "total_orders": job.TotalOrders})
	r.scheduleTick(job.ID, 0)
	return job, nil
}

// Resume reschedules a tick for every job still marked processing. Ticks live
// in process memory, so without this a restart would strand interrupted jobs
// in processing forever. Called once at startup.
func (r *Runner) Resume() (int, error) {
	jobs, err := r.jobs.ListByStatus(models.SyncJobProcessing)
	if err != nil {
		return 0, err
	}
	for _, job := range jobs {
		log.Printf("🔄 resuming bulk sync job %s: %d/%d orders processed", job.ID, job.ProcessedOrders, job.TotalOrders)
		r.scheduleTick(job.ID, 0)
	}
	return len(jobs), nil
}

// ProcessBatch runs one tick: claims the next unprocessed slice, syncs each
// order, persists progress and either chains the next tick or completes the
// job. Cancellation is honored at tick start; an in-flight slice always
// finishes.
func (r *Runner) ProcessBatch(jobID string) error {
	job, err := r.jobs.GetJob(jobID)
	if err != nil {
		return err
	}
	if job.Status != models.SyncJobProcessing {
		return fmt.Errorf("%w: job %s is %s", ErrJobNotProcessing, jobID, job.Status)
	}

	slice, err := r.jobs.NextUnprocessed(jobID, job.BatchSize)
	if err != nil {
		return err
	}

	for _, row := range slice {
		ok, syncErr := r.syncer.SyncRemote(row.RemoteOrderID)

		errMsg := ""
		if syncErr != nil {
			errMsg = syncErr.Error()
			job.FailedOrders = appendFailedOrder(job.FailedOrders, row.RemoteOrderID, errMsg)
		}
		if err := r.jobs.MarkProcessed(row.ID, ok && syncErr == nil, errMsg); err != nil {
			log.Printf("⚠️ could not mark job order %d processed: %v", row.ID, err)
		}

		job.ProcessedOrders++
		job.LastProcessedID = row.RemoteOrderID
	}

	if job.ProcessedOrders >= job.TotalOrders {
		now := time.Now().UTC()
		job.Status = models.SyncJobCompleted
		job.EndTime = &now
		if err := r.jobs.UpdateJob(job); err != nil {
			return err
		}

		log.Printf("✅ bulk sync job %s completed: %d orders", job.ID, job.ProcessedOrders)
		r.broadcast("job:completed", models.JSONB{"job_id": job.ID, "processed": job.ProcessedOrders})

		if _, err := r.jobs.PruneCompleted(r.retention); err != nil {
			log.Printf("⚠️ completed-job retention cleanup failed: %v", err)
		}
		return nil
	}

	if err := r.jobs.UpdateJob(job); err != nil {
		return err
	}
	r.broadcast("job:progress", models.JSONB{
		"job_id":    job.ID,
		"processed": job.ProcessedOrders,
		"total":     job.TotalOrders,
	})
	r.scheduleTick(job.ID, r.batchDelay)
	return nil
}

// Cancel stops a job unless it already completed. The pending tick is
// descheduled; an in-flight slice finishes on its own.
func (r *Runner) Cancel(jobID string) error {
	job, err := r.jobs.GetJob(jobID)
	if err != nil {
		return err
	}
	if job.Status == models.SyncJobCompleted {
		return fmt.Errorf("%w: job %s already completed", ErrJobNotProcessing, jobID)
	}
	if job.Status == models.SyncJobCancelled {
		return nil
	}

	now := time.Now().UTC()
	job.Status = models.SyncJobCancelled
	job.EndTime = &now
	if err := r.jobs.UpdateJob(job); err != nil {
		return err
	}

	r.sched.Cancel(tickTaskID(jobID))
	log.Printf("🛑 bulk sync job %s cancelled after %d/%d orders", jobID, job.ProcessedOrders, job.TotalOrders)
	r.broadcast("job:cancelled", models.JSONB{"job_id": jobID})
	return nil
}

// GetStatus returns the read-only projection of a job
func (r *Runner) GetStatus(jobID string) (*JobStatus, error) {
	job, err := r.jobs.GetJob(jobID)
	if err != nil {
		return nil, err
	}

	status := &JobStatus{
		ID:              job.ID,
		Status:          job.Status,
		StartDate:       job.StartDate,
		EndDate:         job.EndDate,
		BatchSize:       job.BatchSize,
		TotalOrders:     job.TotalOrders,
		ProcessedOrders: job.ProcessedOrders,
		LastProcessedID: job.LastProcessedID,
		StartTime:       job.StartTime,
		EndTime:         job.EndTime,
		FailedOrders:    []map[string]interface{}{},
	}
	if job.TotalOrders > 0 {
		status.Progress = float64(job.ProcessedOrders) / float64(job.TotalOrders) * 100
	}
	if len(job.FailedOrders) > 0 {
		// Best effort; a decode failure just leaves the list empty
		_ = json.Unmarshal(job.FailedOrders, &status.FailedOrders)
	}
	return status, nil
}

func (r *Runner) scheduleTick(jobID string, delay time.Duration) {
	r.sched.ScheduleOnce(delay, tickTaskID(jobID), func() {
		if err := r.ProcessBatch(jobID); err != nil {
			r.errors.Log(errlog.CategorySync, errlog.SeverityHigh,
				fmt.Sprintf("batch tick failed for job %s: %v", jobID, err),
				models.JSONB{"job_id": jobID})
		}
	})
}

func (r *Runner) broadcast(event string, data models.JSONB) {
	if r.events != nil {
		r.events.Broadcast(event, data)
	}
}

func tickTaskID(jobID string) string {
	return "sync_job_" + jobID
}

func appendFailedOrder(existing datatypes.JSON, remoteOrderID int64, errMsg string) datatypes.JSON {
	var failures []map[string]interface{}
	if len(existing) > 0 {
		_ = json.Unmarshal(existing, &failures)
	}
	failures = append(failures, map[string]interface{}{
		"remote_order_id": remoteOrderID,
		"error":           errMsg,
	})
	data, err := json.Marshal(failures)
	if err != nil {
		return existing
	}
	return datatypes.JSON(data)
}
