package sync

import (
	"errors"
	"fmt"

	"github.com/xelth-com/ordsyncgo/internal/database"
	"github.com/xelth-com/ordsyncgo/internal/models"
	"gorm.io/gorm"
)

// JobStore persists bulk jobs and their candidate order lists. The batch
// runner is the only writer; a process restart between ticks resumes from
// whatever the store holds.
type JobStore interface {
	CreateJob(job *models.SyncJob, orders []models.SyncJobOrder) error
	GetJob(jobID string) (*models.SyncJob, error)
	UpdateJob(job *models.SyncJob) error
	NextUnprocessed(jobID string, limit int) ([]models.SyncJobOrder, error)
	MarkProcessed(orderRowID uint, succeeded bool, errMessage string) error
	ListByStatus(status models.SyncJobStatus) ([]models.SyncJob, error)
	PruneCompleted(keep int) (int64, error)
}

// GormJobStore is the production JobStore
type GormJobStore struct {
	db *database.DB
}

// NewGormJobStore creates the store
func NewGormJobStore(db *database.DB) *GormJobStore {
	return &GormJobStore{db: db}
}

// CreateJob inserts the job and its full candidate list in one transaction
func (s *GormJobStore) CreateJob(job *models.SyncJob, orders []models.SyncJobOrder) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(job).Error; err != nil {
			return err
		}
		if len(orders) > 0 {
			if err := tx.CreateInBatches(orders, 500).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("create job %s: %w", job.ID, err)
	}
	return nil
}

// GetJob loads one job
func (s *GormJobStore) GetJob(jobID string) (*models.SyncJob, error) {
	var job models.SyncJob
	err := s.db.First(&job, "id = ?", jobID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: job %s", ErrJobNotFound, jobID)
	}
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", jobID, err)
	}
	return &job, nil
}

// UpdateJob saves the job row
func (s *GormJobStore) UpdateJob(job *models.SyncJob) error {
	if err := s.db.Save(job).Error; err != nil {
		return fmt.Errorf("update job %s: %w", job.ID, err)
	}
	return nil
}

// NextUnprocessed returns the next batch slice in id order
func (s *GormJobStore) NextUnprocessed(jobID string, limit int) ([]models.SyncJobOrder, error) {
	var rows []models.SyncJobOrder
	err := s.db.Where("job_id = ? AND processed = ?", jobID, false).
		Order("id ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("next batch for job %s: %w", jobID, err)
	}
	return rows, nil
}

// MarkProcessed records the per-order outcome of one sync attempt
func (s *GormJobStore) MarkProcessed(orderRowID uint, succeeded bool, errMessage string) error {
	updates := map[string]interface{}{
		"processed":    true,
		"succeeded":    succeeded,
		"processed_at": gorm.Expr("NOW()"),
	}
	if errMessage != "" {
		updates["error_message"] = errMessage
	}
	err := s.db.Model(&models.SyncJobOrder{}).
		Where("id = ?", orderRowID).
		Updates(updates).Error
	if err != nil {
		return fmt.Errorf("mark job order %d processed: %w", orderRowID, err)
	}
	return nil
}

// ListByStatus returns every job in the given status, oldest first
func (s *GormJobStore) ListByStatus(status models.SyncJobStatus) ([]models.SyncJob, error) {
	var jobs []models.SyncJob
	err := s.db.Where("status = ?", string(status)).
		Order("start_time ASC").
		Find(&jobs).Error
	if err != nil {
		return nil, fmt.Errorf("list %s jobs: %w", status, err)
	}
	return jobs, nil
}

// PruneCompleted keeps the most recent completed jobs by end time and deletes
// the rest (with their candidate rows). Processing and cancelled jobs are
// never pruned.
func (s *GormJobStore) PruneCompleted(keep int) (int64, error) {
	if keep <= 0 {
		return 0, nil
	}

	var keepIDs []string
	err := s.db.Model(&models.SyncJob{}).
		Where("status = ?", string(models.SyncJobCompleted)).
		Order("end_time DESC").
		Limit(keep).
		Pluck("id", &keepIDs).Error
	if err != nil {
		return 0, fmt.Errorf("prune completed jobs: %w", err)
	}

	var deleted int64
	err = s.db.Transaction(func(tx *gorm.DB) error {
		stale := tx.Model(&models.SyncJob{}).
			Where("status = ?", string(models.SyncJobCompleted))
		if len(keepIDs) > 0 {
			stale = stale.Where("id NOT IN ?", keepIDs)
		}

		var staleIDs []string
		if err := stale.Pluck("id", &staleIDs).Error; err != nil {
			return err
		}
		if len(staleIDs) == 0 {
			return nil
		}

		if err := tx.Where("job_id IN ?", staleIDs).Delete(&models.SyncJobOrder{}).Error; err != nil {
			return err
		}
		res := tx.Where("id IN ?", staleIDs).Delete(&models.SyncJob{})
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("prune completed jobs: %w", err)
	}
	return deleted, nil
}
