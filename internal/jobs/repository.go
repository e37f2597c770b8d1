package jobs

import (
	"errors"

	"namdrunner/internal/jobs/types"

	"gorm.io/gorm"
)

// Repository is the local job cache, keyed by job ID. It owns no remote
// state; sync merges scheduler results into it.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		db: db,
	}
}

func (r *Repository) Create(job *types.Job) error {
	return r.db.Create(job).Error
}

func (r *Repository) Save(job *types.Job) error {
	return r.db.Save(job).Error
}

func (r *Repository) GetByName(name string) (*types.Job, error) {
	var job types.Job
	err := r.db.First(&job, "name = ?", name).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}

	return &job, nil
}

func (r *Repository) GetBySchedulerID(schedulerJobID string) (*types.Job, error) {
	var job types.Job
	err := r.db.First(&job, "scheduler_job_id = ?", schedulerJobID).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}

	return &job, nil
}

func (r *Repository) All() ([]types.Job, error) {
	var all []types.Job
	err := r.db.Order("created_at").Find(&all).Error
	return all, err
}

// NonTerminal returns submitted jobs that may still change state.
func (r *Repository) NonTerminal() ([]types.Job, error) {
	var active []types.Job
	err := r.db.
		Where("scheduler_job_id <> ''").
		Where("state NOT IN ?", []string{"Completed", "Failed", "Cancelled"}).
		Find(&active).Error
	return active, err
}

func (r *Repository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&types.Job{}).Count(&count).Error
	return count, err
}

func (r *Repository) Delete(name string) error {
	result := r.db.Delete(&types.Job{}, "name = ?", name)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrJobNotFound
	}
	return nil
}
