package types

import (
	"time"

	"namdrunner/internal/scheduler"
)

// Job is the locally cached view of one simulation job. The cluster is
// authoritative for State once the job has been submitted; sync applies
// remote-wins merging keyed by SchedulerJobID.
type Job struct {
	ID             string `gorm:"primaryKey"`
	Name           string `gorm:"uniqueIndex"`
	SchedulerJobID string `gorm:"index"`
	State          scheduler.JobState
	WorkingDir     string
	InputFile      string

	CreatedAt   time.Time
	UpdatedAt   time.Time
	SubmittedAt *time.Time
	CompletedAt *time.Time
}

// IsTerminal reports whether the job has reached a state it can never
// leave.
func (j *Job) IsTerminal() bool {
	return j.State.IsTerminal()
}
