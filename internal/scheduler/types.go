package scheduler

// JobState is the canonical job lifecycle state. Completed, Failed and
// Cancelled are terminal; a terminal record must never regress to
// Pending or Running.
type JobState string

const (
	StateCreated   JobState = "Created"
	StatePending   JobState = "Pending"
	StateRunning   JobState = "Running"
	StateCompleted JobState = "Completed"
	StateFailed    JobState = "Failed"
	StateCancelled JobState = "Cancelled"
)

func (s JobState) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// JobStatusRecord is one parsed scheduler record. Active-queue records
// fill the squeue fields (TimeUsed through Partition); historical records
// fill ExitCode through Elapsed.
type JobStatusRecord struct {
	SchedulerJobID string
	Name           string
	State          JobState
	WorkingDir     string

	// active-queue fields
	TimeUsed  string
	TimeLeft  string
	NodeCount string
	CPUCount  string
	Memory    string
	Partition string

	// historical fields
	ExitCode string
	Start    string
	End      string
	Elapsed  string
}

// StatusReport carries the merged result of a two-stage status query.
// Records that failed to parse are reported per-record in Errors instead
// of failing the batch.
type StatusReport struct {
	Records []JobStatusRecord
	Errors  []error
}
