package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"time"

	"namdrunner/internal/errdefs"
	"namdrunner/internal/events"
	"namdrunner/internal/jobs/types"
	"namdrunner/internal/logger"
	"namdrunner/internal/scheduler"
	"namdrunner/internal/validate"

	"github.com/google/uuid"
)

// StatusQuerier is the scheduler surface the reconciler needs.
type StatusQuerier interface {
	QueryStatus(ctx context.Context, jobIDs []string) (*scheduler.StatusReport, error)
}

// Reconciler merges authoritative remote state into the local cache.
// Remote wins on conflict; terminal states never regress.
type Reconciler struct {
	Repo     *Repository
	Querier  StatusQuerier
	Executor Executor
	Bus      *events.Bus
	BaseDir  string
}

// SyncResult summarizes one reconciliation cycle. Errors holds per-job
// failures; a single unreachable record never aborts the batch.
type SyncResult struct {
	Discovered int
	Updated    int
	Unchanged  int
	Errors     []string
}

// jobInfo mirrors the job_info.json metadata written at submit time.
type jobInfo struct {
	JobID          string `json:"job_id"`
	JobName        string `json:"job_name"`
	SchedulerJobID string `json:"scheduler_job_id"`
	State          string `json:"state"`
	WorkingDir     string `json:"working_dir"`
	InputFile      string `json:"input_file"`
	SubmittedAt    string `json:"submitted_at"`
}

// Sync runs one reconciliation cycle: an optional first-run discovery
// pass when the cache is empty, then one batched two-stage status query
// covering every cached non-terminal job, then changed-only upserts.
func (r *Reconciler) Sync(ctx context.Context) (*SyncResult, error) {
	result := &SyncResult{}

	count, err := r.Repo.Count()
	if err != nil {
		return nil, errdefs.Wrap(errdefs.Internal, err, "cannot read job cache")
	}

	if count == 0 {
		r.discover(ctx, result)
	}

	active, err := r.Repo.NonTerminal()
	if err != nil {
		return nil, errdefs.Wrap(errdefs.Internal, err, "cannot read job cache")
	}

	if len(active) == 0 {
		return result, nil
	}

	ids := make([]string, 0, len(active))
	byID := make(map[string]*types.Job, len(active))
	for i := range active {
		job := &active[i]
		ids = append(ids, job.SchedulerJobID)
		byID[job.SchedulerJobID] = job
	}

	report, err := r.Querier.QueryStatus(ctx, ids)
	if err != nil {
		return nil, err
	}

	for _, parseErr := range report.Errors {
		result.Errors = append(result.Errors, parseErr.Error())
	}

	// results come back in remote order, not request order; merge keyed
	// by scheduler job ID
	seen := make(map[string]bool, len(report.Records))
	for _, record := range report.Records {
		seen[record.SchedulerJobID] = true

		job, ok := byID[record.SchedulerJobID]
		if !ok {
			continue
		}

		if err := r.apply(job, record, result); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("job %s: %v", job.Name, err))
		}
	}

	for _, id := range ids {
		if !seen[id] {
			result.Errors = append(result.Errors,
				fmt.Sprintf("job %s: scheduler returned no status for id %s", byID[id].Name, id))
		}
	}

	return result, nil
}

// apply upserts one record into the cache, writing only when the state
// actually changed so a repeat cycle with unchanged remote state touches
// nothing.
func (r *Reconciler) apply(job *types.Job, record scheduler.JobStatusRecord, result *SyncResult) error {
	if job.IsTerminal() {
		result.Unchanged++
		return nil
	}

	if record.State == job.State {
		result.Unchanged++
		return nil
	}

	oldState := job.State
	job.State = record.State

	if record.WorkingDir != "" {
		job.WorkingDir = record.WorkingDir
	}

	if record.State.IsTerminal() && job.CompletedAt == nil {
		now := time.Now()
		job.CompletedAt = &now
	}

	if err := r.Repo.Save(job); err != nil {
		return err
	}

	result.Updated++
	logger.Info("job %s: %s -> %s", job.Name, oldState, record.State)

	if r.Bus != nil {
		r.Bus.Publish(events.StateChangeEvent{
			BaseEvent: events.BaseEvent{EventType: events.EventStateChange, Time: time.Now()},
			JobName:   job.Name,
			OldState:  string(oldState),
			NewState:  string(record.State),
		})
	}

	return nil
}

// discover imports well-formed job records found under the remote
// namespace into the empty cache. Unreadable or malformed directories are
// reported per-item and skipped.
func (r *Reconciler) discover(ctx context.Context, result *SyncResult) {
	listing, err := r.Executor.Execute(ctx, "ls -1 "+validate.EscapeForCommand(r.BaseDir))
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("discovery: %v", err))
		return
	}

	if listing.ExitCode != 0 {
		// namespace not created yet means nothing to discover
		if strings.Contains(strings.ToLower(listing.Stderr), "no such file") {
			return
		}
		result.Errors = append(result.Errors,
			fmt.Sprintf("discovery: listing failed (exit %d): %s", listing.ExitCode, listing.Stderr))
		return
	}

	for _, entry := range strings.Split(listing.Stdout, "\n") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		name, err := validate.SanitizeIdentifier(entry)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("discovery: skipping %q: %v", entry, err))
			continue
		}

		if err := r.importJob(ctx, name); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("discovery: %s: %v", name, err))
			continue
		}

		r.logf("imported job %s from %s", name, r.BaseDir)
		result.Discovered++
	}

	if result.Discovered > 0 {
		r.logf("discovered %d existing jobs under %s", result.Discovered, r.BaseDir)
	}
}

// logf records an operational line both in the log and on the event bus
// so the UI layer can show it alongside progress events.
func (r *Reconciler) logf(format string, args ...interface{}) {
	logger.Info(format, args...)

	if r.Bus != nil {
		r.Bus.Publish(events.LogEvent{
			BaseEvent: events.BaseEvent{EventType: events.EventLog, Time: time.Now()},
			Message:   fmt.Sprintf(format, args...),
		})
	}
}

func (r *Reconciler) importJob(ctx context.Context, name string) error {
	infoPath := path.Join(r.BaseDir, name, "job_info.json")

	out, err := r.Executor.Execute(ctx, "cat "+validate.EscapeForCommand(infoPath))
	if err != nil {
		return err
	}
	if out.ExitCode != 0 {
		return errdefs.New(errdefs.FileSystem, "no readable job_info.json")
	}

	var info jobInfo
	if err := json.Unmarshal([]byte(out.Stdout), &info); err != nil {
		return errdefs.NewProtocol(out.Stdout, "malformed job_info.json")
	}

	if info.JobName == "" || info.SchedulerJobID == "" {
		return errdefs.NewProtocol(out.Stdout, "job_info.json missing required fields")
	}

	state := scheduler.JobState(info.State)
	switch state {
	case scheduler.StateCreated, scheduler.StatePending, scheduler.StateRunning,
		scheduler.StateCompleted, scheduler.StateFailed, scheduler.StateCancelled:
	default:
		// let the status query resolve it
		state = scheduler.StatePending
	}

	job := &types.Job{
		ID:             info.JobID,
		Name:           info.JobName,
		SchedulerJobID: info.SchedulerJobID,
		State:          state,
		WorkingDir:     info.WorkingDir,
		InputFile:      info.InputFile,
	}

	if job.ID == "" {
		job.ID = uuid.NewString()
	}

	if info.SubmittedAt != "" {
		if t, err := time.Parse(time.RFC3339, info.SubmittedAt); err == nil {
			job.SubmittedAt = &t
		}
	}

	return r.Repo.Create(job)
}
