// Package scheduler builds the remote batch-scheduler commands (submit,
// query, cancel) and parses their delimited text output into typed
// records.
package scheduler

import (
	"context"
	"strings"

	"namdrunner/internal/errdefs"
	"namdrunner/internal/logger"
	"namdrunner/internal/retry"
	"namdrunner/internal/ssh"
	"namdrunner/internal/validate"
)

// Executor runs one remote command. Satisfied by *ssh.Service;
// substituted in tests.
type Executor interface {
	Execute(ctx context.Context, command string) (*ssh.CommandResult, error)
}

// sessionExpirer is the optional connection-manager surface used to
// invalidate the session when retries exhaust. Satisfied by
// *ssh.Service.
type sessionExpirer interface {
	ExpireSession(cause error)
}

type Service struct {
	executor Executor
	policy   retry.Policy
}

func NewService(executor Executor, policy retry.Policy) *Service {
	return &Service{
		executor: executor,
		policy:   policy,
	}
}

// Submit issues the submission command for an already-validated script
// path and returns the scheduler job ID. Submission failures are not
// retried: re-running sbatch after an ambiguous failure could enqueue the
// job twice.
func (s *Service) Submit(ctx context.Context, scriptPath string) (string, error) {
	result, err := s.executor.Execute(ctx, buildSubmitCommand(validate.EscapeForCommand(scriptPath)))
	if err != nil {
		return "", err
	}

	if result.ExitCode != 0 {
		return "", errdefs.New(errdefs.Internal, "job submission failed (exit %d): %s",
			result.ExitCode, strings.TrimSpace(result.Stderr))
	}

	jobID, err := parseSubmitOutput(result.Stdout)
	if err != nil {
		return "", err
	}

	logger.Info("submitted batch job %s", jobID)
	return jobID, nil
}

// QueryStatus resolves the current state of the given scheduler job IDs
// using the two-stage protocol: one batched active-queue query, then one
// historical query for only the IDs absent from the active set. N jobs
// cost at most two round trips.
func (s *Service) QueryStatus(ctx context.Context, jobIDs []string) (*StatusReport, error) {
	if len(jobIDs) == 0 {
		return &StatusReport{}, nil
	}

	if err := validateJobIDs(jobIDs); err != nil {
		return nil, err
	}

	report := &StatusReport{}

	active, activeErrs, err := s.queryActive(ctx, jobIDs)
	if err != nil {
		return nil, err
	}
	report.Errors = append(report.Errors, activeErrs...)

	seen := make(map[string]bool, len(active))
	for _, record := range active {
		seen[record.SchedulerJobID] = true
		report.Records = append(report.Records, record)
	}

	var missing []string
	for _, id := range jobIDs {
		if !seen[id] {
			missing = append(missing, id)
		}
	}

	if len(missing) == 0 {
		return report, nil
	}

	history, historyErrs, err := s.queryHistory(ctx, missing)
	if err != nil {
		return nil, err
	}
	report.Errors = append(report.Errors, historyErrs...)

	// sacct may return records we did not ask about when IDs collide
	// across clusters; keep only the requested ones.
	requested := make(map[string]bool, len(missing))
	for _, id := range missing {
		requested[id] = true
	}
	for _, record := range history {
		if requested[record.SchedulerJobID] {
			report.Records = append(report.Records, record)
		}
	}

	return report, nil
}

// Cancel issues scancel for a scheduler job ID. Cancelling a job that
// already finished is not an error; the remote "already done" responses
// make the operation idempotent.
func (s *Service) Cancel(ctx context.Context, jobID string) error {
	if err := validateJobIDs([]string{jobID}); err != nil {
		return err
	}

	var result *ssh.CommandResult
	err := s.retryRemote(ctx, "scancel", func() error {
		var execErr error
		result, execErr = s.executor.Execute(ctx, buildCancelCommand(jobID))
		return execErr
	})
	if err != nil {
		return err
	}

	if result.ExitCode == 0 {
		return nil
	}

	combined := strings.ToLower(result.Stdout + " " + result.Stderr)
	if strings.Contains(combined, "already") || strings.Contains(combined, "invalid job id") {
		return nil
	}

	return errdefs.New(errdefs.Internal, "scancel failed (exit %d): %s",
		result.ExitCode, strings.TrimSpace(result.Stderr))
}

func (s *Service) queryActive(ctx context.Context, jobIDs []string) ([]JobStatusRecord, []error, error) {
	var result *ssh.CommandResult
	err := s.retryRemote(ctx, "squeue", func() error {
		var execErr error
		result, execErr = s.executor.Execute(ctx, buildActiveQueryCommand(jobIDs))
		return execErr
	})
	if err != nil {
		return nil, nil, err
	}

	if result.ExitCode != 0 {
		// squeue rejects job IDs it no longer knows about; that just
		// means every requested job has left the active queue.
		if strings.Contains(strings.ToLower(result.Stderr), "invalid job id") {
			return nil, nil, nil
		}
		return nil, nil, errdefs.New(errdefs.Internal, "squeue failed (exit %d): %s",
			result.ExitCode, strings.TrimSpace(result.Stderr))
	}

	records, errs := parseRecords(result.Stdout, parseActiveRecord)
	return records, errs, nil
}

func (s *Service) queryHistory(ctx context.Context, jobIDs []string) ([]JobStatusRecord, []error, error) {
	var result *ssh.CommandResult
	err := s.retryRemote(ctx, "sacct", func() error {
		var execErr error
		result, execErr = s.executor.Execute(ctx, buildHistoryQueryCommand(jobIDs))
		return execErr
	})
	if err != nil {
		return nil, nil, err
	}

	if result.ExitCode != 0 {
		return nil, nil, errdefs.New(errdefs.Internal, "sacct failed (exit %d): %s",
			result.ExitCode, strings.TrimSpace(result.Stderr))
	}

	records, errs := parseRecords(result.Stdout, parseHistoryRecord)
	return records, errs, nil
}

// retryRemote wraps a cluster round trip with the retry policy. A
// Timeout that survives every attempt means the channel stopped
// answering; the session is invalidated so later calls fail fast
// instead of burning full timeouts.
func (s *Service) retryRemote(ctx context.Context, name string, op func() error) error {
	err := retry.Do(ctx, s.policy, name, op)
	if err != nil && errdefs.IsKind(err, errdefs.Timeout) {
		if expirer, ok := s.executor.(sessionExpirer); ok {
			expirer.ExpireSession(err)
		}
	}
	return err
}

// validateJobIDs rejects anything that is not a plain numeric scheduler
// ID before it can reach a command string.
func validateJobIDs(jobIDs []string) error {
	for _, id := range jobIDs {
		if id == "" {
			return errdefs.New(errdefs.Validation, "scheduler job id cannot be empty")
		}
		for _, r := range id {
			if r < '0' || r > '9' {
				return errdefs.New(errdefs.Validation, "scheduler job id must be numeric: %q", id)
			}
		}
	}
	return nil
}
