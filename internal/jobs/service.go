// Package jobs holds the local job cache and the services built on it:
// submission, cancellation and status reconciliation against the cluster.
package jobs

import (
	"context"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"

	"namdrunner/internal/errdefs"
	"namdrunner/internal/jobs/types"
	"namdrunner/internal/logger"
	"namdrunner/internal/scheduler"
	"namdrunner/internal/ssh"
	"namdrunner/internal/templates"
	"namdrunner/internal/validate"

	"github.com/google/uuid"
)

// Executor runs one remote command. Satisfied by *ssh.Service.
type Executor interface {
	Execute(ctx context.Context, command string) (*ssh.CommandResult, error)
}

// Uploader moves a local file to the cluster. Satisfied by
// *transfer.Service.
type Uploader interface {
	Upload(ctx context.Context, localPath, remotePath string) error
}

// Submitter is the scheduler surface the job service needs.
type Submitter interface {
	Submit(ctx context.Context, scriptPath string) (string, error)
	Cancel(ctx context.Context, schedulerJobID string) error
}

// SubmitRequest describes one job submission.
type SubmitRequest struct {
	JobName   string
	InputFile string // local path to the simulation input
	Partition string
	Nodes     int
	CPUs      int
	Memory    string
	WallTime  string
}

// Service implements the submit and cancel operations.
type Service struct {
	Repo      *Repository
	Scheduler Submitter
	Transfer  Uploader
	Executor  Executor
	BaseDir   string // remote job namespace, e.g. /scratch/alpine/<user>/namdrunner_jobs
}

// Submit scaffolds the remote working directory, uploads the simulation
// input, renders and places the sbatch script plus the job_info.json
// metadata, issues the submission and records the scheduler job ID in
// the cache.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*types.Job, error) {
	name, err := validate.SanitizeIdentifier(req.JobName)
	if err != nil {
		return nil, err
	}

	inputName, err := validate.SanitizeFileName(path.Base(req.InputFile))
	if err != nil {
		return nil, err
	}

	// these land verbatim in the rendered batch script, so they get the
	// same fail-closed treatment as path components
	partition, err := validate.SanitizeIdentifier(req.Partition)
	if err != nil {
		return nil, err
	}
	memory, err := validate.ValidateMemory(req.Memory)
	if err != nil {
		return nil, err
	}
	wallTime, err := validate.ValidateWallTime(req.WallTime)
	if err != nil {
		return nil, err
	}

	if _, err := s.Repo.GetByName(name); err == nil {
		return nil, errdefs.Wrap(errdefs.Validation, ErrJobAlreadyExists, "cannot submit %q", name)
	}

	workingDir := path.Join(s.BaseDir, name)

	if err := s.runChecked(ctx, "mkdir -p "+validate.EscapeForCommand(workingDir)); err != nil {
		return nil, err
	}

	if err := s.Transfer.Upload(ctx, req.InputFile, path.Join(workingDir, inputName)); err != nil {
		return nil, err
	}

	job := &types.Job{
		ID:         uuid.NewString(),
		Name:       name,
		State:      scheduler.StateCreated,
		WorkingDir: workingDir,
		InputFile:  inputName,
	}

	script, err := templates.Render(templates.SubmitScriptPath, map[string]string{
		"jobName":    name,
		"partition":  partition,
		"nodes":      strconv.Itoa(req.Nodes),
		"cpus":       strconv.Itoa(req.CPUs),
		"memory":     memory,
		"wallTime":   wallTime,
		"workingDir": workingDir,
		"inputFile":  inputName,
	})
	if err != nil {
		return nil, errdefs.Wrap(errdefs.Internal, err, "failed to render submission script")
	}

	scriptPath := path.Join(workingDir, "job.sbatch")
	if err := s.writeRemoteFile(ctx, scriptPath, script); err != nil {
		return nil, err
	}

	if err := s.Repo.Create(job); err != nil {
		return nil, errdefs.Wrap(errdefs.Internal, err, "failed to record job %q", name)
	}

	schedulerJobID, err := s.Scheduler.Submit(ctx, scriptPath)
	if err != nil {
		return job, err
	}

	now := time.Now()
	job.SchedulerJobID = schedulerJobID
	job.State = scheduler.StatePending
	job.SubmittedAt = &now

	if err := s.Repo.Save(job); err != nil {
		return job, errdefs.Wrap(errdefs.Internal, err, "failed to update job %q", name)
	}

	if err := s.writeJobInfo(ctx, job); err != nil {
		// metadata only feeds first-run discovery; the submission itself
		// already succeeded
		logger.Warn("failed to write job_info.json for %s: %v", name, err)
	}

	logger.Info("job %s submitted as scheduler job %s", name, schedulerJobID)
	return job, nil
}

// Cancel cancels a job by name. The remote call is issued only when the
// locally known state is Pending or Running; terminal jobs are a no-op
// and never-submitted jobs are cancelled purely locally.
func (s *Service) Cancel(ctx context.Context, jobName string) (*types.Job, error) {
	name, err := validate.SanitizeIdentifier(jobName)
	if err != nil {
		return nil, err
	}

	job, err := s.Repo.GetByName(name)
	if err != nil {
		return nil, err
	}

	if job.IsTerminal() {
		return job, nil
	}

	if job.State == scheduler.StatePending || job.State == scheduler.StateRunning {
		if err := s.Scheduler.Cancel(ctx, job.SchedulerJobID); err != nil {
			return nil, err
		}
	}

	now := time.Now()
	job.State = scheduler.StateCancelled
	job.CompletedAt = &now

	if err := s.Repo.Save(job); err != nil {
		return nil, errdefs.Wrap(errdefs.Internal, err, "failed to update job %q", name)
	}

	return job, nil
}

func (s *Service) writeJobInfo(ctx context.Context, job *types.Job) error {
	submittedAt := ""
	if job.SubmittedAt != nil {
		submittedAt = job.SubmittedAt.UTC().Format(time.RFC3339)
	}

	info, err := templates.Render(templates.JobInfoPath, map[string]string{
		"jobID":          job.ID,
		"jobName":        job.Name,
		"schedulerJobID": job.SchedulerJobID,
		"state":          string(job.State),
		"workingDir":     job.WorkingDir,
		"inputFile":      job.InputFile,
		"submittedAt":    submittedAt,
	})
	if err != nil {
		return errdefs.Wrap(errdefs.Internal, err, "failed to render job info")
	}

	return s.writeRemoteFile(ctx, path.Join(job.WorkingDir, "job_info.json"), info)
}

// writeRemoteFile places small rendered content on the cluster through a
// single printf redirect. Content and path are both escaped.
func (s *Service) writeRemoteFile(ctx context.Context, remotePath, content string) error {
	cmd := fmt.Sprintf("printf '%%s' %s > %s",
		validate.EscapeForCommand(content), validate.EscapeForCommand(remotePath))
	return s.runChecked(ctx, cmd)
}

func (s *Service) runChecked(ctx context.Context, command string) error {
	result, err := s.Executor.Execute(ctx, command)
	if err != nil {
		return err
	}

	if result.ExitCode != 0 {
		stderr := strings.ToLower(result.Stderr)
		kind := errdefs.Internal
		if strings.Contains(stderr, "permission denied") {
			kind = errdefs.Permission
		} else if strings.Contains(stderr, "no such file") {
			kind = errdefs.FileSystem
		}
		return errdefs.New(kind, "remote command failed (exit %d): %s",
			result.ExitCode, strings.TrimSpace(result.Stderr))
	}

	return nil
}
