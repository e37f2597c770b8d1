package jobs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"namdrunner/internal/errdefs"
	"namdrunner/internal/scheduler"
	"namdrunner/internal/ssh"
)

type fakeSubmitter struct {
	jobID      string
	submitErr  error
	cancelErr  error
	cancels    []string
	submitted  []string
}

func (f *fakeSubmitter) Submit(ctx context.Context, scriptPath string) (string, error) {
	f.submitted = append(f.submitted, scriptPath)
	if f.submitErr != nil {
		return "", f.submitErr
	}
	return f.jobID, nil
}

func (f *fakeSubmitter) Cancel(ctx context.Context, schedulerJobID string) error {
	f.cancels = append(f.cancels, schedulerJobID)
	return f.cancelErr
}

type fakeUploader struct {
	uploads map[string]string // local -> remote
	err     error
}

func (f *fakeUploader) Upload(ctx context.Context, localPath, remotePath string) error {
	if f.uploads == nil {
		f.uploads = map[string]string{}
	}
	f.uploads[localPath] = remotePath
	return f.err
}

type recordingExecutor struct {
	commands []string
}

func (f *recordingExecutor) Execute(ctx context.Context, command string) (*ssh.CommandResult, error) {
	f.commands = append(f.commands, command)
	return &ssh.CommandResult{}, nil
}

func testInputFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "equil.conf")
	if err := os.WriteFile(path, []byte("structure equil.psf\n"), 0644); err != nil {
		t.Fatalf("failed to write input: %v", err)
	}
	return path
}

func testSubmitService(t *testing.T) (*Service, *fakeSubmitter, *fakeUploader, *recordingExecutor) {
	t.Helper()

	submitter := &fakeSubmitter{jobID: "12345678"}
	uploader := &fakeUploader{}
	executor := &recordingExecutor{}

	service := &Service{
		Repo:      testRepository(t),
		Scheduler: submitter,
		Transfer:  uploader,
		Executor:  executor,
		BaseDir:   "/scratch/alpine/testuser/namdrunner_jobs",
	}
	return service, submitter, uploader, executor
}

func submitRequest(input string) SubmitRequest {
	return SubmitRequest{
		JobName:   "test_job",
		InputFile: input,
		Partition: "amilan",
		Nodes:     1,
		CPUs:      24,
		Memory:    "16G",
		WallTime:  "04:00:00",
	}
}

func TestSubmitPipeline(t *testing.T) {
	service, submitter, uploader, executor := testSubmitService(t)
	input := testInputFile(t)

	job, err := service.Submit(context.Background(), submitRequest(input))
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	if job.SchedulerJobID != "12345678" {
		t.Errorf("expected scheduler id recorded, got %q", job.SchedulerJobID)
	}
	if job.State != scheduler.StatePending {
		t.Errorf("expected Pending after submit, got %s", job.State)
	}
	if job.SubmittedAt == nil {
		t.Error("expected SubmittedAt to be set")
	}

	wantDir := "/scratch/alpine/testuser/namdrunner_jobs/test_job"
	if job.WorkingDir != wantDir {
		t.Errorf("unexpected working dir %s", job.WorkingDir)
	}

	if remote := uploader.uploads[input]; remote != wantDir+"/equil.conf" {
		t.Errorf("input uploaded to unexpected path %s", remote)
	}

	if len(submitter.submitted) != 1 || submitter.submitted[0] != wantDir+"/job.sbatch" {
		t.Errorf("expected sbatch against the rendered script, got %v", submitter.submitted)
	}

	var sawMkdir, sawScript, sawInfo bool
	for _, cmd := range executor.commands {
		if strings.HasPrefix(cmd, "mkdir -p '"+wantDir+"'") {
			sawMkdir = true
		}
		if strings.Contains(cmd, "job.sbatch") && strings.Contains(cmd, "#SBATCH --job-name=test_job") {
			sawScript = true
		}
		if strings.Contains(cmd, "job_info.json") && strings.Contains(cmd, `"scheduler_job_id": "12345678"`) {
			sawInfo = true
		}
	}
	if !sawMkdir {
		t.Error("expected remote working directory scaffolding")
	}
	if !sawScript {
		t.Error("expected rendered sbatch script to be written remotely")
	}
	if !sawInfo {
		t.Error("expected job_info.json metadata to be written remotely")
	}

	stored, err := service.Repo.GetByName("test_job")
	if err != nil {
		t.Fatalf("job not cached: %v", err)
	}
	if stored.State != scheduler.StatePending {
		t.Errorf("cached state %s, expected Pending", stored.State)
	}
}

func TestSubmitRejectsInvalidJobName(t *testing.T) {
	service, _, _, _ := testSubmitService(t)

	req := submitRequest(testInputFile(t))
	req.JobName = "../escape"

	_, err := service.Submit(context.Background(), req)
	if errdefs.KindOf(err) != errdefs.Validation {
		t.Errorf("expected Validation error, got %v", err)
	}
}

func TestSubmitRejectsDuplicateName(t *testing.T) {
	service, _, _, _ := testSubmitService(t)
	input := testInputFile(t)

	if _, err := service.Submit(context.Background(), submitRequest(input)); err != nil {
		t.Fatalf("first submit failed: %v", err)
	}

	_, err := service.Submit(context.Background(), submitRequest(input))
	if !errors.Is(err, ErrJobAlreadyExists) {
		t.Errorf("expected ErrJobAlreadyExists, got %v", err)
	}
}

func TestSubmitKeepsCreatedJobOnSchedulerFailure(t *testing.T) {
	service, submitter, _, _ := testSubmitService(t)
	submitter.submitErr = errdefs.New(errdefs.Internal, "job submission failed (exit 1)")

	_, err := service.Submit(context.Background(), submitRequest(testInputFile(t)))
	if err == nil {
		t.Fatal("expected submit to fail")
	}

	// the uploaded files and Created record stay for inspection; there
	// is no rollback of partial remote state
	stored, getErr := service.Repo.GetByName("test_job")
	if getErr != nil {
		t.Fatalf("expected Created job in cache: %v", getErr)
	}
	if stored.State != scheduler.StateCreated {
		t.Errorf("expected Created state, got %s", stored.State)
	}
}

func TestCancelPendingJob(t *testing.T) {
	service, submitter, _, _ := testSubmitService(t)

	if _, err := service.Submit(context.Background(), submitRequest(testInputFile(t))); err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	job, err := service.Cancel(context.Background(), "test_job")
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if job.State != scheduler.StateCancelled {
		t.Errorf("expected Cancelled, got %s", job.State)
	}
	if len(submitter.cancels) != 1 || submitter.cancels[0] != "12345678" {
		t.Errorf("expected scancel for 12345678, got %v", submitter.cancels)
	}
}

func TestCancelTerminalJobSkipsRemoteCall(t *testing.T) {
	service, submitter, _, _ := testSubmitService(t)

	done := testJob("1", "done_run", scheduler.StateCompleted)
	if err := service.Repo.Create(done); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	job, err := service.Cancel(context.Background(), "done_run")
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if job.State != scheduler.StateCompleted {
		t.Errorf("terminal state must not change, got %s", job.State)
	}
	if len(submitter.cancels) != 0 {
		t.Error("expected no remote call for an already-terminal job")
	}
}

func TestCancelUnknownJob(t *testing.T) {
	service, _, _, _ := testSubmitService(t)

	_, err := service.Cancel(context.Background(), "missing")
	if !errors.Is(err, ErrJobNotFound) {
		t.Errorf("expected ErrJobNotFound, got %v", err)
	}
}

func TestSubmitRejectsScriptInjection(t *testing.T) {
	service, _, uploader, _ := testSubmitService(t)
	input := testInputFile(t)

	cases := []struct {
		field string
		mod   func(*SubmitRequest)
	}{
		{"memory", func(r *SubmitRequest) { r.Memory = "16G\n#SBATCH --account=stolen" }},
		{"walltime", func(r *SubmitRequest) { r.WallTime = "04:00:00\nrm -rf ~" }},
		{"partition", func(r *SubmitRequest) { r.Partition = "amilan\nmalicious" }},
	}

	for _, tc := range cases {
		req := submitRequest(input)
		tc.mod(&req)

		_, err := service.Submit(context.Background(), req)
		if errdefs.KindOf(err) != errdefs.Validation {
			t.Errorf("%s: expected Validation error, got %v", tc.field, err)
		}
	}

	// fail closed: nothing may reach the cluster
	if len(uploader.uploads) != 0 {
		t.Errorf("expected no uploads for rejected requests, got %v", uploader.uploads)
	}
}
