package scheduler

import (
	"regexp"
	"strings"

	"namdrunner/internal/errdefs"
)

const (
	activeFieldCount  = 10
	historyFieldCount = 8
)

var submittedPattern = regexp.MustCompile(`Submitted batch job (\d+)`)

// parseSubmitOutput extracts the scheduler job ID from sbatch output.
// Anything that does not match the expected pattern is a submission
// failure, never retried.
func parseSubmitOutput(stdout string) (string, error) {
	match := submittedPattern.FindStringSubmatch(stdout)
	if match == nil {
		return "", errdefs.NewProtocol(stdout, "sbatch output did not contain a job id")
	}
	return match[1], nil
}

// splitRecord splits a pipe-delimited single-line record into exactly
// want fields. A trailing empty field is tolerated; fewer fields than
// expected is a protocol error carrying the raw line.
func splitRecord(line string, want int) ([]string, error) {
	fields := strings.Split(line, "|")

	if len(fields) == want+1 && fields[want] == "" {
		fields = fields[:want]
	}

	if len(fields) < want {
		return nil, errdefs.NewProtocol(line, "expected %d fields, got %d", want, len(fields))
	}

	return fields[:want], nil
}

// parseActiveRecord parses one squeue record:
// job_id|name|state_code|time_used|time_left|node_count|cpu_count|memory|partition|working_dir
func parseActiveRecord(line string) (*JobStatusRecord, error) {
	fields, err := splitRecord(line, activeFieldCount)
	if err != nil {
		return nil, err
	}

	state, ok := stateFromQueueCode(fields[2])
	if !ok {
		return nil, errdefs.NewProtocol(line, "unknown squeue state code %q", fields[2])
	}

	return &JobStatusRecord{
		SchedulerJobID: fields[0],
		Name:           fields[1],
		State:          state,
		TimeUsed:       fields[3],
		TimeLeft:       fields[4],
		NodeCount:      fields[5],
		CPUCount:       fields[6],
		Memory:         fields[7],
		Partition:      fields[8],
		WorkingDir:     fields[9],
	}, nil
}

// parseHistoryRecord parses one sacct record:
// job_id|name|state|exit_code|start|end|elapsed|working_dir
// sacct emits sub-step records (e.g. "12345678.batch") alongside the job
// record; those are skipped, returning (nil, nil).
func parseHistoryRecord(line string) (*JobStatusRecord, error) {
	fields, err := splitRecord(line, historyFieldCount)
	if err != nil {
		return nil, err
	}

	if strings.Contains(fields[0], ".") {
		return nil, nil
	}

	state, ok := stateFromHistory(fields[2])
	if !ok {
		return nil, errdefs.NewProtocol(line, "unknown sacct state %q", fields[2])
	}

	return &JobStatusRecord{
		SchedulerJobID: fields[0],
		Name:           fields[1],
		State:          state,
		ExitCode:       fields[3],
		Start:          fields[4],
		End:            fields[5],
		Elapsed:        fields[6],
		WorkingDir:     fields[7],
	}, nil
}

// parseRecords applies parse to every non-empty output line, collecting
// per-line errors instead of aborting the batch.
func parseRecords(stdout string, parse func(string) (*JobStatusRecord, error)) ([]JobStatusRecord, []error) {
	var records []JobStatusRecord
	var errs []error

	for _, line := range strings.Split(stdout, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		record, err := parse(line)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if record != nil {
			records = append(records, *record)
		}
	}

	return records, errs
}

// stateFromQueueCode maps squeue short state codes.
func stateFromQueueCode(code string) (JobState, bool) {
	switch code {
	case "PD", "CF":
		return StatePending, true
	case "R", "CG", "S":
		return StateRunning, true
	case "CD":
		return StateCompleted, true
	case "F", "TO", "NF", "OOM", "BF", "DL":
		return StateFailed, true
	case "CA":
		return StateCancelled, true
	}
	return "", false
}

// stateFromHistory maps sacct long state names. Cancellations show up as
// "CANCELLED" or "CANCELLED by <uid>".
func stateFromHistory(state string) (JobState, bool) {
	s := strings.ToUpper(strings.TrimSpace(state))

	switch {
	case s == "PENDING":
		return StatePending, true
	case s == "RUNNING", s == "COMPLETING":
		return StateRunning, true
	case s == "COMPLETED":
		return StateCompleted, true
	case strings.HasPrefix(s, "CANCELLED"):
		return StateCancelled, true
	case s == "FAILED", s == "TIMEOUT", s == "NODE_FAIL",
		s == "OUT_OF_MEMORY", s == "BOOT_FAIL", s == "DEADLINE", s == "PREEMPTED":
		return StateFailed, true
	}
	return "", false
}
