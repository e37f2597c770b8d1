package scheduler

import "strings"

// Every remote scheduler command runs inside the same fixed envelope so
// the cluster environment (profile, module system) is initialized
// identically no matter which operation issues it. The prefix and module
// sequence are constants and never interpolated from user input.
const (
	envInitPrefix      = "source /etc/profile"
	moduleLoadSequence = "module load slurm/alpine"

	squeueFormat = "%i|%j|%t|%M|%L|%D|%C|%m|%P|%Z"
	sacctFormat  = "JobID,JobName,State,ExitCode,Start,End,Elapsed,WorkDir"
)

// buildCommand wraps a payload in the standard envelope. Payload
// fragments embedding user-influenced values must already be escaped via
// validate.EscapeForCommand.
func buildCommand(payload string) string {
	return envInitPrefix + " && " + moduleLoadSequence + " && " + payload
}

// buildSubmitCommand issues sbatch for an already-escaped script path.
func buildSubmitCommand(escapedScriptPath string) string {
	return buildCommand("sbatch " + escapedScriptPath)
}

// buildActiveQueryCommand batches all scheduler job IDs into a single
// squeue round trip.
func buildActiveQueryCommand(jobIDs []string) string {
	return buildCommand("squeue --noheader --format='" + squeueFormat + "' --jobs=" + strings.Join(jobIDs, ","))
}

// buildHistoryQueryCommand queries sacct for jobs absent from the active
// queue.
func buildHistoryQueryCommand(jobIDs []string) string {
	return buildCommand("sacct --noheader --parsable2 --format=" + sacctFormat + " --jobs=" + strings.Join(jobIDs, ","))
}

func buildCancelCommand(jobID string) string {
	return buildCommand("scancel " + jobID)
}
