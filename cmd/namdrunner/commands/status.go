package commands

import (
	"errors"

	"namdrunner/internal/jobs"

	"github.com/spf13/cobra"
)

var StatusCmd = &cobra.Command{
	Use:   "status job-name username[@hostname[:port]]",
	Short: "Query the live cluster status of a job",
	Long:  `Query the scheduler for the current status of a single job, identified by its name or its scheduler job ID. Active jobs are looked up in the queue; finished jobs fall back to the accounting history.`,
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		jobName := args[0]

		job, err := jobsRepository.GetByName(jobName)
		if errors.Is(err, jobs.ErrJobNotFound) {
			job, err = jobsRepository.GetBySchedulerID(jobName)
		}

		if err != nil {
			cmd.PrintErrf("❌ Error: %v\n", err)
			return
		}

		if job.SchedulerJobID == "" {
			cmd.PrintErrf("❌ Error: %v\n", jobs.ErrJobNotSubmitted)
			return
		}

		err = connectCluster(cmd, args[1])

		if err != nil {
			cmd.PrintErrf("❌ Error: %v\n", err)
			return
		}

		defer sshService.Disconnect()

		report, err := schedulerService.QueryStatus(cmd.Context(), []string{job.SchedulerJobID})

		if err != nil {
			cmd.PrintErrf("❌ Error: %v\n", err)
			return
		}

		if len(report.Records) == 0 {
			cmd.Printf("No scheduler record found for job %s (scheduler job ID %s)\n", job.Name, job.SchedulerJobID)
			return
		}

		record := report.Records[0]

		cmd.Printf("Job:           %s\n", job.Name)
		cmd.Printf("Scheduler ID:  %s\n", record.SchedulerJobID)
		cmd.Printf("State:         %s\n", record.State)
		if record.TimeUsed != "" {
			cmd.Printf("Time used:     %s\n", record.TimeUsed)
		}
		if record.TimeLeft != "" {
			cmd.Printf("Time left:     %s\n", record.TimeLeft)
		}
		if record.Elapsed != "" {
			cmd.Printf("Elapsed:       %s\n", record.Elapsed)
		}
		if record.ExitCode != "" {
			cmd.Printf("Exit code:     %s\n", record.ExitCode)
		}
		if record.Partition != "" {
			cmd.Printf("Partition:     %s\n", record.Partition)
		}
		if record.WorkingDir != "" {
			cmd.Printf("Working dir:   %s\n", record.WorkingDir)
		}

		for _, reportErr := range report.Errors {
			cmd.PrintErrf("⚠️ Warning: %v\n", reportErr)
		}
	},
}
