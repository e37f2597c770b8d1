package commands

import (
	"github.com/spf13/cobra"
)

var JobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List tracked jobs from the local cache",
	Long:  `List all tracked jobs from the local cache. This command works offline; run the sync command to refresh cached states from the cluster.`,
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		allJobs, err := jobsRepository.All()

		if err != nil {
			cmd.PrintErrf("❌ Error: %v\n", err)
			return
		}

		if len(allJobs) == 0 {
			cmd.Printf("No jobs are tracked yet.\nUse 'namdrunner submit' to submit a new job.\n")
			return
		}

		for _, job := range allJobs {
			schedulerID := job.SchedulerJobID
			if schedulerID == "" {
				schedulerID = "-"
			}
			cmd.Printf("%s\t%s\t%s\t%s\n", job.Name, schedulerID, job.State, job.UpdatedAt.Format("2006-01-02 15:04"))
		}
	},
}
