package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var CancelForce = false

var CancelCmd = &cobra.Command{
	Use:   "cancel job-name username[@hostname[:port]]",
	Short: "Cancel a running or pending job",
	Long:  `Cancel a tracked job on the cluster. Already-finished jobs are left untouched. Cancellation is idempotent: cancelling an already-cancelled job succeeds.`,
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		jobName := args[0]

		if !CancelForce {
			cmd.Printf("Cancel job %s? (y/n): ", jobName)

			var confirm string
			_, err := fmt.Scanln(&confirm)

			if err != nil {
				cmd.PrintErrf("❌ Error: %v\n", err)
				return
			}

			if confirm != "y" {
				cmd.PrintErrf("❌ Aborted\n")
				return
			}
		}

		err := connectCluster(cmd, args[1])

		if err != nil {
			cmd.PrintErrf("❌ Error: %v\n", err)
			return
		}

		defer sshService.Disconnect()

		job, err := newJobsService().Cancel(cmd.Context(), jobName)

		if err != nil {
			cmd.PrintErrf("❌ Error: %v\n", err)
			return
		}

		cmd.Printf("✅ Job %s is now %s\n", job.Name, job.State)
	},
}

func init() {
	CancelCmd.Flags().BoolVarP(&CancelForce, "force", "f", false, "Skip the confirmation prompt")
}
