package commands

import (
	"namdrunner/internal/events"

	"github.com/spf13/cobra"
)

var SyncCmd = &cobra.Command{
	Use:   "sync username[@hostname[:port]]",
	Short: "Reconcile the local job cache with the cluster",
	Long: `Reconcile the local job cache against the scheduler.

All non-terminal tracked jobs are queried in a single batch and their cached states are updated to match the cluster. On a first run against an empty cache, previously submitted jobs are discovered from the remote job namespace.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		err := connectCluster(cmd, args[0])

		if err != nil {
			cmd.PrintErrf("❌ Error: %v\n", err)
			return
		}

		defer sshService.Disconnect()

		updates := eventBus.SubscribeAll()

		result, err := newReconciler().Sync(cmd.Context())

		if err != nil {
			cmd.PrintErrf("❌ Error: %v\n", err)
			return
		}

	drain:
		for {
			select {
			case ev, ok := <-updates:
				if !ok {
					break drain
				}
				switch event := ev.(type) {
				case events.StateChangeEvent:
					cmd.Printf("• %s: %s -> %s\n", event.JobName, event.OldState, event.NewState)
				case events.LogEvent:
					cmd.Printf("• %s\n", event.Message)
				}
			default:
				break drain
			}
		}

		if result.Discovered > 0 {
			cmd.Printf("Discovered %d previously submitted job(s)\n", result.Discovered)
		}
		cmd.Printf("✅ Sync complete: %d updated, %d unchanged\n", result.Updated, result.Unchanged)

		for _, syncErr := range result.Errors {
			cmd.PrintErrf("⚠️ Warning: %s\n", syncErr)
		}
	},
}
