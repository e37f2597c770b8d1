package commands

import (
	"github.com/spf13/cobra"
)

var ConnectCmd = &cobra.Command{
	Use:   "connect username[@hostname[:port]]",
	Short: "Verify cluster connectivity",
	Long: `Verify that the cluster is reachable and the credentials are valid.

If only a username is provided, the configured default cluster host is used. The command prompts for the password, establishes an SSH session, runs a connectivity check and disconnects.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		err := connectCluster(cmd, args[0])

		if err != nil {
			cmd.PrintErrf("❌ Error: %v\n", err)
			return
		}

		defer sshService.Disconnect()

		session := sshService.Session()
		cmd.Printf("✅ Connected to %s@%s:%d\n", session.Username, session.Host, session.Port)
	},
}
