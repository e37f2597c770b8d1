package commands

import (
	"path"

	"namdrunner/internal/logger"
	"namdrunner/internal/validate"

	"github.com/spf13/cobra"
)

var DownloadOutput = ""

var DownloadCmd = &cobra.Command{
	Use:   "download job-name remote-file username[@hostname[:port]]",
	Short: "Download a result file from a job's working directory",
	Long:  `Download a file from the remote working directory of a tracked job, e.g. trajectory or log output produced by the simulation.`,
	Args:  cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		jobName := args[0]

		job, err := jobsRepository.GetByName(jobName)

		if err != nil {
			cmd.PrintErrf("❌ Error: %v\n", err)
			return
		}

		fileName, err := validate.SanitizeFileName(args[1])

		if err != nil {
			cmd.PrintErrf("❌ Error: %v\n", err)
			return
		}

		localPath := DownloadOutput
		if localPath == "" {
			localPath = fileName
		}

		err = connectCluster(cmd, args[2])

		if err != nil {
			cmd.PrintErrf("❌ Error: %v\n", err)
			return
		}

		defer sshService.Disconnect()

		stop := make(chan struct{})
		go renderTransferProgress(stop)

		remotePath := path.Join(job.WorkingDir, fileName)
		err = transferService.Download(cmd.Context(), remotePath, localPath)
		close(stop)

		if dropped := eventBus.Dropped(); dropped > 0 {
			logger.Debug("%d progress events dropped during transfer", dropped)
		}

		if err != nil {
			cmd.PrintErrf("❌ Error: %v\n", err)
			return
		}

		cmd.Printf("✅ Downloaded %s to %s\n", remotePath, localPath)
	},
}

func init() {
	DownloadCmd.Flags().StringVarP(&DownloadOutput, "output", "o", "", "Local destination path (defaults to the remote file name)")
}
