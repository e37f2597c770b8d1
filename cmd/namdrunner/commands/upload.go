package commands

import (
	"path"
	"path/filepath"

	"namdrunner/internal/logger"
	"namdrunner/internal/validate"

	"github.com/spf13/cobra"
)

var UploadCmd = &cobra.Command{
	Use:   "upload job-name local-file username[@hostname[:port]]",
	Short: "Upload a file into a job's working directory",
	Long:  `Upload a local file into the remote working directory of a tracked job. Large files are streamed in chunks with progress reporting.`,
	Args:  cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		jobName, localPath := args[0], args[1]

		job, err := jobsRepository.GetByName(jobName)

		if err != nil {
			cmd.PrintErrf("❌ Error: %v\n", err)
			return
		}

		fileName, err := validate.SanitizeFileName(filepath.Base(localPath))

		if err != nil {
			cmd.PrintErrf("❌ Error: %v\n", err)
			return
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
		err = transferService.Upload(cmd.Context(), localPath, remotePath)
		close(stop)

		if dropped := eventBus.Dropped(); dropped > 0 {
			logger.Debug("%d progress events dropped during transfer", dropped)
		}

		if err != nil {
			cmd.PrintErrf("❌ Error: %v\n", err)
			return
		}

		cmd.Printf("✅ Uploaded %s to %s\n", localPath, remotePath)
	},
}
