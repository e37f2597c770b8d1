package commands

import (
	"namdrunner/cmd/namdrunner/config"
	"namdrunner/internal/events"
	"namdrunner/internal/jobs"
	"namdrunner/internal/retry"
	"namdrunner/internal/scheduler"
	"namdrunner/internal/ssh"
	"namdrunner/internal/transfer"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var (
	jobsRepository   *jobs.Repository
	eventBus         *events.Bus
	sshService       *ssh.Service
	schedulerService *scheduler.Service
	transferService  *transfer.Service
)

func RegisterCommands(rootCmd *cobra.Command, db *gorm.DB) {
	jobsRepository = jobs.NewRepository(db)
	eventBus = events.NewBus(0)
	sshService = ssh.NewService(config.Config.ConnectTimeout, config.Config.CommandTimeout)
	schedulerService = scheduler.NewService(sshService, retry.Policy{
		MaxAttempts: config.Config.RetryMaxAttempts,
		BaseDelay:   config.Config.RetryBaseDelay,
		JitterBound: config.Config.RetryJitterBound,
	})
	transferService = transfer.NewService(sshService, eventBus, config.Config.ChunkSize, config.Config.ChunkTimeout)

	rootCmd.AddCommand(ConnectCmd)
	rootCmd.AddCommand(SubmitCmd)
	rootCmd.AddCommand(StatusCmd)
	rootCmd.AddCommand(SyncCmd)
	rootCmd.AddCommand(CancelCmd)
	rootCmd.AddCommand(UploadCmd)
	rootCmd.AddCommand(DownloadCmd)
	rootCmd.AddCommand(JobsCmd)
}
