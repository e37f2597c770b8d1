package commands

import (
	"namdrunner/cmd/namdrunner/config"
	"namdrunner/internal/jobs"

	"github.com/spf13/cobra"
)

var (
	SubmitJobName   string
	SubmitInputFile string
	SubmitPartition string
	SubmitNodes     int
	SubmitCPUs      int
	SubmitMemory    string
	SubmitWallTime  string
)

var SubmitCmd = &cobra.Command{
	Use:   "submit username[@hostname[:port]]",
	Short: "Submit a simulation job to the cluster",
	Long: `Submit a NAMD simulation job to the cluster scheduler.

Uploads the input file into the job's remote working directory, renders the batch script and submits it. The job is tracked in the local cache and can be monitored with the status and sync commands.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		err := connectCluster(cmd, args[0])

		if err != nil {
			cmd.PrintErrf("❌ Error: %v\n", err)
			return
		}

		defer sshService.Disconnect()

		job, err := newJobsService().Submit(cmd.Context(), jobs.SubmitRequest{
			JobName:   SubmitJobName,
			InputFile: SubmitInputFile,
			Partition: SubmitPartition,
			Nodes:     SubmitNodes,
			CPUs:      SubmitCPUs,
			Memory:    SubmitMemory,
			WallTime:  SubmitWallTime,
		})

		if err != nil {
			cmd.PrintErrf("❌ Error: %v\n", err)
			return
		}

		cmd.Printf("✅ Job %s submitted (scheduler job ID %s)\n", job.Name, job.SchedulerJobID)
		cmd.Printf("Working directory: %s\n", job.WorkingDir)
	},
}

func init() {
	SubmitCmd.Flags().StringVar(&SubmitJobName, "name", "", "Unique job name (required)")
	SubmitCmd.Flags().StringVar(&SubmitInputFile, "input", "", "Path to the local NAMD configuration file (required)")
	SubmitCmd.Flags().StringVar(&SubmitPartition, "partition", config.Config.DefaultPartition, "Cluster partition to submit to")
	SubmitCmd.Flags().IntVar(&SubmitNodes, "nodes", config.Config.DefaultNodes, "Number of nodes")
	SubmitCmd.Flags().IntVar(&SubmitCPUs, "cpus", config.Config.DefaultCPUs, "Number of CPU cores")
	SubmitCmd.Flags().StringVar(&SubmitMemory, "memory", config.Config.DefaultMemory, "Memory per node, e.g. 16G")
	SubmitCmd.Flags().StringVar(&SubmitWallTime, "walltime", config.Config.DefaultWallTime, "Wall-clock time limit, e.g. 04:00:00")

	_ = SubmitCmd.MarkFlagRequired("name")
	_ = SubmitCmd.MarkFlagRequired("input")
}
