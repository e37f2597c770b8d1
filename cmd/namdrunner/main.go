package main

import (
	"fmt"
	"namdrunner/cmd/namdrunner/commands"
	"namdrunner/cmd/namdrunner/config"
	"namdrunner/internal/database"
	"namdrunner/internal/logger"
	"namdrunner/version"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "namdrunner",
	Short: "Run and monitor NAMD simulation jobs on a remote Slurm cluster",
	Long: `namdrunner drives NAMD molecular dynamics simulations on a remote HPC cluster over SSH.

It uploads simulation inputs, renders and submits Slurm batch scripts, tracks the submitted jobs in a local cache and reconciles their states against the scheduler. No agent or server-side software is required on the cluster: everything runs over a standard SSH session with password authentication.

Typical workflow:

1. Verify connectivity:

namdrunner connect jdoe

(replace jdoe with your cluster username; pass jdoe@login.example.edu:22 to target a different host)

2. Submit a simulation:

namdrunner submit jdoe --name equil_run --input ./equil.conf --cpus 24 --walltime 04:00:00

3. Check on your jobs:

namdrunner sync jdoe
namdrunner jobs

4. Fetch results when the job completes:

namdrunner download equil_run equil.log jdoe

Cached job states survive restarts; the cluster is always the source of truth and 'namdrunner sync' converges the cache to it.
`,
	Version: fmt.Sprintf("%s (commit: %s, date: %s, arch: %s, os: %s); db path: %s; profile: %s", version.Version, version.Commit, version.Date, version.Arch, version.OS, config.DatabasePath, config.Profile),
	PersistentPreRun: func(*cobra.Command, []string) {
		logger.SetVerbose(verbose)
	},
}

var verbose bool

func main() {
	db, err := database.InitDB(config.Config.DatabasePath)

	if err != nil {
		// nothing works without the job cache; bail out instead of
		// nil-panicking on the first repository call
		logger.Fatal("Failed to initialize database at %s: %v", config.Config.DatabasePath, err)
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	commands.RegisterCommands(rootCmd, db)

	if err := rootCmd.Execute(); err != nil {
		rootCmd.PrintErrf("%v\n", err)
	}

	defer func() {
		if err := database.CloseDB(db); err != nil {
			rootCmd.PrintErrf("Failed to close database: %v\n", err)
		}
	}()
}
