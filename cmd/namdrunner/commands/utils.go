package commands

import (
	"fmt"
	"strconv"
	"strings"
	"syscall"

	"namdrunner/cmd/namdrunner/config"
	"namdrunner/internal/events"
	"namdrunner/internal/jobs"
	"namdrunner/internal/secrets"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func readPasswordSecurely(prompt string) ([]byte, error) {
	// reads the password from the terminal without echoing; returned as
	// bytes so the credential vault can zero them after the handshake
	fmt.Print(prompt)
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return nil, err
	}
	return bytePassword, nil
}

// parseSSHTarget parses a target in the format username@hostname:port or
// username@hostname. Returns username, hostname, port, and any error.
func parseSSHTarget(target string) (username, hostname string, port uint, err error) {
	port = 22

	if strings.Contains(target, ":") {
		parts := strings.Split(target, ":")
		if len(parts) != 2 {
			return "", "", 0, fmt.Errorf("invalid target format: %s", target)
		}

		if portStr := parts[1]; portStr != "" {
			parsedPort, err := strconv.ParseUint(portStr, 10, 32)
			if err != nil {
				return "", "", 0, fmt.Errorf("invalid port number: %s", portStr)
			}
			port = uint(parsedPort)
		}

		target = parts[0]
	}

	if strings.Contains(target, "@") {
		parts := strings.Split(target, "@")
		if len(parts) != 2 {
			return "", "", 0, fmt.Errorf("invalid target format: %s", target)
		}
		username = parts[0]
		hostname = parts[1]
	} else {
		username = target
		hostname = config.Config.ClusterHost
		port = config.Config.ClusterPort
	}

	if username == "" {
		return "", "", 0, fmt.Errorf("username cannot be empty")
	}
	if hostname == "" {
		return "", "", 0, fmt.Errorf("hostname cannot be empty")
	}

	return username, hostname, port, nil
}

// connectCluster prompts for the password and establishes the session.
// The caller is responsible for disconnecting.
func connectCluster(cmd *cobra.Command, target string) error {
	username, hostname, port, err := parseSSHTarget(target)
	if err != nil {
		return err
	}

	password, err := readPasswordSecurely(fmt.Sprintf("Password for %s@%s: ", username, hostname))
	if err != nil {
		return err
	}

	cred := secrets.NewCredential(password)
	defer cred.Close()

	return sshService.Connect(hostname, port, username, cred)
}

// newJobsService builds the submit/cancel service against the connected
// user's remote job namespace.
func newJobsService() *jobs.Service {
	return &jobs.Service{
		Repo:      jobsRepository,
		Scheduler: schedulerService,
		Transfer:  transferService,
		Executor:  sshService,
		BaseDir:   config.Config.RemoteBaseDir(sshService.Session().Username),
	}
}

func newReconciler() *jobs.Reconciler {
	return &jobs.Reconciler{
		Repo:     jobsRepository,
		Querier:  schedulerService,
		Executor: sshService,
		Bus:      eventBus,
		BaseDir:  config.Config.RemoteBaseDir(sshService.Session().Username),
	}
}

// renderTransferProgress drives a progress bar from transfer events until
// stop is closed.
func renderTransferProgress(stop <-chan struct{}) {
	ch := eventBus.Subscribe(events.EventTransferProgress)

	var bar *progressbar.ProgressBar
	for {
		select {
		case <-stop:
			if bar != nil {
				_ = bar.Finish()
			}
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			progress, isProgress := ev.(events.TransferProgressEvent)
			if !isProgress {
				continue
			}
			if bar == nil {
				bar = progressbar.DefaultBytes(progress.TotalBytes, progress.FileName)
			}
			_ = bar.Set64(progress.BytesTransferred)
		}
	}
}
