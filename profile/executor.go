package profile

import (
	"os/exec"
	"strings"
	"syscall"

	log "github.com/sirupsen/logrus"
)

// ShellExecutor hands every command to a shell and does not wait for it.
type ShellExecutor struct {
	// Shell defaults to /bin/sh.
	Shell string
	// DryRun only logs the commands.
	DryRun bool
}

// Execute implements Executor.
func (e *ShellExecutor) Execute(commands []string) {
	if len(commands) == 0 {
		log.Debug("no commands to execute")
		return
	}

	shell := e.Shell
	if shell == "" {
		shell = "/bin/sh"
	}

	for _, command := range commands {
		l := log.WithField("command", command)
		if strings.TrimSpace(command) == "" {
			l.Warn("encountered an empty command, skipping")
			continue
		}
		if e.DryRun {
			l.Info("dry run, not executing command")
			continue
		}

		cmd := exec.Command(shell, "-c", command)
		// own process group, so signals aimed at the daemon don't hit it
		cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
		if err := cmd.Start(); err != nil {
			l.WithError(err).Error("failed to execute command")
			continue
		}
		l.WithField("pid", cmd.Process.Pid).Debug("started command")

		// reap in the background; the exit status is only logged
		go func() {
			if err := cmd.Wait(); err != nil {
				l.WithError(err).Warn("command failed")
				return
			}
			l.Debug("command finished")
		}()
	}
}
