package task

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"
)

const (
	// maxOutputBytes caps how much command output is kept for the failure
	// message. Linters can dump megabytes on a bad day.
	maxOutputBytes = 64 * 1024

	// terminationGracePeriod is how long a timed-out command gets between
	// SIGTERM and SIGKILL.
	terminationGracePeriod = 2 * time.Second
)

// runTask executes the task's command through the shell and drives the task
// to a terminal status. The child always gets reaped, including on the
// timeout path, so no zombies outlive the run.
//
// The command runs with the repository root as working directory and the
// staged path exported as FILE, so patterns like "eslint $FILE" resolve.
func runTask(t *Task, dir string, logger *slog.Logger) {
	t.markRunning(time.Now())

	cmd := exec.Command("sh", "-c", t.command)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "FILE="+t.file)

	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	if err := cmd.Start(); err != nil {
		t.finish(StatusFailed, err.Error())
		return
	}

	waitErr := make(chan error, 1)
	go func() { waitErr <- cmd.Wait() }()

	if t.timeout <= 0 {
		t.settle(<-waitErr, &output)
		return
	}

	timer := time.NewTimer(t.timeout)
	defer timer.Stop()

	select {
	case err := <-waitErr:
		t.settle(err, &output)
	case <-timer.C:
		logger.Warn("command timed out, sending SIGTERM",
			"command", t.command,
			"file", t.file,
			"timeout", t.timeout.String())
		_ = cmd.Process.Signal(syscall.SIGTERM)
		select {
		case <-waitErr:
		case <-time.After(terminationGracePeriod):
			logger.Warn("command ignored SIGTERM, sending SIGKILL",
				"command", t.command,
				"file", t.file)
			_ = cmd.Process.Kill()
			<-waitErr
		}
		t.finish(StatusTimeout, "")
	}
}

// settle maps the wait result onto a terminal status.
func (t *Task) settle(err error, output *bytes.Buffer) {
	if err == nil {
		t.finish(StatusDone, "")
		return
	}

	msg := err.Error()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if out := strings.TrimSpace(truncateOutput(output.String())); out != "" {
			msg = msg + ": " + out
		}
	}
	t.finish(StatusFailed, msg)
}

func truncateOutput(s string) string {
	if len(s) > maxOutputBytes {
		return s[:maxOutputBytes]
	}
	return s
}
