package fingerprint

import (
	"bytes"
	"context"
	"os/exec"
	"syscall"
	"time"
)

// CommandResult is what a finished (or failed) process left behind.
// ExitCode is nil when the process did not exit on its own.
type CommandResult struct {
	Stdout   []byte
	Stderr   string
	ExitCode *int
	Signal   string
}

// CommandRunner abstracts process execution for testability.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) (CommandResult, error)
}

// processWaitDelay bounds how long Wait blocks on output pipes after a kill.
const processWaitDelay = 5 * time.Second

// execRunner executes commands via os/exec.
type execRunner struct{}

// NewExecRunner returns the os/exec backed runner.
func NewExecRunner() CommandRunner {
	return &execRunner{}
}

// Run executes one command and captures stdout, stderr and how it ended.
func (r *execRunner) Run(ctx context.Context, name string, args ...string) (CommandResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.WaitDelay = processWaitDelay
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := CommandResult{
		Stdout: stdout.Bytes(),
		Stderr: stderr.String(),
	}
	if state := cmd.ProcessState; state != nil {
		if status, ok := state.Sys().(syscall.WaitStatus); ok && status.Signaled() {
			result.Signal = signalName(status.Signal())
		} else if code := state.ExitCode(); code >= 0 {
			result.ExitCode = &code
		}
	}
	return result, err
}

var signalNames = map[syscall.Signal]string{
	syscall.SIGHUP:  "SIGHUP",
	syscall.SIGINT:  "SIGINT",
	syscall.SIGQUIT: "SIGQUIT",
	syscall.SIGABRT: "SIGABRT",
	syscall.SIGKILL: "SIGKILL",
	syscall.SIGSEGV: "SIGSEGV",
	syscall.SIGPIPE: "SIGPIPE",
	syscall.SIGTERM: "SIGTERM",
}

func signalName(sig syscall.Signal) string {
	if name, ok := signalNames[sig]; ok {
		return name
	}
	return sig.String()
}
