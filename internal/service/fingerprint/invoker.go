package fingerprint

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"time"

	"github.com/alessio/shellescape"

	"audiofp/internal/models"
)

// Invoker runs fpcalc against a staged file. It never touches the file itself.
type Invoker struct {
	path    string
	timeout time.Duration
	runner  CommandRunner
}

// NewInvoker builds an invoker for the binary at path. A zero timeout leaves
// the run bounded only by ctx.
func NewInvoker(path string, timeout time.Duration, runner CommandRunner) *Invoker {
	if runner == nil {
		runner = NewExecRunner()
	}
	return &Invoker{path: path, timeout: timeout, runner: runner}
}

// Args returns the argument vector used to fingerprint stagedPath.
func (i *Invoker) Args(stagedPath string) []string {
	return []string{"-json", stagedPath}
}

// Command renders the shell-quoted command line for stagedPath.
func (i *Invoker) Command(stagedPath string) string {
	return shellescape.QuoteCommand(append([]string{i.path}, i.Args(stagedPath)...))
}

// Invoke runs `fpcalc -json <stagedPath>` and waits for it to finish.
func (i *Invoker) Invoke(ctx context.Context, stagedPath string) *models.InvocationResult {
	args := i.Args(stagedPath)
	res := &models.InvocationResult{Command: i.Command(stagedPath)}

	runCtx := ctx
	if i.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, i.timeout)
		defer cancel()
	}

	start := time.Now()
	out, err := i.runner.Run(runCtx, i.path, args...)
	res.Duration = time.Since(start)
	res.Stdout = out.Stdout
	res.Stderr = out.Stderr
	res.ExitCode = out.ExitCode
	res.Signal = out.Signal

	if err != nil && errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		res.TimedOut = true
		err = fmt.Errorf("fpcalc timed out after %s: %w", i.timeout, err)
	}
	res.Err = err
	return res
}

// ErrorCode classifies a failed invocation: the exit status when the process
// exited, "ENOENT" when the binary could not be found, nil otherwise.
func ErrorCode(res *models.InvocationResult) any {
	if res == nil {
		return nil
	}
	if res.ExitCode != nil {
		return *res.ExitCode
	}
	if IsNotFound(res.Err) {
		return "ENOENT"
	}
	return nil
}

// IsNotFound reports whether err means the executable does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist)
}
