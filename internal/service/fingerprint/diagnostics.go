package fingerprint

import (
	"context"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"audiofp/internal/models"
)

const defaultProbeTimeout = 10 * time.Second

// Prober inspects the fpcalc installation after a failed invocation.
type Prober struct {
	path     string
	timeout  time.Duration
	runner   CommandRunner
	lookPath func(string) (string, error)
}

func NewProber(path string, timeout time.Duration, runner CommandRunner) *Prober {
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	if runner == nil {
		runner = NewExecRunner()
	}
	return &Prober{
		path:     path,
		timeout:  timeout,
		runner:   runner,
		lookPath: exec.LookPath,
	}
}

// ProbeVersion runs `fpcalc -version`.
func (p *Prober) ProbeVersion(ctx context.Context) *models.VersionProbe {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	out, err := p.runner.Run(ctx, p.path, "-version")
	if err != nil {
		return &models.VersionProbe{Err: err.Error()}
	}
	return &models.VersionProbe{Version: strings.TrimSpace(string(out.Stdout))}
}

// ProbeLocation looks fpcalc up on PATH.
func (p *Prober) ProbeLocation() *models.LocationProbe {
	path, err := p.lookPath(p.path)
	if err != nil {
		return &models.LocationProbe{}
	}
	return &models.LocationProbe{Path: path, Found: true}
}

// Report assembles the diagnostic report for a failed invocation. The
// location probe only runs when the version probe failed.
func (p *Prober) Report(ctx context.Context, res *models.InvocationResult, stagedPath string) *models.DiagnosticReport {
	report := &models.DiagnosticReport{
		Error:     MsgInvokeFailed,
		Details:   details(res),
		Command:   res.Command,
		ErrorCode: ErrorCode(res),
		Path:      stagedPath,
		OS:        runtime.GOOS,
		GoVersion: runtime.Version(),
	}
	if res.Signal != "" {
		signal := res.Signal
		report.ErrorSignal = &signal
	}

	report.Version = p.ProbeVersion(ctx)
	if !report.Version.OK() {
		report.Location = p.ProbeLocation()
		if !report.Location.Found {
			report.Error = MsgFpcalcNotFound
		}
	}
	return report
}

func details(res *models.InvocationResult) string {
	var msg string
	if res.Err != nil {
		msg = res.Err.Error()
	}
	if stderr := strings.TrimSpace(res.Stderr); stderr != "" {
		if msg == "" {
			return stderr
		}
		return msg + "\n" + stderr
	}
	return msg
}
