package models

import "time"

// InvocationResult is the outcome of running the fingerprinting tool once.
// ExitCode is nil when the process never exited normally (not started, killed).
type InvocationResult struct {
	Command  string
	Stdout   []byte
	Stderr   string
	ExitCode *int
	Signal   string
	Err      error
	Duration time.Duration
	TimedOut bool
}

// InvocationStatus tracks a staged asset through the pipeline.
type InvocationStatus string

const (
	StatusStaged           InvocationStatus = "staged"
	StatusSucceeded        InvocationStatus = "succeeded"
	StatusParseFailed      InvocationStatus = "parse_failed"
	StatusInvocationFailed InvocationStatus = "invocation_failed"
	StatusRejected         InvocationStatus = "rejected"
)

// InvocationRecord is the ledger view of one request. It never holds the
// fingerprint itself.
type InvocationRecord struct {
	AssetID       string           `json:"asset_id"`
	Status        InvocationStatus `json:"status"`
	ExitCode      *int             `json:"exit_code,omitempty"`
	Error         string           `json:"error,omitempty"`
	AudioDuration float64          `json:"audio_duration,omitempty"`
	Elapsed       time.Duration    `json:"elapsed"`
	CompletedAt   time.Time        `json:"completed_at"`
}
