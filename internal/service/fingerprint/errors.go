package fingerprint

import (
	"errors"

	"audiofp/internal/models"
)

// Client-facing messages.
const (
	MsgNoFile         = "No audio file uploaded"
	MsgInvalidType    = "Invalid file type. Only audio files are allowed."
	MsgParseFailed    = "Failed to parse fingerprint data"
	MsgInvokeFailed   = "Failed to generate fingerprint"
	MsgFpcalcNotFound = "Failed to generate fingerprint: fpcalc not found. Please make sure Chromaprint is installed."
	MsgSuccess        = "Fingerprint generated successfully"
)

// ClientInputError reports a request the caller must fix. It maps to 400.
type ClientInputError struct {
	Message string
}

func (e *ClientInputError) Error() string {
	return e.Message
}

// InvocationError is returned when fpcalc failed to produce output.
// Report is sent to the caller as-is.
type InvocationError struct {
	Report *models.DiagnosticReport
	Err    error
}

func (e *InvocationError) Error() string {
	if e.Err == nil {
		return e.Report.Error
	}
	return e.Report.Error + ": " + e.Err.Error()
}

func (e *InvocationError) Unwrap() error {
	return e.Err
}

// ErrOutputParse is returned when fpcalc exited cleanly but its output is not JSON.
var ErrOutputParse = errors.New("fpcalc output is not valid JSON")
