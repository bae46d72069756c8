package models

import "encoding/json"

// VersionProbe is the outcome of asking the tool for its version.
// Exactly one of Version or Err is set.
type VersionProbe struct {
	Version string
	Err     string
}

func (p VersionProbe) OK() bool { return p.Err == "" }

// LocationProbe is the outcome of looking the tool up on PATH.
type LocationProbe struct {
	Path  string
	Found bool
}

// DiagnosticReport is returned to the caller when the tool invocation fails.
// ErrorCode is an exit status (int), a symbolic code such as "ENOENT", or nil.
type DiagnosticReport struct {
	Error       string  `json:"error"`
	Details     string  `json:"details"`
	Command     string  `json:"command"`
	ErrorCode   any     `json:"errorCode"`
	ErrorSignal *string `json:"errorSignal"`
	Path        string  `json:"path"`
	OS          string  `json:"os"`
	GoVersion   string  `json:"goVersion"`

	Version  *VersionProbe  `json:"-"`
	Location *LocationProbe `json:"-"`
}

// MarshalJSON flattens the probe outcomes into the fpcalc* fields.
func (r DiagnosticReport) MarshalJSON() ([]byte, error) {
	type base DiagnosticReport
	out := struct {
		base
		FpcalcVersion      string `json:"fpcalcVersion,omitempty"`
		FpcalcVersionError string `json:"fpcalcVersionError,omitempty"`
		FpcalcPath         string `json:"fpcalcPath,omitempty"`
		FpcalcNotFound     bool   `json:"fpcalcNotFound,omitempty"`
	}{base: base(r)}

	if r.Version != nil {
		if r.Version.OK() {
			out.FpcalcVersion = r.Version.Version
		} else {
			out.FpcalcVersionError = r.Version.Err
		}
	}
	if r.Location != nil {
		if r.Location.Found {
			out.FpcalcPath = r.Location.Path
		} else {
			out.FpcalcNotFound = true
		}
	}
	return json.Marshal(out)
}
