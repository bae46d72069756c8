package models

import (
	"encoding/json"
	"testing"
)

func marshalReport(t *testing.T, r DiagnosticReport) map[string]any {
	t.Helper()
	raw, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return out
}

func TestDiagnosticReportBaseFields(t *testing.T) {
	out := marshalReport(t, DiagnosticReport{
		Error:     "Failed to generate fingerprint",
		Details:   "exit status 1",
		Command:   "fpcalc -json /tmp/a.mp3",
		ErrorCode: 1,
		Path:      "/tmp/a.mp3",
		OS:        "linux",
		GoVersion: "go1.24.2",
	})

	for _, key := range []string{"error", "details", "command", "errorCode", "errorSignal", "path", "os", "goVersion"} {
		if _, ok := out[key]; !ok {
			t.Fatalf("missing %q in %v", key, out)
		}
	}
	if out["errorSignal"] != nil {
		t.Fatalf("errorSignal should be null, got %v", out["errorSignal"])
	}
	for _, key := range []string{"fpcalcVersion", "fpcalcVersionError", "fpcalcPath", "fpcalcNotFound", "Version", "Location"} {
		if _, ok := out[key]; ok {
			t.Fatalf("unexpected %q without probes", key)
		}
	}
}

func TestDiagnosticReportProbeOutcomes(t *testing.T) {
	cases := []struct {
		name     string
		version  *VersionProbe
		location *LocationProbe
		want     map[string]any
	}{
		{
			name:    "version ok",
			version: &VersionProbe{Version: "fpcalc version 1.5.1"},
			want:    map[string]any{"fpcalcVersion": "fpcalc version 1.5.1"},
		},
		{
			name:     "version failed, found on path",
			version:  &VersionProbe{Err: "exit status 1"},
			location: &LocationProbe{Path: "/usr/bin/fpcalc", Found: true},
			want:     map[string]any{"fpcalcVersionError": "exit status 1", "fpcalcPath": "/usr/bin/fpcalc"},
		},
		{
			name:     "not installed",
			version:  &VersionProbe{Err: "executable file not found"},
			location: &LocationProbe{},
			want:     map[string]any{"fpcalcVersionError": "executable file not found", "fpcalcNotFound": true},
		},
	}
	probeKeys := []string{"fpcalcVersion", "fpcalcVersionError", "fpcalcPath", "fpcalcNotFound"}

	for _, tc := range cases {
		out := marshalReport(t, DiagnosticReport{Version: tc.version, Location: tc.location})
		for _, key := range probeKeys {
			want, expected := tc.want[key]
			got, present := out[key]
			if expected != present {
				t.Fatalf("%s: key %q present=%v, want %v", tc.name, key, present, expected)
			}
			if expected && got != want {
				t.Fatalf("%s: %q = %v, want %v", tc.name, key, got, want)
			}
		}
	}
}

func TestDiagnosticReportSymbolicErrorCode(t *testing.T) {
	signal := "SIGKILL"
	out := marshalReport(t, DiagnosticReport{ErrorCode: "ENOENT", ErrorSignal: &signal})
	if out["errorCode"] != "ENOENT" || out["errorSignal"] != "SIGKILL" {
		t.Fatalf("unexpected codes: %v", out)
	}
}
