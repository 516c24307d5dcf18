package debug

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

// withSwitches sets the package switches for one test and restores them.
func withSwitches(t *testing.T, env, v, q bool) {
	t.Helper()
	oldEnv, oldVerbose, oldQuiet := envDebug, verbose, quiet
	t.Cleanup(func() { envDebug, verbose, quiet = oldEnv, oldVerbose, oldQuiet })
	envDebug, verbose, quiet = env, v, q
}

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := SetOutput(&buf)
	t.Cleanup(func() { SetOutput(prev) })
	return &buf
}

func TestEnabled(t *testing.T) {
	tests := []struct {
		name    string
		env     bool
		verbose bool
		want    bool
	}{
		{"off", false, false, false},
		{"verbose flag", false, true, true},
		{"TM_DEBUG without verbose", true, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withSwitches(t, tt.env, false, false)
			SetVerbose(tt.verbose)
			if got := Enabled(); got != tt.want {
				t.Errorf("Enabled() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestQuietSuppressesSummaries(t *testing.T) {
	withSwitches(t, false, false, false)
	buf := captureOutput(t)

	PrintNormal("created %d issues\n", 3)
	PrintlnNormal("queue", "PROJ")
	if got, want := buf.String(), "created 3 issues\nqueue PROJ\n"; got != want {
		t.Errorf("output = %q, want %q", got, want)
	}

	buf.Reset()
	SetQuiet(true)
	if !IsQuiet() {
		t.Fatal("IsQuiet() = false after SetQuiet(true)")
	}
	PrintNormal("created %d issues\n", 3)
	PrintlnNormal("queue", "PROJ")
	if buf.Len() != 0 {
		t.Errorf("quiet output = %q, want empty", buf.String())
	}
}

func TestLevel(t *testing.T) {
	tests := []struct {
		name      string
		env, v, q bool
		want      slog.Level
	}{
		{"default", false, false, false, slog.LevelInfo},
		{"verbose", false, true, false, slog.LevelDebug},
		{"TM_DEBUG", true, false, false, slog.LevelDebug},
		{"quiet", false, false, true, slog.LevelWarn},
		{"verbose wins over quiet", false, true, true, slog.LevelDebug},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withSwitches(t, tt.env, tt.v, tt.q)
			if got := Level(); got != tt.want {
				t.Errorf("Level() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewLoggerText(t *testing.T) {
	withSwitches(t, false, false, true)

	var buf bytes.Buffer
	logger := NewLogger(&buf, "text")
	logger.Info("issue created", "issue", "P-1")
	logger.Warn("user not found in destination, field cleared", "issue", "P-2")

	out := buf.String()
	if strings.Contains(out, "issue=P-1") {
		t.Errorf("quiet logger kept an info line: %q", out)
	}
	if !strings.Contains(out, "issue=P-2") {
		t.Errorf("warning missing from %q", out)
	}
}

func TestNewLoggerJSON(t *testing.T) {
	withSwitches(t, false, true, false)

	var buf bytes.Buffer
	NewLogger(&buf, " JSON ").Debug("page fetched", "project", "PROJ", "page", 2)

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	want := map[string]any{"level": "DEBUG", "msg": "page fetched", "project": "PROJ", "page": float64(2)}
	for k, v := range want {
		if line[k] != v {
			t.Errorf("%s = %v, want %v", k, line[k], v)
		}
	}
}
