// Package debug holds the verbosity switches of a run: the log level, the
// log format and whether human-readable summaries are printed at all.
package debug

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

var (
	envDebug = os.Getenv("TM_DEBUG") != ""
	verbose  bool
	quiet    bool

	// out receives the summaries printed by PrintNormal and PrintlnNormal.
	out io.Writer = os.Stdout
)

// Enabled reports whether debug logging is on, through --verbose or TM_DEBUG.
func Enabled() bool {
	return envDebug || verbose
}

func SetVerbose(v bool) { verbose = v }

// SetQuiet suppresses summaries and lowers logging to warnings.
func SetQuiet(q bool) { quiet = q }

func IsQuiet() bool { return quiet }

// SetOutput redirects summaries; it returns the previous writer.
func SetOutput(w io.Writer) io.Writer {
	prev := out
	out = w
	return prev
}

// PrintNormal prints a summary line unless quiet.
func PrintNormal(format string, args ...interface{}) {
	if !quiet {
		fmt.Fprintf(out, format, args...)
	}
}

// PrintlnNormal is PrintNormal with Println formatting.
func PrintlnNormal(args ...interface{}) {
	if !quiet {
		fmt.Fprintln(out, args...)
	}
}

// Level is debug when verbose, warn when quiet and info otherwise.
// Verbose wins over quiet.
func Level() slog.Level {
	switch {
	case Enabled():
		return slog.LevelDebug
	case quiet:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// NewLogger returns a logger writing to w at Level(). format is "json" for
// one JSON object per line; anything else selects the key=value text format.
func NewLogger(w io.Writer, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: Level()}
	if strings.EqualFold(strings.TrimSpace(format), "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
