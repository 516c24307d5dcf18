package reconcile

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/steveyegge/trackmigrate/internal/types"
)

// ParseRecords turns "old new [# comment]" lines into records.
//
// Lines are deduplicated by exact text first, keeping the first occurrence.
// Everything after '#' is ignored. Lines with fewer than two tokens are
// skipped without a warning.
func ParseRecords(lines []string, logger *slog.Logger) []types.ReconcileRecord {
	if logger == nil {
		logger = slog.Default()
	}
	seen := make(map[string]bool, len(lines))
	unique := make([]string, 0, len(lines))
	for _, line := range lines {
		if seen[line] {
			continue
		}
		seen[line] = true
		unique = append(unique, line)
	}
	if len(unique) != len(lines) {
		logger.Warn("duplicate reconciliation lines removed", "duplicates", len(lines)-len(unique))
	}

	var records []types.ReconcileRecord
	for _, line := range unique {
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		records = append(records, types.ReconcileRecord{OldUID: fields[0], NewUID: fields[1]})
	}
	return records
}

// ReadRecords parses records from r.
func ReadRecords(r io.Reader, logger *slog.Logger) ([]types.ReconcileRecord, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read reconciliation input: %w", err)
	}
	return ParseRecords(lines, logger), nil
}

// LoadRecords reads the reconciliation input file at path.
func LoadRecords(path string, logger *slog.Logger) ([]types.ReconcileRecord, error) {
	// #nosec G304 - path comes from the operator's config
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open reconciliation input: %w", err)
	}
	defer func() { _ = f.Close() }()
	return ReadRecords(f, logger)
}
