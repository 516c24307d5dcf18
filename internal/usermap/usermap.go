// Package usermap translates source tracker user ids to destination user ids.
package usermap

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Default column names of the mapping table.
const (
	ColumnJira    = "jira_user"
	ColumnAsana   = "asana_user"
	ColumnTracker = "tracker_user"
)

// Mapping is a read-only source id to destination id table.
type Mapping map[string]string

// Resolve returns the destination id for id, or id itself when unmapped.
func Resolve(m Mapping, id string) string {
	if v, ok := m[id]; ok {
		return v
	}
	return id
}

// Load reads a CSV mapping table with a header row from path.
func Load(path, sourceColumn, destColumn string, logger *slog.Logger) (Mapping, error) {
	f, err := os.Open(path) // #nosec G304 - path comes from configuration
	if err != nil {
		return nil, fmt.Errorf("open user mapping %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	m, err := Read(f, sourceColumn, destColumn, logger)
	if err != nil {
		return nil, fmt.Errorf("user mapping %s: %w", path, err)
	}
	return m, nil
}

// Read parses a CSV mapping table from r. Both columns must be present in
// the header. Duplicate source ids are logged and the last row wins.
func Read(r io.Reader, sourceColumn, destColumn string, logger *slog.Logger) (Mapping, error) {
	if logger == nil {
		logger = slog.Default()
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("missing header row")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	srcIdx, dstIdx := -1, -1
	for i, name := range header {
		switch strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")) {
		case sourceColumn:
			srcIdx = i
		case destColumn:
			dstIdx = i
		}
	}
	if srcIdx < 0 {
		return nil, fmt.Errorf("column %q not found in header", sourceColumn)
	}
	if dstIdx < 0 {
		return nil, fmt.Errorf("column %q not found in header", destColumn)
	}

	m := make(Mapping)
	line := 1
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", line, err)
		}
		if srcIdx >= len(record) || dstIdx >= len(record) {
			logger.Warn("short row in user mapping", "line", line)
			continue
		}
		src := strings.TrimSpace(record[srcIdx])
		dst := strings.TrimSpace(record[dstIdx])
		if src == "" {
			continue
		}
		if prev, dup := m[src]; dup {
			logger.Warn("duplicate user in mapping, last one wins",
				"user", src, "previous", prev, "value", dst, "line", line)
		}
		m[src] = dst
	}
	return m, nil
}
