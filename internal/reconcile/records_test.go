package reconcile

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/trackmigrate/internal/types"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestParseRecordsDeduplicates(t *testing.T) {
	got := ParseRecords([]string{"U1 U2", "U1 U2", "U3 U4"}, discardLogger())
	assert.Equal(t, []types.ReconcileRecord{
		{OldUID: "U1", NewUID: "U2"},
		{OldUID: "U3", NewUID: "U4"},
	}, got)
}

func TestParseRecords(t *testing.T) {
	tests := []struct {
		name  string
		lines []string
		want  []types.ReconcileRecord
	}{
		{"comment stripped", []string{"111 222 # alice@example.com Alice"}, []types.ReconcileRecord{{OldUID: "111", NewUID: "222"}}},
		{"no new uid", []string{"111 # alice@example.com Alice"}, nil},
		{"blank", []string{"", "   ", "# header"}, nil},
		{"extra whitespace", []string{"  111\t222  "}, []types.ReconcileRecord{{OldUID: "111", NewUID: "222"}}},
		{"extra tokens ignored", []string{"111 222 333"}, []types.ReconcileRecord{{OldUID: "111", NewUID: "222"}}},
		{"order kept", []string{"b c", "a d"}, []types.ReconcileRecord{{OldUID: "b", NewUID: "c"}, {OldUID: "a", NewUID: "d"}}},
		{"same uid different comment", []string{"1 2 # x", "1 2 # y"}, []types.ReconcileRecord{{OldUID: "1", NewUID: "2"}, {OldUID: "1", NewUID: "2"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseRecords(tt.lines, discardLogger()))
		})
	}
}

func TestReadRecords(t *testing.T) {
	in := "1 2 # first\n1 2 # first\n\n3 4\n"
	got, err := ReadRecords(strings.NewReader(in), discardLogger())
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestLoadRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "to.txt")
	require.NoError(t, os.WriteFile(path, []byte("old new\n"), 0o600))

	got, err := LoadRecords(path, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, []types.ReconcileRecord{{OldUID: "old", NewUID: "new"}}, got)

	_, err = LoadRecords(filepath.Join(t.TempDir(), "missing.txt"), discardLogger())
	assert.Error(t, err)
}
