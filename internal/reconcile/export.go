package reconcile

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/steveyegge/trackmigrate/internal/types"
)

// UserLister lists every user of a tracker organization.
type UserLister interface {
	ListUsers(ctx context.Context) ([]types.User, error)
}

// ExportUsers writes one "uid # email display" line per user to path.
// An existing file is never touched: ExportUsers returns false and logs a
// warning instead.
func ExportUsers(ctx context.Context, lister UserLister, path string, logger *slog.Logger) (bool, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if _, err := os.Stat(path); err == nil {
		logger.Warn("user export file already exists, not overwritten", "file", path)
		return false, nil
	}

	users, err := lister.ListUsers(ctx)
	if err != nil {
		return false, fmt.Errorf("list users: %w", err)
	}
	if len(users) == 0 {
		logger.Warn("no users to export")
		return false, nil
	}

	// #nosec G304 - path comes from the operator's config
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			logger.Warn("user export file already exists, not overwritten", "file", path)
			return false, nil
		}
		return false, fmt.Errorf("create %s: %w", path, err)
	}
	w := bufio.NewWriter(f)
	for _, u := range users {
		fmt.Fprintf(w, "%s # %s %s\n", u.UID, u.Email, u.Display)
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return false, fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return false, fmt.Errorf("close %s: %w", path, err)
	}
	logger.Info("users exported; add the new UID after each old one and save the result as the reconciliation input",
		"file", path, "users", len(users))
	return true, nil
}
