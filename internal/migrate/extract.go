// Package migrate implements the extract, transform and import stages of a
// tracker migration and the Engine that runs them in order.
package migrate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/steveyegge/trackmigrate/internal/tracker"
	"github.com/steveyegge/trackmigrate/internal/types"
)

// ExtractOptions controls which issues are pulled from the source.
type ExtractOptions struct {
	// ProjectFilter limits extraction to these project keys. Empty means all.
	ProjectFilter []string

	// PageSize overrides the source's default page size.
	PageSize int

	// Since restricts extraction to issues updated at or after this time.
	Since *time.Time

	// Concurrency is the number of projects fetched in parallel. Values
	// below 1 mean sequential.
	Concurrency int
}

// Extraction is everything pulled from the source.
type Extraction struct {
	Projects []types.Project
	Issues   []tracker.RawIssue
}

// Extract lists the source's projects, then pages through every project's
// issues. Any page error aborts the whole extraction.
func Extract(ctx context.Context, src tracker.Source, opts ExtractOptions, logger *slog.Logger) (*Extraction, error) {
	if logger == nil {
		logger = slog.Default()
	}

	projects, err := src.ListProjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("list %s projects: %w", src.DisplayName(), err)
	}
	projects = filterProjects(projects, opts.ProjectFilter, logger)
	logger.Info("projects listed", "source", src.Name(), "count", len(projects))

	size := opts.PageSize
	if size <= 0 {
		size = src.DefaultPageSize()
	}

	// Each project writes only its own slot so output order is project order.
	perProject := make([][]tracker.RawIssue, len(projects))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(opts.Concurrency, 1))
	for i, project := range projects {
		g.Go(func() error {
			issues, err := fetchProject(gctx, src, project, size, opts.Since, logger)
			if err != nil {
				return err
			}
			perProject[i] = issues
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &Extraction{Projects: projects}
	for _, issues := range perProject {
		result.Issues = append(result.Issues, issues...)
	}
	logger.Info("issues extracted", "source", src.Name(), "count", len(result.Issues))
	return result, nil
}

// fetchProject pages through one project until the source marks a page as
// the last one or returns a short page without a cursor.
func fetchProject(ctx context.Context, src tracker.Source, project types.Project, size int, since *time.Time, logger *slog.Logger) ([]tracker.RawIssue, error) {
	var issues []tracker.RawIssue
	req := tracker.PageRequest{Size: size, Since: since}

	for pageNum := 1; ; pageNum++ {
		page, err := src.SearchIssues(ctx, project, req)
		if err != nil {
			logger.Error("page fetch failed",
				"project", project.Key, "page", pageNum, "offset", req.Offset, "error", err)
			return nil, fmt.Errorf("fetch issues of project %s (page %d): %w", project.Key, pageNum, err)
		}

		for i := range page.Issues {
			if page.Issues[i].ProjectKey == "" {
				page.Issues[i].ProjectKey = project.Key
			}
		}
		issues = append(issues, page.Issues...)
		logger.Debug("page fetched", "project", project.Key, "page", pageNum, "issues", len(page.Issues))

		if page.Last || lastPage(page, size) {
			return issues, nil
		}
		if page.NextCursor != "" {
			req.Cursor = page.NextCursor
		} else {
			req.Offset += len(page.Issues)
		}
	}
}

// lastPage reports a short page. The page is measured against the size the
// source served, which may be below the requested one, and a page that
// carries a cursor is never the last.
func lastPage(page *tracker.Page, requested int) bool {
	if page.NextCursor != "" {
		return false
	}
	served := requested
	if page.Size > 0 {
		served = page.Size
	}
	return len(page.Issues) < served
}

func filterProjects(projects []types.Project, filter []string, logger *slog.Logger) []types.Project {
	if len(filter) == 0 {
		return projects
	}
	wanted := make(map[string]bool, len(filter))
	for _, key := range filter {
		wanted[strings.ToLower(strings.TrimSpace(key))] = true
	}

	var kept []types.Project
	for _, p := range projects {
		if wanted[strings.ToLower(p.Key)] {
			kept = append(kept, p)
			delete(wanted, strings.ToLower(p.Key))
		}
	}
	for key := range wanted {
		logger.Warn("project not found in source", "project", key)
	}
	return kept
}
