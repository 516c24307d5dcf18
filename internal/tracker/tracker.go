package tracker

import (
	"context"

	"github.com/steveyegge/trackmigrate/internal/types"
)

// Source is the plugin interface every source tracker integration implements.
// Each external system (Jira, Asana) provides an adapter that lists projects and
// pages through their issues, converting native payloads to RawIssue.
type Source interface {
	// Name returns the lowercase identifier for this tracker (e.g., "jira", "asana").
	Name() string

	// DisplayName returns the human-readable name (e.g., "Jira", "Asana").
	DisplayName() string

	// ConfigPrefix returns the config key prefix (e.g., "jira").
	ConfigPrefix() string

	// Init initializes the tracker from configuration.
	// Called once before any fetch operations.
	Init(ctx context.Context, cfg *Config) error

	// Validate checks that the tracker is properly configured.
	Validate() error

	// Close releases any resources held by the tracker.
	Close() error

	// DefaultPageSize is the page size used when the caller does not set one.
	DefaultPageSize() int

	// ListProjects returns every project visible to the configured credentials.
	ListProjects(ctx context.Context) ([]types.Project, error)

	// SearchIssues fetches one page of issues belonging to project.
	SearchIssues(ctx context.Context, project types.Project, req PageRequest) (*Page, error)

	// UserColumn is the user-mapping column holding this tracker's user ids.
	UserColumn() string
}

// SubResourceFetcher fetches issue sub-resources that a source does not deliver
// inline with its issue list payload. Sources that need it implement it next to
// Source; the transformer receives it as an injected capability.
type SubResourceFetcher interface {
	FetchComments(ctx context.Context, issue *RawIssue) ([]RawComment, error)
	FetchAttachments(ctx context.Context, issue *RawIssue) ([]RawAttachment, error)
}

// Fetcher returns src as a SubResourceFetcher, or nil when the source
// always delivers sub-resources inline.
func Fetcher(src Source) SubResourceFetcher {
	if f, ok := src.(SubResourceFetcher); ok {
		return f
	}
	return nil
}
