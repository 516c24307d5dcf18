package tracker

import (
	"context"
	"io"

	"github.com/steveyegge/trackmigrate/internal/types"
)

// Destination is the tracker issues are imported into. Lookups of missing
// entities return an error matching ErrNotFound.
type Destination interface {
	GetQueue(ctx context.Context, key string) (*types.Queue, error)
	CreateQueue(ctx context.Context, queue types.Queue) (*types.Queue, error)

	GetUser(ctx context.Context, uid string) (*types.User, error)
	ListUsers(ctx context.Context) ([]types.User, error)

	GetIssue(ctx context.Context, key string) (*types.Issue, error)

	// CreateIssue creates issue in the queue named by issue.QueueKey.
	// Sub-resources (comments, attachments, links, followers) are not sent.
	CreateIssue(ctx context.Context, issue *types.NormalizedIssue) (*types.Issue, error)
	UpdateIssue(ctx context.Context, key string, update types.IssueUpdate) error
	UpdateFollowers(ctx context.Context, key string, add, remove []string) error

	CreateComment(ctx context.Context, issueKey string, comment types.Comment) error
	UploadAttachment(ctx context.Context, issueKey, filename string, content io.Reader) error
	CreateLink(ctx context.Context, issueKey, relationship, targetKey string) error

	// FindIssues returns one page (1-based) of issues matching filter.
	FindIssues(ctx context.Context, filter map[string]string, page, perPage int) (*types.IssuePage, error)
}
