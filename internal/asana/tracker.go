package asana

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/steveyegge/trackmigrate/internal/tracker"
	"github.com/steveyegge/trackmigrate/internal/types"
	"github.com/steveyegge/trackmigrate/internal/usermap"
)

// Statuses assigned from the completed flag.
const (
	StatusOpen   = "open"
	StatusClosed = "closed"
)

func init() {
	tracker.Register("asana", func() tracker.Source {
		return &Tracker{}
	})
}

// Tracker implements tracker.Source and tracker.SubResourceFetcher for Asana.
// Task lists never carry comments or attachments, so both are always
// fetched separately.
type Tracker struct {
	client     *Client
	workspace  string
	pageSize   int
	userColumn string
}

func (t *Tracker) Name() string         { return "asana" }
func (t *Tracker) DisplayName() string  { return "Asana" }
func (t *Tracker) ConfigPrefix() string { return "asana" }

// Init reads asana.access_token (or ASANA_ACCESS_TOKEN) and the optional
// asana.workspace restricting which workspace's projects are listed.
func (t *Tracker) Init(_ context.Context, cfg *tracker.Config) error {
	token, err := cfg.GetRequired("access_token")
	if err != nil {
		return err
	}
	t.client = NewClient(cfg.Get("url"), token)
	t.workspace = cfg.Get("workspace")
	t.pageSize = cfg.GetInt(tracker.CommonConfig.PageSize, MaxPageSize)
	if t.pageSize > MaxPageSize {
		t.pageSize = MaxPageSize
	}
	t.userColumn = cfg.Get(tracker.CommonConfig.UserColumn)
	return nil
}

// SetClient replaces the underlying client. Used by tests.
func (t *Tracker) SetClient(c *Client) {
	t.client = c
}

func (t *Tracker) Validate() error {
	if t.client == nil {
		return fmt.Errorf("Asana tracker: %w", tracker.ErrNotInitialized)
	}
	return nil
}

func (t *Tracker) Close() error { return nil }

func (t *Tracker) DefaultPageSize() int {
	if t.pageSize > 0 {
		return t.pageSize
	}
	return MaxPageSize
}

func (t *Tracker) UserColumn() string {
	if t.userColumn != "" {
		return t.userColumn
	}
	return usermap.ColumnAsana
}

// ListProjects lists the projects of every workspace, or only of the
// configured workspace.
func (t *Tracker) ListProjects(ctx context.Context) ([]types.Project, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}

	workspaces := []string{t.workspace}
	if t.workspace == "" {
		refs, err := t.client.ListWorkspaces(ctx)
		if err != nil {
			return nil, fmt.Errorf("list workspaces: %w", err)
		}
		workspaces = workspaces[:0]
		for _, ws := range refs {
			workspaces = append(workspaces, ws.GID)
		}
	}

	var projects []types.Project
	for _, ws := range workspaces {
		refs, err := t.client.ListProjects(ctx, ws)
		if err != nil {
			return nil, fmt.Errorf("list projects of workspace %s: %w", ws, err)
		}
		for _, p := range refs {
			projects = append(projects, types.Project{Key: p.GID, Name: p.Name})
		}
	}
	return projects, nil
}

// SearchIssues fetches one cursor-paginated page of a project's tasks.
func (t *Tracker) SearchIssues(ctx context.Context, project types.Project, req tracker.PageRequest) (*tracker.Page, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}

	size := req.Size
	if size <= 0 || size > MaxPageSize {
		size = t.DefaultPageSize()
	}

	tasks, next, err := t.client.ListTasks(ctx, project.Key, req.Cursor, size, req.Since)
	if err != nil {
		return nil, err
	}

	page := &tracker.Page{Issues: make([]tracker.RawIssue, 0, len(tasks)), Size: size}
	if next != nil && next.Offset != "" {
		page.NextCursor = next.Offset
	} else {
		page.Last = true
	}
	for i := range tasks {
		page.Issues = append(page.Issues, toRawIssue(&tasks[i], project.Key))
	}
	return page, nil
}

// FetchComments returns the comment stories of a task in feed order.
func (t *Tracker) FetchComments(ctx context.Context, issue *tracker.RawIssue) ([]tracker.RawComment, error) {
	stories, err := t.client.ListStories(ctx, issue.Key)
	if err != nil {
		return nil, err
	}
	var comments []tracker.RawComment
	for _, s := range stories {
		if s.Type != "comment" {
			continue
		}
		c := tracker.RawComment{Body: s.Text}
		if s.CreatedBy != nil && s.CreatedBy.GID != "" {
			c.Author = strPtr(s.CreatedBy.GID)
		}
		comments = append(comments, c)
	}
	return comments, nil
}

// FetchAttachments lists a task's attachments. Content is resolved lazily:
// the attachment is fetched again for its download URL, then downloaded.
func (t *Tracker) FetchAttachments(ctx context.Context, issue *tracker.RawIssue) ([]tracker.RawAttachment, error) {
	attachments, err := t.client.ListAttachments(ctx, issue.Key)
	if err != nil {
		return nil, err
	}
	result := make([]tracker.RawAttachment, 0, len(attachments))
	for _, a := range attachments {
		gid := a.GID
		result = append(result, tracker.RawAttachment{
			Filename: a.Name,
			Content: types.ContentFunc(func(ctx context.Context) (io.ReadCloser, error) {
				full, err := t.client.GetAttachment(ctx, gid)
				if err != nil {
					return nil, err
				}
				if full.DownloadURL == "" {
					return nil, fmt.Errorf("attachment %s has no download URL", gid)
				}
				data, err := t.client.Download(ctx, full.DownloadURL)
				if err != nil {
					return nil, err
				}
				return io.NopCloser(bytes.NewReader(data)), nil
			}),
		})
	}
	return result, nil
}

func toRawIssue(task *Task, projectKey string) tracker.RawIssue {
	raw := tracker.RawIssue{
		Key:        task.GID,
		ProjectKey: projectKey,
		CreatedAt:  task.CreatedAt,
		UpdatedAt:  task.ModifiedAt,
	}
	if task.Name != "" {
		raw.Summary = strPtr(task.Name)
	}
	if task.Notes != "" {
		raw.Description = strPtr(task.Notes)
	}
	// A task without the completed flag counts as open
	status := StatusOpen
	if task.Completed != nil && *task.Completed {
		status = StatusClosed
	}
	raw.Status = strPtr(status)
	if task.Assignee != nil && task.Assignee.GID != "" {
		raw.Assignee = strPtr(task.Assignee.GID)
	}
	if task.CreatedBy != nil && task.CreatedBy.GID != "" {
		raw.Reporter = strPtr(task.CreatedBy.GID)
	}
	for _, tag := range task.Tags {
		if tag.Name != "" {
			raw.Labels = append(raw.Labels, tag.Name)
		}
	}
	for _, f := range task.Followers {
		if f.GID != "" {
			raw.Followers = append(raw.Followers, f.GID)
		}
	}
	return raw
}

func strPtr(s string) *string { return &s }

var (
	_ tracker.Source             = (*Tracker)(nil)
	_ tracker.SubResourceFetcher = (*Tracker)(nil)
)
