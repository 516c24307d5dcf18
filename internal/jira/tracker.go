package jira

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/steveyegge/trackmigrate/internal/tracker"
	"github.com/steveyegge/trackmigrate/internal/types"
	"github.com/steveyegge/trackmigrate/internal/usermap"
)

// DefaultPageSize is the number of issues requested per search page.
const DefaultPageSize = 1000

func init() {
	tracker.Register("jira", func() tracker.Source {
		return &Tracker{}
	})
}

// Tracker implements tracker.Source and tracker.SubResourceFetcher for Jira.
type Tracker struct {
	client     *Client
	pageSize   int
	userColumn string
}

func (t *Tracker) Name() string         { return "jira" }
func (t *Tracker) DisplayName() string  { return "Jira" }
func (t *Tracker) ConfigPrefix() string { return "jira" }

// Init reads jira.url, jira.user and jira.api_token (or JIRA_URL, JIRA_USER,
// JIRA_API_TOKEN).
func (t *Tracker) Init(_ context.Context, cfg *tracker.Config) error {
	jiraURL, err := cfg.GetRequired("url")
	if err != nil {
		return err
	}
	apiToken, err := cfg.GetRequired("api_token")
	if err != nil {
		return err
	}

	t.client = NewClient(jiraURL, cfg.Get("user"), apiToken)
	t.pageSize = cfg.GetInt(tracker.CommonConfig.PageSize, DefaultPageSize)
	t.userColumn = cfg.Get(tracker.CommonConfig.UserColumn)
	return nil
}

// SetClient replaces the underlying client. Used by tests.
func (t *Tracker) SetClient(c *Client) {
	t.client = c
}

func (t *Tracker) Validate() error {
	if t.client == nil {
		return fmt.Errorf("Jira tracker: %w", tracker.ErrNotInitialized)
	}
	return nil
}

func (t *Tracker) Close() error { return nil }

func (t *Tracker) DefaultPageSize() int {
	if t.pageSize > 0 {
		return t.pageSize
	}
	return DefaultPageSize
}

func (t *Tracker) UserColumn() string {
	if t.userColumn != "" {
		return t.userColumn
	}
	return usermap.ColumnJira
}

func (t *Tracker) ListProjects(ctx context.Context) ([]types.Project, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	projects, err := t.client.ListProjects(ctx)
	if err != nil {
		return nil, err
	}
	result := make([]types.Project, 0, len(projects))
	for _, p := range projects {
		result = append(result, types.Project{Key: p.Key, Name: p.Name})
	}
	return result, nil
}

// SearchIssues fetches one offset-paginated page of a project's issues.
func (t *Tracker) SearchIssues(ctx context.Context, project types.Project, req tracker.PageRequest) (*tracker.Page, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}

	jql := fmt.Sprintf("project = %q", project.Key)
	if req.Since != nil {
		jql += fmt.Sprintf(" AND updated >= %q", jqlTime(*req.Since))
	}
	jql += " ORDER BY key ASC"

	size := req.Size
	if size <= 0 {
		size = t.DefaultPageSize()
	}

	result, err := t.client.Search(ctx, jql, req.Offset, size)
	if err != nil {
		return nil, err
	}

	page := &tracker.Page{
		Issues: make([]tracker.RawIssue, 0, len(result.Issues)),
		Last:   result.Total > 0 && req.Offset+len(result.Issues) >= result.Total,
		Size:   size,
	}
	// Jira Cloud silently lowers maxResults and echoes the value it used.
	if result.MaxResults > 0 {
		page.Size = result.MaxResults
	}
	for i := range result.Issues {
		page.Issues = append(page.Issues, t.toRawIssue(&result.Issues[i], project.Key))
	}
	return page, nil
}

// FetchComments returns all comments of an issue whose search payload
// carried only part of them.
func (t *Tracker) FetchComments(ctx context.Context, issue *tracker.RawIssue) ([]tracker.RawComment, error) {
	comments, err := t.client.GetComments(ctx, issue.Key)
	if err != nil {
		return nil, err
	}
	return toRawComments(comments), nil
}

// FetchAttachments returns the attachments of an issue.
func (t *Tracker) FetchAttachments(ctx context.Context, issue *tracker.RawIssue) ([]tracker.RawAttachment, error) {
	metas, err := t.client.GetAttachments(ctx, issue.Key)
	if err != nil {
		return nil, err
	}
	return t.toRawAttachments(metas), nil
}

// toRawIssue converts a Jira API Issue to a RawIssue. Fields Jira omitted
// stay nil.
func (t *Tracker) toRawIssue(ji *Issue, projectKey string) tracker.RawIssue {
	f := ji.Fields
	raw := tracker.RawIssue{
		Key:        ji.Key,
		ProjectKey: projectKey,
		Labels:     f.Labels,
	}
	if f.Project != nil && f.Project.Key != "" {
		raw.ProjectKey = f.Project.Key
	}
	if raw.ProjectKey == "" {
		raw.ProjectKey = ProjectKeyFromIssueKey(ji.Key)
	}

	if f.Summary != "" {
		raw.Summary = strPtr(f.Summary)
	}
	if desc := DescriptionToPlainText(f.Description); desc != "" {
		raw.Description = strPtr(desc)
	}
	if f.Status != nil {
		raw.Status = strPtr(f.Status.Name)
	}
	if f.Priority != nil {
		raw.Priority = strPtr(f.Priority.Name)
	}
	if ts, err := ParseTimestamp(f.Created); err == nil {
		raw.CreatedAt = &ts
	}
	if ts, err := ParseTimestamp(f.Updated); err == nil {
		raw.UpdatedAt = &ts
	}
	if ref := UserRef(f.Assignee); ref != "" {
		raw.Assignee = strPtr(ref)
	}
	if ref := UserRef(f.Reporter); ref != "" {
		raw.Reporter = strPtr(ref)
	}

	// Search embeds at most the first page of comments.
	if f.Comment != nil && len(f.Comment.Comments) >= f.Comment.Total {
		raw.Comments = toRawComments(f.Comment.Comments)
		raw.CommentsInline = true
	}
	if f.Attachment != nil {
		raw.Attachments = t.toRawAttachments(f.Attachment)
		raw.AttachmentsInline = true
	}

	for _, link := range f.IssueLinks {
		switch {
		case link.OutwardIssue != nil:
			raw.Links = append(raw.Links, tracker.RawLink{
				TargetKey: link.OutwardIssue.Key,
				TypeName:  link.Type.Name,
				Direction: tracker.LinkOutward,
			})
		case link.InwardIssue != nil:
			raw.Links = append(raw.Links, tracker.RawLink{
				TargetKey: link.InwardIssue.Key,
				TypeName:  link.Type.Name,
				Direction: tracker.LinkInward,
			})
		}
	}
	return raw
}

func toRawComments(comments []Comment) []tracker.RawComment {
	result := make([]tracker.RawComment, 0, len(comments))
	for _, c := range comments {
		rc := tracker.RawComment{Body: DescriptionToPlainText(c.Body)}
		if ref := UserRef(c.Author); ref != "" {
			rc.Author = strPtr(ref)
		}
		result = append(result, rc)
	}
	return result
}

func (t *Tracker) toRawAttachments(metas []AttachmentMeta) []tracker.RawAttachment {
	result := make([]tracker.RawAttachment, 0, len(metas))
	for _, m := range metas {
		contentURL := m.Content
		result = append(result, tracker.RawAttachment{
			Filename: m.Filename,
			Content: types.ContentFunc(func(ctx context.Context) (io.ReadCloser, error) {
				data, err := t.client.Download(ctx, contentURL)
				if err != nil {
					return nil, err
				}
				return io.NopCloser(bytes.NewReader(data)), nil
			}),
		})
	}
	return result
}

func strPtr(s string) *string { return &s }

var (
	_ tracker.Source             = (*Tracker)(nil)
	_ tracker.SubResourceFetcher = (*Tracker)(nil)
)
