package migrate

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/steveyegge/trackmigrate/internal/tracker"
	"github.com/steveyegge/trackmigrate/internal/types"
	"github.com/steveyegge/trackmigrate/internal/usermap"
)

// Transformer converts raw source issues into normalized issues.
type Transformer struct {
	// Users maps source user ids to destination user ids.
	Users usermap.Mapping

	// Mapping holds the status, priority, queue and link tables.
	// Nil means tracker.DefaultMappingConfig().
	Mapping *tracker.MappingConfig

	// Fetcher loads comments and attachments the source did not deliver
	// inline. May be nil for sources that always deliver them inline.
	Fetcher tracker.SubResourceFetcher

	Logger *slog.Logger
}

// Transform is a convenience wrapper around Transformer with the default
// mapping tables.
func Transform(ctx context.Context, projects []types.Project, raws []tracker.RawIssue, users usermap.Mapping, fetcher tracker.SubResourceFetcher) ([]types.Queue, []types.NormalizedIssue, error) {
	t := &Transformer{Users: users, Fetcher: fetcher}
	return t.Transform(ctx, projects, raws)
}

// Transform builds one queue per project and one normalized issue per raw
// issue. A failure on any issue aborts the whole transform.
func (t *Transformer) Transform(ctx context.Context, projects []types.Project, raws []tracker.RawIssue) ([]types.Queue, []types.NormalizedIssue, error) {
	if t.Mapping == nil {
		t.Mapping = tracker.DefaultMappingConfig()
	}
	if t.Logger == nil {
		t.Logger = slog.Default()
	}

	queues := t.buildQueues(projects)

	issues := make([]types.NormalizedIssue, 0, len(raws))
	for i := range raws {
		issue, err := t.transformIssue(ctx, &raws[i])
		if err != nil {
			return nil, nil, fmt.Errorf("transform issue %s: %w", raws[i].Key, err)
		}
		issues = append(issues, *issue)
	}
	t.Logger.Info("issues transformed", "queues", len(queues), "issues", len(issues))
	return queues, issues, nil
}

// buildQueues returns one queue per distinct destination key, in project order.
func (t *Transformer) buildQueues(projects []types.Project) []types.Queue {
	seen := make(map[string]bool, len(projects))
	queues := make([]types.Queue, 0, len(projects))
	for _, p := range projects {
		key := t.Mapping.QueueKey(p.Key)
		if seen[key] {
			continue
		}
		seen[key] = true
		name := p.Name
		if name == "" {
			name = key
		}
		queues = append(queues, types.Queue{Key: key, Name: name})
	}
	return queues
}

func (t *Transformer) transformIssue(ctx context.Context, raw *tracker.RawIssue) (*types.NormalizedIssue, error) {
	issue := &types.NormalizedIssue{
		SourceKey:   raw.Key,
		QueueKey:    t.Mapping.QueueKey(raw.ProjectKey),
		Summary:     deref(raw.Summary),
		Description: deref(raw.Description),
		Assignee:    t.user(raw.Assignee),
		Reporter:    t.user(raw.Reporter),
		CreatedAt:   raw.CreatedAt,
		UpdatedAt:   raw.UpdatedAt,
		Labels:      append([]string(nil), raw.Labels...),
	}
	if raw.Status != nil {
		issue.Status = t.Mapping.Status(*raw.Status)
	}
	if raw.Priority != nil && *raw.Priority != "" {
		issue.Priority = t.Mapping.Priority(*raw.Priority)
	}

	for _, f := range raw.Followers {
		if f == "" {
			continue
		}
		issue.Followers = append(issue.Followers, usermap.Resolve(t.Users, f))
	}

	comments, err := t.comments(ctx, raw)
	if err != nil {
		return nil, err
	}
	for _, c := range comments {
		issue.Comments = append(issue.Comments, types.Comment{Author: t.user(c.Author), Body: c.Body})
	}

	attachments, err := t.attachments(ctx, raw)
	if err != nil {
		return nil, err
	}
	for _, a := range attachments {
		issue.Attachments = append(issue.Attachments, types.Attachment{Filename: a.Filename, Content: a.Content})
	}

	for _, l := range raw.Links {
		if l.TargetKey == "" {
			continue
		}
		issue.Links = append(issue.Links, types.Link{
			TargetIssueKey: l.TargetKey,
			Type:           t.Mapping.LinkType(l.TypeName, l.Direction),
		})
	}

	t.Logger.Debug("issue transformed", "issue", raw.Key, "queue", issue.QueueKey,
		"comments", len(issue.Comments), "attachments", len(issue.Attachments))
	return issue, nil
}

func (t *Transformer) comments(ctx context.Context, raw *tracker.RawIssue) ([]tracker.RawComment, error) {
	if raw.CommentsInline {
		return raw.Comments, nil
	}
	if t.Fetcher == nil {
		return nil, fmt.Errorf("comments not delivered inline and source cannot fetch them")
	}
	comments, err := t.Fetcher.FetchComments(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("fetch comments: %w", err)
	}
	return comments, nil
}

func (t *Transformer) attachments(ctx context.Context, raw *tracker.RawIssue) ([]tracker.RawAttachment, error) {
	if raw.AttachmentsInline {
		return raw.Attachments, nil
	}
	if t.Fetcher == nil {
		return nil, fmt.Errorf("attachments not delivered inline and source cannot fetch them")
	}
	attachments, err := t.Fetcher.FetchAttachments(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("fetch attachments: %w", err)
	}
	return attachments, nil
}

// user maps a source user id, or returns "" when there is none.
func (t *Transformer) user(id *string) types.UserRef {
	if id == nil || *id == "" {
		return ""
	}
	return usermap.Resolve(t.Users, *id)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
