package migrate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/steveyegge/trackmigrate/internal/tracker"
	"github.com/steveyegge/trackmigrate/internal/types"
)

// ImportResult summarizes an import.
type ImportResult struct {
	QueuesCreated  int `json:"queues_created" yaml:"queues_created"`
	QueuesExisting int `json:"queues_existing" yaml:"queues_existing"`

	Created     int `json:"created" yaml:"created"`
	Skipped     int `json:"skipped" yaml:"skipped"`
	Comments    int `json:"comments" yaml:"comments"`
	Attachments int `json:"attachments" yaml:"attachments"`
	Followers   int `json:"followers" yaml:"followers"`
	Links       int `json:"links" yaml:"links"`

	// Warnings lists every recoverable problem (cleared users, skipped issues).
	Warnings []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`

	// Keys maps source issue keys to the destination keys created for them.
	Keys map[string]string `json:"keys,omitempty" yaml:"keys,omitempty"`
}

// Importer writes normalized issues into the destination.
//
// Missing users degrade gracefully: the field is cleared and a warning is
// recorded. Every creation failure (queue, issue, comment, attachment,
// follower, link) aborts the import.
type Importer struct {
	Dest   tracker.Destination
	Logger *slog.Logger

	// DryRun performs lookups only and counts what would be created.
	DryRun bool
}

// pendingLink is a link recorded while issues are created and resolved once
// every issue of the run exists.
type pendingLink struct {
	from      string // destination key of the linking issue
	sourceKey string
	link      types.Link
}

// Import creates missing queues, then each issue with its comments,
// attachments and followers, and finally the links between issues.
// The partial result is returned alongside a fatal error.
func (im *Importer) Import(ctx context.Context, queues []types.Queue, issues []types.NormalizedIssue) (*ImportResult, error) {
	if im.Logger == nil {
		im.Logger = slog.Default()
	}
	res := &ImportResult{Keys: make(map[string]string)}

	handles, err := im.ensureQueues(ctx, queues, res)
	if err != nil {
		return res, err
	}

	// Only successful lookups are remembered; a user that failed once is
	// looked up again on the next issue.
	verified := make(map[string]bool)
	var links []pendingLink

	for i := range issues {
		issue := &issues[i]

		queue, ok := handles[issue.QueueKey]
		if !ok {
			im.warn(res, "queue not found, skipping issue", "issue", issue.SourceKey, "queue", issue.QueueKey)
			res.Skipped++
			continue
		}

		assignee, err := im.verifyCached(ctx, verified, issue.Assignee, "assignee", issue.SourceKey, res)
		if err != nil {
			return res, err
		}
		reporter, err := im.verifyCached(ctx, verified, issue.Reporter, "reporter", issue.SourceKey, res)
		if err != nil {
			return res, err
		}

		if im.DryRun {
			im.Logger.Info("[dry-run] would create issue", "issue", issue.SourceKey, "queue", queue.Key,
				"comments", len(issue.Comments), "attachments", len(issue.Attachments))
			res.Created++
			res.Comments += len(issue.Comments)
			res.Attachments += len(issue.Attachments)
			res.Followers += len(issue.Followers)
			res.Links += len(issue.Links)
			continue
		}

		toCreate := *issue
		toCreate.QueueKey = queue.Key
		toCreate.Assignee = assignee
		toCreate.Reporter = reporter
		created, err := im.Dest.CreateIssue(ctx, &toCreate)
		if err != nil {
			im.Logger.Error("issue creation failed", "issue", issue.SourceKey, "queue", queue.Key, "error", err)
			return res, fmt.Errorf("create issue %s in queue %s: %w", issue.SourceKey, queue.Key, err)
		}
		res.Created++
		if issue.SourceKey != "" {
			res.Keys[issue.SourceKey] = created.Key
		}
		im.Logger.Info("issue created", "issue", issue.SourceKey, "key", created.Key, "queue", queue.Key)

		if err := im.addComments(ctx, created.Key, issue, res); err != nil {
			return res, err
		}
		if err := im.addAttachments(ctx, created.Key, issue, res); err != nil {
			return res, err
		}
		if err := im.addFollowers(ctx, verified, created.Key, issue, res); err != nil {
			return res, err
		}
		for _, l := range issue.Links {
			links = append(links, pendingLink{from: created.Key, sourceKey: issue.SourceKey, link: l})
		}
	}

	if err := im.createLinks(ctx, links, res); err != nil {
		return res, err
	}
	return res, nil
}

// ensureQueues looks up every queue and creates the missing ones.
// Returns destination queue handles keyed by queue key.
func (im *Importer) ensureQueues(ctx context.Context, queues []types.Queue, res *ImportResult) (map[string]types.Queue, error) {
	handles := make(map[string]types.Queue, len(queues))
	for _, q := range queues {
		existing, err := im.Dest.GetQueue(ctx, q.Key)
		if err == nil {
			handles[q.Key] = *existing
			res.QueuesExisting++
			im.Logger.Info("queue already exists", "queue", q.Key)
			continue
		}
		if !errors.Is(err, tracker.ErrNotFound) {
			im.Logger.Error("queue lookup failed", "queue", q.Key, "error", err)
			return nil, fmt.Errorf("get queue %s: %w", q.Key, err)
		}

		if im.DryRun {
			im.Logger.Info("[dry-run] would create queue", "queue", q.Key, "name", q.Name)
			handles[q.Key] = q
			res.QueuesCreated++
			continue
		}

		created, err := im.Dest.CreateQueue(ctx, q)
		if err != nil {
			im.Logger.Error("queue creation failed", "queue", q.Key, "error", err)
			return nil, fmt.Errorf("create queue %s: %w", q.Key, err)
		}
		handles[q.Key] = *created
		res.QueuesCreated++
		im.Logger.Info("queue created", "queue", created.Key, "name", created.Name)
	}
	return handles, nil
}

func (im *Importer) addComments(ctx context.Context, key string, issue *types.NormalizedIssue, res *ImportResult) error {
	for _, c := range issue.Comments {
		// Comment authors are looked up every time, without the verified set.
		author, err := im.verify(ctx, c.Author, "comment author", issue.SourceKey, res)
		if err != nil {
			return err
		}
		if err := im.Dest.CreateComment(ctx, key, types.Comment{Author: author, Body: c.Body}); err != nil {
			im.Logger.Error("comment creation failed", "issue", key, "error", err)
			return fmt.Errorf("add comment to issue %s: %w", key, err)
		}
		res.Comments++
	}
	return nil
}

func (im *Importer) addAttachments(ctx context.Context, key string, issue *types.NormalizedIssue, res *ImportResult) error {
	for _, a := range issue.Attachments {
		if err := im.upload(ctx, key, a); err != nil {
			im.Logger.Error("attachment upload failed", "issue", key, "file", a.Filename, "error", err)
			return fmt.Errorf("upload attachment %s to issue %s: %w", a.Filename, key, err)
		}
		res.Attachments++
		im.Logger.Debug("attachment uploaded", "issue", key, "file", a.Filename)
	}
	return nil
}

func (im *Importer) upload(ctx context.Context, key string, a types.Attachment) error {
	if a.Content == nil {
		return fmt.Errorf("no content")
	}
	rc, err := a.Content.Open(ctx)
	if err != nil {
		return fmt.Errorf("fetch content: %w", err)
	}
	defer func() { _ = rc.Close() }()
	return im.Dest.UploadAttachment(ctx, key, a.Filename, rc)
}

func (im *Importer) addFollowers(ctx context.Context, verified map[string]bool, key string, issue *types.NormalizedIssue, res *ImportResult) error {
	for _, f := range issue.Followers {
		uid, err := im.verifyCached(ctx, verified, f, "follower", issue.SourceKey, res)
		if err != nil {
			return err
		}
		if uid == "" {
			continue
		}
		if err := im.Dest.UpdateFollowers(ctx, key, []string{uid}, nil); err != nil {
			im.Logger.Error("follower update failed", "issue", key, "user", uid, "error", err)
			return fmt.Errorf("add follower %s to issue %s: %w", uid, key, err)
		}
		res.Followers++
	}
	return nil
}

// createLinks resolves each link target through the run's key table, falling
// back to a destination lookup by the source key.
func (im *Importer) createLinks(ctx context.Context, links []pendingLink, res *ImportResult) error {
	for _, pl := range links {
		target, ok := res.Keys[pl.link.TargetIssueKey]
		if !ok {
			issue, err := im.Dest.GetIssue(ctx, pl.link.TargetIssueKey)
			if err != nil {
				im.Logger.Error("link target lookup failed", "issue", pl.from, "target", pl.link.TargetIssueKey, "error", err)
				return fmt.Errorf("resolve link target %s of issue %s: %w", pl.link.TargetIssueKey, pl.sourceKey, err)
			}
			target = issue.Key
		}
		if err := im.Dest.CreateLink(ctx, pl.from, pl.link.Type, target); err != nil {
			im.Logger.Error("link creation failed", "issue", pl.from, "target", target, "error", err)
			return fmt.Errorf("link issue %s to %s: %w", pl.from, target, err)
		}
		res.Links++
		im.Logger.Debug("link created", "issue", pl.from, "type", pl.link.Type, "target", target)
	}
	return nil
}

func (im *Importer) verifyCached(ctx context.Context, verified map[string]bool, uid, field, issueKey string, res *ImportResult) (string, error) {
	if uid == "" || verified[uid] {
		return uid, nil
	}
	v, err := im.verify(ctx, uid, field, issueKey, res)
	if v != "" {
		verified[v] = true
	}
	return v, err
}

// verify returns uid when the destination knows the user and "" otherwise.
// Only a cancelled context is returned as an error.
func (im *Importer) verify(ctx context.Context, uid, field, issueKey string, res *ImportResult) (string, error) {
	if uid == "" {
		return "", nil
	}
	if _, err := im.Dest.GetUser(ctx, uid); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		im.warn(res, "user not found in destination, field cleared",
			"issue", issueKey, "field", field, "user", uid, "error", err)
		return "", nil
	}
	im.Logger.Debug("user verified", "user", uid)
	return uid, nil
}

// warn logs a recoverable problem and records it in the result.
func (im *Importer) warn(res *ImportResult, msg string, args ...any) {
	im.Logger.Warn(msg, args...)
	res.Warnings = append(res.Warnings, formatWarning(msg, args...))
}

func formatWarning(msg string, args ...any) string {
	for i := 0; i+1 < len(args); i += 2 {
		if args[i] == "error" {
			continue
		}
		msg += fmt.Sprintf(" %v=%v", args[i], args[i+1])
	}
	return msg
}
