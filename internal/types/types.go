// Package types defines the normalized data structures shared by the
// extract, transform and import stages of a tracker migration.
package types

import (
	"bytes"
	"context"
	"io"
	"time"
)

// UserRef is an opaque user identifier scoped to one tracker instance.
// The empty UserRef means "no user".
type UserRef = string

// Project is a source-side container of issues (Jira project, Asana project).
type Project struct {
	Key  string `json:"key"`  // Stable identifier (Jira key, Asana gid)
	Name string `json:"name"`
}

// Queue is the destination-side container for issues.
type Queue struct {
	Key  string `json:"key"`
	Name string `json:"name"`

	// Set by the destination once the queue exists.
	ID string `json:"id,omitempty"`
}

// LinkTypeRelates is the generic relation every source link collapses to by default.
const LinkTypeRelates = "relates"

// Link is a relation from one issue to another issue.
type Link struct {
	TargetIssueKey string `json:"target"` // Source-side key of the linked issue
	Type           string `json:"type"`
}

// Comment is a single issue comment. Author is empty when unknown.
type Comment struct {
	Author UserRef `json:"author,omitempty"`
	Body   string  `json:"body"`
}

// AttachmentContent resolves the bytes of an attachment.
// Some sources deliver content inline, others need one or more extra calls;
// Open hides the difference so content is only fetched right before upload.
type AttachmentContent interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}

// InlineContent is attachment content already held in memory.
type InlineContent []byte

// Open implements AttachmentContent.
func (c InlineContent) Open(_ context.Context) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(c)), nil
}

// ContentFunc adapts a function to AttachmentContent.
type ContentFunc func(ctx context.Context) (io.ReadCloser, error)

// Open implements AttachmentContent.
func (f ContentFunc) Open(ctx context.Context) (io.ReadCloser, error) {
	return f(ctx)
}

// Attachment is a file attached to an issue.
type Attachment struct {
	Filename string            `json:"filename"`
	Content  AttachmentContent `json:"-"`
}

// NormalizedIssue is the source-agnostic issue record produced by the
// transformer and consumed exactly once by the importer.
type NormalizedIssue struct {
	SourceKey   string     `json:"source_key"`
	Summary     string     `json:"summary"`
	Description string     `json:"description,omitempty"`
	Assignee    UserRef    `json:"assignee,omitempty"`
	Reporter    UserRef    `json:"reporter,omitempty"`
	Status      string     `json:"status,omitempty"`
	QueueKey    string     `json:"queue"`
	Priority    string     `json:"priority,omitempty"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
	Labels      []string   `json:"labels,omitempty"`

	Comments    []Comment    `json:"comments,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`

	// Jira-sourced issues carry links, Asana-sourced issues carry followers.
	Links     []Link    `json:"links,omitempty"`
	Followers []UserRef `json:"followers,omitempty"`
}

// User is a destination tracker user.
type User struct {
	UID     string `json:"uid"`
	Login   string `json:"login,omitempty"`
	Email   string `json:"email,omitempty"`
	Display string `json:"display,omitempty"`
}

// ReconcileRecord is one old-UID to new-UID rewrite request.
type ReconcileRecord struct {
	OldUID string `json:"old_uid"`
	NewUID string `json:"new_uid"`
}

// Issue is an issue as stored in the destination tracker.
type Issue struct {
	ID        string    `json:"id,omitempty"`
	Key       string    `json:"key"`
	Summary   string    `json:"summary,omitempty"`
	Assignee  UserRef   `json:"assignee,omitempty"`
	Author    UserRef   `json:"author,omitempty"`
	Followers []UserRef `json:"followers,omitempty"`
}

// IssueUpdate is a partial update of a destination issue. Nil fields are left unchanged.
type IssueUpdate struct {
	Assignee *UserRef
	Author   *UserRef
}

// IssuePage is one page of a destination issue search.
type IssuePage struct {
	Issues     []Issue
	Page       int
	TotalPages int
	TotalCount int
}
