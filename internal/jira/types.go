// Package jira provides the Jira REST v2 client and the Jira migration source.
package jira

import "encoding/json"

// Project represents a Jira project.
type Project struct {
	ID   string `json:"id"`
	Key  string `json:"key"`
	Name string `json:"name"`
}

// Issue represents a Jira issue from the REST API.
type Issue struct {
	ID     string      `json:"id"`
	Key    string      `json:"key"`
	Self   string      `json:"self"`
	Fields IssueFields `json:"fields"`
}

// IssueFields contains the fields of a Jira issue.
// Every field is optional: Jira omits fields the caller cannot see.
type IssueFields struct {
	Summary     string           `json:"summary"`
	Description json.RawMessage  `json:"description"` // plain text on v2, ADF when proxied from v3
	Status      *NamedField      `json:"status"`
	Priority    *NamedField      `json:"priority"`
	Project     *ProjectField    `json:"project"`
	Assignee    *User            `json:"assignee"`
	Reporter    *User            `json:"reporter"`
	Labels      []string         `json:"labels"`
	Created     string           `json:"created"`
	Updated     string           `json:"updated"`
	Comment     *CommentPage     `json:"comment"`
	Attachment  []AttachmentMeta `json:"attachment"`
	IssueLinks  []IssueLink      `json:"issuelinks"`
}

// NamedField is an id/name pair (status, priority).
type NamedField struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ProjectField represents the project an issue belongs to.
type ProjectField struct {
	ID  string `json:"id"`
	Key string `json:"key"`
}

// User represents a Jira user. Server instances identify users by Key/Name,
// Cloud instances by AccountID.
type User struct {
	Key          string `json:"key,omitempty"`
	Name         string `json:"name,omitempty"`
	AccountID    string `json:"accountId,omitempty"`
	DisplayName  string `json:"displayName"`
	EmailAddress string `json:"emailAddress"`
}

// Comment represents a Jira issue comment.
type Comment struct {
	ID     string          `json:"id"`
	Author *User           `json:"author"`
	Body   json.RawMessage `json:"body"`
}

// CommentPage is a page of comments, embedded in issues or returned by
// the comment endpoint.
type CommentPage struct {
	StartAt    int       `json:"startAt"`
	MaxResults int       `json:"maxResults"`
	Total      int       `json:"total"`
	Comments   []Comment `json:"comments"`
}

// AttachmentMeta describes an attachment; Content is its download URL.
type AttachmentMeta struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
	MimeType string `json:"mimeType"`
	Content  string `json:"content"`
}

// IssueLink is a link from the issue to another issue. Exactly one of
// InwardIssue and OutwardIssue is set.
type IssueLink struct {
	ID           string         `json:"id"`
	Type         IssueLinkType  `json:"type"`
	InwardIssue  *LinkedIssueID `json:"inwardIssue,omitempty"`
	OutwardIssue *LinkedIssueID `json:"outwardIssue,omitempty"`
}

// IssueLinkType names a link kind (e.g., "Blocks").
type IssueLinkType struct {
	Name    string `json:"name"`
	Inward  string `json:"inward"`
	Outward string `json:"outward"`
}

// LinkedIssueID identifies the other end of a link.
type LinkedIssueID struct {
	ID  string `json:"id"`
	Key string `json:"key"`
}

// SearchResult represents a Jira JQL search response.
type SearchResult struct {
	StartAt    int     `json:"startAt"`
	MaxResults int     `json:"maxResults"`
	Total      int     `json:"total"`
	Issues     []Issue `json:"issues"`
}
