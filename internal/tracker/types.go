package tracker

import (
	"errors"
	"time"

	"github.com/steveyegge/trackmigrate/internal/types"
)

// ErrNotFound is returned by trackers when the requested entity does not exist.
// Callers distinguish it from other failures with errors.Is.
var ErrNotFound = errors.New("not found")

// ErrNotInitialized is returned when a tracker is used before Init.
var ErrNotInitialized = errors.New("tracker not initialized")

// RawIssue is a source issue as delivered by a Source adapter, before
// transformation. Every content field is optional: a nil pointer or empty
// slice means the source did not provide it.
type RawIssue struct {
	// Key is the source identifier (Jira issue key, Asana task gid).
	Key string

	// ProjectKey is the key of the project the issue was listed under.
	ProjectKey string

	Summary     *string
	Description *string
	Status      *string
	Priority    *string
	CreatedAt   *time.Time
	UpdatedAt   *time.Time

	// Assignee and Reporter are source user ids.
	Assignee *string
	Reporter *string

	Labels []string

	// Comments holds the inline comments when CommentsInline is set.
	// Otherwise the transformer asks the SubResourceFetcher for them.
	Comments       []RawComment
	CommentsInline bool

	// Attachments holds the inline attachments when AttachmentsInline is set.
	Attachments       []RawAttachment
	AttachmentsInline bool

	Links     []RawLink
	Followers []string
}

// RawComment is a source comment.
type RawComment struct {
	Author *string // Source user id, nil when the source does not expose one
	Body   string
}

// RawAttachment is a source attachment with lazily resolved content.
type RawAttachment struct {
	Filename string
	Content  types.AttachmentContent
}

// Link directions as reported by the source.
const (
	LinkInward  = "inward"
	LinkOutward = "outward"
)

// RawLink is a source issue link.
type RawLink struct {
	TargetKey string
	TypeName  string // Source link type name (e.g., "Blocks")
	Direction string // LinkInward or LinkOutward
}

// PageRequest identifies one page of a project's issues.
// Offset-paginated sources use Offset; cursor-paginated sources use Cursor
// (empty for the first page).
type PageRequest struct {
	Offset int
	Cursor string
	Size   int

	// Since restricts results to issues updated at or after the given time.
	Since *time.Time
}

// Page is one page of issues returned by a Source.
type Page struct {
	Issues []RawIssue

	// NextCursor is the cursor for the following page, empty for offset pagination.
	NextCursor string

	// Last is set when the source reports there are no further pages.
	Last bool

	// Size is the page size the source actually served, when it caps or
	// rewrites the requested one. Zero means the requested size.
	Size int
}
