package migrate

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/steveyegge/trackmigrate/internal/tracker"
	"github.com/steveyegge/trackmigrate/internal/types"
)

// fakeSource serves issues from memory with offset (or, when cursor is set,
// cursor) pagination and records every page request.
type fakeSource struct {
	projects []types.Project
	issues   map[string][]tracker.RawIssue
	pageSize int
	cursor   bool
	markLast bool // report Last on the page holding the final issue
	maxSize  int  // server-side page cap, reported back in Page.Size
	hideSize bool // apply maxSize without reporting it

	listErr error
	pageErr map[string]int // project key -> failing page number

	mu       sync.Mutex
	requests map[string][]tracker.PageRequest
}

func newFakeSource(projects ...types.Project) *fakeSource {
	return &fakeSource{
		projects: projects,
		issues:   make(map[string][]tracker.RawIssue),
		pageSize: 100,
		pageErr:  make(map[string]int),
		requests: make(map[string][]tracker.PageRequest),
	}
}

func (s *fakeSource) add(project string, issues ...tracker.RawIssue) {
	s.issues[project] = append(s.issues[project], issues...)
}

func (s *fakeSource) requestsFor(project string) []tracker.PageRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]tracker.PageRequest(nil), s.requests[project]...)
}

func (s *fakeSource) Name() string         { return "fake" }
func (s *fakeSource) DisplayName() string  { return "Fake" }
func (s *fakeSource) ConfigPrefix() string { return "fake" }
func (s *fakeSource) Init(context.Context, *tracker.Config) error {
	return nil
}
func (s *fakeSource) Validate() error      { return nil }
func (s *fakeSource) Close() error         { return nil }
func (s *fakeSource) DefaultPageSize() int { return s.pageSize }
func (s *fakeSource) UserColumn() string   { return "fake_user" }

func (s *fakeSource) ListProjects(context.Context) ([]types.Project, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.projects, nil
}

func (s *fakeSource) SearchIssues(_ context.Context, project types.Project, req tracker.PageRequest) (*tracker.Page, error) {
	s.mu.Lock()
	s.requests[project.Key] = append(s.requests[project.Key], req)
	pageNum := len(s.requests[project.Key])
	s.mu.Unlock()

	if n, ok := s.pageErr[project.Key]; ok && n == pageNum {
		return nil, errors.New("search failed")
	}

	offset := req.Offset
	if s.cursor && req.Cursor != "" {
		offset, _ = strconv.Atoi(req.Cursor)
	}
	all := s.issues[project.Key]
	if offset > len(all) {
		offset = len(all)
	}
	size := req.Size
	if s.maxSize > 0 && size > s.maxSize {
		size = s.maxSize
	}
	end := min(offset+size, len(all))

	// ProjectKey is left empty so Extract fills it in.
	page := &tracker.Page{Issues: append([]tracker.RawIssue(nil), all[offset:end]...)}
	if s.cursor && end < len(all) {
		page.NextCursor = strconv.Itoa(end)
	}
	page.Last = s.markLast && end == len(all)
	if s.maxSize > 0 && !s.hideSize {
		page.Size = size
	}
	return page, nil
}

// fetchingSource adds the SubResourceFetcher capability to fakeSource.
type fetchingSource struct {
	*fakeSource
	comments    map[string][]tracker.RawComment
	attachments map[string][]tracker.RawAttachment
	err         error
	fetched     []string
}

func (s *fetchingSource) FetchComments(_ context.Context, issue *tracker.RawIssue) ([]tracker.RawComment, error) {
	s.fetched = append(s.fetched, "comments "+issue.Key)
	if s.err != nil {
		return nil, s.err
	}
	return s.comments[issue.Key], nil
}

func (s *fetchingSource) FetchAttachments(_ context.Context, issue *tracker.RawIssue) ([]tracker.RawAttachment, error) {
	s.fetched = append(s.fetched, "attachments "+issue.Key)
	if s.err != nil {
		return nil, s.err
	}
	return s.attachments[issue.Key], nil
}

// rawIssue returns an issue whose sub-resources are all inline.
func rawIssue(key, summary string) tracker.RawIssue {
	return tracker.RawIssue{
		Key:               key,
		Summary:           &summary,
		CommentsInline:    true,
		AttachmentsInline: true,
	}
}

func ptr(s string) *string { return &s }

// countingContent records whether it was opened.
type countingContent struct {
	data   string
	opened int
}

func (c *countingContent) Open(context.Context) (io.ReadCloser, error) {
	c.opened++
	return io.NopCloser(strings.NewReader(c.data)), nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// captureLogger returns a logger writing text lines into the buffer.
func captureLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), &buf
}
