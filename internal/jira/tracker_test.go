package jira

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/steveyegge/trackmigrate/internal/tracker"
	"github.com/steveyegge/trackmigrate/internal/types"
)

func TestRegistered(t *testing.T) {
	tr, err := tracker.NewSource("jira")
	if err != nil {
		t.Fatalf("jira tracker not registered: %v", err)
	}
	if tr.Name() != "jira" {
		t.Errorf("Name() = %q, want %q", tr.Name(), "jira")
	}
	if tr.DisplayName() != "Jira" {
		t.Errorf("DisplayName() = %q, want %q", tr.DisplayName(), "Jira")
	}
	if tr.ConfigPrefix() != "jira" {
		t.Errorf("ConfigPrefix() = %q, want %q", tr.ConfigPrefix(), "jira")
	}
	if tr.DefaultPageSize() != 1000 {
		t.Errorf("DefaultPageSize() = %d, want 1000", tr.DefaultPageSize())
	}
	if tr.UserColumn() != "jira_user" {
		t.Errorf("UserColumn() = %q, want jira_user", tr.UserColumn())
	}
}

func TestInitFromEnv(t *testing.T) {
	t.Setenv("JIRA_URL", "https://jira.example.com/")
	t.Setenv("JIRA_USER", "bot")
	t.Setenv("JIRA_API_TOKEN", "secret")

	tr := &Tracker{}
	if err := tr.Init(context.Background(), tracker.NewConfig("jira", nil)); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if tr.client.URL != "https://jira.example.com" {
		t.Errorf("URL = %q", tr.client.URL)
	}
	if tr.client.Username != "bot" {
		t.Errorf("Username = %q", tr.client.Username)
	}
}

func TestInitMissingToken(t *testing.T) {
	t.Setenv("JIRA_URL", "https://jira.example.com")
	t.Setenv("JIRA_API_TOKEN", "")

	tr := &Tracker{}
	err := tr.Init(context.Background(), tracker.NewConfig("jira", nil))
	if err == nil || !strings.Contains(err.Error(), "jira.api_token not configured") {
		t.Fatalf("Init() error = %v, want api_token error", err)
	}
}

func newTestTracker(url string) *Tracker {
	c := NewClient(url, "user", "token")
	c.HTTP.BackOff = func() backoff.BackOff {
		return backoff.WithMaxRetries(backoff.NewConstantBackOff(time.Millisecond), 2)
	}
	tr := &Tracker{}
	tr.SetClient(c)
	return tr
}

func TestListProjects(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/api/2/project" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "user" || pass != "token" {
			t.Errorf("basic auth = %q/%q/%v", user, pass, ok)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":"1","key":"PROJ","name":"Project"},{"id":"2","key":"OPS","name":"Operations"}]`))
	}))
	defer server.Close()

	projects, err := newTestTracker(server.URL).ListProjects(context.Background())
	if err != nil {
		t.Fatalf("ListProjects() error = %v", err)
	}
	want := []types.Project{{Key: "PROJ", Name: "Project"}, {Key: "OPS", Name: "Operations"}}
	if len(projects) != 2 || projects[0] != want[0] || projects[1] != want[1] {
		t.Errorf("ListProjects() = %+v, want %+v", projects, want)
	}
}

const searchPayload = `{
  "startAt": 0, "maxResults": 2, "total": 3,
  "issues": [
    {
      "id": "10001", "key": "PROJ-1",
      "fields": {
        "summary": "First issue",
        "description": "Plain description",
        "status": {"id": "1", "name": "Open"},
        "priority": {"id": "3", "name": "Medium"},
        "project": {"id": "1", "key": "PROJ"},
        "assignee": {"key": "alice", "name": "alice", "displayName": "Alice"},
        "reporter": {"accountId": "5b10", "displayName": "Bob"},
        "labels": ["backend"],
        "created": "2024-01-15T10:30:00.000+0000",
        "updated": "2024-01-16T10:30:00.000+0000",
        "comment": {"startAt": 0, "maxResults": 1, "total": 1,
          "comments": [{"id": "1", "author": {"key": "carol"}, "body": "Looks good"}]},
        "attachment": [{"id": "9", "filename": "log.txt", "content": "CONTENT_URL/9"}],
        "issuelinks": [
          {"id": "1", "type": {"name": "Blocks"}, "outwardIssue": {"key": "PROJ-2"}},
          {"id": "2", "type": {"name": "Cloners"}, "inwardIssue": {"key": "OPS-7"}}
        ]
      }
    },
    {
      "id": "10002", "key": "PROJ-2",
      "fields": {
        "summary": "Second issue",
        "comment": {"startAt": 0, "maxResults": 1, "total": 5, "comments": [{"id": "2", "body": "only first"}]}
      }
    }
  ]
}`

func TestSearchIssues(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/rest/api/2/search":
			q := r.URL.Query()
			if q.Get("jql") != `project = "PROJ" ORDER BY key ASC` {
				t.Errorf("jql = %q", q.Get("jql"))
			}
			if q.Get("startAt") != "0" || q.Get("maxResults") != "2" {
				t.Errorf("paging = %s/%s", q.Get("startAt"), q.Get("maxResults"))
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(strings.ReplaceAll(searchPayload, "CONTENT_URL", server.URL+"/secure/attachment")))
		case "/secure/attachment/9":
			if r.Header.Get("Authorization") == "" {
				t.Error("attachment download without auth")
			}
			_, _ = w.Write([]byte("log contents"))
		default:
			t.Errorf("unexpected path: %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	tr := newTestTracker(server.URL)
	page, err := tr.SearchIssues(context.Background(), types.Project{Key: "PROJ"}, tracker.PageRequest{Size: 2})
	if err != nil {
		t.Fatalf("SearchIssues() error = %v", err)
	}
	if len(page.Issues) != 2 {
		t.Fatalf("got %d issues, want 2", len(page.Issues))
	}
	if page.Last {
		t.Error("Last = true, want false (total 3)")
	}

	first := page.Issues[0]
	if first.Key != "PROJ-1" || first.ProjectKey != "PROJ" {
		t.Errorf("Key/ProjectKey = %s/%s", first.Key, first.ProjectKey)
	}
	if *first.Summary != "First issue" || *first.Description != "Plain description" {
		t.Errorf("Summary/Description = %q/%q", *first.Summary, *first.Description)
	}
	if *first.Assignee != "alice" || *first.Reporter != "5b10" {
		t.Errorf("Assignee/Reporter = %q/%q", *first.Assignee, *first.Reporter)
	}
	if first.CreatedAt == nil || first.CreatedAt.Year() != 2024 {
		t.Errorf("CreatedAt = %v", first.CreatedAt)
	}
	if !first.CommentsInline || len(first.Comments) != 1 || *first.Comments[0].Author != "carol" {
		t.Errorf("Comments = %+v inline=%v", first.Comments, first.CommentsInline)
	}
	if len(first.Links) != 2 || first.Links[0].TargetKey != "PROJ-2" || first.Links[1].Direction != tracker.LinkInward {
		t.Errorf("Links = %+v", first.Links)
	}
	if !first.AttachmentsInline || len(first.Attachments) != 1 {
		t.Fatalf("Attachments = %+v", first.Attachments)
	}

	rc, err := first.Attachments[0].Content.Open(context.Background())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	data, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(data) != "log contents" {
		t.Errorf("attachment content = %q", data)
	}

	second := page.Issues[1]
	if second.CommentsInline {
		t.Error("second issue has truncated comments; CommentsInline should be false")
	}
	if second.Status != nil || second.Assignee != nil || second.Description != nil {
		t.Errorf("absent fields should be nil: %+v", second)
	}
	if second.ProjectKey != "PROJ" {
		t.Errorf("ProjectKey = %q, want PROJ from the listing project", second.ProjectKey)
	}
}

func TestSearchIssuesSince(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		jql := r.URL.Query().Get("jql")
		if jql != `project = "PROJ" AND updated >= "2024-03-01 09:00" ORDER BY key ASC` {
			t.Errorf("jql = %q", jql)
		}
		_, _ = w.Write([]byte(`{"startAt":1000,"maxResults":1000,"total":1000,"issues":[]}`))
	}))
	defer server.Close()

	since := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	page, err := newTestTracker(server.URL).SearchIssues(context.Background(), types.Project{Key: "PROJ"},
		tracker.PageRequest{Offset: 1000, Since: &since})
	if err != nil {
		t.Fatalf("SearchIssues() error = %v", err)
	}
	if len(page.Issues) != 0 || !page.Last {
		t.Errorf("page = %+v", page)
	}
}

func TestSearchIssuesReportsServedSize(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     int
	}{
		{"capped by server", `{"startAt":0,"maxResults":100,"total":250,"issues":[]}`, 100},
		{"echo missing", `{"startAt":0,"total":250,"issues":[]}`, 1000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if got := r.URL.Query().Get("maxResults"); got != "1000" {
					t.Errorf("maxResults = %s, want 1000", got)
				}
				_, _ = w.Write([]byte(tt.response))
			}))
			defer server.Close()

			page, err := newTestTracker(server.URL).SearchIssues(context.Background(), types.Project{Key: "PROJ"},
				tracker.PageRequest{Size: 1000})
			if err != nil {
				t.Fatalf("SearchIssues() error = %v", err)
			}
			if page.Size != tt.want {
				t.Errorf("Size = %d, want %d", page.Size, tt.want)
			}
			if page.Last {
				t.Error("Last = true, want false")
			}
		})
	}
}

func TestFetchComments(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/api/2/issue/PROJ-2/comment" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		calls++
		startAt := r.URL.Query().Get("startAt")
		var page CommentPage
		switch startAt {
		case "0":
			page = CommentPage{StartAt: 0, Total: 3, Comments: []Comment{
				{ID: "1", Author: &User{Name: "alice"}, Body: json.RawMessage(`"one"`)},
				{ID: "2", Body: json.RawMessage(`"two"`)},
			}}
		case "2":
			page = CommentPage{StartAt: 2, Total: 3, Comments: []Comment{
				{ID: "3", Author: &User{AccountID: "abc"}, Body: json.RawMessage(`"three"`)},
			}}
		default:
			t.Errorf("unexpected startAt %s", startAt)
		}
		_ = json.NewEncoder(w).Encode(page)
	}))
	defer server.Close()

	comments, err := newTestTracker(server.URL).FetchComments(context.Background(), &tracker.RawIssue{Key: "PROJ-2"})
	if err != nil {
		t.Fatalf("FetchComments() error = %v", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
	if len(comments) != 3 || comments[2].Body != "three" || *comments[0].Author != "alice" || comments[1].Author != nil {
		t.Errorf("comments = %+v", comments)
	}
}

func TestSearchIssuesError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"errorMessages":["bad jql"]}`))
	}))
	defer server.Close()

	_, err := newTestTracker(server.URL).SearchIssues(context.Background(), types.Project{Key: "PROJ"}, tracker.PageRequest{Size: 10})
	if err == nil || !strings.Contains(err.Error(), "jira API returned 400") {
		t.Fatalf("SearchIssues() error = %v", err)
	}
}

func TestUninitialized(t *testing.T) {
	tr := &Tracker{}
	if _, err := tr.ListProjects(context.Background()); err == nil {
		t.Error("ListProjects() on uninitialized tracker should fail")
	}
}

func TestDescriptionToPlainText(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"null", `null`, ""},
		{"plain string", `"hello\nworld"`, "hello\nworld"},
		{"adf", `{"type":"doc","content":[{"type":"paragraph","content":[{"type":"text","text":"a"},{"type":"text","text":"b"}]},{"type":"paragraph","content":[{"type":"text","text":"c"}]}]}`, "ab\nc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DescriptionToPlainText(json.RawMessage(tt.raw)); got != tt.want {
				t.Errorf("DescriptionToPlainText() = %q, want %q", got, tt.want)
			}
		})
	}
}
