// Package asana provides the Asana REST client and the Asana migration source.
package asana

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/steveyegge/trackmigrate/internal/httpx"
)

// DefaultBaseURL is the Asana API root.
const DefaultBaseURL = "https://app.asana.com/api/1.0"

// MaxPageSize is the largest page Asana serves.
const MaxPageSize = 100

// taskFields is the opt_fields list requested for tasks.
const taskFields = "name,notes,assignee,created_by,created_at,modified_at,completed,tags.name,followers"

// Ref is a compact Asana object reference.
type Ref struct {
	GID  string `json:"gid"`
	Name string `json:"name,omitempty"`
}

// Task is an Asana task.
type Task struct {
	GID        string     `json:"gid"`
	Name       string     `json:"name"`
	Notes      string     `json:"notes"`
	Assignee   *Ref       `json:"assignee"`
	CreatedBy  *Ref       `json:"created_by"`
	CreatedAt  *time.Time `json:"created_at"`
	ModifiedAt *time.Time `json:"modified_at"`
	Completed  *bool      `json:"completed"`
	Tags       []Ref      `json:"tags"`
	Followers  []Ref      `json:"followers"`
}

// Story is an entry of a task's activity feed; comments have Type "comment".
type Story struct {
	GID       string `json:"gid"`
	Type      string `json:"type"`
	Text      string `json:"text"`
	CreatedBy *Ref   `json:"created_by"`
}

// Attachment is an Asana attachment. DownloadURL is only returned by the
// single-attachment endpoint and expires shortly after.
type Attachment struct {
	GID         string `json:"gid"`
	Name        string `json:"name"`
	DownloadURL string `json:"download_url,omitempty"`
}

// NextPage is the pagination cursor of a list response.
type NextPage struct {
	Offset string `json:"offset"`
	Path   string `json:"path"`
	URI    string `json:"uri"`
}

type listResponse[T any] struct {
	Data     []T       `json:"data"`
	NextPage *NextPage `json:"next_page"`
}

// Client provides HTTP access to the Asana API.
type Client struct {
	URL         string
	AccessToken string
	HTTP        *httpx.Client

	// download fetches pre-signed attachment URLs without credentials.
	download *httpx.Client
}

// NewClient creates a new Asana client authenticated with a personal access token.
func NewClient(baseURL, accessToken string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		URL:         strings.TrimSuffix(baseURL, "/"),
		AccessToken: accessToken,
	}
	c.HTTP = httpx.New("asana", func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+c.AccessToken)
	})
	c.download = httpx.New("asana", nil)
	return c
}

// ListWorkspaces returns the workspaces visible to the token.
func (c *Client) ListWorkspaces(ctx context.Context) ([]Ref, error) {
	return listAll[Ref](ctx, c, "/workspaces", url.Values{})
}

// ListProjects returns the projects of a workspace.
func (c *Client) ListProjects(ctx context.Context, workspaceGID string) ([]Ref, error) {
	return listAll[Ref](ctx, c, "/projects", url.Values{"workspace": {workspaceGID}})
}

// ListTasks returns one page of a project's tasks. When modifiedSince is set
// only tasks modified at or after it are returned.
func (c *Client) ListTasks(ctx context.Context, projectGID, offset string, limit int, modifiedSince *time.Time) ([]Task, *NextPage, error) {
	params := url.Values{
		"opt_fields": {taskFields},
		"limit":      {strconv.Itoa(limit)},
	}
	if offset != "" {
		params.Set("offset", offset)
	}

	path := "/projects/" + url.PathEscape(projectGID) + "/tasks"
	if modifiedSince != nil {
		path = "/tasks"
		params.Set("project", projectGID)
		params.Set("modified_since", modifiedSince.UTC().Format(time.RFC3339))
	}

	var resp listResponse[Task]
	if err := c.getJSON(ctx, path, params, &resp); err != nil {
		return nil, nil, fmt.Errorf("list tasks of project %s: %w", projectGID, err)
	}
	return resp.Data, resp.NextPage, nil
}

// ListStories returns the full activity feed of a task.
func (c *Client) ListStories(ctx context.Context, taskGID string) ([]Story, error) {
	stories, err := listAll[Story](ctx, c, "/tasks/"+url.PathEscape(taskGID)+"/stories",
		url.Values{"opt_fields": {"type,text,created_by"}})
	if err != nil {
		return nil, fmt.Errorf("list stories of task %s: %w", taskGID, err)
	}
	return stories, nil
}

// ListAttachments returns the attachments of a task, without download URLs.
func (c *Client) ListAttachments(ctx context.Context, taskGID string) ([]Attachment, error) {
	attachments, err := listAll[Attachment](ctx, c, "/attachments",
		url.Values{"parent": {taskGID}, "opt_fields": {"name"}})
	if err != nil {
		return nil, fmt.Errorf("list attachments of task %s: %w", taskGID, err)
	}
	return attachments, nil
}

// GetAttachment fetches a single attachment including its download URL.
func (c *Client) GetAttachment(ctx context.Context, gid string) (*Attachment, error) {
	var resp struct {
		Data Attachment `json:"data"`
	}
	if err := c.getJSON(ctx, "/attachments/"+url.PathEscape(gid), url.Values{}, &resp); err != nil {
		return nil, fmt.Errorf("get attachment %s: %w", gid, err)
	}
	return &resp.Data, nil
}

// Download fetches the content behind a download URL.
func (c *Client) Download(ctx context.Context, downloadURL string) ([]byte, error) {
	body, err := c.download.Get(ctx, downloadURL)
	if err != nil {
		return nil, fmt.Errorf("download attachment: %w", err)
	}
	return body, nil
}

func listAll[T any](ctx context.Context, c *Client, path string, params url.Values) ([]T, error) {
	var all []T
	params.Set("limit", strconv.Itoa(MaxPageSize))
	for {
		var resp listResponse[T]
		if err := c.getJSON(ctx, path, params, &resp); err != nil {
			return nil, err
		}
		all = append(all, resp.Data...)
		if resp.NextPage == nil || resp.NextPage.Offset == "" {
			return all, nil
		}
		params.Set("offset", resp.NextPage.Offset)
	}
}

func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out interface{}) error {
	if c.AccessToken == "" {
		return fmt.Errorf("asana access token not configured")
	}
	apiURL := c.URL + path
	if len(params) > 0 {
		apiURL += "?" + params.Encode()
	}
	body, err := c.HTTP.Get(ctx, apiURL)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parse asana response: %w", err)
	}
	return nil
}
