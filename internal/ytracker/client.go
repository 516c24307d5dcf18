// Package ytracker is a client for the Yandex Tracker REST API v2, the
// destination of every migration.
package ytracker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/steveyegge/trackmigrate/internal/httpx"
	"github.com/steveyegge/trackmigrate/internal/tracker"
	"github.com/steveyegge/trackmigrate/internal/types"
)

// DefaultBaseURL is the public Tracker API endpoint.
const DefaultBaseURL = "https://api.tracker.yandex.net"

const usersPerPage = 1000

// QueueDefaults are the settings Tracker requires when creating a queue.
type QueueDefaults struct {
	Lead            string
	DefaultType     string
	DefaultPriority string
	Workflow        string
	Resolutions     []string
}

// Config selects the organization and credentials of a Client.
// Exactly one of OrgID (Yandex 360 organization) and CloudOrgID
// (Yandex Cloud organization) is used; OrgID wins when both are set.
type Config struct {
	BaseURL    string
	OAuthToken string
	IAMToken   string
	OrgID      string
	CloudOrgID string
	Queue      QueueDefaults
}

// APIError is returned for non-2xx Tracker responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("tracker API returned %d: %s", e.StatusCode, e.Body)
}

// Is reports 404 responses as tracker.ErrNotFound.
func (e *APIError) Is(target error) bool {
	return target == tracker.ErrNotFound && e.StatusCode == http.StatusNotFound
}

// Client provides HTTP access to one Tracker organization.
type Client struct {
	URL  string
	HTTP *httpx.Client

	orgHeader string
	orgID     string
	queue     QueueDefaults
}

// NewClient creates a Tracker client. Either OrgID or CloudOrgID must be set.
func NewClient(cfg Config) (*Client, error) {
	c := &Client{
		URL:   strings.TrimSuffix(cfg.BaseURL, "/"),
		queue: cfg.Queue,
	}
	if c.URL == "" {
		c.URL = DefaultBaseURL
	}

	switch {
	case cfg.OrgID != "":
		c.orgHeader, c.orgID = "X-Org-ID", cfg.OrgID
	case cfg.CloudOrgID != "":
		c.orgHeader, c.orgID = "X-Cloud-Org-ID", cfg.CloudOrgID
	default:
		return nil, errors.New("either ORG_ID or CLOUD_ORG_ID must be specified")
	}

	var authorization string
	switch {
	case cfg.OAuthToken != "":
		authorization = "OAuth " + cfg.OAuthToken
	case cfg.IAMToken != "":
		authorization = "Bearer " + cfg.IAMToken
	default:
		return nil, errors.New("tracker token not configured")
	}

	c.HTTP = httpx.New("tracker", func(req *http.Request) {
		req.Header.Set("Authorization", authorization)
	})
	return c, nil
}

// Organization describes which organization the client talks to, for logs.
func (c *Client) Organization() string {
	if c.orgHeader == "X-Cloud-Org-ID" {
		return "cloud organization " + c.orgID
	}
	return "organization " + c.orgID
}

// GetQueue fetches a queue by key.
func (c *Client) GetQueue(ctx context.Context, key string) (*types.Queue, error) {
	var q Queue
	if err := c.getJSON(ctx, "/v2/queues/"+url.PathEscape(key), &q); err != nil {
		return nil, fmt.Errorf("get queue %s: %w", key, err)
	}
	return &types.Queue{Key: q.Key, Name: q.Name, ID: string(q.ID)}, nil
}

// CreateQueue creates a queue using the client's queue defaults.
func (c *Client) CreateQueue(ctx context.Context, queue types.Queue) (*types.Queue, error) {
	body := createQueueRequest{
		Key:             queue.Key,
		Name:            queue.Name,
		Lead:            c.queue.Lead,
		DefaultType:     c.queue.DefaultType,
		DefaultPriority: c.queue.DefaultPriority,
	}
	if c.queue.DefaultType != "" {
		body.IssueTypesConfig = []issueTypeConfig{{
			IssueType:   c.queue.DefaultType,
			Workflow:    c.queue.Workflow,
			Resolutions: c.queue.Resolutions,
		}}
	}

	var q Queue
	if err := c.sendJSON(ctx, http.MethodPost, "/v2/queues", body, &q); err != nil {
		return nil, fmt.Errorf("create queue %s: %w", queue.Key, err)
	}
	return &types.Queue{Key: q.Key, Name: q.Name, ID: string(q.ID)}, nil
}

// GetUser fetches a user by uid or login.
func (c *Client) GetUser(ctx context.Context, uid string) (*types.User, error) {
	var u User
	if err := c.getJSON(ctx, "/v2/users/"+url.PathEscape(uid), &u); err != nil {
		return nil, fmt.Errorf("get user %s: %w", uid, err)
	}
	user := u.toUser()
	return &user, nil
}

// ListUsers returns every user of the organization.
func (c *Client) ListUsers(ctx context.Context) ([]types.User, error) {
	var users []types.User
	for page := 1; ; page++ {
		path := fmt.Sprintf("/v2/users?perPage=%d&page=%d", usersPerPage, page)
		resp, err := c.do(ctx, http.MethodGet, path, nil, "")
		if err != nil {
			return nil, fmt.Errorf("list users (page %d): %w", page, err)
		}

		var batch []User
		if err := json.Unmarshal(resp.Body, &batch); err != nil {
			return nil, fmt.Errorf("parse users response: %w", err)
		}
		for _, u := range batch {
			users = append(users, u.toUser())
		}

		totalPages := headerInt(resp.Header.Get("X-Total-Pages"))
		if len(batch) == 0 || page >= totalPages {
			break
		}
	}
	return users, nil
}

// GetIssue fetches an issue by key.
func (c *Client) GetIssue(ctx context.Context, key string) (*types.Issue, error) {
	var issue Issue
	if err := c.getJSON(ctx, "/v2/issues/"+url.PathEscape(key), &issue); err != nil {
		return nil, fmt.Errorf("get issue %s: %w", key, err)
	}
	out := issue.toIssue()
	return &out, nil
}

// CreateIssue creates an issue in issue.QueueKey.
func (c *Client) CreateIssue(ctx context.Context, issue *types.NormalizedIssue) (*types.Issue, error) {
	body := createIssueRequest{
		Queue:       issue.QueueKey,
		Summary:     issue.Summary,
		Description: issue.Description,
		Assignee:    issue.Assignee,
		Author:      issue.Reporter,
		Status:      issue.Status,
		Priority:    issue.Priority,
		Tags:        issue.Labels,
	}
	if issue.CreatedAt != nil {
		body.CreatedAt = issue.CreatedAt.Format(timestampLayout)
	}
	if issue.UpdatedAt != nil {
		body.UpdatedAt = issue.UpdatedAt.Format(timestampLayout)
	}

	var created Issue
	if err := c.sendJSON(ctx, http.MethodPost, "/v2/issues", body, &created); err != nil {
		return nil, fmt.Errorf("create issue in %s: %w", issue.QueueKey, err)
	}
	out := created.toIssue()
	return &out, nil
}

// UpdateIssue changes the assignee and/or author of an issue.
func (c *Client) UpdateIssue(ctx context.Context, key string, update types.IssueUpdate) error {
	body := updateIssueRequest{Assignee: update.Assignee, Author: update.Author}
	if err := c.sendJSON(ctx, http.MethodPatch, "/v2/issues/"+url.PathEscape(key), body, nil); err != nil {
		return fmt.Errorf("update issue %s: %w", key, err)
	}
	return nil
}

// UpdateFollowers adds and removes followers of an issue.
func (c *Client) UpdateFollowers(ctx context.Context, key string, add, remove []string) error {
	body := updateIssueRequest{Followers: &followersUpdate{Add: add, Remove: remove}}
	if err := c.sendJSON(ctx, http.MethodPatch, "/v2/issues/"+url.PathEscape(key), body, nil); err != nil {
		return fmt.Errorf("update followers of %s: %w", key, err)
	}
	return nil
}

// CreateComment adds a comment to an issue.
func (c *Client) CreateComment(ctx context.Context, issueKey string, comment types.Comment) error {
	body := createCommentRequest{Text: comment.Body, Author: comment.Author}
	path := "/v2/issues/" + url.PathEscape(issueKey) + "/comments"
	if err := c.sendJSON(ctx, http.MethodPost, path, body, nil); err != nil {
		return fmt.Errorf("create comment on %s: %w", issueKey, err)
	}
	return nil
}

// UploadAttachment uploads content as a file attached to an issue.
func (c *Client) UploadAttachment(ctx context.Context, issueKey, filename string, content io.Reader) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return fmt.Errorf("read attachment %s: %w", filename, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finish multipart body: %w", err)
	}

	path := "/v2/issues/" + url.PathEscape(issueKey) + "/attachments?filename=" + url.QueryEscape(filename)
	if _, err := c.do(ctx, http.MethodPost, path, buf.Bytes(), w.FormDataContentType()); err != nil {
		return fmt.Errorf("upload attachment %s to %s: %w", filename, issueKey, err)
	}
	return nil
}

// CreateLink links issueKey to targetKey with the given relationship.
func (c *Client) CreateLink(ctx context.Context, issueKey, relationship, targetKey string) error {
	body := createLinkRequest{Relationship: relationship, Issue: targetKey}
	path := "/v2/issues/" + url.PathEscape(issueKey) + "/links"
	if err := c.sendJSON(ctx, http.MethodPost, path, body, nil); err != nil {
		return fmt.Errorf("link %s %s %s: %w", issueKey, relationship, targetKey, err)
	}
	return nil
}

// FindIssues returns one page of issues matching filter. Page numbers start at 1.
func (c *Client) FindIssues(ctx context.Context, filter map[string]string, page, perPage int) (*types.IssuePage, error) {
	data, err := json.Marshal(searchRequest{Filter: filter})
	if err != nil {
		return nil, fmt.Errorf("marshal search request: %w", err)
	}

	path := "/v2/issues/_search?page=" + strconv.Itoa(page) + "&perPage=" + strconv.Itoa(perPage)
	resp, err := c.send(ctx, httpx.Request{
		Method:     http.MethodPost,
		URL:        c.URL + path,
		Body:       data,
		Idempotent: true,
	})
	if err != nil {
		return nil, fmt.Errorf("search issues (page %d): %w", page, err)
	}

	var issues []Issue
	if err := json.Unmarshal(resp.Body, &issues); err != nil {
		return nil, fmt.Errorf("parse search response: %w", err)
	}

	result := &types.IssuePage{
		Page:       page,
		TotalPages: headerInt(resp.Header.Get("X-Total-Pages")),
		TotalCount: headerInt(resp.Header.Get("X-Total-Count")),
	}
	for _, issue := range issues {
		result.Issues = append(result.Issues, issue.toIssue())
	}
	return result, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	resp, err := c.do(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return err
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

func (c *Client) sendJSON(ctx context.Context, method, path string, in, out interface{}) error {
	data, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	resp, err := c.do(ctx, method, path, data, "")
	if err != nil {
		return err
	}
	if out == nil || len(resp.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

// do executes a request against the organization and converts HTTP status
// failures to *APIError.
func (c *Client) do(ctx context.Context, method, path string, body []byte, contentType string) (*httpx.Response, error) {
	return c.send(ctx, httpx.Request{
		Method:      method,
		URL:         c.URL + path,
		Body:        body,
		ContentType: contentType,
	})
}

func (c *Client) send(ctx context.Context, req httpx.Request) (*httpx.Response, error) {
	req.Header = http.Header{c.orgHeader: {c.orgID}}
	resp, err := c.HTTP.Do(ctx, req)
	if err != nil {
		var statusErr *httpx.StatusError
		if errors.As(err, &statusErr) {
			return nil, &APIError{StatusCode: statusErr.StatusCode, Body: statusErr.Body}
		}
		return nil, err
	}
	return resp, nil
}

var _ tracker.Destination = (*Client)(nil)
