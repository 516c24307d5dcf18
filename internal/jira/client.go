package jira

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/steveyegge/trackmigrate/internal/httpx"
)

// searchFields is the set of fields requested in search/get queries.
const searchFields = "summary,description,status,priority,project,assignee,reporter,labels,created,updated,comment,attachment,issuelinks"

// commentsPerPage is the page size for the issue comment endpoint.
const commentsPerPage = 100

// Client provides HTTP access to a Jira instance.
type Client struct {
	URL      string
	Username string
	APIToken string
	HTTP     *httpx.Client
}

// NewClient creates a new Jira client.
func NewClient(jiraURL, username, apiToken string) *Client {
	c := &Client{
		URL:      strings.TrimSuffix(jiraURL, "/"),
		Username: username,
		APIToken: apiToken,
	}
	c.HTTP = httpx.New("jira", c.setAuth)
	return c
}

// ListProjects returns every project visible to the user.
func (c *Client) ListProjects(ctx context.Context) ([]Project, error) {
	body, err := c.get(ctx, c.URL+"/rest/api/2/project")
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}

	var projects []Project
	if err := json.Unmarshal(body, &projects); err != nil {
		return nil, fmt.Errorf("parse projects response: %w", err)
	}
	return projects, nil
}

// Search runs a JQL query and returns one page of results.
func (c *Client) Search(ctx context.Context, jql string, startAt, maxResults int) (*SearchResult, error) {
	params := url.Values{
		"jql":        {jql},
		"fields":     {searchFields},
		"startAt":    {strconv.Itoa(startAt)},
		"maxResults": {strconv.Itoa(maxResults)},
	}

	body, err := c.get(ctx, c.URL+"/rest/api/2/search?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("search issues (startAt %d): %w", startAt, err)
	}

	var result SearchResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("parse search response: %w", err)
	}
	return &result, nil
}

// GetComments fetches all comments of an issue in creation order.
func (c *Client) GetComments(ctx context.Context, key string) ([]Comment, error) {
	var all []Comment
	startAt := 0
	for {
		params := url.Values{
			"startAt":    {strconv.Itoa(startAt)},
			"maxResults": {strconv.Itoa(commentsPerPage)},
			"orderBy":    {"created"},
		}
		apiURL := fmt.Sprintf("%s/rest/api/2/issue/%s/comment?%s", c.URL, url.PathEscape(key), params.Encode())

		body, err := c.get(ctx, apiURL)
		if err != nil {
			return nil, fmt.Errorf("get comments of %s: %w", key, err)
		}

		var page CommentPage
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("parse comments response: %w", err)
		}
		all = append(all, page.Comments...)

		if len(page.Comments) == 0 || startAt+len(page.Comments) >= page.Total {
			break
		}
		startAt += len(page.Comments)
	}
	return all, nil
}

// GetAttachments fetches the attachment metadata of an issue.
func (c *Client) GetAttachments(ctx context.Context, key string) ([]AttachmentMeta, error) {
	apiURL := fmt.Sprintf("%s/rest/api/2/issue/%s?fields=attachment", c.URL, url.PathEscape(key))
	body, err := c.get(ctx, apiURL)
	if err != nil {
		return nil, fmt.Errorf("get attachments of %s: %w", key, err)
	}

	var issue Issue
	if err := json.Unmarshal(body, &issue); err != nil {
		return nil, fmt.Errorf("parse issue response: %w", err)
	}
	return issue.Fields.Attachment, nil
}

// Download fetches attachment content from its content URL.
func (c *Client) Download(ctx context.Context, contentURL string) ([]byte, error) {
	body, err := c.get(ctx, contentURL)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", contentURL, err)
	}
	return body, nil
}

func (c *Client) get(ctx context.Context, apiURL string) ([]byte, error) {
	if c.URL == "" {
		return nil, fmt.Errorf("jira URL not configured")
	}
	if c.APIToken == "" {
		return nil, fmt.Errorf("jira API token not configured")
	}
	return c.HTTP.Get(ctx, apiURL)
}

// setAuth sets the appropriate authentication header on the request:
// Basic with a username, Bearer (personal access token) without.
func (c *Client) setAuth(req *http.Request) {
	if c.Username != "" {
		auth := base64.StdEncoding.EncodeToString([]byte(c.Username + ":" + c.APIToken))
		req.Header.Set("Authorization", "Basic "+auth)
	} else {
		req.Header.Set("Authorization", "Bearer "+c.APIToken)
	}
}

// DescriptionToPlainText extracts plain text from a Jira description or
// comment body, which is a JSON string on v2 and ADF (Atlassian Document
// Format) when the instance returns v3 payloads.
func DescriptionToPlainText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}

	var doc struct {
		Type    string `json:"type"`
		Content []struct {
			Type    string `json:"type"`
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
		} `json:"content"`
	}

	if err := json.Unmarshal(raw, &doc); err != nil || doc.Type != "doc" {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
		return string(raw)
	}

	var parts []string
	for _, block := range doc.Content {
		var line []string
		for _, inline := range block.Content {
			if inline.Text != "" {
				line = append(line, inline.Text)
			}
		}
		if len(line) > 0 {
			parts = append(parts, strings.Join(line, ""))
		}
	}

	return strings.Join(parts, "\n")
}
