package ytracker

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/steveyegge/trackmigrate/internal/types"
)

// ID is an identifier the API returns either as a JSON number or a string
// (user uids are numeric, queue and issue ids are strings).
type ID string

// UnmarshalJSON accepts both string and numeric forms.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid id %s: %w", data, err)
	}
	*id = ID(n.String())
	return nil
}

// UserRef is the embedded user reference in issue payloads.
type UserRef struct {
	Self    string `json:"self,omitempty"`
	ID      ID     `json:"id"`
	Display string `json:"display,omitempty"`
}

// User is a Tracker user.
type User struct {
	UID     ID     `json:"uid"`
	Login   string `json:"login"`
	Email   string `json:"email"`
	Display string `json:"display"`
}

func (u User) toUser() types.User {
	return types.User{UID: string(u.UID), Login: u.Login, Email: u.Email, Display: u.Display}
}

// Queue is a Tracker queue.
type Queue struct {
	ID   ID     `json:"id,omitempty"`
	Key  string `json:"key"`
	Name string `json:"name"`
}

// Issue is a Tracker issue as returned by the API.
type Issue struct {
	ID        ID        `json:"id"`
	Key       string    `json:"key"`
	Summary   string    `json:"summary"`
	Assignee  *UserRef  `json:"assignee"`
	CreatedBy *UserRef  `json:"createdBy"`
	Followers []UserRef `json:"followers"`
}

func (i Issue) toIssue() types.Issue {
	out := types.Issue{ID: string(i.ID), Key: i.Key, Summary: i.Summary}
	if i.Assignee != nil {
		out.Assignee = string(i.Assignee.ID)
	}
	if i.CreatedBy != nil {
		out.Author = string(i.CreatedBy.ID)
	}
	for _, f := range i.Followers {
		out.Followers = append(out.Followers, string(f.ID))
	}
	return out
}

// timestampLayout is the date-time format the API accepts.
const timestampLayout = "2006-01-02T15:04:05.000-0700"

type createIssueRequest struct {
	Queue       string   `json:"queue"`
	Summary     string   `json:"summary"`
	Description string   `json:"description,omitempty"`
	Assignee    string   `json:"assignee,omitempty"`
	Author      string   `json:"author,omitempty"`
	Status      string   `json:"status,omitempty"`
	Priority    string   `json:"priority,omitempty"`
	CreatedAt   string   `json:"createdAt,omitempty"`
	UpdatedAt   string   `json:"updatedAt,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

type issueTypeConfig struct {
	IssueType   string   `json:"issueType"`
	Workflow    string   `json:"workflow"`
	Resolutions []string `json:"resolutions"`
}

type createQueueRequest struct {
	Key              string            `json:"key"`
	Name             string            `json:"name"`
	Lead             string            `json:"lead"`
	DefaultType      string            `json:"defaultType"`
	DefaultPriority  string            `json:"defaultPriority"`
	IssueTypesConfig []issueTypeConfig `json:"issueTypesConfig"`
}

type followersUpdate struct {
	Add    []string `json:"add,omitempty"`
	Remove []string `json:"remove,omitempty"`
}

type updateIssueRequest struct {
	Assignee  *string          `json:"assignee,omitempty"`
	Author    *string          `json:"author,omitempty"`
	Followers *followersUpdate `json:"followers,omitempty"`
}

type createCommentRequest struct {
	Text   string `json:"text"`
	Author string `json:"author,omitempty"`
}

type createLinkRequest struct {
	Relationship string `json:"relationship"`
	Issue        string `json:"issue"`
}

type searchRequest struct {
	Filter map[string]string `json:"filter"`
}

// headerInt parses an integer response header, returning 0 when absent.
func headerInt(v string) int {
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}
