package testutil

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/steveyegge/trackmigrate/internal/tracker"
	"github.com/steveyegge/trackmigrate/internal/types"
)

// FakeDestination is an in-memory tracker.Destination for engine and
// reconciliation tests. Every call is recorded in Calls as "Method arg".
type FakeDestination struct {
	mu     sync.Mutex
	queues map[string]types.Queue
	users  map[string]types.User
	issues []*MockIssue
	seq    map[string]int

	// Calls records every invocation, e.g. "GetUser u1" or "CreateIssue P".
	Calls []string

	// Fail, when set, is consulted before every call. A non-nil error is
	// returned to the caller instead of performing the operation.
	Fail func(method, arg string) error
}

// NewFakeDestination creates an empty destination.
func NewFakeDestination() *FakeDestination {
	return &FakeDestination{
		queues: make(map[string]types.Queue),
		users:  make(map[string]types.User),
		seq:    make(map[string]int),
	}
}

// AddQueue registers an existing queue.
func (d *FakeDestination) AddQueue(key, name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.queues[key] = types.Queue{Key: key, Name: name, ID: "q-" + key}
}

// AddUser registers an existing user.
func (d *FakeDestination) AddUser(uid string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[uid] = types.User{UID: uid, Login: uid, Email: uid + "@example.com", Display: strings.ToUpper(uid)}
}

// AddIssue stores an existing issue. Key is assigned when empty.
func (d *FakeDestination) AddIssue(issue *MockIssue) *MockIssue {
	d.mu.Lock()
	defer d.mu.Unlock()
	if issue.Key == "" {
		d.seq[issue.Queue]++
		issue.Key = fmt.Sprintf("%s-%d", issue.Queue, d.seq[issue.Queue])
	}
	d.issues = append(d.issues, issue)
	return issue
}

// Issues returns the stored issues in creation order.
func (d *FakeDestination) Issues() []*MockIssue {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*MockIssue(nil), d.issues...)
}

// Issue returns the stored issue with key, or nil.
func (d *FakeDestination) Issue(key string) *MockIssue {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.find(key)
}

// HasQueue reports whether the queue exists.
func (d *FakeDestination) HasQueue(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.queues[key]
	return ok
}

// CallCount returns how many recorded calls start with prefix.
func (d *FakeDestination) CallCount(prefix string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, c := range d.Calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

func (d *FakeDestination) find(key string) *MockIssue {
	for _, issue := range d.issues {
		if issue.Key == key {
			return issue
		}
	}
	return nil
}

// call records the invocation and returns the injected failure, if any.
// Callers hold d.mu.
func (d *FakeDestination) call(method, arg string) error {
	d.Calls = append(d.Calls, method+" "+arg)
	if d.Fail != nil {
		return d.Fail(method, arg)
	}
	return nil
}

func notFound(kind, key string) error {
	return fmt.Errorf("%s %s: %w", kind, key, tracker.ErrNotFound)
}

func (d *FakeDestination) GetQueue(_ context.Context, key string) (*types.Queue, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.call("GetQueue", key); err != nil {
		return nil, err
	}
	q, ok := d.queues[key]
	if !ok {
		return nil, notFound("queue", key)
	}
	return &q, nil
}

func (d *FakeDestination) CreateQueue(_ context.Context, queue types.Queue) (*types.Queue, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.call("CreateQueue", queue.Key); err != nil {
		return nil, err
	}
	if _, ok := d.queues[queue.Key]; ok {
		return nil, fmt.Errorf("queue %s already exists", queue.Key)
	}
	queue.ID = "q-" + queue.Key
	d.queues[queue.Key] = queue
	return &queue, nil
}

func (d *FakeDestination) GetUser(_ context.Context, uid string) (*types.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.call("GetUser", uid); err != nil {
		return nil, err
	}
	u, ok := d.users[uid]
	if !ok {
		return nil, notFound("user", uid)
	}
	return &u, nil
}

func (d *FakeDestination) ListUsers(_ context.Context) ([]types.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.call("ListUsers", ""); err != nil {
		return nil, err
	}
	users := make([]types.User, 0, len(d.users))
	for _, u := range d.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].UID < users[j].UID })
	return users, nil
}

func (d *FakeDestination) GetIssue(_ context.Context, key string) (*types.Issue, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.call("GetIssue", key); err != nil {
		return nil, err
	}
	issue := d.find(key)
	if issue == nil {
		return nil, notFound("issue", key)
	}
	return toIssue(issue), nil
}

func (d *FakeDestination) CreateIssue(_ context.Context, in *types.NormalizedIssue) (*types.Issue, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.call("CreateIssue", in.QueueKey); err != nil {
		return nil, err
	}
	if _, ok := d.queues[in.QueueKey]; !ok {
		return nil, fmt.Errorf("queue %s does not exist", in.QueueKey)
	}
	d.seq[in.QueueKey]++
	issue := &MockIssue{
		Key:         fmt.Sprintf("%s-%d", in.QueueKey, d.seq[in.QueueKey]),
		Queue:       in.QueueKey,
		Summary:     in.Summary,
		Description: in.Description,
		Assignee:    in.Assignee,
		Author:      in.Reporter,
		Status:      in.Status,
		Priority:    in.Priority,
		Tags:        append([]string(nil), in.Labels...),
	}
	d.issues = append(d.issues, issue)
	return toIssue(issue), nil
}

func (d *FakeDestination) UpdateIssue(_ context.Context, key string, update types.IssueUpdate) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.call("UpdateIssue", key); err != nil {
		return err
	}
	issue := d.find(key)
	if issue == nil {
		return notFound("issue", key)
	}
	if update.Assignee != nil {
		issue.Assignee = *update.Assignee
	}
	if update.Author != nil {
		issue.Author = *update.Author
	}
	return nil
}

func (d *FakeDestination) UpdateFollowers(_ context.Context, key string, add, remove []string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.call("UpdateFollowers", key); err != nil {
		return err
	}
	issue := d.find(key)
	if issue == nil {
		return notFound("issue", key)
	}
	issue.Followers = applyFollowers(issue.Followers, add, remove)
	return nil
}

// applyFollowers adds then removes, the way the tracker applies a
// followers update.
func applyFollowers(current, add, remove []string) []string {
	for _, uid := range add {
		if !contains(current, uid) {
			current = append(current, uid)
		}
	}
	kept := current[:0]
	for _, uid := range current {
		if !contains(remove, uid) {
			kept = append(kept, uid)
		}
	}
	return kept
}

func (d *FakeDestination) CreateComment(_ context.Context, issueKey string, comment types.Comment) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.call("CreateComment", issueKey); err != nil {
		return err
	}
	issue := d.find(issueKey)
	if issue == nil {
		return notFound("issue", issueKey)
	}
	issue.Comments = append(issue.Comments, MockComment{Text: comment.Body, Author: comment.Author})
	return nil
}

func (d *FakeDestination) UploadAttachment(_ context.Context, issueKey, filename string, content io.Reader) error {
	data, err := io.ReadAll(content)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.call("UploadAttachment", issueKey); err != nil {
		return err
	}
	issue := d.find(issueKey)
	if issue == nil {
		return notFound("issue", issueKey)
	}
	issue.Attachments = append(issue.Attachments, MockAttachment{Filename: filename, Content: data})
	return nil
}

func (d *FakeDestination) CreateLink(_ context.Context, issueKey, relationship, targetKey string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.call("CreateLink", issueKey); err != nil {
		return err
	}
	issue := d.find(issueKey)
	if issue == nil {
		return notFound("issue", issueKey)
	}
	if d.find(targetKey) == nil {
		return notFound("issue", targetKey)
	}
	issue.Links = append(issue.Links, MockLink{Relationship: relationship, Issue: targetKey})
	return nil
}

// FindIssues supports the assignee, createdBy, followers and queue filters.
func (d *FakeDestination) FindIssues(_ context.Context, filter map[string]string, page, perPage int) (*types.IssuePage, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.call("FindIssues", fmt.Sprintf("%v page=%d", filter, page)); err != nil {
		return nil, err
	}
	var matched []*MockIssue
	for _, issue := range d.issues {
		if matches(issue, filter) {
			matched = append(matched, issue)
		}
	}

	if perPage <= 0 {
		perPage = 50
	}
	totalPages := (len(matched) + perPage - 1) / perPage
	result := &types.IssuePage{Page: page, TotalPages: totalPages, TotalCount: len(matched)}
	start := (page - 1) * perPage
	if start < 0 || start >= len(matched) {
		return result, nil
	}
	end := start + perPage
	if end > len(matched) {
		end = len(matched)
	}
	for _, issue := range matched[start:end] {
		result.Issues = append(result.Issues, *toIssue(issue))
	}
	return result, nil
}

func toIssue(issue *MockIssue) *types.Issue {
	return &types.Issue{
		ID:        "id-" + issue.Key,
		Key:       issue.Key,
		Summary:   issue.Summary,
		Assignee:  issue.Assignee,
		Author:    issue.Author,
		Followers: append([]string(nil), issue.Followers...),
	}
}

var _ tracker.Destination = (*FakeDestination)(nil)
