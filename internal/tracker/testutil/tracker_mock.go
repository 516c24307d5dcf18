package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
)

// MockComment is a comment stored by TrackerMockServer.
type MockComment struct {
	Text   string
	Author string
}

// MockAttachment is an uploaded file stored by TrackerMockServer.
type MockAttachment struct {
	Filename string
	Content  []byte
}

// MockLink is an issue link stored by TrackerMockServer.
type MockLink struct {
	Relationship string
	Issue        string
}

// MockIssue is an issue stored by TrackerMockServer.
type MockIssue struct {
	Key         string
	Queue       string
	Summary     string
	Description string
	Assignee    string
	Author      string
	Status      string
	Priority    string
	Tags        []string
	Followers   []string
	Comments    []MockComment
	Attachments []MockAttachment
	Links       []MockLink
}

// TrackerMockServer is an in-memory Yandex Tracker v2 API.
type TrackerMockServer struct {
	*MockServer

	dataMu sync.Mutex
	queues map[string]string // key -> name
	users  map[string]mockUser
	issues []*MockIssue
	seq    map[string]int
}

type mockUser struct {
	UID     string
	Login   string
	Email   string
	Display string
}

// NewTrackerMockServer creates an empty Tracker mock.
func NewTrackerMockServer() *TrackerMockServer {
	m := &TrackerMockServer{
		MockServer: NewMockServer(),
		queues:     make(map[string]string),
		users:      make(map[string]mockUser),
		seq:        make(map[string]int),
	}
	m.SetDefaultHandler(m.handleTrackerRequest)
	return m
}

// AddQueue registers an existing queue.
func (m *TrackerMockServer) AddQueue(key, name string) {
	m.dataMu.Lock()
	defer m.dataMu.Unlock()
	m.queues[key] = name
}

// AddUser registers an existing user.
func (m *TrackerMockServer) AddUser(uid, login, email, display string) {
	m.dataMu.Lock()
	defer m.dataMu.Unlock()
	m.users[uid] = mockUser{UID: uid, Login: login, Email: email, Display: display}
}

// AddIssue registers an existing issue.
func (m *TrackerMockServer) AddIssue(issue MockIssue) {
	m.dataMu.Lock()
	defer m.dataMu.Unlock()
	cp := issue
	m.issues = append(m.issues, &cp)
}

// HasQueue reports whether a queue exists.
func (m *TrackerMockServer) HasQueue(key string) bool {
	m.dataMu.Lock()
	defer m.dataMu.Unlock()
	_, ok := m.queues[key]
	return ok
}

// Issues returns copies of all stored issues in creation order.
func (m *TrackerMockServer) Issues() []MockIssue {
	m.dataMu.Lock()
	defer m.dataMu.Unlock()
	out := make([]MockIssue, 0, len(m.issues))
	for _, issue := range m.issues {
		out = append(out, *issue)
	}
	return out
}

// Issue returns a copy of the issue with key, or nil.
func (m *TrackerMockServer) Issue(key string) *MockIssue {
	m.dataMu.Lock()
	defer m.dataMu.Unlock()
	if issue := m.findIssue(key); issue != nil {
		cp := *issue
		return &cp
	}
	return nil
}

func (m *TrackerMockServer) findIssue(key string) *MockIssue {
	for _, issue := range m.issues {
		if issue.Key == key {
			return issue
		}
	}
	return nil
}

func (m *TrackerMockServer) handleTrackerRequest(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/v2/"), "/"), "/")

	m.dataMu.Lock()
	defer m.dataMu.Unlock()

	switch {
	case parts[0] == "queues" && len(parts) == 1 && r.Method == http.MethodPost:
		m.createQueue(w, r)
	case parts[0] == "queues" && len(parts) == 2 && r.Method == http.MethodGet:
		name, ok := m.queues[parts[1]]
		if !ok {
			WriteJSON(w, http.StatusNotFound, errorBody("queue not found"))
			return
		}
		WriteJSON(w, http.StatusOK, map[string]interface{}{"id": "q-" + parts[1], "key": parts[1], "name": name})
	case parts[0] == "users" && len(parts) == 1 && r.Method == http.MethodGet:
		var users []interface{}
		for _, u := range m.users {
			users = append(users, userJSON(u))
		}
		w.Header().Set("X-Total-Pages", "1")
		w.Header().Set("X-Total-Count", strconv.Itoa(len(users)))
		WriteJSON(w, http.StatusOK, users)
	case parts[0] == "users" && len(parts) == 2 && r.Method == http.MethodGet:
		u, ok := m.users[parts[1]]
		if !ok {
			WriteJSON(w, http.StatusNotFound, errorBody("user not found"))
			return
		}
		WriteJSON(w, http.StatusOK, userJSON(u))
	case parts[0] == "issues" && len(parts) == 1 && r.Method == http.MethodPost:
		m.createIssue(w, r)
	case parts[0] == "issues" && len(parts) == 2 && parts[1] == "_search" && r.Method == http.MethodPost:
		m.search(w, r)
	case parts[0] == "issues" && len(parts) >= 2:
		issue := m.findIssue(parts[1])
		if issue == nil {
			WriteJSON(w, http.StatusNotFound, errorBody("issue not found"))
			return
		}
		m.handleIssue(w, r, issue, parts[2:])
	default:
		WriteJSON(w, http.StatusNotFound, errorBody("not found"))
	}
}

func (m *TrackerMockServer) createQueue(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Key  string `json:"key"`
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Key == "" {
		WriteJSON(w, http.StatusBadRequest, errorBody("bad queue"))
		return
	}
	if _, exists := m.queues[req.Key]; exists {
		WriteJSON(w, http.StatusConflict, errorBody("queue exists"))
		return
	}
	m.queues[req.Key] = req.Name
	WriteJSON(w, http.StatusCreated, map[string]interface{}{"id": "q-" + req.Key, "key": req.Key, "name": req.Name})
}

func (m *TrackerMockServer) createIssue(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Queue       string   `json:"queue"`
		Summary     string   `json:"summary"`
		Description string   `json:"description"`
		Assignee    string   `json:"assignee"`
		Author      string   `json:"author"`
		Status      string   `json:"status"`
		Priority    string   `json:"priority"`
		Tags        []string `json:"tags"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteJSON(w, http.StatusBadRequest, errorBody("bad issue"))
		return
	}
	if _, ok := m.queues[req.Queue]; !ok {
		WriteJSON(w, http.StatusUnprocessableEntity, errorBody("queue does not exist"))
		return
	}
	m.seq[req.Queue]++
	issue := &MockIssue{
		Key:         fmt.Sprintf("%s-%d", req.Queue, m.seq[req.Queue]),
		Queue:       req.Queue,
		Summary:     req.Summary,
		Description: req.Description,
		Assignee:    req.Assignee,
		Author:      req.Author,
		Status:      req.Status,
		Priority:    req.Priority,
		Tags:        req.Tags,
	}
	m.issues = append(m.issues, issue)
	WriteJSON(w, http.StatusCreated, issueJSON(issue))
}

func (m *TrackerMockServer) handleIssue(w http.ResponseWriter, r *http.Request, issue *MockIssue, sub []string) {
	if len(sub) == 0 {
		switch r.Method {
		case http.MethodGet:
			WriteJSON(w, http.StatusOK, issueJSON(issue))
		case http.MethodPatch:
			m.patchIssue(w, r, issue)
		default:
			WriteJSON(w, http.StatusMethodNotAllowed, errorBody("method not allowed"))
		}
		return
	}

	switch sub[0] {
	case "comments":
		var req struct {
			Text   string `json:"text"`
			Author string `json:"author"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteJSON(w, http.StatusBadRequest, errorBody("bad comment"))
			return
		}
		issue.Comments = append(issue.Comments, MockComment{Text: req.Text, Author: req.Author})
		WriteJSON(w, http.StatusCreated, map[string]interface{}{"id": len(issue.Comments), "text": req.Text})
	case "attachments":
		file, header, err := r.FormFile("file")
		if err != nil {
			WriteJSON(w, http.StatusBadRequest, errorBody("missing file"))
			return
		}
		defer func() { _ = file.Close() }()
		data, _ := io.ReadAll(file)
		name := r.URL.Query().Get("filename")
		if name == "" {
			name = header.Filename
		}
		issue.Attachments = append(issue.Attachments, MockAttachment{Filename: name, Content: data})
		WriteJSON(w, http.StatusCreated, map[string]interface{}{"name": name, "size": len(data)})
	case "links":
		var req struct {
			Relationship string `json:"relationship"`
			Issue        string `json:"issue"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteJSON(w, http.StatusBadRequest, errorBody("bad link"))
			return
		}
		if m.findIssue(req.Issue) == nil {
			WriteJSON(w, http.StatusNotFound, errorBody("target issue not found"))
			return
		}
		issue.Links = append(issue.Links, MockLink{Relationship: req.Relationship, Issue: req.Issue})
		WriteJSON(w, http.StatusCreated, map[string]interface{}{"type": map[string]string{"id": req.Relationship}})
	default:
		WriteJSON(w, http.StatusNotFound, errorBody("not found"))
	}
}

func (m *TrackerMockServer) patchIssue(w http.ResponseWriter, r *http.Request, issue *MockIssue) {
	var req struct {
		Assignee  *string `json:"assignee"`
		Author    *string `json:"author"`
		Followers *struct {
			Add    []string `json:"add"`
			Remove []string `json:"remove"`
		} `json:"followers"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteJSON(w, http.StatusBadRequest, errorBody("bad update"))
		return
	}
	if req.Assignee != nil {
		issue.Assignee = *req.Assignee
	}
	if req.Author != nil {
		issue.Author = *req.Author
	}
	if req.Followers != nil {
		for _, uid := range req.Followers.Add {
			if !contains(issue.Followers, uid) {
				issue.Followers = append(issue.Followers, uid)
			}
		}
		kept := issue.Followers[:0]
		for _, uid := range issue.Followers {
			if !contains(req.Followers.Remove, uid) {
				kept = append(kept, uid)
			}
		}
		issue.Followers = kept
	}
	WriteJSON(w, http.StatusOK, issueJSON(issue))
}

func (m *TrackerMockServer) search(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Filter map[string]string `json:"filter"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteJSON(w, http.StatusBadRequest, errorBody("bad search"))
		return
	}

	var matched []*MockIssue
	for _, issue := range m.issues {
		if matches(issue, req.Filter) {
			matched = append(matched, issue)
		}
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	perPage, _ := strconv.Atoi(r.URL.Query().Get("perPage"))
	if perPage < 1 {
		perPage = 50
	}
	totalPages := (len(matched) + perPage - 1) / perPage

	result := []interface{}{}
	start := (page - 1) * perPage
	for i := start; i < len(matched) && i < start+perPage; i++ {
		result = append(result, issueJSON(matched[i]))
	}

	w.Header().Set("X-Total-Pages", strconv.Itoa(totalPages))
	w.Header().Set("X-Total-Count", strconv.Itoa(len(matched)))
	WriteJSON(w, http.StatusOK, result)
}

func matches(issue *MockIssue, filter map[string]string) bool {
	for field, want := range filter {
		switch field {
		case "assignee":
			if issue.Assignee != want {
				return false
			}
		case "createdBy":
			if issue.Author != want {
				return false
			}
		case "followers":
			if !contains(issue.Followers, want) {
				return false
			}
		case "queue":
			if issue.Queue != want {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func issueJSON(issue *MockIssue) map[string]interface{} {
	out := map[string]interface{}{
		"id":      "id-" + issue.Key,
		"key":     issue.Key,
		"summary": issue.Summary,
	}
	if issue.Assignee != "" {
		out["assignee"] = map[string]string{"id": issue.Assignee}
	}
	if issue.Author != "" {
		out["createdBy"] = map[string]string{"id": issue.Author}
	}
	followers := make([]map[string]string, 0, len(issue.Followers))
	for _, f := range issue.Followers {
		followers = append(followers, map[string]string{"id": f})
	}
	out["followers"] = followers
	return out
}

func userJSON(u mockUser) map[string]interface{} {
	out := map[string]interface{}{"uid": u.UID, "login": u.Login, "email": u.Email, "display": u.Display}
	// The API returns numeric uids as JSON numbers
	if n, err := strconv.ParseInt(u.UID, 10, 64); err == nil {
		out["uid"] = n
	}
	return out
}

func errorBody(msg string) map[string]interface{} {
	return map[string]interface{}{"errorMessages": []string{msg}}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
