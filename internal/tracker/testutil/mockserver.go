// Package testutil holds in-memory stand-ins for the trackers a migration
// talks to: an httptest server that records requests, a Yandex Tracker API
// built on it, and a FakeDestination for pipeline tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
)

// RecordedRequest is one request seen by a MockServer.
type RecordedRequest struct {
	Method  string
	Path    string
	Query   string
	Headers http.Header
	Body    []byte
}

type cannedResponse struct {
	status int
	body   interface{}
}

// MockServer answers canned JSON per route and hands every other request
// to an optional default handler. All requests are recorded.
type MockServer struct {
	Server *httptest.Server

	mu       sync.Mutex
	requests []RecordedRequest
	routes   map[string]cannedResponse // "METHOD /path" or "/path"
	fallback http.HandlerFunc

	// The next throttled requests get 429 with Retry-After.
	throttled int
}

func NewMockServer() *MockServer {
	m := &MockServer{routes: make(map[string]cannedResponse)}
	m.Server = httptest.NewServer(http.HandlerFunc(m.serve))
	return m
}

func (m *MockServer) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	r.Body = io.NopCloser(bytes.NewReader(body))

	m.mu.Lock()
	m.requests = append(m.requests, RecordedRequest{
		Method:  r.Method,
		Path:    r.URL.Path,
		Query:   r.URL.RawQuery,
		Headers: r.Header.Clone(),
		Body:    body,
	})
	throttle := m.throttled > 0
	if throttle {
		m.throttled--
	}
	canned, ok := m.routes[r.Method+" "+r.URL.Path]
	if !ok {
		canned, ok = m.routes[r.URL.Path]
	}
	fallback := m.fallback
	m.mu.Unlock()

	switch {
	case throttle:
		w.Header().Set("Retry-After", "1")
		WriteJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate limited"})
	case ok:
		WriteJSON(w, canned.status, canned.body)
	case fallback != nil:
		fallback(w, r)
	default:
		WriteJSON(w, http.StatusNotFound, map[string]string{"error": "no route for " + r.Method + " " + r.URL.Path})
	}
}

func (m *MockServer) URL() string { return m.Server.URL }

func (m *MockServer) Close() { m.Server.Close() }

// SetResponse answers route ("GET /v2/myself" or "/v2/myself") with body.
// A zero status means 200.
func (m *MockServer) SetResponse(route string, status int, body interface{}) {
	if status == 0 {
		status = http.StatusOK
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.routes[route] = cannedResponse{status: status, body: body}
}

// SetDefaultHandler serves requests without a canned response. The request
// body can be read again.
func (m *MockServer) SetDefaultHandler(h func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = h
}

// SetRateLimit answers the next n requests with 429.
func (m *MockServer) SetRateLimit(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.throttled = n
}

// GetRequests returns a copy of the recorded requests.
func (m *MockServer) GetRequests() []RecordedRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]RecordedRequest(nil), m.requests...)
}

// RequestsTo filters the recorded requests by method and path.
func (m *MockServer) RequestsTo(method, path string) []RecordedRequest {
	var out []RecordedRequest
	for _, r := range m.GetRequests() {
		if r.Method == method && r.Path == path {
			out = append(out, r)
		}
	}
	return out
}

func (m *MockServer) GetRequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// WriteJSON writes v with status; a nil v writes no body.
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}
