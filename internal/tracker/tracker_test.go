package tracker

import (
	"strings"
	"testing"

	"github.com/steveyegge/trackmigrate/internal/types"
)

type mapStore struct {
	values map[string]string
	maps   map[string]map[string]string
}

func (s *mapStore) GetString(key string) string { return s.values[key] }

func (s *mapStore) GetStringMapString(key string) map[string]string { return s.maps[key] }

func TestConfigGet(t *testing.T) {
	t.Setenv("JIRA_API_TOKEN", "from-env")
	t.Setenv("ASANA_ACCESS_TOKEN", "env-token")

	store := &mapStore{values: map[string]string{
		"jira.url":           "https://jira.example.com",
		"asana.access_token": "file-token",
	}}

	tests := []struct {
		prefix string
		key    string
		want   string
	}{
		{"jira", "url", "https://jira.example.com"},
		{"jira", "api_token", "from-env"},
		{"asana", "access_token", "file-token"}, // store wins over env
		{"jira", "missing", ""},
	}
	for _, tt := range tests {
		t.Run(tt.prefix+"."+tt.key, func(t *testing.T) {
			if got := NewConfig(tt.prefix, store).Get(tt.key); got != tt.want {
				t.Errorf("Get(%q) = %q, want %q", tt.key, got, tt.want)
			}
		})
	}
}

func TestConfigGetRequired(t *testing.T) {
	cfg := NewConfig("jira", nil)

	_, err := cfg.GetRequired("user")
	if err == nil {
		t.Fatal("expected error for missing jira.user")
	}
	for _, want := range []string{"jira.user not configured", "JIRA_USER"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %q", err, want)
		}
	}

	t.Setenv("JIRA_USER", "alice")
	got, err := cfg.GetRequired("user")
	if err != nil {
		t.Fatalf("GetRequired() error = %v", err)
	}
	if got != "alice" {
		t.Errorf("GetRequired() = %q, want alice", got)
	}
}

func TestConfigGetInt(t *testing.T) {
	cfg := NewConfig("jira", &mapStore{values: map[string]string{
		"jira.page_size": "250",
		"jira.bad":       "abc",
		"jira.negative":  "-3",
	}})

	tests := []struct {
		key  string
		def  int
		want int
	}{
		{"page_size", 1000, 250},
		{"bad", 1000, 1000},
		{"negative", 1000, 1000},
		{"missing", 7, 7},
	}
	for _, tt := range tests {
		if got := cfg.GetInt(tt.key, tt.def); got != tt.want {
			t.Errorf("GetInt(%q, %d) = %d, want %d", tt.key, tt.def, got, tt.want)
		}
	}
}

func TestMappingConfig(t *testing.T) {
	store := &mapStore{maps: map[string]map[string]string{
		MappingStatusKey:   {"In Progress": "inProgress"},
		MappingPriorityKey: {"highest": "critical"},
		MappingQueuesKey:   {"PROJ": "NEWQ"},
		MappingLinksKey:    {"blocks:outward": "depends"},
	}}
	m := LoadMappingConfig(store)

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"status case-insensitive", m.Status("in progress"), "inProgress"},
		{"status passthrough", m.Status("Done"), "Done"},
		{"priority", m.Priority("Highest"), "critical"},
		{"queue renamed", m.QueueKey("PROJ"), "NEWQ"},
		{"queue passthrough", m.QueueKey("OTHER"), "OTHER"},
		{"link outward", m.LinkType("Blocks", LinkOutward), "depends"},
		{"link inward default", m.LinkType("Blocks", LinkInward), types.LinkTypeRelates},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s: got %q, want %q", tt.name, tt.got, tt.want)
		}
	}
}

func TestDefaultMappingCollapsesLinks(t *testing.T) {
	m := LoadMappingConfig(nil)
	for _, name := range []string{"Blocks", "Cloners", "Duplicate", ""} {
		if got := m.LinkType(name, LinkOutward); got != types.LinkTypeRelates {
			t.Errorf("LinkType(%q) = %q, want %q", name, got, types.LinkTypeRelates)
		}
	}
}
