package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir switches into dir for the rest of the test.
func chdir(t *testing.T, dir string) {
	t.Helper()
	cwd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(cwd) })
}

func TestInitialize(t *testing.T) {
	err := Initialize()
	if err != nil {
		t.Fatalf("Initialize() returned error: %v", err)
	}
	if v == nil {
		t.Fatal("viper instance is nil after Initialize()")
	}
}

func TestDefaults(t *testing.T) {
	require.NoError(t, Initialize())

	tests := []struct {
		key      string
		expected interface{}
		getter   func(string) interface{}
	}{
		{"source", SourceJira, func(k string) interface{} { return GetString(k) }},
		{"user_mapping", "user_mapping.csv", func(k string) interface{} { return GetString(k) }},
		{"dry_run", false, func(k string) interface{} { return GetBool(k) }},
		{"extract.concurrency", 1, func(k string) interface{} { return GetInt(k) }},
		{"http.retry_max_elapsed", 2 * time.Minute, func(k string) interface{} { return GetDuration(k) }},
		{"tracker.queue.default_type", "task", func(k string) interface{} { return GetString(k) }},
		{"reconcile.export_file", "from.txt", func(k string) interface{} { return GetString(k) }},
		{"reconcile.input_file", "to.txt", func(k string) interface{} { return GetString(k) }},
		{"reconcile.per_page", 1000, func(k string) interface{} { return GetInt(k) }},
		{"log.format", "text", func(k string) interface{} { return GetString(k) }},
		{"telemetry.enabled", false, func(k string) interface{} { return GetBool(k) }},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got := tt.getter(tt.key)
			if got != tt.expected {
				t.Errorf("GetXXX(%q) = %v, want %v", tt.key, got, tt.expected)
			}
		})
	}
}

func TestEnvironmentBinding(t *testing.T) {
	tests := []struct {
		envVar string
		key    string
		value  string
	}{
		{"TM_SOURCE", "source", "asana"},
		{"TM_TRACKER_ORG_ID", "tracker.org_id", "123"},
		{"ORG_ID", "tracker.org_id", "456"},
		{"CLOUD_ORG_ID", "tracker.cloud_org_id", "bpf-1"},
		{"TOKEN", "tracker.token", "y0_token"},
		{"JIRA_URL", "jira.url", "https://jira.example.com"},
		{"ASANA_ACCESS_TOKEN", "asana.access_token", "pat"},
	}

	for _, tt := range tests {
		t.Run(tt.envVar, func(t *testing.T) {
			t.Setenv(tt.envVar, tt.value)
			require.NoError(t, Initialize())
			assert.Equal(t, tt.value, GetString(tt.key))
			assert.Equal(t, SourceEnvVar, GetValueSource(tt.key))
		})
	}
}

func TestPrefixedEnvBeatsLegacy(t *testing.T) {
	t.Setenv("ORG_ID", "legacy")
	t.Setenv("TM_TRACKER_ORG_ID", "prefixed")
	require.NoError(t, Initialize())
	assert.Equal(t, "prefixed", GetString("tracker.org_id"))
}

func TestConfigFile(t *testing.T) {
	dir := t.TempDir()
	content := `
source: asana
tracker:
  org_id: "777"
  queue:
    lead: admin
mapping:
  status:
    Done: closed
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0o600))
	chdir(t, dir)

	require.NoError(t, Initialize())
	assert.Equal(t, FileName, filepath.Base(ConfigFileUsed()))
	assert.Equal(t, "asana", GetString("source"))
	assert.Equal(t, "777", GetString("tracker.org_id"))
	assert.Equal(t, "admin", GetString("tracker.queue.lead"))
	assert.Equal(t, map[string]string{"done": "closed"}, Store().GetStringMapString("mapping.status"))
	assert.Equal(t, SourceConfigFile, GetValueSource("tracker.org_id"))
	assert.Equal(t, SourceDefault, GetValueSource("reconcile.per_page"))
}

func TestDotEnvFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("CLOUD_ORG_ID=from-dotenv\n"), 0o600))
	chdir(t, dir)
	t.Cleanup(func() { _ = os.Unsetenv("CLOUD_ORG_ID") })

	require.NoError(t, Initialize())
	assert.Equal(t, "from-dotenv", GetString("tracker.cloud_org_id"))
}

func TestSetOverrides(t *testing.T) {
	require.NoError(t, Initialize())
	Set("dry_run", true)
	assert.True(t, GetBool("dry_run"))
}

func TestSettingsMasksSecrets(t *testing.T) {
	t.Setenv("TOKEN", "y0_secret_token")
	require.NoError(t, Initialize())

	var token *Setting
	settings := Settings()
	for i := range settings {
		if settings[i].Key == "tracker.token" {
			token = &settings[i]
		}
	}
	require.NotNil(t, token)
	assert.Equal(t, "y0***********en", token.Value)
	assert.Equal(t, SourceEnvVar, token.Source)

	for i := 1; i < len(settings); i++ {
		assert.Less(t, settings[i-1].Key, settings[i].Key)
	}
}

func TestGettersWithoutInitialize(t *testing.T) {
	ResetForTesting()
	defer ResetForTesting()
	assert.Empty(t, GetString("source"))
	assert.False(t, GetBool("dry_run"))
	assert.Zero(t, GetInt("reconcile.per_page"))
	assert.Empty(t, ConfigFileUsed())
}

func TestTelemetryEndpointFallsBackToOTelVariable(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4318")
	ResetForTesting()
	t.Cleanup(ResetForTesting)
	require.NoError(t, Initialize())
	assert.Equal(t, "collector:4318", GetString("telemetry.endpoint"))

	t.Setenv("TM_TELEMETRY_ENDPOINT", "tempo:4318")
	ResetForTesting()
	require.NoError(t, Initialize())
	assert.Equal(t, "tempo:4318", GetString("telemetry.endpoint"))
}
