// Package config loads trackmigrate settings from trackmigrate.yaml, a .env
// file and the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// FileName is the configuration file looked up at startup.
const FileName = "trackmigrate.yaml"

// Migration sources.
const (
	SourceJira  = "jira"
	SourceAsana = "asana"
)

var v *viper.Viper

// legacyEnv maps config keys to the unprefixed environment variables the
// migration scripts were historically driven by.
var legacyEnv = map[string]string{
	"jira.url":             "JIRA_URL",
	"jira.user":            "JIRA_USER",
	"jira.api_token":       "JIRA_API_TOKEN",
	"asana.access_token":   "ASANA_ACCESS_TOKEN",
	"tracker.token":        "TOKEN",
	"tracker.org_id":       "ORG_ID",
	"tracker.cloud_org_id": "CLOUD_ORG_ID",
}

// Initialize sets up the viper configuration singleton.
// Should be called once at application startup.
//
// Precedence: flags (applied by the caller through Set) > TM_* environment >
// legacy environment > trackmigrate.yaml > defaults. A .env file in the working
// directory is loaded into the environment first; existing variables win.
func Initialize() error {
	v = viper.New()
	v.SetConfigType("yaml")

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("error loading .env: %w", err)
	}

	configFileSet := false
	for _, path := range searchPaths() {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			configFileSet = true
			break
		}
	}

	// TM_TRACKER_ORG_ID maps to "tracker.org_id"
	v.SetEnvPrefix("TM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	for key, env := range legacyEnv {
		_ = v.BindEnv(key, "TM_"+envKey(key), env)
	}
	_ = v.BindEnv("telemetry.endpoint", "TM_TELEMETRY_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")

	setDefaults(v)

	if configFileSet {
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("error reading config file: %w", err)
		}
		slog.Debug("loaded config", "file", v.ConfigFileUsed())
	} else {
		slog.Debug("no trackmigrate.yaml found; using defaults and environment variables")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("source", SourceJira)
	v.SetDefault("user_mapping", "user_mapping.csv")
	v.SetDefault("dry_run", false)
	v.SetDefault("extract.concurrency", 1)
	v.SetDefault("http.retry_max_elapsed", "2m")
	v.SetDefault("log.format", "text")
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.stdout", false)

	v.SetDefault("tracker.url", "")
	v.SetDefault("tracker.queue.default_type", "task")
	v.SetDefault("tracker.queue.default_priority", "normal")

	v.SetDefault("reconcile.export_file", "from.txt")
	v.SetDefault("reconcile.input_file", "to.txt")
	v.SetDefault("reconcile.per_page", 1000)
}

func searchPaths() []string {
	paths := []string{FileName}
	if configDir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(configDir, "trackmigrate", FileName))
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(homeDir, ".trackmigrate", FileName))
	}
	return paths
}

func envKey(key string) string {
	return strings.ToUpper(strings.NewReplacer(".", "_", "-", "_").Replace(key))
}

// ResetForTesting clears the config state, allowing Initialize() to be called again.
// Not thread-safe.
func ResetForTesting() {
	v = nil
}

// Store returns the underlying viper instance, for tracker.Config.
// Initializes an empty store when Initialize has not run.
func Store() *viper.Viper {
	if v == nil {
		v = viper.New()
		setDefaults(v)
	}
	return v
}

// ConfigFileUsed returns the path of the loaded config file, or "".
func ConfigFileUsed() string {
	if v == nil {
		return ""
	}
	return v.ConfigFileUsed()
}

func GetString(key string) string {
	if v == nil {
		return ""
	}
	return v.GetString(key)
}

func GetBool(key string) bool {
	if v == nil {
		return false
	}
	return v.GetBool(key)
}

func GetInt(key string) int {
	if v == nil {
		return 0
	}
	return v.GetInt(key)
}

func GetDuration(key string) time.Duration {
	if v == nil {
		return 0
	}
	return v.GetDuration(key)
}

func GetStringSlice(key string) []string {
	if v == nil {
		return nil
	}
	return v.GetStringSlice(key)
}

// Set overrides a value, used for command-line flags.
func Set(key string, value interface{}) {
	Store().Set(key, value)
}

// Setting is one resolved configuration value.
type Setting struct {
	Key    string `yaml:"key" json:"key"`
	Value  string `yaml:"value" json:"value"`
	Source Source `yaml:"source" json:"source"`
}

// Source represents where a configuration value came from.
type Source string

const (
	SourceDefault    Source = "default"
	SourceConfigFile Source = "config_file"
	SourceEnvVar     Source = "env_var"
)

// GetValueSource returns the source of a configuration value.
// Priority (highest to lowest): env var > config file > default.
func GetValueSource(key string) Source {
	if v == nil {
		return SourceDefault
	}
	if os.Getenv("TM_"+envKey(key)) != "" {
		return SourceEnvVar
	}
	if env, ok := legacyEnv[key]; ok && os.Getenv(env) != "" {
		return SourceEnvVar
	}
	if v.InConfig(key) {
		return SourceConfigFile
	}
	return SourceDefault
}

// secretKeys are masked by Settings.
var secretKeys = map[string]bool{
	"jira.api_token":     true,
	"asana.access_token": true,
	"tracker.token":      true,
	"tracker.iam_token":  true,
}

// Settings lists every known key with its effective value, sorted by key.
// Secrets are masked.
func Settings() []Setting {
	s := Store()
	keys := s.AllKeys()
	for key := range legacyEnv {
		keys = appendMissing(keys, key)
	}
	sort.Strings(keys)

	settings := make([]Setting, 0, len(keys))
	for _, key := range keys {
		value := s.GetString(key)
		if value == "" {
			if slice := s.GetStringSlice(key); len(slice) > 0 {
				value = strings.Join(slice, ",")
			}
		}
		if secretKeys[key] && value != "" {
			value = mask(value)
		}
		settings = append(settings, Setting{Key: key, Value: value, Source: GetValueSource(key)})
	}
	return settings
}

func appendMissing(keys []string, key string) []string {
	for _, k := range keys {
		if k == key {
			return keys
		}
	}
	return append(keys, key)
}

func mask(secret string) string {
	if len(secret) <= 4 {
		return "****"
	}
	return secret[:2] + strings.Repeat("*", len(secret)-4) + secret[len(secret)-2:]
}
