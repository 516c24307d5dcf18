package tracker

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// ConfigStore is the read side of the loaded configuration; *viper.Viper
// satisfies it.
type ConfigStore interface {
	GetString(key string) string
	GetStringMapString(key string) map[string]string
}

// Config scopes a ConfigStore to one adapter. Keys are looked up as
// "<prefix>.<key>" in the store, then as the PREFIX_KEY environment variable
// (jira.api_token, then JIRA_API_TOKEN).
type Config struct {
	Prefix string
	Store  ConfigStore // may be nil: environment only
}

func NewConfig(prefix string, store ConfigStore) *Config {
	return &Config{Prefix: prefix, Store: store}
}

// Common per-source keys.
var CommonConfig = struct {
	PageSize   string
	UserColumn string
}{
	PageSize:   "page_size",
	UserColumn: "user_column",
}

// Get returns the value of key, or "" when neither the store nor the
// environment has it.
func (c *Config) Get(key string) string {
	if c.Store != nil {
		if value := c.Store.GetString(c.fullKey(key)); value != "" {
			return value
		}
	}
	return os.Getenv(c.envName(key))
}

// GetRequired is Get that fails on an empty value, naming both places the
// value can be set.
func (c *Config) GetRequired(key string) (string, error) {
	if value := c.Get(key); value != "" {
		return value, nil
	}
	return "", fmt.Errorf("%s not configured (set it in trackmigrate.yaml or export %s)", c.fullKey(key), c.envName(key))
}

// GetInt returns a positive integer setting, or def.
func (c *Config) GetInt(key string, def int) int {
	n, err := strconv.Atoi(c.Get(key))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func (c *Config) fullKey(key string) string {
	return c.Prefix + "." + key
}

func (c *Config) envName(key string) string {
	return strings.ToUpper(strings.ReplaceAll(c.Prefix+"_"+key, ".", "_"))
}
