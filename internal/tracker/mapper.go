package tracker

import (
	"strings"

	"github.com/steveyegge/trackmigrate/internal/types"
)

// MappingConfig holds the optional value translation tables applied while
// transforming source issues. Keys are matched case-insensitively; a value
// with no entry passes through unchanged.
type MappingConfig struct {
	// StatusMap maps source status names to destination status keys.
	StatusMap map[string]string

	// PriorityMap maps source priority names to destination priority keys.
	PriorityMap map[string]string

	// QueueMap renames source project keys to destination queue keys.
	QueueMap map[string]string

	// LinkMap maps "<link type>:<inward|outward>" to a destination relationship.
	// Links without an entry collapse to types.LinkTypeRelates.
	LinkMap map[string]string
}

// Config keys holding the mapping tables.
const (
	MappingStatusKey   = "mapping.status"
	MappingPriorityKey = "mapping.priority"
	MappingQueuesKey   = "mapping.queues"
	MappingLinksKey    = "mapping.links"
)

// DefaultMappingConfig returns empty tables: every value passes through
// and every link becomes "relates".
func DefaultMappingConfig() *MappingConfig {
	return &MappingConfig{
		StatusMap:   map[string]string{},
		PriorityMap: map[string]string{},
		QueueMap:    map[string]string{},
		LinkMap:     map[string]string{},
	}
}

// LoadMappingConfig reads the mapping tables from store.
// A nil store yields the defaults.
func LoadMappingConfig(store ConfigStore) *MappingConfig {
	m := DefaultMappingConfig()
	if store == nil {
		return m
	}
	copyLower(m.StatusMap, store.GetStringMapString(MappingStatusKey))
	copyLower(m.PriorityMap, store.GetStringMapString(MappingPriorityKey))
	copyLower(m.QueueMap, store.GetStringMapString(MappingQueuesKey))
	copyLower(m.LinkMap, store.GetStringMapString(MappingLinksKey))
	return m
}

func copyLower(dst, src map[string]string) {
	for k, v := range src {
		dst[strings.ToLower(k)] = v
	}
}

func lookup(table map[string]string, key string) string {
	if v, ok := table[strings.ToLower(key)]; ok && v != "" {
		return v
	}
	return key
}

// Status translates a source status.
func (m *MappingConfig) Status(s string) string { return lookup(m.StatusMap, s) }

// Priority translates a source priority.
func (m *MappingConfig) Priority(p string) string { return lookup(m.PriorityMap, p) }

// QueueKey translates a source project key to a destination queue key.
func (m *MappingConfig) QueueKey(projectKey string) string { return lookup(m.QueueMap, projectKey) }

// LinkType returns the destination relationship for a source link.
func (m *MappingConfig) LinkType(typeName, direction string) string {
	if v, ok := m.LinkMap[strings.ToLower(typeName+":"+direction)]; ok && v != "" {
		return v
	}
	return types.LinkTypeRelates
}
