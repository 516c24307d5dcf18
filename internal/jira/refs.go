package jira

import (
	"fmt"
	"strings"
	"time"
)

// UserRef returns the identifier used for u in user mapping tables:
// the user key on Jira Server/Data Center, else the username, else the
// Cloud account id. Returns "" for a nil user.
func UserRef(u *User) string {
	if u == nil {
		return ""
	}
	switch {
	case u.Key != "":
		return u.Key
	case u.Name != "":
		return u.Name
	default:
		return u.AccountID
	}
}

// ProjectKeyFromIssueKey extracts the project key from an issue key
// (e.g., "PROJ-123" returns "PROJ").
func ProjectKeyFromIssueKey(key string) string {
	if idx := strings.LastIndex(key, "-"); idx > 0 {
		return key[:idx]
	}
	return ""
}

// timestampLayouts covers Server (+0000 offsets, millis) and Cloud (Z) forms.
var timestampLayouts = []string{
	"2006-01-02T15:04:05.000-0700",
	"2006-01-02T15:04:05-0700",
	time.RFC3339Nano,
}

// ParseTimestamp parses a created/updated value from the REST API,
// e.g. 2024-01-15T10:30:00.000+0000.
func ParseTimestamp(ts string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, ts); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized jira timestamp %q", ts)
}

// jqlTime formats t for a JQL date comparison.
func jqlTime(t time.Time) string {
	return t.Format("2006-01-02 15:04")
}
