package main

import (
	"github.com/steveyegge/trackmigrate/internal/config"
	"github.com/steveyegge/trackmigrate/internal/ytracker"
)

// destinationConfig builds the Yandex Tracker client settings from the
// tracker.* configuration keys.
func destinationConfig() ytracker.Config {
	return ytracker.Config{
		BaseURL:    config.GetString("tracker.url"),
		OAuthToken: config.GetString("tracker.token"),
		IAMToken:   config.GetString("tracker.iam_token"),
		OrgID:      config.GetString("tracker.org_id"),
		CloudOrgID: config.GetString("tracker.cloud_org_id"),
		Queue: ytracker.QueueDefaults{
			Lead:            config.GetString("tracker.queue.lead"),
			DefaultType:     config.GetString("tracker.queue.default_type"),
			DefaultPriority: config.GetString("tracker.queue.default_priority"),
			Workflow:        config.GetString("tracker.queue.workflow"),
			Resolutions:     config.GetStringSlice("tracker.queue.resolutions"),
		},
	}
}

const destinationHint = "Set tracker.token and tracker.org_id (or tracker.cloud_org_id) in trackmigrate.yaml, or export TOKEN and ORG_ID"
