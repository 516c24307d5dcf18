// Package reconcile rewrites user references on issues that already live in
// the destination tracker: for each old/new UID pair it moves assignee,
// author and follower references from the old user to the new one.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/steveyegge/trackmigrate/internal/types"
	"github.com/steveyegge/trackmigrate/internal/ytracker"
)

// Filter keys of the three update passes, in run order.
const (
	PassAssignee  = "assignee"
	PassCreatedBy = "createdBy"
	PassFollowers = "followers"
)

// Passes lists the filter keys in the order they run for every record.
var Passes = []string{PassAssignee, PassCreatedBy, PassFollowers}

// DefaultPerPage is the search page size.
const DefaultPerPage = 1000

// Direction selects which organization issues are searched in and which
// one receives the updates.
type Direction string

const (
	OrgToCloud Direction = "org-to-cloud"
	CloudToOrg Direction = "cloud-to-org"
)

// Directions lists the accepted directions.
var Directions = []Direction{OrgToCloud, CloudToOrg}

// ParseDirection validates a direction name.
func ParseDirection(s string) (Direction, error) {
	d := Direction(strings.ToLower(strings.TrimSpace(s)))
	switch d {
	case OrgToCloud, CloudToOrg:
		return d, nil
	}
	return "", fmt.Errorf("invalid direction %q (want %s or %s)", s, OrgToCloud, CloudToOrg)
}

// Describe returns a human readable label.
func (d Direction) Describe() string {
	switch d {
	case OrgToCloud:
		return "Yandex 360 organization -> Cloud organization"
	case CloudToOrg:
		return "Cloud organization -> Yandex 360 organization"
	}
	return string(d)
}

// Configs splits base into the source and target client configs. Both
// organization ids must be set; each side keeps exactly one of them.
func (d Direction) Configs(base ytracker.Config) (from, to ytracker.Config, err error) {
	if base.OrgID == "" || base.CloudOrgID == "" {
		return from, to, fmt.Errorf("reconciliation needs both org_id and cloud_org_id")
	}
	org, cloud := base, base
	org.CloudOrgID = ""
	cloud.OrgID = ""
	switch d {
	case OrgToCloud:
		return org, cloud, nil
	case CloudToOrg:
		return cloud, org, nil
	}
	return from, to, fmt.Errorf("invalid direction %q", d)
}

// Finder searches the issues that reference a user.
type Finder interface {
	FindIssues(ctx context.Context, filter map[string]string, page, perPage int) (*types.IssuePage, error)
}

// Updater applies user reference changes to issues.
type Updater interface {
	UpdateIssue(ctx context.Context, key string, update types.IssueUpdate) error
	UpdateFollowers(ctx context.Context, key string, add, remove []string) error
}

// Reconciler searches Source and updates Target. Source and Target may be
// the same client.
type Reconciler struct {
	Source  Finder
	Target  Updater
	PerPage int
	Logger  *slog.Logger
}

// Result holds per filter key totals across all records.
type Result struct {
	Records int            `json:"records" yaml:"records"`
	Updated map[string]int `json:"updated" yaml:"updated"`
	Failed  map[string]int `json:"failed" yaml:"failed"`

	// Aborted counts passes whose search stopped on a page error.
	Aborted int `json:"aborted" yaml:"aborted"`
}

// Run processes every record through the three passes. Update and search
// failures are logged and counted; only a cancelled context stops the run.
func (r *Reconciler) Run(ctx context.Context, records []types.ReconcileRecord) (*Result, error) {
	if r.Logger == nil {
		r.Logger = slog.Default()
	}
	if r.PerPage <= 0 {
		r.PerPage = DefaultPerPage
	}
	res := &Result{Updated: make(map[string]int), Failed: make(map[string]int)}

	for _, rec := range records {
		r.Logger.Info("reconciling user", "old", rec.OldUID, "new", rec.NewUID)
		for _, pass := range Passes {
			updated, failed, err := r.pass(ctx, pass, rec, res)
			res.Updated[pass] += updated
			res.Failed[pass] += failed
			if err != nil {
				return res, err
			}
			r.Logger.Info("pass finished", "filter", pass, "old", rec.OldUID, "updated", updated, "failed", failed)
		}
		res.Records++
	}
	return res, nil
}

// pass collects every issue matching filter {key: old} and then updates
// each of them on the target.
func (r *Reconciler) pass(ctx context.Context, key string, rec types.ReconcileRecord, res *Result) (updated, failed int, err error) {
	issues := r.collect(ctx, key, rec.OldUID, res)
	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}

	for _, issue := range issues {
		if err := r.update(ctx, key, issue.Key, rec); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return updated, failed, ctxErr
			}
			r.Logger.Error("issue update failed", "filter", key, "issue", issue.Key, "error", err)
			failed++
			continue
		}
		r.Logger.Debug("issue updated", "filter", key, "issue", issue.Key)
		updated++
	}
	return updated, failed, nil
}

// collect pages through the search until the reported page count is
// exhausted or a page comes back empty. A page error ends the search and
// keeps what was collected so far.
func (r *Reconciler) collect(ctx context.Context, key, uid string, res *Result) []types.Issue {
	var issues []types.Issue
	filter := map[string]string{key: uid}
	for page := 1; ; page++ {
		result, err := r.Source.FindIssues(ctx, filter, page, r.PerPage)
		if err != nil {
			r.Logger.Error("issue search failed, pass abandoned", "filter", key, "user", uid, "page", page, "error", err)
			res.Aborted++
			return issues
		}
		if len(result.Issues) == 0 || page > result.TotalPages {
			return issues
		}
		r.Logger.Info("issues found", "filter", key, "user", uid,
			"page", page, "pages", result.TotalPages, "total", result.TotalCount)
		issues = append(issues, result.Issues...)
		if page >= result.TotalPages {
			return issues
		}
	}
}

func (r *Reconciler) update(ctx context.Context, key, issueKey string, rec types.ReconcileRecord) error {
	newUID := rec.NewUID
	switch key {
	case PassAssignee:
		return r.Target.UpdateIssue(ctx, issueKey, types.IssueUpdate{Assignee: &newUID})
	case PassCreatedBy:
		return r.Target.UpdateIssue(ctx, issueKey, types.IssueUpdate{Author: &newUID})
	case PassFollowers:
		return r.Target.UpdateFollowers(ctx, issueKey, []string{rec.NewUID}, []string{rec.OldUID})
	}
	return fmt.Errorf("unknown filter %q", key)
}
