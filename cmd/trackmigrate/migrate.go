package main

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/steveyegge/trackmigrate/internal/config"
	"github.com/steveyegge/trackmigrate/internal/debug"
	"github.com/steveyegge/trackmigrate/internal/migrate"
	"github.com/steveyegge/trackmigrate/internal/timeparsing"
	"github.com/steveyegge/trackmigrate/internal/tracker"
	"github.com/steveyegge/trackmigrate/internal/ui"
	"github.com/steveyegge/trackmigrate/internal/usermap"
	"github.com/steveyegge/trackmigrate/internal/ytracker"
)

var migrateCmd = &cobra.Command{
	Use:     "migrate",
	GroupID: "migrate",
	Short:   "Migrate a source tracker into Yandex Tracker",
	Long: `Extract every project of the source tracker, transform its issues and
import them into Yandex Tracker.

Queues are created when missing. Users are translated through the user
mapping CSV; users unknown to Tracker are cleared and reported as warnings.
Comments, attachments and followers are added right after each issue is
created; links are created once every issue exists.

Configuration:
  source: jira                      # or asana
  user_mapping: user_mapping.csv    # columns jira_user/asana_user,tracker_user
  jira.url, jira.user, jira.api_token
  asana.access_token, asana.workspace
  tracker.token, tracker.org_id or tracker.cloud_org_id
  tracker.queue.lead                # required by Tracker to create queues
  mapping.status, mapping.priority, mapping.queues, mapping.links

Examples:
  trackmigrate migrate --dry-run
  trackmigrate migrate --source asana --projects 1203,1207
  trackmigrate migrate --since "2 weeks ago" --report run.yaml`,
	Run: runMigrate,
}

func init() {
	migrateCmd.Flags().String("source", "", "Source tracker: jira or asana (default: config source)")
	migrateCmd.Flags().StringSlice("projects", nil, "Only migrate these project keys")
	migrateCmd.Flags().String("since", "", "Only migrate issues updated since (e.g. 7d, \"last monday\", 2024-05-01)")
	migrateCmd.Flags().Bool("dry-run", false, "Look up queues and users without creating anything")
	migrateCmd.Flags().String("mapping", "", "User mapping CSV (default: config user_mapping)")
	migrateCmd.Flags().Int("concurrency", 0, "Projects extracted in parallel (default: config extract.concurrency)")
	migrateCmd.Flags().Int("page-size", 0, "Source page size (default: per source)")
	migrateCmd.Flags().String("report", "", "Write the run summary as YAML to this file")

	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) {
	ctx := rootCtx

	applyFlagOverrides(cmd, map[string]string{
		"source":      "source",
		"dry-run":     "dry_run",
		"mapping":     "user_mapping",
		"concurrency": "extract.concurrency",
	})

	sourceName := strings.ToLower(config.GetString("source"))
	src, err := tracker.NewSource(sourceName)
	if err != nil {
		FatalError("%v", err)
	}
	if err := src.Init(ctx, tracker.NewConfig(src.ConfigPrefix(), config.Store())); err != nil {
		FatalError("%s: %v", src.DisplayName(), err)
	}
	defer func() { _ = src.Close() }()

	users, err := loadUserMapping(config.GetString("user_mapping"), src.UserColumn(), cmd.Flags().Changed("mapping"))
	if err != nil {
		FatalError("%v", err)
	}

	dest, err := ytracker.NewClient(destinationConfig())
	if err != nil {
		FatalErrorWithHint(err.Error(), destinationHint)
	}

	opts := migrate.ExtractOptions{Concurrency: config.GetInt("extract.concurrency")}
	opts.ProjectFilter, _ = cmd.Flags().GetStringSlice("projects")
	opts.PageSize, _ = cmd.Flags().GetInt("page-size")
	if since, _ := cmd.Flags().GetString("since"); since != "" {
		t, err := parseSince(since, time.Now())
		if err != nil {
			FatalError("%v", err)
		}
		opts.Since = &t
	}

	engine := &migrate.Engine{
		Source:  src,
		Dest:    dest,
		Users:   users,
		Mapping: tracker.LoadMappingConfig(config.Store()),
		Logger:  logger,
		Extract: opts,
		DryRun:  config.GetBool("dry_run"),
	}
	summary, runErr := engine.Run(ctx)

	if report, _ := cmd.Flags().GetString("report"); report != "" && summary != nil {
		if err := writeReportFile(report, summary); err != nil {
			WarnError("%v", err)
		}
	}
	if runErr != nil {
		if errors.Is(runErr, migrate.ErrNothingToMigrate) {
			FatalErrorWithHint(runErr.Error(), "Check the source credentials and the --projects filter")
		}
		FatalError("migration failed: %v", runErr)
	}

	if jsonOutput {
		outputJSON(summary)
		return
	}
	printMigrationSummary(summary)
}

// applyFlagOverrides copies explicitly set flags into the config, so flags
// win over trackmigrate.yaml and the environment.
func applyFlagOverrides(cmd *cobra.Command, keys map[string]string) {
	for flag, key := range keys {
		f := cmd.Flags().Lookup(flag)
		if f == nil || !f.Changed {
			continue
		}
		config.Set(key, f.Value.String())
	}
}

// loadUserMapping reads the mapping table. A missing default file means
// an empty mapping; a missing file the user asked for is an error.
func loadUserMapping(path, sourceColumn string, explicit bool) (usermap.Mapping, error) {
	m, err := usermap.Load(path, sourceColumn, usermap.ColumnTracker, logger)
	if err == nil {
		logger.Info("user mapping loaded", "file", path, "users", len(m))
		return m, nil
	}
	if errors.Is(err, fs.ErrNotExist) && !explicit {
		logger.Warn("user mapping not found, source user ids are used as-is", "file", path)
		return usermap.Mapping{}, nil
	}
	return nil, err
}

func parseSince(s string, now time.Time) (time.Time, error) {
	t, err := timeparsing.ParseSince(s, now)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --since %q: %w", s, err)
	}
	return t, nil
}

func printMigrationSummary(s *migrate.Summary) {
	title := "Migration summary"
	if s.DryRun {
		title += " (dry run)"
	}
	res := s.Import
	if res == nil {
		res = &migrate.ImportResult{}
	}

	debug.PrintlnNormal()
	debug.PrintlnNormal(ui.Header(title))
	debug.PrintlnNormal(ui.Row(ui.StatusInfo, "Source", "%s (%d projects, %d issues extracted)", s.Source, s.Projects, s.Extracted))
	debug.PrintlnNormal(ui.Row(ui.StatusOK, "Queues", "%d created, %d existing", res.QueuesCreated, res.QueuesExisting))
	debug.PrintlnNormal(ui.Row(ui.StatusOK, "Issues", "%d created of %d processed", res.Created, s.Processed))
	if res.Skipped > 0 {
		debug.PrintlnNormal(ui.Row(ui.StatusSkip, "Skipped", "%d", res.Skipped))
	}
	debug.PrintlnNormal(ui.Row(ui.StatusNone, "Comments", "%d", res.Comments))
	debug.PrintlnNormal(ui.Row(ui.StatusNone, "Attachments", "%d", res.Attachments))
	debug.PrintlnNormal(ui.Row(ui.StatusNone, "Followers", "%d", res.Followers))
	debug.PrintlnNormal(ui.Row(ui.StatusNone, "Links", "%d", res.Links))
	if n := len(res.Warnings); n > 0 {
		debug.PrintlnNormal(ui.Row(ui.StatusWarn, "Warnings", "%s", ui.Warn(fmt.Sprint(n))))
		if verboseFlag {
			for _, w := range res.Warnings {
				debug.PrintNormal("    %s\n", ui.Muted(w))
			}
		}
	}
	debug.PrintlnNormal(ui.Row(ui.StatusNone, "Elapsed", "%s", s.Elapsed.Round(time.Millisecond)))
	debug.PrintlnNormal()
}
