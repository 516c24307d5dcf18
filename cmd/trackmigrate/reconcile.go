package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/steveyegge/trackmigrate/internal/config"
	"github.com/steveyegge/trackmigrate/internal/debug"
	"github.com/steveyegge/trackmigrate/internal/reconcile"
	"github.com/steveyegge/trackmigrate/internal/telemetry"
	"github.com/steveyegge/trackmigrate/internal/ui"
	"github.com/steveyegge/trackmigrate/internal/ytracker"
)

var reconcileCmd = &cobra.Command{
	Use:     "reconcile",
	GroupID: "migrate",
	Short:   "Rewrite user UIDs between a Yandex 360 and a Cloud organization",
	Long: `Move assignee, author and follower references from old user UIDs to new
ones.

Issues are searched in the source organization and updated in the target
organization:
  org-to-cloud   search with tracker.org_id, update with tracker.cloud_org_id
  cloud-to-org   search with tracker.cloud_org_id, update with tracker.org_id

The first run exports the source users to from.txt ("uid # email name").
Copy it to to.txt, put the new UID after each old one and run again:
  1130000012345678 1130000087654321 # alice@example.com Alice

Lines without a new UID are skipped; repeated lines are processed once.
Running the same file twice is safe.

Examples:
  trackmigrate reconcile --direction org-to-cloud
  trackmigrate reconcile                       # prompts for the direction`,
	Run: runReconcile,
}

func init() {
	reconcileCmd.Flags().String("direction", "", "org-to-cloud or cloud-to-org (prompted when omitted on a terminal)")
	reconcileCmd.Flags().String("input", "", "UID pairs file (default: config reconcile.input_file)")
	reconcileCmd.Flags().String("export", "", "User export file (default: config reconcile.export_file)")
	reconcileCmd.Flags().Int("per-page", 0, "Search page size (default: config reconcile.per_page)")

	rootCmd.AddCommand(reconcileCmd)
}

func runReconcile(cmd *cobra.Command, args []string) {
	ctx := rootCtx

	applyFlagOverrides(cmd, map[string]string{
		"direction": "reconcile.direction",
		"input":     "reconcile.input_file",
		"export":    "reconcile.export_file",
		"per-page":  "reconcile.per_page",
	})

	dir, err := resolveDirection(config.GetString("reconcile.direction"))
	if err != nil {
		FatalError("%v", err)
	}

	fromCfg, toCfg, err := dir.Configs(destinationConfig())
	if err != nil {
		FatalErrorWithHint(err.Error(), "Set both tracker.org_id (ORG_ID) and tracker.cloud_org_id (CLOUD_ORG_ID)")
	}
	from, err := ytracker.NewClient(fromCfg)
	if err != nil {
		FatalErrorWithHint(err.Error(), destinationHint)
	}
	to, err := ytracker.NewClient(toCfg)
	if err != nil {
		FatalErrorWithHint(err.Error(), destinationHint)
	}
	logger.Info("reconciliation direction", "direction", string(dir), "from", from.Organization(), "to", to.Organization())

	exportPath := config.GetString("reconcile.export_file")
	if _, err := reconcile.ExportUsers(ctx, from, exportPath, logger); err != nil {
		WarnError("user export failed: %v", err)
	}

	inputPath := config.GetString("reconcile.input_file")
	records, err := reconcile.LoadRecords(inputPath, logger)
	if errors.Is(err, fs.ErrNotExist) {
		FatalErrorWithHint(fmt.Sprintf("%s not found", inputPath),
			fmt.Sprintf("Copy %s to %s and add the new UID after each old one", exportPath, inputPath))
	}
	if err != nil {
		FatalError("%v", err)
	}
	if len(records) == 0 {
		WarnError("%s has no UID pairs; nothing to do", inputPath)
		return
	}

	r := &reconcile.Reconciler{
		Source:  telemetry.WrapDestination(from),
		Target:  telemetry.WrapDestination(to),
		PerPage: config.GetInt("reconcile.per_page"),
		Logger:  logger,
	}
	res, err := r.Run(ctx, records)
	if err != nil {
		FatalError("reconciliation interrupted: %v", err)
	}

	if jsonOutput {
		outputJSON(res)
		return
	}
	printReconcileSummary(dir, res)
}

// resolveDirection parses value, or asks for a direction when value is
// empty and both stdin and stdout are terminals.
func resolveDirection(value string) (reconcile.Direction, error) {
	if value != "" {
		return reconcile.ParseDirection(value)
	}
	if !ui.IsInteractive() {
		return "", fmt.Errorf("--direction is required (%s or %s)", reconcile.OrgToCloud, reconcile.CloudToOrg)
	}
	return promptDirection()
}

func promptDirection() (reconcile.Direction, error) {
	options := make([]huh.Option[string], 0, len(reconcile.Directions))
	for _, d := range reconcile.Directions {
		options = append(options, huh.NewOption(d.Describe(), string(d)))
	}

	var choice string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Reconciliation direction").
				Description("Issues are searched in the first organization and updated in the second").
				Options(options...).
				Value(&choice),
		),
	).WithTheme(huh.ThemeDracula())

	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			fmt.Fprintln(os.Stderr, "Reconciliation cancelled.")
			os.Exit(0)
		}
		return "", fmt.Errorf("direction prompt: %w", err)
	}
	return reconcile.ParseDirection(choice)
}

func printReconcileSummary(dir reconcile.Direction, res *reconcile.Result) {
	debug.PrintlnNormal()
	debug.PrintlnNormal(ui.Header("Reconciliation summary"))
	debug.PrintlnNormal(ui.Row(ui.StatusInfo, "Direction", "%s", dir.Describe()))
	debug.PrintlnNormal(ui.Row(ui.StatusInfo, "UID pairs", "%d", res.Records))
	for _, pass := range reconcile.Passes {
		status, failed := ui.StatusOK, ""
		if n := res.Failed[pass]; n > 0 {
			status, failed = ui.StatusFail, ui.Fail(fmt.Sprintf(", %d failed", n))
		}
		debug.PrintlnNormal(ui.Row(status, pass, "%d updated%s", res.Updated[pass], failed))
	}
	if res.Aborted > 0 {
		debug.PrintlnNormal(ui.Row(ui.StatusWarn, "Aborted", "%d searches stopped early on a page error (see log)", res.Aborted))
	}
	debug.PrintlnNormal()
}
