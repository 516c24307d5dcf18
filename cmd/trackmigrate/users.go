package main

import (
	"github.com/spf13/cobra"

	"github.com/steveyegge/trackmigrate/internal/config"
	"github.com/steveyegge/trackmigrate/internal/debug"
	"github.com/steveyegge/trackmigrate/internal/reconcile"
	"github.com/steveyegge/trackmigrate/internal/ui"
	"github.com/steveyegge/trackmigrate/internal/ytracker"
)

var usersCmd = &cobra.Command{
	Use:     "users",
	GroupID: "migrate",
	Short:   "Yandex Tracker user commands",
}

var usersExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export organization users as reconciliation input",
	Long: `Write every user of the organization as "uid # email name", one per line.
An existing file is left untouched.

Examples:
  trackmigrate users export
  trackmigrate users export --cloud --file cloud_users.txt`,
	Run: runUsersExport,
}

func init() {
	usersExportCmd.Flags().String("file", "", "Output file (default: config reconcile.export_file)")
	usersExportCmd.Flags().Bool("cloud", false, "Export the Cloud organization (tracker.cloud_org_id)")

	usersCmd.AddCommand(usersExportCmd)
	rootCmd.AddCommand(usersCmd)
}

func runUsersExport(cmd *cobra.Command, args []string) {
	applyFlagOverrides(cmd, map[string]string{"file": "reconcile.export_file"})

	cfg := destinationConfig()
	if cloud, _ := cmd.Flags().GetBool("cloud"); cloud {
		cfg.OrgID = ""
	} else if cfg.OrgID != "" {
		cfg.CloudOrgID = ""
	}
	client, err := ytracker.NewClient(cfg)
	if err != nil {
		FatalErrorWithHint(err.Error(), destinationHint)
	}

	path := config.GetString("reconcile.export_file")
	written, err := reconcile.ExportUsers(rootCtx, client, path, logger)
	if err != nil {
		FatalError("%v", err)
	}
	if jsonOutput {
		outputJSON(map[string]interface{}{"file": path, "written": written})
		return
	}
	if written {
		debug.PrintlnNormal(ui.Row(ui.StatusOK, "Exported", "users of %s to %s", client.Organization(), path))
	} else {
		debug.PrintlnNormal(ui.Row(ui.StatusSkip, "Skipped", "%s not written", path))
	}
}
