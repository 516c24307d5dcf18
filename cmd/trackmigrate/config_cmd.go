package main

import (
	"github.com/spf13/cobra"

	"github.com/steveyegge/trackmigrate/internal/config"
	"github.com/steveyegge/trackmigrate/internal/debug"
	"github.com/steveyegge/trackmigrate/internal/ui"
)

var configCmd = &cobra.Command{
	Use:     "config",
	GroupID: "setup",
	Short:   "Inspect configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration and where each value comes from",
	Long: `Show every known setting with its effective value and origin
(default, config_file, env_var). Tokens are masked.`,
	Run: func(cmd *cobra.Command, args []string) {
		settings := config.Settings()
		if jsonOutput {
			outputJSON(map[string]interface{}{
				"config_file": config.ConfigFileUsed(),
				"settings":    settings,
			})
			return
		}

		file := config.ConfigFileUsed()
		if file == "" {
			file = ui.Muted("(none)")
		}
		debug.PrintlnNormal(ui.Header("Configuration"))
		debug.PrintNormal("config file: %s\n\n", file)
		for _, s := range settings {
			value := s.Value
			if value == "" {
				value = ui.Muted("(unset)")
			}
			debug.PrintNormal("%-34s %s %s\n", s.Key, value, ui.Muted(string(s.Source)))
		}
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}
