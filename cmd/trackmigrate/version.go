package main

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/spf13/cobra"

	"github.com/steveyegge/trackmigrate/internal/tracker"
)

// Set through -ldflags "-X main.Version=... -X main.Build=... -X main.Commit=...".
var (
	Version = "0.3.0"
	Build   = "dev"
	Commit  = ""
)

type versionInfo struct {
	Version string   `json:"version"`
	Build   string   `json:"build"`
	Commit  string   `json:"commit,omitempty"`
	Go      string   `json:"go"`
	Sources []string `json:"sources"`
}

var versionCmd = &cobra.Command{
	Use:     "version",
	GroupID: "setup",
	Short:   "Print version information and the available sources",
	Run: func(cmd *cobra.Command, args []string) {
		info := currentVersion()
		if jsonOutput {
			outputJSON(info)
			return
		}
		fmt.Println(info.String())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func currentVersion() versionInfo {
	return versionInfo{
		Version: Version,
		Build:   Build,
		Commit:  resolveCommitHash(),
		Go:      runtime.Version(),
		Sources: tracker.Names(),
	}
}

func (v versionInfo) String() string {
	build := v.Build
	if v.Commit != "" {
		build += ": " + shortCommit(v.Commit)
	}
	return fmt.Sprintf("trackmigrate version %s (%s)\nsources: %s", v.Version, build, strings.Join(v.Sources, ", "))
}

// resolveCommitHash prefers the ldflag and falls back to the VCS stamp the
// go tool embeds in module builds.
func resolveCommitHash() string {
	if Commit != "" {
		return Commit
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" {
			return s.Value
		}
	}
	return ""
}

func shortCommit(hash string) string {
	return hash[:min(len(hash), 12)]
}
