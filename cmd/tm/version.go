package main

import (
	"fmt"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// Version metadata. Version is fixed at release time; the rest is stamped
// through ldflags or recovered from the binary's build info.
var (
	Version   = "0.3.0"
	Build     = "dev"
	Commit    = ""
	BuildDate = ""
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version and build information",
	Run: func(cmd *cobra.Command, args []string) {
		if jsonOutput {
			outputJSON(versionInfo())
			return
		}
		fmt.Println(versionLine())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func versionInfo() map[string]string {
	info := map[string]string{
		"version": Version,
		"build":   Build,
	}
	if commit := resolveCommit(); commit != "" {
		info["commit"] = commit
	}
	if BuildDate != "" {
		info["build_date"] = BuildDate
	}
	return info
}

func versionLine() string {
	line := fmt.Sprintf("tm version %s (%s", Version, Build)
	if commit := resolveCommit(); commit != "" {
		line += ": " + shortCommit(commit)
	}
	line += ")"
	if BuildDate != "" {
		line += " built " + BuildDate
	}
	return line
}

// resolveCommit prefers the ldflags value and falls back to the VCS revision
// recorded by the Go toolchain.
func resolveCommit() string {
	if Commit != "" {
		return Commit
	}
	return buildSetting("vcs.revision")
}

func buildSetting(key string) string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, s := range info.Settings {
		if s.Key == key {
			return s.Value
		}
	}
	return ""
}

func shortCommit(hash string) string {
	return hash[:min(12, len(hash))]
}
