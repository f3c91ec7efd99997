package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var versionInfo string

// SetVersion sets the version information from build-time ldflags
func SetVersion(version, commit, date string) {
	versionInfo = fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date)
	rootCmd.Version = versionInfo
}

// Execute runs the CLI
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "cophist",
	Short: "Copilot chat history catalog",
	Long: `cophist - ingest Copilot chat session archives into a workspace SQLite catalog

Finds session archives in the editor's storage (or a given path), redacts
secrets, and writes a queryable catalog plus its companion documentation
inside the workspace.`,
}
