// chatvault archives conversation exports into PostgreSQL and serves them
// back as a static site and a read-only HTTP API.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/chatvault/chatvault/internal/config"
)

// Build-time variables set via ldflags.
var (
	commit    = ""
	buildDate = ""
)

func versionString() string {
	if commit != "" && buildDate != "" {
		return fmt.Sprintf("chatvault version %s (commit: %s, built: %s)", config.Version, commit, buildDate)
	}
	return fmt.Sprintf("chatvault version %s", config.Version)
}

func main() {
	rootCmd := &cobra.Command{
		Use:          "chatvault",
		Short:        "chatvault — archive conversation exports into PostgreSQL",
		Version:      versionString(),
		SilenceUsage: true,
	}
	rootCmd.SetVersionTemplate("{{.Version}}\n")

	rootCmd.AddCommand(newIngestCmd())
	rootCmd.AddCommand(newGenerateCmd())
	rootCmd.AddCommand(newBackupCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newDoctorCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
