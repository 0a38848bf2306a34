// Command delegator runs the delegation engine: an admin API server, catalog
// inspection and one-shot delegation from the shell.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("error: ")+err.Error())
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "delegator",
	Short: "Subagent registry and task delegation engine",
	Long: `Delegator keeps a registry of specialised workers, scores them against
incoming tasks and dispatches each task to the best available worker.

Workers are declared in catalog files (Markdown front matter, YAML or JSON).
Settings are read from ~/.delegator/config.yaml, then .delegator/config.yaml
and .delegator/config.local.yaml in the project directory, then DELEGATOR_*
environment variables.`,
	Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
	SilenceUsage:  true,
	SilenceErrors: true,
}

var (
	projectDir  string
	configFiles []string
	logLevel    string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&projectDir, "project", "", "project directory for settings lookup (default: working directory)")
	rootCmd.PersistentFlags().StringSliceVar(&configFiles, "config", nil, "additional settings files, applied last")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn or error")

	rootCmd.AddCommand(serveCmd, catalogCmd, delegateCmd, versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "delegator %s (commit: %s)\n", version, commit)
	},
}
