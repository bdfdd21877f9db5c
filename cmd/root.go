package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mcphub/internal/config"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, invalid arguments).
	ExitCodeError = 1
	// ExitCodeConfigError indicates the hub configuration could not be loaded or is invalid.
	ExitCodeConfigError = 2
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "mcphub",
	Short: "Run and manage MCP servers for a workspace",
	Long: `mcphub starts the MCP servers listed in a configuration file, keeps them in
sync with that file and exposes them to MCP clients through a single control
endpoint. One hub runs per workspace; running hubs are listed in a registry
shared by every hub on the machine.`,
	// Errors are reported by Execute; usage is only shown for flag errors.
	SilenceUsage: true,
}

// SetVersion sets the version for the root command.
// This function is typically called from the main package to inject the application version at build time.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute runs the root command and exits with a code describing the failure.
// This function is called by main.main().
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "mcphub version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		if ce, ok := config.AsConfigurationError(err); ok {
			// cobra printed the one-line form; add file and suggestions.
			fmt.Fprintln(os.Stderr, ce.DetailedError())
		}
		os.Exit(getExitCode(err))
	}
}

// getExitCode determines the exit code for err.
func getExitCode(err error) int {
	switch {
	case err == nil:
		return ExitCodeSuccess
	case config.IsConfigurationError(err):
		return ExitCodeConfigError
	default:
		return ExitCodeError
	}
}

func init() {
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newWorkspacesCmd())
	rootCmd.AddCommand(newVersionCmd())
}
