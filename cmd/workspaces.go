package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"mcphub/internal/lockfile"
	"mcphub/internal/workspace"
	"mcphub/pkg/logging"
)

func newWorkspacesCmd() *cobra.Command {
	var stateDir string

	cmd := &cobra.Command{
		Use:     "workspaces",
		Aliases: []string{"ws"},
		Short:   "Inspect the hubs running on this machine",
		Long: `Inspect the workspace registry shared by every hub on this machine.

Each running hub records its workspace directory, process id, control port and
start time. Entries of hubs that exited without deregistering are reported as
stale and removed by 'workspaces cleanup' or by the next hub to start.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.InitForCLI(logging.LevelWarn, cmd.ErrOrStderr())
		},
	}
	cmd.PersistentFlags().StringVar(&stateDir, "state-dir", "", "Directory holding the workspace registry")

	newRegistry := func() (*workspace.Registry, error) {
		return workspace.New(workspace.Options{StateDir: stateDir})
	}

	cmd.AddCommand(newWorkspacesListCmd(newRegistry))
	cmd.AddCommand(newWorkspacesCleanupCmd(newRegistry))
	return cmd
}

func newWorkspacesListCmd(newRegistry func() (*workspace.Registry, error)) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List running hubs by workspace",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ValidateOutputFormat(output); err != nil {
				return err
			}
			registry, err := newRegistry()
			if err != nil {
				return err
			}

			table := registry.GetActiveWorkspaces()
			rows := make([]workspaceRow, 0, len(table))
			for _, id := range table.Identities() {
				entry := table[id]
				rows = append(rows, workspaceRow{
					Workspace: id,
					PID:       entry.PID,
					Port:      entry.Port,
					StartTime: entry.StartTime,
					Running:   lockfile.ProcessAlive(entry.PID),
				})
			}
			return writeWorkspaces(cmd.OutOrStdout(), rows, OutputFormat(output))
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", string(OutputFormatTable), "Output format: table, json or yaml")
	return cmd
}

func newWorkspacesCleanupCmd(newRegistry func() (*workspace.Registry, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Remove registry entries of hubs that are no longer running",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := newRegistry()
			if err != nil {
				return err
			}
			if err := registry.Initialize(cmd.Context()); err != nil {
				return err
			}
			removed := registry.CleanupStaleEntries(cmd.Context())
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d stale workspace entries\n", removed)
			return nil
		},
	}
}
