package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewRootCommand builds the treewarden command tree
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "treewarden",
		Short: "Content-aware backup and integrity auditing",
		Long: `treewarden keeps directory trees in line with each other and with
themselves: "backup" mirrors a source tree into a destination, and "audit"
maintains a per-directory digest index and reports drift against it.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Add global flags
	AddGlobalFlags(rootCmd)

	// Add commands
	rootCmd.AddCommand(NewBackupCommand())
	rootCmd.AddCommand(NewAuditCommand())
	rootCmd.AddCommand(NewConfigCommand())
	rootCmd.AddCommand(NewHistoryCommand())
	rootCmd.AddCommand(NewVersionCommand())

	return rootCmd
}
