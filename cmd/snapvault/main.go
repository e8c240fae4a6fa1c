// Command snapvault is a deduplicating, content-addressed snapshot backup
// engine. See the subcommands' help for usage.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	// levelVar lets --verbose raise the level of the already-constructed
	// logger the subcommand closures below captured, since PersistentPreRunE
	// only runs after AddCommand has handed each of them its own logger
	// reference.
	levelVar := new(slog.LevelVar)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: levelVar}))

	rootCmd := &cobra.Command{
		Use:   "snapvault",
		Short: "Deduplicating, content-addressed snapshot backup engine",
	}
	rootCmd.PersistentFlags().String("repo", "", "repository path (required)")
	rootCmd.PersistentFlags().Bool("verbose", false, "enable debug logging")
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		verbose, _ := cmd.Flags().GetBool("verbose")
		if verbose {
			levelVar.Set(slog.LevelDebug)
		}
		return nil
	}

	rootCmd.AddCommand(
		newInitCmd(logger),
		newBackupCmd(logger),
		newListCmd(logger),
		newRestoreCmd(logger),
		newDeleteCmd(logger),
		newStatsCmd(logger),
		newPruneCmd(logger),
		newVersionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	}
}

// repoFlag reads the required --repo persistent flag.
func repoFlag(cmd *cobra.Command) (string, error) {
	repo, _ := cmd.Flags().GetString("repo")
	if repo == "" {
		return "", fmt.Errorf("--repo is required")
	}
	return repo, nil
}
