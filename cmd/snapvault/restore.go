package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/WebFirstLanguage/snapvault/pkg/repository"
	"github.com/WebFirstLanguage/snapvault/pkg/restore"
)

func newRestoreCmd(logger *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restore <destination-directory>",
		Short: "Restore a snapshot into a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repoPath, err := repoFlag(cmd)
			if err != nil {
				return err
			}
			snapshotID, _ := cmd.Flags().GetString("snapshot")

			repo, err := repository.Open(repoPath)
			if err != nil {
				return err
			}

			m, err := restore.Run(repo, restore.Options{
				SnapshotID:  snapshotID,
				Destination: args[0],
				Logger:      logger,
			})
			if err != nil {
				return err
			}

			fmt.Printf("Restored snapshot %s into %s (%d files)\n", m.SnapshotID, args[0], len(m.Files))
			return nil
		},
	}
	cmd.Flags().String("snapshot", "", "snapshot id to restore (default: latest)")
	return cmd
}
