package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/WebFirstLanguage/snapvault/pkg/prune"
	"github.com/WebFirstLanguage/snapvault/pkg/repository"
	"github.com/WebFirstLanguage/snapvault/pkg/snapvaulterr"
)

func newDeleteCmd(logger *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete one snapshot or every snapshot in a repository",
		RunE: func(cmd *cobra.Command, args []string) error {
			repoPath, err := repoFlag(cmd)
			if err != nil {
				return err
			}
			snapshotID, _ := cmd.Flags().GetString("snapshot")
			all, _ := cmd.Flags().GetBool("all")

			if snapshotID == "" && !all {
				return snapvaulterr.New(snapvaulterr.KindDeleteArgsRequired, "one of --snapshot or --all is required")
			}
			if snapshotID != "" && all {
				return snapvaulterr.New(snapvaulterr.KindDeleteArgsConflict, "--snapshot and --all are mutually exclusive")
			}

			repo, err := repository.Open(repoPath)
			if err != nil {
				return err
			}

			lock, err := repo.Lock()
			if err != nil {
				return err
			}
			defer lock.Unlock()

			var result prune.Result
			if all {
				result, err = prune.DeleteAll(repo, logger)
			} else {
				result, err = prune.DeleteOne(repo, snapshotID, logger)
			}
			if err != nil {
				return err
			}

			fmt.Printf("Deleted %d snapshot(s), reclaimed %d bytes across %d orphaned chunks\n",
				len(result.DeletedSnapshots), result.ReclaimedBytes, result.OrphanChunks)
			return nil
		},
	}
	cmd.Flags().String("snapshot", "", "snapshot id to delete")
	cmd.Flags().Bool("all", false, "delete every snapshot in the repository")
	return cmd
}
