package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/WebFirstLanguage/snapvault/pkg/prune"
	"github.com/WebFirstLanguage/snapvault/pkg/repository"
)

// newPruneCmd implements the supplemented read-only orphan-chunk audit
// (SPEC_FULL.md "Supplemented features"): reports chunks present on disk but referenced by no
// snapshot, without deleting anything.
func newPruneCmd(logger *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Audit or report orphaned chunks",
		RunE: func(cmd *cobra.Command, args []string) error {
			repoPath, err := repoFlag(cmd)
			if err != nil {
				return err
			}

			repo, err := repository.Open(repoPath)
			if err != nil {
				return err
			}

			report, err := prune.Audit(repo, logger)
			if err != nil {
				return err
			}

			fmt.Printf("orphaned chunks: %d (%s)\n", len(report.OrphanChunks), formatSize(report.OrphanBytes))
			for _, id := range report.OrphanChunks {
				fmt.Println(" ", id.String())
			}
			return nil
		},
	}
	return cmd
}
