package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/WebFirstLanguage/snapvault/pkg/chunkindex"
	"github.com/WebFirstLanguage/snapvault/pkg/chunkstore"
	"github.com/WebFirstLanguage/snapvault/pkg/repository"
)

// formatSize renders a byte count in human-friendly units, matching the
// supplemented StorageStats display from SPEC_FULL.md's "Supplemented
// features".
func formatSize(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := uint64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	units := "KMGTPE"
	return fmt.Sprintf("%.1f %ciB", float64(bytes)/float64(div), units[exp])
}

func newStatsCmd(logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show repository storage statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			repoPath, err := repoFlag(cmd)
			if err != nil {
				return err
			}

			repo, err := repository.Open(repoPath)
			if err != nil {
				return err
			}

			store := chunkstore.New(repo.ChunksDir(), logger)
			storeStats, err := store.Stats()
			if err != nil {
				return err
			}

			idx, err := chunkindex.Load(repo.IndexPath())
			if err != nil {
				return err
			}
			idxStats := idx.Stats()

			fmt.Printf("chunks on disk:       %d (%s)\n", storeStats.Count, formatSize(storeStats.Bytes))
			fmt.Printf("chunks referenced:    %d\n", idxStats.TotalChunks)
			fmt.Printf("total references:     %d\n", idxStats.TotalReferences)
			fmt.Printf("avg refs/chunk:       %.2f\n", idxStats.AvgRefsPerChunk)
			return nil
		},
	}
}
