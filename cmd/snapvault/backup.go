package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/WebFirstLanguage/snapvault/pkg/backup"
	"github.com/WebFirstLanguage/snapvault/pkg/repository"
)

func newBackupCmd(logger *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup <source-directory>",
		Short: "Create a new snapshot of a directory tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repoPath, err := repoFlag(cmd)
			if err != nil {
				return err
			}
			chunkSize, _ := cmd.Flags().GetInt("chunk-size")
			concurrency, _ := cmd.Flags().GetInt("concurrency")

			repo, err := repository.Open(repoPath)
			if err != nil {
				return err
			}

			lock, err := repo.Lock()
			if err != nil {
				return err
			}
			defer lock.Unlock()

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			m, err := backup.Run(ctx, repo, backup.Options{
				SourceRoot:  args[0],
				ChunkSize:   chunkSize,
				Concurrency: concurrency,
				Logger:      logger,
			})
			if err != nil {
				return err
			}

			fmt.Printf("Created snapshot %s\n", m.SnapshotID)
			fmt.Printf("  files:  %d\n", m.TotalFiles)
			fmt.Printf("  bytes:  %d\n", m.TotalBytes)
			if ratio, ok := m.DedupRatio(); ok {
				fmt.Printf("  dedup:  %.1f%% (%d bytes saved)\n", ratio, m.SpaceSaved())
			}
			return nil
		},
	}
	cmd.Flags().Int("chunk-size", 0, "chunk size in bytes (default 1 MiB, clamped to [64 KiB, 16 MiB])")
	cmd.Flags().Int("concurrency", 4, "number of files to chunk and insert concurrently")
	return cmd
}
