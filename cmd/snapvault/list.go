package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/WebFirstLanguage/snapvault/pkg/manifest"
	"github.com/WebFirstLanguage/snapvault/pkg/repository"
)

func newListCmd(logger *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List snapshots in a repository",
		RunE: func(cmd *cobra.Command, args []string) error {
			repoPath, err := repoFlag(cmd)
			if err != nil {
				return err
			}
			verbose, _ := cmd.Flags().GetBool("verbose")

			repo, err := repository.Open(repoPath)
			if err != nil {
				return err
			}

			entries, err := os.ReadDir(repo.SnapshotsDir())
			if err != nil {
				if os.IsNotExist(err) {
					fmt.Println("no snapshots")
					return nil
				}
				return err
			}

			var names []string
			for _, e := range entries {
				if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
					continue
				}
				names = append(names, e.Name())
			}
			sort.Strings(names)

			if len(names) == 0 {
				fmt.Println("no snapshots")
				return nil
			}

			for _, name := range names {
				m, err := manifest.Load(filepath.Join(repo.SnapshotsDir(), name))
				if err != nil {
					logger.Warn("failed to load snapshot", slog.String("file", name), slog.Any("error", err))
					continue
				}
				if verbose {
					ratio, _ := m.DedupRatio()
					fmt.Printf("%s  files=%d  bytes=%d  dedup=%.1f%%  created=%s\n",
						m.SnapshotID, m.TotalFiles, m.TotalBytes, ratio, m.CreatedAt)
				} else {
					fmt.Println(m.SnapshotID)
				}
			}
			return nil
		},
	}
	return cmd
}
