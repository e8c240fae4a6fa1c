package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/WebFirstLanguage/snapvault/pkg/repository"
)

func newInitCmd(logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize a new repository",
		RunE: func(cmd *cobra.Command, args []string) error {
			repoPath, err := repoFlag(cmd)
			if err != nil {
				return err
			}
			if _, err := repository.Init(repoPath); err != nil {
				return err
			}
			fmt.Printf("Initialized empty snapvault repository at %s\n", repoPath)
			return nil
		},
	}
}
