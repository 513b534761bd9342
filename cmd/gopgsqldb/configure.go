package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/rickchristie/postgres-sqldb/internal/configure"
)

func newConfigureCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "configure",
		Short: "Run the interactive configuration wizard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := a.configPath
			if path == "" {
				path = os.Getenv(envConfigPath)
			}
			if path == "" {
				path = defaultConfigPath
			}
			printBanner(os.Stderr, isTTY(os.Stderr.Fd()))
			return configure.Run(path)
		},
	}
}
