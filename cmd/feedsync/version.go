package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/input-output-hk/catalyst-forge-libs/feedsync"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the feedsync version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "feedsync", feedsync.Version)
	},
}
