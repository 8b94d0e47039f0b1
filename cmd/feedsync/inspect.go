package main

import (
	"strconv"

	"github.com/spf13/cobra"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <entity>",
	Short: "Show the detected content type of an entity's staged files",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		files, err := client.InspectStaging(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if flagJSON {
			return writeJSON(cmd.OutOrStdout(), files)
		}

		rows := [][]string{{"NAME", "SIZE", "MIME", "GZIP"}}
		for _, f := range files {
			rows = append(rows, []string{f.Name, strconv.FormatInt(f.Size, 10), f.MIME, strconv.FormatBool(f.Gzip)})
		}
		return table(cmd.OutOrStdout(), rows)
	},
}
