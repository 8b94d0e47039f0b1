package main

import (
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Discover the feed schema and merge it into tracked entities",
	Long: `Discover downloads the feed description, parses it and merges schema
version 1.0 into every enabled tracked entity. Entities that allow loading
fields from the source system receive newly discovered fields; the others keep
their configured field set.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := client.DiscoverSchema(cmd.Context())
		if err != nil {
			return err
		}
		if flagJSON {
			return writeJSON(cmd.OutOrStdout(), res)
		}

		rows := [][]string{{"ENTITY", "STATUS", "ADDED FIELDS", "OTHER VERSIONS"}}
		for _, id := range res.Merged {
			added := res.Added[id]
			other := "-"
			if v := res.Unmerged[id]; len(v) > 0 {
				other = strings.Join(v, ",")
			}
			rows = append(rows, []string{id, "merged", strconv.Itoa(len(added)) + " " + strings.Join(added, ","), other})
		}
		for _, id := range res.Skipped {
			rows = append(rows, []string{id, "disabled", "-", "-"})
		}
		return table(cmd.OutOrStdout(), rows)
	},
}
