package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/input-output-hk/catalyst-forge-libs/feedsync"
)

var flagAll bool

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run a synchronization cycle for the oldest unprocessed manifest",
	Long: `Sync discovers the feed schema, indexes the manifests, loads the oldest
manifest that has not been processed yet and downloads the files of every
enabled entity. A manifest is recorded as processed only when every entity
succeeded.

With --all, cycles run until no manifest is pending.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		var results []*feedsync.CycleResult
		for {
			res, err := client.RunCycle(ctx)
			if err != nil {
				return err
			}
			results = append(results, res)
			if !flagAll || !res.Pending() || !res.Checkpointed {
				break
			}
		}

		if flagJSON {
			return writeJSON(cmd.OutOrStdout(), results)
		}
		for _, res := range results {
			printCycle(cmd.OutOrStdout(), res)
		}
		return nil
	},
}

func init() {
	syncCmd.Flags().BoolVar(&flagAll, "all", false, "process every pending manifest")
}

func printCycle(w io.Writer, res *feedsync.CycleResult) {
	if !res.Pending() {
		fmt.Fprintf(w, "run %s: no pending manifest (%d indexed)\n", res.RunID, len(res.Manifests))
		return
	}

	fmt.Fprintf(w, "run %s: manifest %s, %d rows\n", res.RunID, res.Load.Manifest.Key, res.Load.Rows)

	ids := make([]string, 0, len(res.Download.Downloads))
	for id := range res.Download.Downloads {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		fmt.Fprintf(w, "  %s: %d files\n", id, len(res.Download.Downloads[id].Files))
	}

	failed := make([]string, 0, len(res.Download.Failed))
	for id := range res.Download.Failed {
		failed = append(failed, id)
	}
	sort.Strings(failed)
	for _, id := range failed {
		fmt.Fprintf(w, "  %s: failed: %v\n", id, res.Download.Failed[id])
	}
	if !res.Checkpointed {
		fmt.Fprintln(w, "  manifest not marked as processed")
	}
}
