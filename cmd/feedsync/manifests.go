package main

import (
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/input-output-hk/catalyst-forge-libs/feedsync/feedtypes"
)

type manifestRow struct {
	Index     int       `json:"index"`
	Key       string    `json:"key"`
	Timestamp time.Time `json:"timestamp"`
	Processed bool      `json:"processed"`
	RunID     string    `json:"run_id,omitempty"`
}

var manifestsCmd = &cobra.Command{
	Use:   "manifests",
	Short: "List manifests oldest first with their processing status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		descriptors, err := client.IndexManifests(ctx)
		if err != nil {
			return err
		}
		processed, err := store.ProcessedManifests(ctx)
		if err != nil {
			return err
		}
		runs := make(map[string]string, len(processed))
		for _, cp := range processed {
			runs[cp.Key] = cp.RunID
		}

		out := manifestRows(descriptors, runs)
		if flagJSON {
			return writeJSON(cmd.OutOrStdout(), out)
		}

		rows := [][]string{{"INDEX", "KEY", "TIMESTAMP", "PROCESSED"}}
		for _, m := range out {
			rows = append(rows, []string{
				strconv.Itoa(m.Index),
				m.Key,
				m.Timestamp.Format(time.RFC3339),
				strconv.FormatBool(m.Processed),
			})
		}
		return table(cmd.OutOrStdout(), rows)
	},
}

func manifestRows(descriptors []feedtypes.ManifestDescriptor, runs map[string]string) []manifestRow {
	out := make([]manifestRow, len(descriptors))
	for i, d := range descriptors {
		run, ok := runs[d.Key]
		out[i] = manifestRow{
			Index:     i,
			Key:       d.Key,
			Timestamp: d.Timestamp,
			Processed: ok,
			RunID:     run,
		}
	}
	return out
}
