package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	ferrors "github.com/input-output-hk/catalyst-forge-libs/feedsync/errors"
)

func exitCodeFatal(err error) bool {
	return ferrors.IsFatal(err)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// table writes aligned rows. The first row is the header.
func table(w io.Writer, rows [][]string) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, row := range rows {
		for i, cell := range row {
			if i > 0 {
				fmt.Fprint(tw, "\t")
			}
			fmt.Fprint(tw, cell)
		}
		fmt.Fprintln(tw)
	}
	return tw.Flush()
}
