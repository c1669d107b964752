package export

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
)

// writeTXT renders the print table used for the plain text download.
func writeTXT(w io.Writer, t Table) error {
	if _, err := fmt.Fprintf(w, "%s\n", t.Title); err != nil {
		return err
	}
	for _, kv := range t.Info {
		if _, err := fmt.Fprintf(w, "%s: %s\n", kv[0], kv[1]); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintln(w); err != nil {
		return err
	}
	header := make([]any, len(t.Header))
	for i, h := range t.Header {
		header[i] = h
	}
	table := tablewriter.NewWriter(w)
	table.Header(header...)
	if err := table.Bulk(t.Rows); err != nil {
		return err
	}
	return table.Render()
}
