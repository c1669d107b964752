package export

import (
	"io"

	"github.com/gocarina/gocsv"
)

// writeCSV writes the table as records. Its columns follow the chosen
// layout, so there is no fixed row struct to marshal.
func writeCSV(w io.Writer, t Table) error {
	cw := gocsv.DefaultCSVWriter(w)
	if err := cw.Write(t.Header); err != nil {
		return err
	}
	for _, r := range t.Rows {
		if err := cw.Write(r); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
