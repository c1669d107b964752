package export

import (
	"io"

	"github.com/xuri/excelize/v2"
)

const sheetName = "Submissions"

func writeXLSX(w io.Writer, t Table, o Options) error {
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}

	row := 1
	put := func(values []string) (string, error) {
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return "", err
		}
		vals := make([]interface{}, len(values))
		for i, v := range values {
			vals[i] = v
		}
		row++
		return cell, f.SetSheetRow(sheetName, cell, &vals)
	}

	for _, kv := range t.Info {
		cell, err := put([]string{kv[0], kv[1]})
		if err != nil {
			return err
		}
		if err := f.SetCellStyle(sheetName, cell, cell, bold); err != nil {
			return err
		}
	}
	if len(t.Info) > 0 {
		row++
	}
	start, err := put(t.Header)
	if err != nil {
		return err
	}
	end, err := excelize.CoordinatesToCellName(max(len(t.Header), 1), row-1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheetName, start, end, bold); err != nil {
		return err
	}
	for _, r := range t.Rows {
		if _, err := put(r); err != nil {
			return err
		}
	}
	for i, wgt := range t.Widths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(sheetName, col, col, 6+wgt*4); err != nil {
			return err
		}
	}
	orientation := o.Orientation
	if orientation == "" {
		orientation = "portrait"
	}
	if err := f.SetPageLayout(sheetName, &excelize.PageLayoutOptions{Orientation: &orientation}); err != nil {
		return err
	}
	return f.Write(w)
}
