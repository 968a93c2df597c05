package output

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/npmwatch/npmwatch/internal/core"
)

// TableFormatter renders results as an ASCII table.
type TableFormatter struct{}

// FormatRecords renders one row per record with a change summary footer.
func (f *TableFormatter) FormatRecords(records []core.Record) (string, error) {
	t := newTable(recordHeader)
	for _, record := range records {
		t.AppendRow(toRow(rowFor(record).cells()))
	}
	if len(records) > 0 {
		t.AppendFooter(table.Row{"", "", "", "", summarize(records), "", "", ""})
	}
	return t.Render(), nil
}

// FormatHistory renders tracked packages.
func (f *TableFormatter) FormatHistory(entries []core.WatchEntry) (string, error) {
	t := newTable(historyHeader)
	for _, entry := range entries {
		t.AppendRow(toRow(historyCells(entry)))
	}
	t.AppendFooter(table.Row{fmt.Sprintf("%d tracked", len(entries)), "", "", "", "", ""})
	return t.Render(), nil
}

func newTable(header []string) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(toRow(header))
	return t
}

func toRow(cells []string) table.Row {
	row := make(table.Row, len(cells))
	for i, cell := range cells {
		row[i] = cell
	}
	return row
}
