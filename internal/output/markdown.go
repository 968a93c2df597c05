package output

import (
	"strings"

	"github.com/npmwatch/npmwatch/internal/core"
)

// MarkdownFormatter renders results as a markdown table.
type MarkdownFormatter struct{}

// FormatRecords renders records as a Markdown table followed by a summary.
func (f *MarkdownFormatter) FormatRecords(records []core.Record) (string, error) {
	var sb strings.Builder
	sb.WriteString("## npm package versions\n\n")
	writeMarkdownTable(&sb, recordHeader, len(records), func(i int) []string {
		return rowFor(records[i]).cells()
	})
	if len(records) > 0 {
		sb.WriteString("\n**Summary**: " + summarize(records) + "\n")
	}
	return sb.String(), nil
}

// FormatHistory renders tracked packages as a Markdown table.
func (f *MarkdownFormatter) FormatHistory(entries []core.WatchEntry) (string, error) {
	var sb strings.Builder
	sb.WriteString("## Watch history\n\n")
	writeMarkdownTable(&sb, historyHeader, len(entries), func(i int) []string {
		return historyCells(entries[i])
	})
	return sb.String(), nil
}

func writeMarkdownTable(sb *strings.Builder, header []string, rows int, cells func(int) []string) {
	writeMarkdownRow(sb, header)
	separators := make([]string, len(header))
	for i, name := range header {
		separators[i] = strings.Repeat("-", len(name))
	}
	writeMarkdownRow(sb, separators)
	for i := 0; i < rows; i++ {
		values := cells(i)
		for j := range values {
			values[j] = escapeMarkdownCell(values[j])
		}
		writeMarkdownRow(sb, values)
	}
}

func writeMarkdownRow(sb *strings.Builder, cells []string) {
	sb.WriteString("| ")
	sb.WriteString(strings.Join(cells, " | "))
	sb.WriteString(" |\n")
}

func escapeMarkdownCell(value string) string {
	value = strings.ReplaceAll(value, "\n", " ")
	return strings.ReplaceAll(value, "|", "\\|")
}
