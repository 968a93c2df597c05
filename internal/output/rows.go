package output

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/npmwatch/npmwatch/internal/core"
)

const empty = "-"

// recordRow is the flattened view of a record shared by the table and
// markdown formatters.
type recordRow struct {
	Item      string
	Package   string
	Known     string
	Latest    string
	Change    string
	Previous  string
	Published string
	Source    string
}

var recordHeader = []string{"Item", "Package", "Known", "Latest", "Change", "Previous", "Published", "Source"}

func rowFor(record core.Record) recordRow {
	row := recordRow{Item: strconv.Itoa(record.PairedItem.Item)}
	report := record.Report
	if report == nil {
		row.Package = empty
		row.Known = empty
		row.Latest = empty
		row.Change = "error"
		row.Previous = empty
		row.Published = empty
		row.Source = record.Error
		return row
	}

	row.Package = report.PackageName
	row.Known = orEmpty(report.KnownVersion)
	row.Latest = report.LatestVersion
	row.Change = changeLabel(report.HasChanged, report.ChangeType)
	row.Previous = orEmpty(report.PreviousVersion)
	row.Published = shortTime(report.LatestPublishedAt)
	row.Source = report.GitHubURL
	return row
}

func (r recordRow) cells() []string {
	return []string{r.Item, r.Package, r.Known, r.Latest, r.Change, r.Previous, r.Published, r.Source}
}

func changeLabel(changed bool, changeType *core.ChangeType) string {
	switch {
	case !changed:
		return "unchanged"
	case changeType == nil:
		return "changed"
	default:
		return string(*changeType)
	}
}

// summarize counts changed, unchanged and failed records.
func summarize(records []core.Record) string {
	var changed, unchanged, failed int
	for _, record := range records {
		switch {
		case record.Report == nil:
			failed++
		case record.Report.HasChanged:
			changed++
		default:
			unchanged++
		}
	}
	summary := fmt.Sprintf("%d changed, %d unchanged", changed, unchanged)
	if failed > 0 {
		summary += fmt.Sprintf(", %d failed", failed)
	}
	return summary
}

func orEmpty(value *string) string {
	if value == nil || strings.TrimSpace(*value) == "" {
		return empty
	}
	return *value
}

// shortTime trims a registry timestamp to its date when it parses.
func shortTime(value *string) string {
	if value == nil || *value == "" {
		return empty
	}
	if parsed, err := time.Parse(time.RFC3339, *value); err == nil {
		return parsed.UTC().Format("2006-01-02")
	}
	return *value
}

var historyHeader = []string{"Package", "Latest", "Previous", "Change", "Published", "Checked"}

func historyCells(entry core.WatchEntry) []string {
	change := empty
	if entry.ChangeType != nil {
		change = string(*entry.ChangeType)
	}
	return []string{
		entry.PackageName,
		entry.LatestVersion,
		orEmpty(entry.PreviousVersion),
		change,
		shortTime(entry.LatestPublishedAt),
		entry.CheckedAt.UTC().Format(time.RFC3339),
	}
}
