package output

import (
	"encoding/json"

	"github.com/npmwatch/npmwatch/internal/core"
)

// JSONFormatter renders results as JSON. Records use their workflow-item
// form: {"json": {...}, "pairedItem": {"item": n}}.
type JSONFormatter struct {
	Indent bool
}

// FormatRecords renders records as a JSON array.
func (f *JSONFormatter) FormatRecords(records []core.Record) (string, error) {
	if records == nil {
		records = []core.Record{}
	}
	return f.marshal(records)
}

// FormatHistory renders history entries as a JSON array.
func (f *JSONFormatter) FormatHistory(entries []core.WatchEntry) (string, error) {
	if entries == nil {
		entries = []core.WatchEntry{}
	}
	return f.marshal(entries)
}

func (f *JSONFormatter) marshal(value any) (string, error) {
	var (
		data []byte
		err  error
	)
	if f.Indent {
		data, err = json.MarshalIndent(value, "", "  ")
	} else {
		data, err = json.Marshal(value)
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}
