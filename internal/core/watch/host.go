package watch

import (
	"fmt"

	"github.com/npmwatch/npmwatch/internal/core"
)

// Host is the runtime a Node executes inside. It owns the input items and
// their parameters, decides whether failures abort the run, and collects
// emitted records.
type Host interface {
	ItemCount() int
	Parameter(name string, itemIndex int, fallback any) (any, error)
	ContinueOnFail() bool
	Emit(record core.Record, itemIndex int)
}

// Item holds the parameters of one input item, keyed by parameter name.
type Item map[string]any

// ItemsHost is an in-memory Host over a fixed list of items. Emitted records
// are collected in order.
type ItemsHost struct {
	Items    []Item
	Continue bool
	Records  []core.Record

	// OnEmit, when set, is called with every record as it is emitted.
	OnEmit func(core.Record)
}

// NewItemsHost builds a host over items.
func NewItemsHost(items []Item, continueOnFail bool) *ItemsHost {
	return &ItemsHost{Items: items, Continue: continueOnFail}
}

func (h *ItemsHost) ItemCount() int {
	return len(h.Items)
}

func (h *ItemsHost) Parameter(name string, itemIndex int, fallback any) (any, error) {
	if itemIndex < 0 || itemIndex >= len(h.Items) {
		return nil, fmt.Errorf("item index %d out of range", itemIndex)
	}
	value, ok := h.Items[itemIndex][name]
	if !ok {
		return fallback, nil
	}
	return value, nil
}

func (h *ItemsHost) ContinueOnFail() bool {
	return h.Continue
}

func (h *ItemsHost) Emit(record core.Record, itemIndex int) {
	record.PairedItem = core.PairedItem{Item: itemIndex}
	h.Records = append(h.Records, record)
	if h.OnEmit != nil {
		h.OnEmit(record)
	}
}
