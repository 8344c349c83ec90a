package sinks

import (
	"encoding/json"
	"fmt"

	"github.com/JakeFAU/seo-crawler/internal/crawler"
)

// encodeEvent renders evt as JSON for message brokers. Page HTML is dropped
// so messages stay small; the archive holds the full body.
func encodeEvent(evt crawler.Event) ([]byte, error) {
	if evt.Page != nil && evt.Page.HTML != "" {
		page := *evt.Page
		page.HTML = ""
		evt.Page = &page
	}
	if evt.Result != nil {
		result := *evt.Result
		result.Pages = nil
		evt.Result = &result
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return nil, fmt.Errorf("marshal %s event: %w", evt.Type, err)
	}
	return data, nil
}

// eventFilter selects which event types a broker sink forwards. An empty
// filter forwards everything.
type eventFilter map[crawler.EventType]struct{}

func newEventFilter(types []crawler.EventType) eventFilter {
	if len(types) == 0 {
		return nil
	}
	f := make(eventFilter, len(types))
	for _, t := range types {
		f[t] = struct{}{}
	}
	return f
}

func (f eventFilter) allows(t crawler.EventType) bool {
	if f == nil {
		return true
	}
	_, ok := f[t]
	return ok
}
