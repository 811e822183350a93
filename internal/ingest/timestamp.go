package ingest

import (
	"fmt"
	"time"
)

// timeLayouts covers the formats the feeds actually emit: RFC3339 with
// offsets (NWIS IV), bare dates (NWIS DV), and naive wall-clock strings
// (IEM one-minute files). Naive timestamps are taken as UTC.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05.000-07:00",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseTime parses a feed timestamp and normalizes it to UTC. All downstream
// arithmetic (staleness, lookback windows) assumes UTC instants, so every
// adapter routes its timestamps through here.
func ParseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
