package reconcile

import (
	"strings"
	"time"
)

// dateFormats are tried in order. Day-first forms come before
// US-style ones because the sheets this grew up on are day-first.
var dateFormats = []string{
	"2006-01-02",
	"2006-01-02 15:04",
	time.RFC3339,
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"2 Jan 2006",
	"Jan 2, 2006",
}

// ParseDate parses a sheet date cell tolerantly. Empty or unparseable
// cells become nil, never an error; a bad date is a missing date.
func ParseDate(cell string, loc *time.Location) *time.Time {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return nil
	}
	for _, format := range dateFormats {
		if t, err := time.ParseInLocation(format, cell, loc); err == nil {
			return &t
		}
	}
	return nil
}
