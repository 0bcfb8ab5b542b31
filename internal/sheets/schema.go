package sheets

import "strings"

// Row is one task row after header mapping, still raw strings.
// Parsing (dates, status folding) happens in the reconciler.
type Row struct {
	Description string
	Owner       string
	Manager     string
	Priority    string
	Points      string
	Status      string
	Milestone   string
	Notes       string
	Start       string
	Due         string
}

// headerSynonyms maps the header names people actually type onto
// logical fields. Matching is case-insensitive on the trimmed cell.
var headerSynonyms = map[string]string{
	"task":        "description",
	"description": "description",
	"item":        "description",
	"work item":   "description",

	"owner":    "owner",
	"assignee": "owner",
	"who":      "owner",

	"manager":     "manager",
	"lead":        "manager",
	"reports to":  "manager",
	"accountable": "manager",

	"priority": "priority",
	"prio":     "priority",

	"points": "points",
	"effort": "points",
	"size":   "points",

	"status": "status",
	"state":  "status",

	"milestone": "milestone",
	"sprint":    "milestone",

	"notes":    "notes",
	"comments": "notes",

	"start":      "start",
	"start date": "start",
	"begins":     "start",

	"due":      "due",
	"due date": "due",
	"deadline": "due",
}

// ColumnMap holds the column index of each logical field for one tab,
// -1 when the tab has no matching header.
type ColumnMap struct {
	indexes map[string]int
}

// MapHeader builds a ColumnMap from a tab's header row. Unrecognized
// headers are ignored; the first match wins when a tab repeats one.
func MapHeader(header []string) ColumnMap {
	m := ColumnMap{indexes: make(map[string]int)}
	for i, cell := range header {
		field, ok := headerSynonyms[strings.ToLower(strings.TrimSpace(cell))]
		if !ok {
			continue
		}
		if _, seen := m.indexes[field]; !seen {
			m.indexes[field] = i
		}
	}
	return m
}

// Record maps one data row through the column map. Missing or
// out-of-range columns yield empty strings, never errors; the
// reconciler downgrades those to a missing-data classification.
func (m ColumnMap) Record(row []string) Row {
	return Row{
		Description: m.cell(row, "description"),
		Owner:       m.cell(row, "owner"),
		Manager:     m.cell(row, "manager"),
		Priority:    m.cell(row, "priority"),
		Points:      m.cell(row, "points"),
		Status:      m.cell(row, "status"),
		Milestone:   m.cell(row, "milestone"),
		Notes:       m.cell(row, "notes"),
		Start:       m.cell(row, "start"),
		Due:         m.cell(row, "due"),
	}
}

func (m ColumnMap) cell(row []string, field string) string {
	i, ok := m.indexes[field]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
