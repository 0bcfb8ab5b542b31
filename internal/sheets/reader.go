// Package sheets reads task and roster rows from the external
// spreadsheet source
package sheets

import "context"

// RosterTab is the reserved tab holding the contact roster. It is
// never scanned for tasks.
const RosterTab = "Contacts"

// Reader yields tab names and raw cell rows from one spreadsheet.
// The first row of every tab is a header row; column positions are
// discovered by header-name matching, not fixed indices.
type Reader interface {
	// ListProjectTabs returns the task-bearing tab names of a sheet,
	// excluding the reserved roster tab.
	ListProjectTabs(ctx context.Context, sheetID string) ([]string, error)
	// ReadRows returns all rows of one tab, header row included.
	ReadRows(ctx context.Context, sheetID, tab string) ([][]string, error)
}
