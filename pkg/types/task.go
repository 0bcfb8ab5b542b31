// Package types defines core data structures for Muster
package types

import (
	"fmt"
	"strings"
	"time"
)

// Status is the closed status set a source row can resolve to.
// Raw sheet statuses are free text; they are folded onto this set at
// the parse boundary so downstream logic never compares raw strings.
type Status string

const (
	StatusOpen      Status = "open"
	StatusCompleted Status = "completed"
	StatusBlocked   Status = "blocked"
)

// ParseStatus folds a raw sheet status cell onto the closed status set.
// Anything that is not a recognized sentinel is treated as open.
func ParseStatus(raw string) Status {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "completed", "complete", "done":
		return StatusCompleted
	case "blocked", "on hold", "paused":
		return StatusBlocked
	default:
		return StatusOpen
	}
}

// Delta classifies why a reconciled task needs attention
type Delta string

const (
	DeltaNew            Delta = "new"
	DeltaUnchanged      Delta = "unchanged"
	DeltaOwnerChanged   Delta = "owner_changed"
	DeltaDueDateChanged Delta = "due_date_changed"
	DeltaMissingData    Delta = "missing_data"
)

// TaskKey identifies one task across reconciliation runs.
// Row is the row's position within its project tab, numbered from 1 in
// source order each run. If the sheet is reordered between runs the
// same row number names a different task; that approximation is
// documented behavior, the source format has no stable row ID.
type TaskKey struct {
	SheetID string `json:"sheet_id"`
	Project string `json:"project"`
	Row     int    `json:"row"`
}

func (k TaskKey) String() string {
	return fmt.Sprintf("%s/%s/%d", k.SheetID, k.Project, k.Row)
}

// Contact is an identity + channel record resolved from the directory.
// An empty Channel makes the contact unreachable; sends to it are
// skipped, not errored.
type Contact struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Channel string `json:"channel,omitempty"`
	Handle  string `json:"handle,omitempty"`
}

// Reachable reports whether the contact has a message channel address
func (c Contact) Reachable() bool {
	return c.Channel != ""
}

// Task is one row of work inside one project inside one sheet
type Task struct {
	Key TaskKey `json:"key"`

	Description string `json:"description"`
	Priority    string `json:"priority"`
	Points      string `json:"points"`
	Status      Status `json:"status"`
	Milestone   string `json:"milestone,omitempty"`
	Notes       string `json:"notes,omitempty"`

	Owner   Contact `json:"owner"`
	Manager Contact `json:"manager"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	StartDate *time.Time `json:"start_date,omitempty"`
	DueDate   *time.Time `json:"due_date,omitempty"`

	// CompletedAt is set once when the status first resolves to
	// completed and is preserved across later updates.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	// BlockedAt is set when the status resolves to blocked and cleared
	// only by an explicit unblock (status moving back to open).
	BlockedAt *time.Time `json:"blocked_at,omitempty"`

	// LastSent is the last time any owner-facing notification fired.
	LastSent *time.Time `json:"last_sent,omitempty"`
	// LastReported is the last time a manager-facing report or a peer
	// escalation fired for this task.
	LastReported *time.Time `json:"last_reported,omitempty"`
}

// MissingFields returns the required fields the task lacks, in a fixed
// order. A task with missing fields is never eligible for owner-facing
// notification.
func (t *Task) MissingFields() []string {
	var missing []string
	if strings.TrimSpace(t.Owner.Name) == "" {
		missing = append(missing, "owner")
	}
	if strings.TrimSpace(t.Description) == "" {
		missing = append(missing, "description")
	}
	if strings.TrimSpace(t.Priority) == "" {
		missing = append(missing, "priority")
	}
	if strings.TrimSpace(t.Points) == "" {
		missing = append(missing, "points")
	}
	if t.DueDate == nil {
		missing = append(missing, "due date")
	}
	return missing
}

// Complete reports whether every required field is present
func (t *Task) Complete() bool {
	return len(t.MissingFields()) == 0
}

// Overdue reports whether the task's due date has passed as of now.
// Tasks without a due date or already completed are never overdue.
func (t *Task) Overdue(now time.Time) bool {
	if t.DueDate == nil || t.Status == StatusCompleted {
		return false
	}
	return t.DueDate.Before(now)
}

// OverdueBy returns how far past its due date the task is. Zero for
// tasks that are not overdue.
func (t *Task) OverdueBy(now time.Time) time.Duration {
	if !t.Overdue(now) {
		return 0
	}
	return now.Sub(*t.DueDate)
}

// Sheet is a registered spreadsheet the reconciler tracks
type Sheet struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	RegisteredAt time.Time `json:"registered_at"`
}

// SameDay reports whether two instants fall on the same calendar day
// in the given zone. Used for the once-per-day escalation guard.
func SameDay(a, b time.Time, loc *time.Location) bool {
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}
