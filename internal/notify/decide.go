// Package notify decides and delivers owner- and manager-facing task
// notifications
package notify

import (
	"time"

	"github.com/cloud-shuttle/muster/pkg/types"
)

// SendKind is what, if anything, fires for a task this pass
type SendKind string

const (
	SendNone        SendKind = "none"
	SendNew         SendKind = "new"
	SendReminder    SendKind = "reminder"
	SendLate        SendKind = "late"
	SendUpdated     SendKind = "updated"
	SendMissingData SendKind = "missing_data"
)

// OwnerFacing reports whether the send goes to the task owner
func (k SendKind) OwnerFacing() bool {
	switch k {
	case SendNew, SendReminder, SendLate, SendUpdated:
		return true
	}
	return false
}

// Decide applies the notification rules to one classified candidate.
// At most one send fires per pass per task.
func Decide(t *types.Task, delta types.Delta, now time.Time, reminderInterval, reportInterval time.Duration) SendKind {
	// Missing required data suppresses every owner-facing send and
	// instead reports to the manager, at most once per report interval.
	if !t.Complete() {
		if t.LastReported == nil || now.Sub(*t.LastReported) >= reportInterval {
			return SendMissingData
		}
		return SendNone
	}

	// Ownership reassignment always notifies the new owner now,
	// overriding the rate limit.
	if delta == types.DeltaOwnerChanged {
		return SendNew
	}
	// A moved due date likewise overrides the rate limit.
	if delta == types.DeltaDueDateChanged {
		return SendUpdated
	}

	if t.LastSent == nil {
		return SendNew
	}
	if now.Sub(*t.LastSent) < reminderInterval {
		return SendNone
	}
	if t.DueDate != nil && t.DueDate.Before(now) {
		return SendLate
	}
	return SendReminder
}
