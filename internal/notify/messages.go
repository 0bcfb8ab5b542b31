package notify

import (
	"fmt"
	"strings"

	"github.com/cloud-shuttle/muster/pkg/types"
)

func formatOwnerMessage(kind SendKind, t *types.Task) string {
	switch kind {
	case SendNew:
		return fmt.Sprintf("📌 New task for you in %s: %s (priority %s, due %s)",
			t.Key.Project, t.Description, t.Priority, formatDue(t))
	case SendReminder:
		return fmt.Sprintf("⏰ Reminder: %s in %s is due %s",
			t.Description, t.Key.Project, formatDue(t))
	case SendLate:
		return fmt.Sprintf("🔥 Overdue: %s in %s was due %s. Please update it.",
			t.Description, t.Key.Project, formatDue(t))
	case SendUpdated:
		return fmt.Sprintf("📅 Due date changed: %s in %s is now due %s",
			t.Description, t.Key.Project, formatDue(t))
	}
	return ""
}

func formatMissingData(t *types.Task) string {
	return fmt.Sprintf("⚠️ Task %s in %s is missing required fields: %s",
		t.Key, t.Key.Project, strings.Join(t.MissingFields(), ", "))
}

func formatDeliveryFailure(t *types.Task, reason string) string {
	return fmt.Sprintf("⚠️ Could not notify %s about %q in %s: %s",
		t.Owner.Name, t.Description, t.Key.Project, reason)
}

func formatDue(t *types.Task) string {
	if t.DueDate == nil {
		return "unscheduled"
	}
	return t.DueDate.Format("Mon 2 Jan")
}
