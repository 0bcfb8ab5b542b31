// Package shame recruits social pressure from teammates when a task
// stays overdue past the escalation threshold
package shame

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/cloud-shuttle/muster/internal/gateway"
	"github.com/cloud-shuttle/muster/pkg/telemetry"
	"github.com/cloud-shuttle/muster/pkg/types"
)

// actionPrefix keys the interactive "send shame" callback to a task
const actionPrefix = "shame:"

// TaskStore is the slice of the repository the escalation service needs
type TaskStore interface {
	GetTask(key types.TaskKey) (*types.Task, error)
	UpsertTask(t *types.Task) error
	ListByProject(sheetID, project string) ([]*types.Task, error)
	ListOverdue(now time.Time, threshold time.Duration) ([]*types.Task, error)
}

// Service fans out peer notifications for overdue tasks and handles
// the inbound "send shame" action
type Service struct {
	store TaskStore
	gw    gateway.Gateway

	threshold  time.Duration
	batchSize  int
	batchDelay time.Duration
	loc        *time.Location
	now        func() time.Time
}

// New creates an escalation service
func New(store TaskStore, gw gateway.Gateway, threshold time.Duration, batchSize int, batchDelay time.Duration, loc *time.Location) *Service {
	if batchSize < 1 {
		batchSize = 1
	}
	return &Service{
		store:      store,
		gw:         gw,
		threshold:  threshold,
		batchSize:  batchSize,
		batchDelay: batchDelay,
		loc:        loc,
		now:        time.Now,
	}
}

// ActionCallback renders the callback payload for a task's shame button
func ActionCallback(key types.TaskKey) string {
	return actionPrefix + key.String()
}

// ParseActionCallback recovers the task key from a callback payload
func ParseActionCallback(payload string) (types.TaskKey, error) {
	raw, ok := strings.CutPrefix(payload, actionPrefix)
	if !ok {
		return types.TaskKey{}, fmt.Errorf("not a shame callback: %q", payload)
	}
	parts := strings.Split(raw, "/")
	if len(parts) != 3 {
		return types.TaskKey{}, fmt.Errorf("malformed shame callback: %q", payload)
	}
	var row int
	if _, err := fmt.Sscanf(parts[2], "%d", &row); err != nil {
		return types.TaskKey{}, fmt.Errorf("malformed row in callback %q: %w", payload, err)
	}
	return types.TaskKey{SheetID: parts[0], Project: parts[1], Row: row}, nil
}

// NotifyPeers fans a peer notification out to every other participant
// of the task's project. Stale triggers (task completed, or no longer
// overdue by the threshold) are discarded.
func (s *Service) NotifyPeers(ctx context.Context, key types.TaskKey) (int, error) {
	t, err := s.store.GetTask(key)
	if err != nil {
		return 0, fmt.Errorf("loading task %s: %w", key, err)
	}
	if t == nil {
		return 0, fmt.Errorf("task %s not found", key)
	}
	if t.Status == types.StatusCompleted || t.OverdueBy(s.now()) < s.threshold {
		log.Printf("[shame] %s no longer qualifies, discarding trigger", key)
		return 0, nil
	}

	n, err := s.notifyPeers(ctx, t)
	if err != nil {
		return n, err
	}

	// A late-send fan-out counts as today's escalation, so the daily
	// sweep must not recruit the same peers again within the day.
	reportedAt := s.now()
	t.LastReported = &reportedAt
	if err := s.store.UpsertTask(t); err != nil {
		log.Printf("[shame] stamping %s failed: %v", key, err)
	}
	return n, nil
}

func (s *Service) notifyPeers(ctx context.Context, t *types.Task) (int, error) {
	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanShameFanout, telemetry.TaskAttrs(t.Key)...)
	defer span.End()

	peers, err := s.collectPeers(t)
	if err != nil {
		telemetry.RecordError(span, err, telemetry.ErrorCategoryDatabase)
		return 0, err
	}
	span.SetAttributes(attribute.Int(telemetry.KeyPeerCount, len(peers)))

	text := fmt.Sprintf("👀 %q in %s (owner: %s) has been overdue for %d days. Care to nudge?",
		t.Description, t.Key.Project, t.Owner.Name, int(t.OverdueBy(s.now()).Hours()/24))
	action := gateway.Action{Label: "Send shame", Callback: ActionCallback(t.Key)}

	// Peers are notified in small batches with a pause in between so
	// one escalation does not burst the messaging provider's rate
	// limit. Individual failures never fail the batch.
	notified := 0
	for start := 0; start < len(peers); start += s.batchSize {
		end := start + s.batchSize
		if end > len(peers) {
			end = len(peers)
		}
		for _, peer := range peers[start:end] {
			if _, err := s.gw.SendWithAction(ctx, peer.Channel, text, action); err != nil {
				log.Printf("[shame] notifying %s about %s failed: %v", peer.Name, t.Key, err)
				continue
			}
			notified++
		}
		if end < len(peers) && s.batchDelay > 0 {
			select {
			case <-time.After(s.batchDelay):
			case <-ctx.Done():
				return notified, ctx.Err()
			}
		}
	}

	log.Printf("[shame] %s: notified %d of %d peers", t.Key, notified, len(peers))
	return notified, nil
}

// collectPeers gathers every distinct reachable contact appearing
// anywhere else in the task's project, minus the task's own owner
func (s *Service) collectPeers(t *types.Task) ([]types.Contact, error) {
	tasks, err := s.store.ListByProject(t.Key.SheetID, t.Key.Project)
	if err != nil {
		return nil, fmt.Errorf("listing project %s: %w", t.Key.Project, err)
	}

	seen := make(map[string]bool)
	var peers []types.Contact
	for _, other := range tasks {
		for _, contact := range []types.Contact{other.Owner, other.Manager} {
			if contact.ID == "" || contact.ID == t.Owner.ID || seen[contact.ID] {
				continue
			}
			seen[contact.ID] = true
			if contact.Reachable() {
				peers = append(peers, contact)
			}
		}
	}
	return peers, nil
}

// HandleAction processes an inbound "send shame" tap. The returned
// string is the outcome message shown to the acting person.
func (s *Service) HandleAction(ctx context.Context, key types.TaskKey, actorID string) (string, error) {
	t, err := s.store.GetTask(key)
	if err != nil {
		return "", fmt.Errorf("loading task %s: %w", key, err)
	}
	if t == nil {
		return "That task no longer exists.", nil
	}
	if t.Status == types.StatusCompleted {
		return "Too late — the task has been completed. 🎉", nil
	}
	if actorID == t.Owner.ID {
		return "You cannot shame yourself. Finish the task instead. 😄", nil
	}
	if !t.Owner.Reachable() {
		return fmt.Sprintf("%s has no message channel linked; nothing was sent.", t.Owner.Name), nil
	}

	// The due cell can be cleared between the fan-out and the tap.
	due := "a while ago"
	if t.DueDate != nil {
		due = t.DueDate.Format("Mon 2 Jan")
	}
	text := fmt.Sprintf("😳 A teammate thinks %q in %s deserves your attention. It was due %s.",
		t.Description, t.Key.Project, due)
	if _, err := s.gw.Send(ctx, t.Owner.Channel, text); err != nil {
		log.Printf("[shame] shaming %s for %s failed: %v", t.Owner.Name, key, err)
		return "Could not reach the owner right now.", nil
	}
	return fmt.Sprintf("Shame delivered to %s. 📨", t.Owner.Name), nil
}

// ProcessDelayedTasks escalates every task overdue past the threshold
// that has not already been escalated today. Returns how many tasks
// were escalated; at most one escalation batch fires per task per
// calendar day regardless of how many times this runs.
func (s *Service) ProcessDelayedTasks(ctx context.Context) (int, error) {
	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanShameSweep)
	defer span.End()

	now := s.now()
	tasks, err := s.store.ListOverdue(now, s.threshold)
	if err != nil {
		telemetry.RecordError(span, err, telemetry.ErrorCategoryDatabase)
		return 0, fmt.Errorf("listing overdue tasks: %w", err)
	}

	escalated := 0
	for _, t := range tasks {
		if t.LastReported != nil && types.SameDay(*t.LastReported, now, s.loc) {
			continue
		}

		if _, err := s.notifyPeers(ctx, t); err != nil {
			log.Printf("[shame] sweep: escalating %s failed: %v", t.Key, err)
			continue
		}

		// Stamp the calendar-day guard even when no peer was
		// reachable; retrying within the day would not help.
		reportedAt := now
		t.LastReported = &reportedAt
		if err := s.store.UpsertTask(t); err != nil {
			log.Printf("[shame] sweep: stamping %s failed: %v", t.Key, err)
			continue
		}
		escalated++
	}

	return escalated, nil
}
