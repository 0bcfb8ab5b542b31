// Package reconcile compares freshly read sheet rows against their
// stored mirror and classifies what changed
package reconcile

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/cloud-shuttle/muster/internal/directory"
	"github.com/cloud-shuttle/muster/internal/notify"
	"github.com/cloud-shuttle/muster/internal/sheets"
	"github.com/cloud-shuttle/muster/pkg/telemetry"
	"github.com/cloud-shuttle/muster/pkg/types"
)

// TaskStore is the slice of the repository the reconciler needs
type TaskStore interface {
	GetTask(key types.TaskKey) (*types.Task, error)
	UpsertTask(t *types.Task) error
}

// Dispatcher decides and performs the notification for one classified
// candidate. It stamps LastSent/LastReported on the task itself.
type Dispatcher interface {
	Dispatch(ctx context.Context, t *types.Task, delta types.Delta, now time.Time) notify.Result
}

// Outcome summarizes one sheet's reconciliation pass
type Outcome struct {
	SheetID  string
	Projects int
	Tasks    int
	Sent     int
	Reported int
	Failed   int
}

// Reconciler drives one sheet through read, classify, notify, upsert
type Reconciler struct {
	reader     sheets.Reader
	cache      *directory.Cache
	store      TaskStore
	dispatcher Dispatcher

	startSkew time.Duration
	loc       *time.Location
	now       func() time.Time
}

// New creates a reconciler
func New(reader sheets.Reader, cache *directory.Cache, store TaskStore, dispatcher Dispatcher, startSkew time.Duration, loc *time.Location) *Reconciler {
	return &Reconciler{
		reader:     reader,
		cache:      cache,
		store:      store,
		dispatcher: dispatcher,
		startSkew:  startSkew,
		loc:        loc,
		now:        time.Now,
	}
}

// ReconcileSheet runs one full pass over a sheet. An unreadable tab is
// skipped and the rest of the sheet still processed; only a sheet-level
// read failure aborts the pass.
func (r *Reconciler) ReconcileSheet(ctx context.Context, sheetID string) (*Outcome, error) {
	ctx, span := telemetry.StartSheetSpan(ctx, sheetID)
	defer span.End()

	now := r.now()
	outcome := &Outcome{SheetID: sheetID}

	roster := r.readRoster(ctx, sheetID)

	tabs, err := r.reader.ListProjectTabs(ctx, sheetID)
	if err != nil {
		telemetry.RecordError(span, err, telemetry.ErrorCategorySource)
		return nil, fmt.Errorf("listing tabs: %w", err)
	}

	for _, tab := range tabs {
		rows, err := r.reader.ReadRows(ctx, sheetID, tab)
		if err != nil {
			log.Printf("[sync] %s: tab %q unreadable, skipping: %v", sheetID, tab, err)
			outcome.Failed++
			continue
		}
		if len(rows) < 2 {
			continue
		}
		outcome.Projects++

		colmap := sheets.MapHeader(rows[0])
		for i, raw := range rows[1:] {
			rec := colmap.Record(raw)
			if rec == (sheets.Row{}) {
				continue
			}
			// Row numbering restarts at 1 per project per run; the
			// position, not any source-side id, addresses the task.
			key := types.TaskKey{SheetID: sheetID, Project: tab, Row: i + 1}

			if err := r.reconcileRow(ctx, key, rec, roster, now, outcome); err != nil {
				log.Printf("[sync] %s: %v", key, err)
				outcome.Failed++
			}
		}
	}

	span.SetAttributes(
		attribute.Int("muster.sync.projects", outcome.Projects),
		attribute.Int("muster.sync.tasks", outcome.Tasks),
		attribute.Int("muster.sync.sent", outcome.Sent),
		attribute.Int("muster.sync.failed", outcome.Failed),
	)
	return outcome, nil
}

// readRoster loads the contact roster tab. Failure degrades to an
// empty roster so the rest of the sheet still reconciles; owners then
// resolve to placeholder contacts for this pass.
func (r *Reconciler) readRoster(ctx context.Context, sheetID string) []types.Contact {
	rows, err := r.reader.ReadRows(ctx, sheetID, sheets.RosterTab)
	if err != nil {
		log.Printf("[sync] %s: roster unreadable: %v", sheetID, err)
		return nil
	}
	return sheets.ParseRoster(rows)
}

func (r *Reconciler) reconcileRow(ctx context.Context, key types.TaskKey, rec sheets.Row, roster []types.Contact, now time.Time, outcome *Outcome) error {
	candidate := r.buildCandidate(ctx, key, rec, roster, now)

	stored, err := r.store.GetTask(key)
	if err != nil {
		return fmt.Errorf("loading stored task: %w", err)
	}

	delta := classify(candidate, stored)
	carryForward(candidate, stored, now)
	outcome.Tasks++

	if r.eligible(candidate, now) {
		result := r.dispatcher.Dispatch(ctx, candidate, delta, now)
		if result.Sent != notify.SendNone {
			outcome.Sent++
		}
		if result.Reported {
			outcome.Reported++
		}
		if result.DeliveryFailed {
			outcome.Failed++
		}
	}

	// A write failure is logged upstream; the candidate already drove
	// this tick's notification decision and the next tick recomputes
	// from the stale stored copy.
	if err := r.store.UpsertTask(candidate); err != nil {
		return fmt.Errorf("upserting: %w", err)
	}
	return nil
}

// buildCandidate turns one mapped row into a canonical task snapshot
func (r *Reconciler) buildCandidate(ctx context.Context, key types.TaskKey, rec sheets.Row, roster []types.Contact, now time.Time) *types.Task {
	t := &types.Task{
		Key:         key,
		Description: rec.Description,
		Priority:    rec.Priority,
		Points:      rec.Points,
		Status:      types.ParseStatus(rec.Status),
		Milestone:   rec.Milestone,
		Notes:       rec.Notes,
		Owner:       r.resolvePerson(ctx, rec.Owner, roster),
		Manager:     r.resolvePerson(ctx, rec.Manager, roster),
		CreatedAt:   now,
		UpdatedAt:   now,
		StartDate:   ParseDate(rec.Start, r.loc),
		DueDate:     ParseDate(rec.Due, r.loc),
	}
	return t
}

// resolvePerson maps a row's name cell to a contact: roster entry
// first, then channel data from the directory cache, falling back to
// a placeholder contact when the name is unknown.
func (r *Reconciler) resolvePerson(ctx context.Context, name string, roster []types.Contact) types.Contact {
	contact, ok := sheets.FindByName(roster, name)
	if !ok {
		return types.Contact{Name: name}
	}
	if resolved, ok := r.cache.Resolve(ctx, contact.ID); ok {
		if contact.Channel == "" {
			contact.Channel = resolved.Channel
		}
		if contact.Handle == "" {
			contact.Handle = resolved.Handle
		}
		if contact.Name == "" {
			contact.Name = resolved.Name
		}
	}
	return contact
}

// classify names the delta between the candidate and its stored mirror
func classify(candidate, stored *types.Task) types.Delta {
	if !candidate.Complete() {
		return types.DeltaMissingData
	}
	if stored == nil {
		return types.DeltaNew
	}
	if stored.Owner.ID != candidate.Owner.ID {
		return types.DeltaOwnerChanged
	}
	if !sameInstant(stored.DueDate, candidate.DueDate) {
		return types.DeltaDueDateChanged
	}
	return types.DeltaUnchanged
}

// sameInstant compares due dates by resolved instant. A stored date
// serialized differently than a freshly parsed one must still compare
// equal.
func sameInstant(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

// carryForward copies the stored task's durable fields onto the
// candidate and stamps the completion/blocked timestamps
func carryForward(candidate, stored *types.Task, now time.Time) {
	if stored != nil {
		candidate.CreatedAt = stored.CreatedAt
		candidate.LastSent = stored.LastSent
		candidate.LastReported = stored.LastReported
		candidate.CompletedAt = stored.CompletedAt
		candidate.BlockedAt = stored.BlockedAt
	}

	switch candidate.Status {
	case types.StatusCompleted:
		// Completion is sticky: stamped once, then preserved even if
		// the status cell later reverts.
		if candidate.CompletedAt == nil {
			completedAt := now
			candidate.CompletedAt = &completedAt
		}
		candidate.BlockedAt = nil
	case types.StatusBlocked:
		if candidate.BlockedAt == nil {
			blockedAt := now
			candidate.BlockedAt = &blockedAt
		}
	default:
		// Explicit unblock clears the blocked stamp
		candidate.BlockedAt = nil
	}
}

// eligible reports whether a candidate may be handed to the dispatcher
// this pass: completed and blocked tasks are out, and so is anything
// whose start date is still meaningfully in the future.
func (r *Reconciler) eligible(candidate *types.Task, now time.Time) bool {
	if candidate.Status != types.StatusOpen {
		return false
	}
	if candidate.StartDate != nil && candidate.StartDate.After(now.Add(r.startSkew)) {
		return false
	}
	return true
}
