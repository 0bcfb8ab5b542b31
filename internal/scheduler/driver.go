// Package scheduler drives reconciliation and escalation on timers,
// inside a working-hours policy computed in a fixed time zone
package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/cloud-shuttle/muster/internal/reconcile"
	"github.com/cloud-shuttle/muster/pkg/types"
	"github.com/robfig/cron/v3"
)

// SheetReconciler runs one sheet through a reconciliation pass
type SheetReconciler interface {
	ReconcileSheet(ctx context.Context, sheetID string) (*reconcile.Outcome, error)
}

// Sweeper runs the daily escalation sweep
type Sweeper interface {
	ProcessDelayedTasks(ctx context.Context) (int, error)
}

// Registry is the slice of the store the driver needs: the sheet
// registry plus the checkpointable sync queue
type Registry interface {
	ListSheets() ([]*types.Sheet, error)
	FillQueue() (int, error)
	PopQueue(n int) ([]string, error)
}

// Summary is what manual triggers report back
type Summary struct {
	Processed int `json:"processed"`
	Failed    int `json:"failed"`
	Sent      int `json:"sent"`
	Reported  int `json:"reported"`
}

// Driver owns the cron schedules and the working-hours policy
type Driver struct {
	registry   Registry
	reconciler SheetReconciler
	sweeper    Sweeper

	loc           *time.Location
	workdayStart  int
	workdayEnd    int
	sheetsPerTick int

	cron *cron.Cron
	now  func() time.Time
}

// Config carries the driver's scheduling knobs
type Config struct {
	SyncSchedule  string
	SweepSchedule string
	WorkdayStart  int
	WorkdayEnd    int
	SheetsPerTick int
}

// New creates a driver and registers both schedules
func New(registry Registry, reconciler SheetReconciler, sweeper Sweeper, loc *time.Location, cfg Config) (*Driver, error) {
	d := &Driver{
		registry:      registry,
		reconciler:    reconciler,
		sweeper:       sweeper,
		loc:           loc,
		workdayStart:  cfg.WorkdayStart,
		workdayEnd:    cfg.WorkdayEnd,
		sheetsPerTick: cfg.SheetsPerTick,
		now:           time.Now,
	}

	// SkipIfStillRunning serializes overlapping ticks; a slow sheet
	// must not race a later tick on lastSent writes.
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger), cron.Recover(cron.DefaultLogger)),
	)
	if _, err := c.AddFunc(cfg.SyncSchedule, d.syncTick); err != nil {
		return nil, fmt.Errorf("registering sync schedule %q: %w", cfg.SyncSchedule, err)
	}
	if _, err := c.AddFunc(cfg.SweepSchedule, d.sweepTick); err != nil {
		return nil, fmt.Errorf("registering sweep schedule %q: %w", cfg.SweepSchedule, err)
	}
	d.cron = c
	return d, nil
}

// Start begins firing schedules
func (d *Driver) Start() {
	log.Printf("🕘 Scheduler started (workday %02d:00-%02d:00 %s)", d.workdayStart, d.workdayEnd, d.loc)
	d.cron.Start()
}

// Stop stops the schedules and returns once any running tick finishes
func (d *Driver) Stop() {
	ctx := d.cron.Stop()
	<-ctx.Done()
	log.Println("🛑 Scheduler stopped")
}

// InWorkingHours reports whether t falls inside the working-hours
// window, evaluated in the driver's fixed zone
func (d *Driver) InWorkingHours(t time.Time) bool {
	local := t.In(d.loc)
	switch local.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	hour := local.Hour()
	return hour >= d.workdayStart && hour < d.workdayEnd
}

// syncTick processes a bounded prefix of the sync queue. Invocations
// outside the window are idempotent no-ops.
func (d *Driver) syncTick() {
	now := d.now()
	if !d.InWorkingHours(now) {
		return
	}

	ids, err := d.registry.PopQueue(d.sheetsPerTick)
	if err != nil {
		log.Printf("[scheduler] popping sync queue: %v", err)
		return
	}
	if len(ids) == 0 {
		// Queue drained; refill from the registry and pick up the
		// first slice so a tick never goes idle while work exists.
		if _, err := d.registry.FillQueue(); err != nil {
			log.Printf("[scheduler] refilling sync queue: %v", err)
			return
		}
		if ids, err = d.registry.PopQueue(d.sheetsPerTick); err != nil {
			log.Printf("[scheduler] popping sync queue: %v", err)
			return
		}
	}

	for _, id := range ids {
		d.reconcileOne(context.Background(), id)
	}
}

// sweepTick runs the daily escalation sweep
func (d *Driver) sweepTick() {
	n, err := d.sweeper.ProcessDelayedTasks(context.Background())
	if err != nil {
		log.Printf("[scheduler] escalation sweep failed: %v", err)
		return
	}
	log.Printf("[scheduler] escalation sweep done, %d task(s) escalated", n)
}

// reconcileOne reconciles a single sheet, converting any failure into
// a logged outcome so the rest of the tick continues
func (d *Driver) reconcileOne(ctx context.Context, sheetID string) (outcome *reconcile.Outcome, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[scheduler] panic reconciling %s: %v", sheetID, r)
			ok = false
		}
	}()

	outcome, err := d.reconciler.ReconcileSheet(ctx, sheetID)
	if err != nil {
		log.Printf("[scheduler] reconciling %s failed: %v", sheetID, err)
		return nil, false
	}
	log.Printf("[scheduler] %s: %d project(s), %d task(s), %d sent, %d reported, %d failed",
		sheetID, outcome.Projects, outcome.Tasks, outcome.Sent, outcome.Reported, outcome.Failed)
	return outcome, true
}

// RunSync is the manual trigger: reconcile one sheet, or all
// registered sheets when sheetID is empty. It never propagates an
// error past its boundary.
func (d *Driver) RunSync(ctx context.Context, sheetID string) Summary {
	var ids []string
	if sheetID != "" {
		ids = []string{sheetID}
	} else {
		sheets, err := d.registry.ListSheets()
		if err != nil {
			log.Printf("[scheduler] listing sheets: %v", err)
			return Summary{Failed: 1}
		}
		for _, sh := range sheets {
			ids = append(ids, sh.ID)
		}
	}

	var summary Summary
	for _, id := range ids {
		outcome, ok := d.reconcileOne(ctx, id)
		if !ok {
			summary.Failed++
			continue
		}
		summary.Processed++
		summary.Sent += outcome.Sent
		summary.Reported += outcome.Reported
		summary.Failed += outcome.Failed
	}
	return summary
}

// RunSweep is the manual trigger for the escalation sweep
func (d *Driver) RunSweep(ctx context.Context) Summary {
	n, err := d.sweeper.ProcessDelayedTasks(ctx)
	if err != nil {
		log.Printf("[scheduler] escalation sweep failed: %v", err)
		return Summary{Failed: 1}
	}
	return Summary{Processed: n}
}
