package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cloud-shuttle/muster/internal/reconcile"
	"github.com/cloud-shuttle/muster/pkg/types"
)

type mockRegistry struct {
	sheets []string
	queue  []string
	fills  int
}

func (r *mockRegistry) ListSheets() ([]*types.Sheet, error) {
	var out []*types.Sheet
	for _, id := range r.sheets {
		out = append(out, &types.Sheet{ID: id})
	}
	return out, nil
}

func (r *mockRegistry) FillQueue() (int, error) {
	r.fills++
	r.queue = append([]string{}, r.sheets...)
	return len(r.queue), nil
}

func (r *mockRegistry) PopQueue(n int) ([]string, error) {
	if n > len(r.queue) {
		n = len(r.queue)
	}
	popped := r.queue[:n]
	r.queue = r.queue[n:]
	return popped, nil
}

type mockReconciler struct {
	reconciled []string
	failFor    map[string]error
	panicFor   string
}

func (m *mockReconciler) ReconcileSheet(ctx context.Context, sheetID string) (*reconcile.Outcome, error) {
	if sheetID == m.panicFor {
		panic("boom")
	}
	if err, ok := m.failFor[sheetID]; ok {
		return nil, err
	}
	m.reconciled = append(m.reconciled, sheetID)
	return &reconcile.Outcome{SheetID: sheetID, Projects: 1, Tasks: 2, Sent: 1}, nil
}

type mockSweeper struct {
	calls int
	err   error
}

func (m *mockSweeper) ProcessDelayedTasks(ctx context.Context) (int, error) {
	if m.err != nil {
		return 0, m.err
	}
	m.calls++
	return 3, nil
}

func testConfig() Config {
	return Config{
		SyncSchedule:  "*/30 * * * *",
		SweepSchedule: "0 9 * * *",
		WorkdayStart:  9,
		WorkdayEnd:    18,
		SheetsPerTick: 1,
	}
}

func newTestDriver(t *testing.T, reg *mockRegistry, rec *mockReconciler, sw *mockSweeper) *Driver {
	t.Helper()
	d, err := New(reg, rec, sw, time.UTC, testConfig())
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func TestNewRejectsBadSchedule(t *testing.T) {
	cfg := testConfig()
	cfg.SyncSchedule = "whenever"
	if _, err := New(&mockRegistry{}, &mockReconciler{}, &mockSweeper{}, time.UTC, cfg); err == nil {
		t.Error("accepted an unparseable schedule")
	}
}

func TestInWorkingHours(t *testing.T) {
	melbourne, err := time.LoadLocation("Australia/Melbourne")
	if err != nil {
		t.Fatal(err)
	}
	d, err := New(&mockRegistry{}, &mockReconciler{}, &mockSweeper{}, melbourne, testConfig())
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		t    time.Time
		want bool
	}{
		{"weekday mid morning", time.Date(2025, 6, 10, 10, 0, 0, 0, melbourne), true},
		{"weekday at opening hour", time.Date(2025, 6, 10, 9, 0, 0, 0, melbourne), true},
		{"weekday just before close", time.Date(2025, 6, 10, 17, 59, 0, 0, melbourne), true},
		{"weekday at closing hour", time.Date(2025, 6, 10, 18, 0, 0, 0, melbourne), false},
		{"weekday before opening", time.Date(2025, 6, 10, 8, 59, 0, 0, melbourne), false},
		{"saturday", time.Date(2025, 6, 14, 10, 0, 0, 0, melbourne), false},
		{"sunday", time.Date(2025, 6, 15, 10, 0, 0, 0, melbourne), false},
		// 01:00 UTC on a Tuesday is 11:00 in Melbourne; the window is
		// evaluated in the fixed zone, not the instant's own.
		{"utc instant inside melbourne window", time.Date(2025, 6, 10, 1, 0, 0, 0, time.UTC), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := d.InWorkingHours(tt.t); got != tt.want {
				t.Errorf("InWorkingHours(%v) = %v; want %v", tt.t, got, tt.want)
			}
		})
	}
}

func TestSyncTickOutsideWindowIsNoOp(t *testing.T) {
	reg := &mockRegistry{sheets: []string{"sheet-1"}}
	rec := &mockReconciler{}
	d := newTestDriver(t, reg, rec, &mockSweeper{})
	d.now = func() time.Time { return time.Date(2025, 6, 14, 10, 0, 0, 0, time.UTC) } // Saturday

	d.syncTick()

	if len(rec.reconciled) != 0 {
		t.Errorf("reconciled %v outside the window", rec.reconciled)
	}
	if reg.fills != 0 {
		t.Error("queue touched outside the window")
	}
}

func TestSyncTickDrainsQueueOneSheetAtATime(t *testing.T) {
	reg := &mockRegistry{sheets: []string{"sheet-1", "sheet-2"}}
	rec := &mockReconciler{}
	d := newTestDriver(t, reg, rec, &mockSweeper{})
	d.now = func() time.Time { return time.Date(2025, 6, 10, 10, 0, 0, 0, time.UTC) } // Tuesday

	// First tick finds an empty queue, refills, and takes one sheet.
	d.syncTick()
	if reg.fills != 1 {
		t.Fatalf("fills = %d; want 1", reg.fills)
	}
	if len(rec.reconciled) != 1 || rec.reconciled[0] != "sheet-1" {
		t.Fatalf("reconciled = %v; want [sheet-1]", rec.reconciled)
	}

	// Second tick pops the checkpointed remainder without refilling.
	d.syncTick()
	if reg.fills != 1 {
		t.Errorf("fills = %d; want still 1", reg.fills)
	}
	if len(rec.reconciled) != 2 || rec.reconciled[1] != "sheet-2" {
		t.Errorf("reconciled = %v; want [sheet-1 sheet-2]", rec.reconciled)
	}

	// Third tick wraps around to the start of a fresh cycle.
	d.syncTick()
	if reg.fills != 2 {
		t.Errorf("fills = %d; want 2", reg.fills)
	}
	if len(rec.reconciled) != 3 || rec.reconciled[2] != "sheet-1" {
		t.Errorf("reconciled = %v; want wrap to sheet-1", rec.reconciled)
	}
}

func TestRunSyncSingleSheet(t *testing.T) {
	reg := &mockRegistry{sheets: []string{"sheet-1", "sheet-2"}}
	rec := &mockReconciler{}
	d := newTestDriver(t, reg, rec, &mockSweeper{})

	summary := d.RunSync(context.Background(), "sheet-2")

	if summary.Processed != 1 || summary.Sent != 1 {
		t.Errorf("summary = %+v; want 1 processed, 1 sent", summary)
	}
	if len(rec.reconciled) != 1 || rec.reconciled[0] != "sheet-2" {
		t.Errorf("reconciled = %v; want [sheet-2]", rec.reconciled)
	}
}

func TestRunSyncAllSheetsConvertsFailures(t *testing.T) {
	reg := &mockRegistry{sheets: []string{"sheet-1", "sheet-2", "sheet-3"}}
	rec := &mockReconciler{failFor: map[string]error{"sheet-2": errors.New("quota exceeded")}}
	d := newTestDriver(t, reg, rec, &mockSweeper{})

	summary := d.RunSync(context.Background(), "")

	if summary.Processed != 2 {
		t.Errorf("Processed = %d; want 2", summary.Processed)
	}
	if summary.Failed != 1 {
		t.Errorf("Failed = %d; want 1", summary.Failed)
	}
}

func TestRunSyncRecoversPanic(t *testing.T) {
	reg := &mockRegistry{sheets: []string{"sheet-1", "sheet-2"}}
	rec := &mockReconciler{panicFor: "sheet-1"}
	d := newTestDriver(t, reg, rec, &mockSweeper{})

	summary := d.RunSync(context.Background(), "")

	if summary.Failed != 1 || summary.Processed != 1 {
		t.Errorf("summary = %+v; want the panic converted to one failure", summary)
	}
}

func TestRunSweep(t *testing.T) {
	sw := &mockSweeper{}
	d := newTestDriver(t, &mockRegistry{}, &mockReconciler{}, sw)

	summary := d.RunSweep(context.Background())
	if summary.Processed != 3 || sw.calls != 1 {
		t.Errorf("summary = %+v, calls = %d; want 3 processed from one sweep", summary, sw.calls)
	}

	sw.err = errors.New("store unavailable")
	summary = d.RunSweep(context.Background())
	if summary.Failed != 1 {
		t.Errorf("Failed = %d; want 1", summary.Failed)
	}
}
