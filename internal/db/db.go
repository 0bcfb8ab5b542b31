// Package db handles database operations for Muster
package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/cloud-shuttle/muster/pkg/types"
	_ "github.com/glebarez/go-sqlite"
)

// Store manages database operations
type Store struct {
	DB *sql.DB
}

// SheetStatus summarizes the stored tasks of one sheet
type SheetStatus struct {
	Total     int
	Open      int
	Completed int
	Blocked   int
	Overdue   int
}

// Open opens a SQLite database at the given path
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable foreign keys so unregistering a sheet cascades
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	// Enable WAL mode for better concurrent access
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Set busy timeout to handle lock contention gracefully
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	return &Store{DB: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.DB.Close()
}

// InitSchema creates the database schema
func (s *Store) InitSchema() error {
	schema := `
	-- Registered spreadsheets the reconciler tracks
	CREATE TABLE IF NOT EXISTS sheets (
		id TEXT PRIMARY KEY,
		title TEXT,
		registered_at INTEGER NOT NULL
	);

	-- Tasks mirror one row per (sheet, project, row position)
	CREATE TABLE IF NOT EXISTS tasks (
		sheet_id TEXT NOT NULL,
		project TEXT NOT NULL,
		row_num INTEGER NOT NULL,
		description TEXT,
		priority TEXT,
		points TEXT,
		status TEXT DEFAULT 'open',
		milestone TEXT,
		notes TEXT,
		owner_id TEXT,
		owner_name TEXT,
		owner_channel TEXT,
		manager_id TEXT,
		manager_name TEXT,
		manager_channel TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		start_date INTEGER,
		due_date INTEGER,
		completed_at INTEGER,
		blocked_at INTEGER,
		last_sent INTEGER,
		last_reported INTEGER,
		PRIMARY KEY (sheet_id, project, row_num),
		FOREIGN KEY (sheet_id) REFERENCES sheets(id) ON DELETE CASCADE
	);

	-- Pending sheet ids for the checkpointable sync queue
	CREATE TABLE IF NOT EXISTS sync_queue (
		sheet_id TEXT PRIMARY KEY,
		enqueued_at INTEGER NOT NULL,
		FOREIGN KEY (sheet_id) REFERENCES sheets(id) ON DELETE CASCADE
	);

	-- Indexes for common queries
	CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
	CREATE INDEX IF NOT EXISTS idx_tasks_due ON tasks(due_date);
	CREATE INDEX IF NOT EXISTS idx_tasks_project ON tasks(sheet_id, project);
	`

	_, err := s.DB.Exec(schema)
	return err
}

const taskColumns = `sheet_id, project, row_num,
	COALESCE(description, ''), COALESCE(priority, ''), COALESCE(points, ''),
	status, COALESCE(milestone, ''), COALESCE(notes, ''),
	COALESCE(owner_id, ''), COALESCE(owner_name, ''), COALESCE(owner_channel, ''),
	COALESCE(manager_id, ''), COALESCE(manager_name, ''), COALESCE(manager_channel, ''),
	created_at, updated_at, start_date, due_date,
	completed_at, blocked_at, last_sent, last_reported`

// UpsertTask inserts or updates a task by its composite key.
// Re-reading the same key updates, never duplicates. A nil
// LastSent/LastReported in the incoming task preserves the stored
// value; a non-nil one only moves it forward.
func (s *Store) UpsertTask(t *types.Task) error {
	_, err := s.DB.Exec(`
		INSERT INTO tasks (sheet_id, project, row_num,
			description, priority, points, status, milestone, notes,
			owner_id, owner_name, owner_channel,
			manager_id, manager_name, manager_channel,
			created_at, updated_at, start_date, due_date,
			completed_at, blocked_at, last_sent, last_reported)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(sheet_id, project, row_num) DO UPDATE SET
			description = excluded.description,
			priority = excluded.priority,
			points = excluded.points,
			status = excluded.status,
			milestone = excluded.milestone,
			notes = excluded.notes,
			owner_id = excluded.owner_id,
			owner_name = excluded.owner_name,
			owner_channel = excluded.owner_channel,
			manager_id = excluded.manager_id,
			manager_name = excluded.manager_name,
			manager_channel = excluded.manager_channel,
			updated_at = excluded.updated_at,
			start_date = excluded.start_date,
			due_date = excluded.due_date,
			completed_at = excluded.completed_at,
			blocked_at = excluded.blocked_at,
			last_sent = COALESCE(MAX(excluded.last_sent, tasks.last_sent), excluded.last_sent, tasks.last_sent),
			last_reported = COALESCE(MAX(excluded.last_reported, tasks.last_reported), excluded.last_reported, tasks.last_reported)
	`,
		t.Key.SheetID, t.Key.Project, t.Key.Row,
		t.Description, t.Priority, t.Points, string(t.Status), t.Milestone, t.Notes,
		t.Owner.ID, t.Owner.Name, t.Owner.Channel,
		t.Manager.ID, t.Manager.Name, t.Manager.Channel,
		t.CreatedAt.Unix(), t.UpdatedAt.Unix(), unixOrNil(t.StartDate), unixOrNil(t.DueDate),
		unixOrNil(t.CompletedAt), unixOrNil(t.BlockedAt), unixOrNil(t.LastSent), unixOrNil(t.LastReported))
	if err != nil {
		return fmt.Errorf("upserting task %s: %w", t.Key, err)
	}
	return nil
}

// GetTask retrieves a task by composite key. Returns nil, nil when the
// key has never been seen.
func (s *Store) GetTask(key types.TaskKey) (*types.Task, error) {
	row := s.DB.QueryRow(`
		SELECT `+taskColumns+`
		FROM tasks
		WHERE sheet_id = ? AND project = ? AND row_num = ?
	`, key.SheetID, key.Project, key.Row)

	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting task %s: %w", key, err)
	}
	return t, nil
}

// ListBySheet returns every stored task for one sheet
func (s *Store) ListBySheet(sheetID string) ([]*types.Task, error) {
	return s.listTasks(`
		SELECT `+taskColumns+`
		FROM tasks
		WHERE sheet_id = ?
		ORDER BY project, row_num
	`, sheetID)
}

// ListByProject returns the stored tasks of one project within a sheet
func (s *Store) ListByProject(sheetID, project string) ([]*types.Task, error) {
	return s.listTasks(`
		SELECT `+taskColumns+`
		FROM tasks
		WHERE sheet_id = ? AND project = ?
		ORDER BY row_num
	`, sheetID, project)
}

// ListOverdue returns tasks whose due date is at least threshold in the
// past and that are not completed
func (s *Store) ListOverdue(now time.Time, threshold time.Duration) ([]*types.Task, error) {
	cutoff := now.Add(-threshold).Unix()
	return s.listTasks(`
		SELECT `+taskColumns+`
		FROM tasks
		WHERE due_date IS NOT NULL AND due_date <= ? AND status != 'completed'
		ORDER BY due_date
	`, cutoff)
}

// ListDueSoon returns open tasks due within the window from now
func (s *Store) ListDueSoon(now time.Time, window time.Duration) ([]*types.Task, error) {
	return s.listTasks(`
		SELECT `+taskColumns+`
		FROM tasks
		WHERE due_date IS NOT NULL AND due_date > ? AND due_date <= ? AND status = 'open'
		ORDER BY due_date
	`, now.Unix(), now.Add(window).Unix())
}

// ListBlocked returns tasks currently resolved as blocked
func (s *Store) ListBlocked() ([]*types.Task, error) {
	return s.listTasks(`
		SELECT ` + taskColumns + `
		FROM tasks
		WHERE status = 'blocked'
		ORDER BY sheet_id, project, row_num
	`)
}

func (s *Store) listTasks(query string, args ...interface{}) ([]*types.Task, error) {
	rows, err := s.DB.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*types.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTask(sc scanner) (*types.Task, error) {
	var t types.Task
	var status string
	var createdAt, updatedAt int64
	var startDate, dueDate, completedAt, blockedAt, lastSent, lastReported sql.NullInt64

	err := sc.Scan(
		&t.Key.SheetID, &t.Key.Project, &t.Key.Row,
		&t.Description, &t.Priority, &t.Points, &status, &t.Milestone, &t.Notes,
		&t.Owner.ID, &t.Owner.Name, &t.Owner.Channel,
		&t.Manager.ID, &t.Manager.Name, &t.Manager.Channel,
		&createdAt, &updatedAt, &startDate, &dueDate,
		&completedAt, &blockedAt, &lastSent, &lastReported,
	)
	if err != nil {
		return nil, err
	}

	t.Status = types.Status(status)
	t.CreatedAt = time.Unix(createdAt, 0).UTC()
	t.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	t.StartDate = timeOrNil(startDate)
	t.DueDate = timeOrNil(dueDate)
	t.CompletedAt = timeOrNil(completedAt)
	t.BlockedAt = timeOrNil(blockedAt)
	t.LastSent = timeOrNil(lastSent)
	t.LastReported = timeOrNil(lastReported)
	return &t, nil
}

func unixOrNil(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.Unix()
}

func timeOrNil(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(v.Int64, 0).UTC()
	return &t
}

// RegisterSheet adds a spreadsheet to the registry
func (s *Store) RegisterSheet(id, title string) (*types.Sheet, error) {
	now := time.Now()
	_, err := s.DB.Exec(`
		INSERT INTO sheets (id, title, registered_at)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET title = excluded.title
	`, id, title, now.Unix())
	if err != nil {
		return nil, fmt.Errorf("registering sheet: %w", err)
	}
	return &types.Sheet{ID: id, Title: title, RegisteredAt: now}, nil
}

// UnregisterSheet removes a spreadsheet; its tasks and any queue entry
// cascade away with it
func (s *Store) UnregisterSheet(id string) error {
	res, err := s.DB.Exec(`DELETE FROM sheets WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("unregistering sheet: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("sheet %s is not registered", id)
	}
	return nil
}

// ListSheets returns all registered sheets
func (s *Store) ListSheets() ([]*types.Sheet, error) {
	rows, err := s.DB.Query(`
		SELECT id, COALESCE(title, ''), registered_at
		FROM sheets
		ORDER BY registered_at
	`)
	if err != nil {
		return nil, fmt.Errorf("querying sheets: %w", err)
	}
	defer rows.Close()

	var sheets []*types.Sheet
	for rows.Next() {
		var sh types.Sheet
		var registeredAt int64
		if err := rows.Scan(&sh.ID, &sh.Title, &registeredAt); err != nil {
			return nil, fmt.Errorf("scanning sheet: %w", err)
		}
		sh.RegisteredAt = time.Unix(registeredAt, 0).UTC()
		sheets = append(sheets, &sh)
	}
	return sheets, rows.Err()
}

// GetSheetStatus returns stored-task counts for one sheet
func (s *Store) GetSheetStatus(sheetID string, now time.Time) (*SheetStatus, error) {
	status := &SheetStatus{}
	rows, err := s.DB.Query(`
		SELECT status, COUNT(*) FROM tasks WHERE sheet_id = ? GROUP BY status
	`, sheetID)
	if err != nil {
		return nil, fmt.Errorf("querying status: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var taskStatus string
		var count int
		if err := rows.Scan(&taskStatus, &count); err != nil {
			continue
		}
		switch types.Status(taskStatus) {
		case types.StatusOpen:
			status.Open = count
		case types.StatusCompleted:
			status.Completed = count
		case types.StatusBlocked:
			status.Blocked = count
		}
	}
	status.Total = status.Open + status.Completed + status.Blocked

	err = s.DB.QueryRow(`
		SELECT COUNT(*) FROM tasks
		WHERE sheet_id = ? AND due_date IS NOT NULL AND due_date < ? AND status != 'completed'
	`, sheetID, now.Unix()).Scan(&status.Overdue)
	if err != nil {
		return nil, fmt.Errorf("counting overdue: %w", err)
	}

	return status, nil
}
