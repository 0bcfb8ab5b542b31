package db

import (
	"fmt"
	"time"
)

// FillQueue enqueues every registered sheet that is not already queued.
// Called when a sync tick finds the queue empty, so a bounded number of
// sheets can be processed per tick and the rest picked up next tick.
func (s *Store) FillQueue() (int, error) {
	res, err := s.DB.Exec(`
		INSERT INTO sync_queue (sheet_id, enqueued_at)
		SELECT id, ? FROM sheets
		WHERE id NOT IN (SELECT sheet_id FROM sync_queue)
	`, time.Now().Unix())
	if err != nil {
		return 0, fmt.Errorf("filling sync queue: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("getting affected rows: %w", err)
	}
	return int(n), nil
}

// PopQueue removes and returns up to n sheet ids in enqueue order
func (s *Store) PopQueue(n int) ([]string, error) {
	tx, err := s.DB.Begin()
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.Query(`
		SELECT sheet_id FROM sync_queue
		ORDER BY enqueued_at, sheet_id
		LIMIT ?
	`, n)
	if err != nil {
		return nil, fmt.Errorf("querying sync queue: %w", err)
	}

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning queue entry: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sync queue: %w", err)
	}

	for _, id := range ids {
		if _, err := tx.Exec(`DELETE FROM sync_queue WHERE sheet_id = ?`, id); err != nil {
			return nil, fmt.Errorf("dequeuing %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing dequeue: %w", err)
	}
	return ids, nil
}

// QueueLen returns the number of pending sheets
func (s *Store) QueueLen() (int, error) {
	var n int
	if err := s.DB.QueryRow(`SELECT COUNT(*) FROM sync_queue`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting sync queue: %w", err)
	}
	return n, nil
}
