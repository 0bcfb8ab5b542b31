// Package search provides full-text search over the task mirror using
// SQLite FTS5
package search

import (
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	"github.com/cloud-shuttle/muster/internal/db"
	"github.com/cloud-shuttle/muster/pkg/types"
)

// Searcher indexes and queries the stored task mirror. It shares the
// store's connection, so the index lives in the same database file.
type Searcher struct {
	db *sql.DB
}

// Result is one search hit
type Result struct {
	Key     types.TaskKey `json:"key"`
	Owner   string        `json:"owner"`
	Status  string        `json:"status"`
	Snippet string        `json:"snippet"`
	Rank    float64       `json:"rank"`
}

// New creates a searcher over the store's database
func New(store *db.Store) *Searcher {
	return &Searcher{db: store.DB}
}

// InitSchema creates the FTS5 virtual table
func (s *Searcher) InitSchema() error {
	_, err := s.db.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS tasks_fts USING fts5(
			sheet_id UNINDEXED,
			project,
			row_num UNINDEXED,
			description,
			notes,
			owner_name,
			milestone,
			status UNINDEXED
		)
	`)
	if err != nil {
		return fmt.Errorf("creating tasks_fts table: %w", err)
	}
	return nil
}

// Reindex rebuilds the index from the task mirror. The mirror is small
// enough that a full rebuild beats keeping triggers in sync.
func (s *Searcher) Reindex() (int, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("beginning reindex: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM tasks_fts`); err != nil {
		return 0, fmt.Errorf("clearing index: %w", err)
	}
	res, err := tx.Exec(`
		INSERT INTO tasks_fts (sheet_id, project, row_num, description, notes, owner_name, milestone, status)
		SELECT sheet_id, project, row_num,
			COALESCE(description, ''), COALESCE(notes, ''),
			COALESCE(owner_name, ''), COALESCE(milestone, ''), status
		FROM tasks
	`)
	if err != nil {
		return 0, fmt.Errorf("populating index: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing reindex: %w", err)
	}

	n, _ := res.RowsAffected()
	return int(n), nil
}

// Search runs a full-text query over the index, best matches first
func (s *Searcher) Search(query string, limit int) ([]Result, error) {
	sanitized := sanitizeQuery(query)
	if sanitized == "" {
		return nil, nil
	}
	if limit < 1 {
		limit = 20
	}

	rows, err := s.db.Query(`
		SELECT sheet_id, project, row_num, owner_name, status,
			snippet(tasks_fts, 3, '[', ']', '…', 12),
			bm25(tasks_fts)
		FROM tasks_fts
		WHERE tasks_fts MATCH ?
		ORDER BY bm25(tasks_fts)
		LIMIT ?
	`, sanitized, limit)
	if err != nil {
		return nil, fmt.Errorf("searching %q: %w", query, err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.Key.SheetID, &r.Key.Project, &r.Key.Row,
			&r.Owner, &r.Status, &r.Snippet, &r.Rank); err != nil {
			return nil, fmt.Errorf("scanning result: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

var queryTokens = regexp.MustCompile(`[\p{L}\p{N}_]+`)

// sanitizeQuery strips FTS5 operator syntax so free text from the CLI
// cannot produce a syntax error. Each token becomes a prefix match.
func sanitizeQuery(query string) string {
	tokens := queryTokens.FindAllString(query, -1)
	if len(tokens) == 0 {
		return ""
	}
	for i, tok := range tokens {
		tokens[i] = `"` + tok + `"*`
	}
	return strings.Join(tokens, " ")
}
