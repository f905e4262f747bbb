// Package store provides durable JobStore implementations.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/kilianp07/techdispatch/core/model"
	corestore "github.com/kilianp07/techdispatch/core/store"
	_ "modernc.org/sqlite"
)

// SQLiteStore persists jobs to a SQLite database. The full record is kept
// as JSON next to the columns used for filtering.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the database at path and ensures schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// modernc serializes writers; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	if err := migrate(db); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("close db: %v (schema err: %w)", cerr, err)
		}
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func migrate(db *sql.DB) error {
	schema := `CREATE TABLE IF NOT EXISTS jobs (
        id TEXT PRIMARY KEY,
        status TEXT NOT NULL,
        tier TEXT NOT NULL,
        assigned_technician TEXT NOT NULL DEFAULT '',
        created_at INTEGER NOT NULL,
        updated_at INTEGER NOT NULL,
        record TEXT NOT NULL
    );`
	if _, err := db.Exec(schema); err != nil {
		return err
	}
	// Databases created before the technician column existed.
	has, err := hasColumn(db, "jobs", "assigned_technician")
	if err != nil {
		return err
	}
	if !has {
		if _, err := db.Exec(`ALTER TABLE jobs ADD COLUMN assigned_technician TEXT NOT NULL DEFAULT ''`); err != nil {
			return err
		}
		if _, err := db.Exec(`UPDATE jobs SET assigned_technician = COALESCE(json_extract(record, '$.assigned_technician'), '')`); err != nil {
			return err
		}
	}
	for _, stmt := range []string{
		`CREATE INDEX IF NOT EXISTS jobs_status ON jobs (status);`,
		`CREATE INDEX IF NOT EXISTS jobs_technician ON jobs (assigned_technician);`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func hasColumn(db *sql.DB, table, column string) (bool, error) {
	rows, err := db.Query(`SELECT name FROM pragma_table_info(?)`, table)
	if err != nil {
		return false, err
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}

// Save inserts or replaces the job record.
func (s *SQLiteStore) Save(ctx context.Context, j model.Job) error {
	b, err := json.Marshal(j)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO jobs (id, status, tier, assigned_technician, created_at, updated_at, record)
         VALUES (?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(id) DO UPDATE SET
            status = excluded.status,
            tier = excluded.tier,
            assigned_technician = excluded.assigned_technician,
            updated_at = excluded.updated_at,
            record = excluded.record`,
		j.ID, j.Status.String(), j.Tier.String(), j.AssignedTechnician, j.CreatedAt.UnixNano(), j.UpdatedAt.UnixNano(), string(b))
	if err != nil {
		return fmt.Errorf("save job %s: %w", j.ID, err)
	}
	return nil
}

// Get loads one job.
func (s *SQLiteStore) Get(ctx context.Context, id string) (model.Job, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT record FROM jobs WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Job{}, corestore.ErrNotFound
	}
	if err != nil {
		return model.Job{}, err
	}
	var j model.Job
	if err := json.Unmarshal([]byte(data), &j); err != nil {
		return model.Job{}, fmt.Errorf("unmarshal job %s: %w", id, err)
	}
	return j, nil
}

// List returns matching jobs ordered by creation time then id.
func (s *SQLiteStore) List(ctx context.Context, q corestore.Query) ([]model.Job, error) {
	var args []any
	query := `SELECT record FROM jobs WHERE 1=1`
	if len(q.Status) > 0 {
		marks := make([]string, len(q.Status))
		for i, st := range q.Status {
			marks[i] = "?"
			args = append(args, st.String())
		}
		query += ` AND status IN (` + strings.Join(marks, ",") + `)`
	}
	if q.Tier != nil {
		query += ` AND tier = ?`
		args = append(args, q.Tier.String())
	}
	if q.TechnicianID != "" {
		query += ` AND assigned_technician = ?`
		args = append(args, q.TechnicianID)
	}
	query += ` ORDER BY created_at, id`
	if q.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, q.Limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []model.Job
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var j model.Job
		if err := json.Unmarshal([]byte(data), &j); err != nil {
			return nil, fmt.Errorf("unmarshal job: %w", err)
		}
		res = append(res, j)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }
