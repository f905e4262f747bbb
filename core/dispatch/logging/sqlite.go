package logging

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"
)

// Technician roles stored next to a transition.
const (
	roleAssigned = "assigned"
	roleOffered  = "offered"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS job_transitions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ts INTEGER NOT NULL,
		job_id TEXT NOT NULL,
		tier TEXT NOT NULL,
		to_status TEXT NOT NULL,
		record TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS job_transitions_job ON job_transitions (job_id)`,
	`CREATE TABLE IF NOT EXISTS transition_technicians (
		transition_id INTEGER NOT NULL REFERENCES job_transitions (id),
		technician_id TEXT NOT NULL,
		role TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS transition_technicians_tech ON transition_technicians (technician_id)`,
}

// SQLiteStore persists transition records to a SQLite database. Every
// technician named by a record, assigned or offered, gets a row in
// transition_technicians so technician queries stay in SQL.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the database at path and ensures schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	for _, stmt := range sqliteSchema {
		if _, err := db.Exec(stmt); err != nil {
			if cerr := db.Close(); cerr != nil {
				return nil, fmt.Errorf("close db: %v (schema err: %w)", cerr, err)
			}
			return nil, fmt.Errorf("journal schema: %w", err)
		}
	}
	return &SQLiteStore{db: db}, nil
}

// Append writes the record and its technician links in one transaction.
func (s *SQLiteStore) Append(ctx context.Context, rec LogRecord) (err error) {
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	res, err := tx.ExecContext(ctx,
		`INSERT INTO job_transitions (ts, job_id, tier, to_status, record) VALUES (?, ?, ?, ?, ?)`,
		rec.Timestamp.UnixNano(), rec.JobID, rec.Tier.String(), rec.To.String(), string(b))
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	link := func(tech, role string) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO transition_technicians (transition_id, technician_id, role) VALUES (?, ?, ?)`,
			id, tech, role)
		return err
	}
	if rec.TechnicianID != "" {
		if err = link(rec.TechnicianID, roleAssigned); err != nil {
			return err
		}
	}
	for _, c := range rec.Candidates {
		if err = link(c, roleOffered); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Query returns records matching q in insertion order.
func (s *SQLiteStore) Query(ctx context.Context, q LogQuery) ([]LogRecord, error) {
	var args []any
	query := `SELECT record FROM job_transitions t WHERE 1=1`
	if !q.Start.IsZero() {
		query += ` AND t.ts >= ?`
		args = append(args, q.Start.UnixNano())
	}
	if !q.End.IsZero() {
		query += ` AND t.ts <= ?`
		args = append(args, q.End.UnixNano())
	}
	if q.JobID != "" {
		query += ` AND t.job_id = ?`
		args = append(args, q.JobID)
	}
	if q.To != nil {
		query += ` AND t.to_status = ?`
		args = append(args, q.To.String())
	}
	if q.TechnicianID != "" {
		query += ` AND EXISTS (SELECT 1 FROM transition_technicians x WHERE x.transition_id = t.id AND x.technician_id = ?)`
		args = append(args, q.TechnicianID)
	}
	query += ` ORDER BY t.id`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []LogRecord
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var r LogRecord
		if err := json.Unmarshal([]byte(data), &r); err != nil {
			return nil, fmt.Errorf("unmarshal record: %w", err)
		}
		res = append(res, r)
	}
	return res, rows.Err()
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }
