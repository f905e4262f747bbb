// Package logging keeps an append-only journal of committed job
// transitions.
package logging

import (
	"context"
	"fmt"
	"time"

	"github.com/kilianp07/techdispatch/core/model"
)

// LogRecord captures one committed transition.
type LogRecord struct {
	Timestamp    time.Time    `json:"timestamp"`
	JobID        string       `json:"job_id"`
	Tier         model.Tier   `json:"tier"`
	From         model.Status `json:"from"`
	To           model.Status `json:"to"`
	Level        int          `json:"escalation_level"`
	TechnicianID string       `json:"technician_id,omitempty"`
	Candidates   []string     `json:"candidates,omitempty"`
	Reason       string       `json:"reason,omitempty"`
}

// LogQuery defines filters for retrieving records.
type LogQuery struct {
	Start        time.Time
	End          time.Time
	JobID        string
	TechnicianID string
	To           *model.Status
}

// Matches reports whether r passes every filter of q. A technician filter
// matches both the assigned technician and the offered candidates.
func (q LogQuery) Matches(r LogRecord) bool {
	if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Timestamp.After(q.End) {
		return false
	}
	if q.JobID != "" && r.JobID != q.JobID {
		return false
	}
	if q.To != nil && r.To != *q.To {
		return false
	}
	if q.TechnicianID != "" && r.TechnicianID != q.TechnicianID {
		found := false
		for _, id := range r.Candidates {
			if id == q.TechnicianID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// LogStore persists LogRecords and supports querying.
type LogStore interface {
	Append(ctx context.Context, rec LogRecord) error
	Query(ctx context.Context, q LogQuery) ([]LogRecord, error)
	Close() error
}

// Config selects the journal backend.
type Config struct {
	// Backend is "jsonl", "sqlite" or empty for no journal.
	Backend    string `json:"backend"`
	Path       string `json:"path"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
}

// SetDefaults fills rotation settings for the jsonl backend.
func (c *Config) SetDefaults() {
	if c.Backend != "jsonl" {
		return
	}
	if c.MaxSizeMB == 0 {
		c.MaxSizeMB = 10
	}
	if c.MaxBackups == 0 {
		c.MaxBackups = 3
	}
	if c.MaxAgeDays == 0 {
		c.MaxAgeDays = 28
	}
}

// Validate checks the backend name and path.
func (c Config) Validate() error {
	switch c.Backend {
	case "", "jsonl", "sqlite":
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	if c.Backend != "" && c.Path == "" {
		return fmt.Errorf("path is required for backend %s", c.Backend)
	}
	return nil
}

// Open creates the store selected by cfg. It returns nil, nil when the
// journal is disabled.
func Open(cfg Config) (LogStore, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Backend {
	case "jsonl":
		return NewRotatingJSONLStore(cfg.Path, cfg.MaxSizeMB, cfg.MaxBackups, cfg.MaxAgeDays)
	case "sqlite":
		return NewSQLiteStore(cfg.Path)
	}
	return nil, nil
}
