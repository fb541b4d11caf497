// Package sqlite keeps the sync run journal: one row per calendar pair per
// reconciliation pass, so `larksync history` can show what each tenant's
// sessions have been doing.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/larksync/larksync/internal/syncer"
)

const DriverName = "sqlite3"

type Storage struct {
	db *sqlx.DB
}

func NewStorage(db *sql.DB) (*Storage, error) {
	s := &Storage{
		db: sqlx.NewDb(db, DriverName),
	}
	if err := s.RunMigrations(); err != nil {
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}
	return s, nil
}

func (s Storage) RecordRun(ctx context.Context, configID string, startedAt time.Time, res syncer.ReconcileResult) error {
	detail := make([]string, len(res.Errors))
	for i, err := range res.Errors {
		detail[i] = err.Error()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (config_id, pair, created, preserved, deleted, failed, error_detail, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, configID, res.Pair.String(), res.Created, res.Preserved, res.Deleted,
		len(res.Errors), strings.Join(detail, "\n"), startedAt.UTC())
	return err
}

// RecentRuns returns the newest journal entries, optionally filtered by
// configuration.
func (s Storage) RecentRuns(ctx context.Context, configID string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT config_id, pair, created, preserved, deleted, failed, error_detail, started_at
		FROM runs
	`
	var args []interface{}
	if configID != "" {
		query += ` WHERE config_id = ?`
		args = append(args, configID)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	var runs []Run
	err := s.db.SelectContext(ctx, &runs, query, args...)
	return runs, err
}
