// Package ledger records submitted exports so their operations can be
// followed up across runs.
package ledger

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

var ErrNotFound = errors.New("ledger: export not found")

// timeLayout keeps a fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type Record struct {
	ID          string
	Operation   string
	Description string
	Product     string
	Composite   string
	Bucket      string
	Prefix      string
	State       string
	Error       string
	SubmittedAt time.Time
	UpdatedAt   time.Time
}

// Finished reports whether the platform will not change the state again.
func (r Record) Finished() bool {
	switch r.State {
	case "SUCCEEDED", "FAILED", "CANCELLED":
		return true
	}
	return false
}

type Ledger struct {
	db *sql.DB
}

// Open opens (creating if needed) the sqlite database at path and brings
// its schema up to date.
func Open(path string) (*Ledger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Ledger{db: db}, nil
}

func migrateUp(db *sql.DB) error {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

func (l *Ledger) Close() error {
	return l.db.Close()
}

// Add stores r, assigning an id and timestamps when missing.
func (l *Ledger) Add(ctx context.Context, r Record) (Record, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if r.SubmittedAt.IsZero() {
		r.SubmittedAt = now
	}
	r.SubmittedAt = r.SubmittedAt.UTC()
	r.UpdatedAt = now

	_, err := l.db.ExecContext(ctx, `
		INSERT INTO exports (id, operation, description, product, composite, bucket, prefix, state, error, submitted_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Operation, r.Description, r.Product, r.Composite, r.Bucket, r.Prefix, r.State, r.Error,
		r.SubmittedAt.Format(timeLayout), r.UpdatedAt.Format(timeLayout))
	if err != nil {
		return Record{}, fmt.Errorf("failed to record export: %w", err)
	}
	return r, nil
}

func (l *Ledger) UpdateState(ctx context.Context, id, state, errMsg string) error {
	res, err := l.db.ExecContext(ctx, `UPDATE exports SET state = ?, error = ?, updated_at = ? WHERE id = ?`,
		state, errMsg, time.Now().UTC().Format(timeLayout), id)
	if err != nil {
		return fmt.Errorf("failed to update export %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// Get finds a record by id or by operation name.
func (l *Ledger) Get(ctx context.Context, idOrOperation string) (Record, error) {
	row := l.db.QueryRowContext(ctx, selectRecord+` WHERE id = ? OR operation = ?`, idOrOperation, idOrOperation)
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, idOrOperation)
	}
	return r, err
}

// List returns the most recent records first. A non-positive limit
// returns all of them.
func (l *Ledger) List(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := l.db.QueryContext(ctx, selectRecord+` ORDER BY submitted_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list exports: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

const selectRecord = `SELECT id, operation, description, product, composite, bucket, prefix, state, error, submitted_at, updated_at FROM exports`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(s scanner) (Record, error) {
	var r Record
	var submitted, updated string
	if err := s.Scan(&r.ID, &r.Operation, &r.Description, &r.Product, &r.Composite, &r.Bucket, &r.Prefix,
		&r.State, &r.Error, &submitted, &updated); err != nil {
		return Record{}, err
	}
	var err error
	if r.SubmittedAt, err = time.Parse(timeLayout, submitted); err != nil {
		return Record{}, fmt.Errorf("invalid submitted_at %q: %w", submitted, err)
	}
	if r.UpdatedAt, err = time.Parse(timeLayout, updated); err != nil {
		return Record{}, fmt.Errorf("invalid updated_at %q: %w", updated, err)
	}
	return r, nil
}
