// Package sqlstore implements storage.Driver over database/sql. It is
// database-agnostic and is embedded by the sqlite and postgres drivers.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/docweave/weave/pkg/session"
	"github.com/docweave/weave/pkg/storage"
)

// Dialect holds what differs between the supported databases.
type Dialect struct {
	Name string

	// Schema is executed once when the store is opened.
	Schema []string

	// Numbered placeholders ($1, $2) instead of ?.
	Numbered bool
}

// Store provides storage operations over a *sql.DB.
type Store struct {
	DB      *sql.DB
	dialect Dialect
}

// New runs the dialect's schema statements on db and returns a store.
func New(ctx context.Context, db *sql.DB, dialect Dialect) (*Store, error) {
	for _, stmt := range dialect.Schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return &Store{DB: db, dialect: dialect}, nil
}

const upsertQuery = `INSERT INTO sessions
	(id, kind, index_name, state, title, error, started_at, finished_at, records, decode_errors, payload)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (id) DO UPDATE SET
		kind = excluded.kind,
		index_name = excluded.index_name,
		state = excluded.state,
		title = excluded.title,
		error = excluded.error,
		started_at = excluded.started_at,
		finished_at = excluded.finished_at,
		records = excluded.records,
		decode_errors = excluded.decode_errors,
		payload = excluded.payload`

const summaryColumns = `id, kind, index_name, state, title, error, started_at, finished_at, records, decode_errors`

// Save inserts or replaces a record.
func (s *Store) Save(ctx context.Context, r *storage.Record) error {
	if r == nil {
		return errors.New("cannot store nil record")
	}
	if r.ID == "" {
		return errors.New("cannot store record without id")
	}

	finished := sql.NullTime{Time: r.FinishedAt.UTC(), Valid: !r.FinishedAt.IsZero()}
	payload := string(r.Payload)
	if payload == "" {
		payload = "null"
	}

	_, err := s.DB.ExecContext(ctx, s.rebind(upsertQuery),
		r.ID, string(r.Kind), r.Index, r.State, r.Title, r.Error,
		r.StartedAt.UTC(), finished, r.Records, r.DecodeErrors, payload,
	)
	if err != nil {
		return fmt.Errorf("failed to save session %s: %w", r.ID, err)
	}
	return nil
}

// Get retrieves a record with its payload.
func (s *Store) Get(ctx context.Context, id string) (*storage.Record, error) {
	row := s.DB.QueryRowContext(ctx,
		s.rebind(`SELECT `+summaryColumns+`, payload FROM sessions WHERE id = ?`), id)

	r := &storage.Record{}
	var payload []byte
	if err := scanSummary(row, &r.Summary, &payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.NotFoundError{ID: id}
		}
		return nil, fmt.Errorf("failed to get session %s: %w", id, err)
	}
	if len(payload) > 0 && string(payload) != "null" {
		r.Payload = payload
	}
	return r, nil
}

// List returns records newest first, without payloads.
func (s *Store) List(ctx context.Context, opts storage.ListOptions) ([]*storage.Record, error) {
	var (
		b    strings.Builder
		args []any
	)
	b.WriteString(`SELECT ` + summaryColumns + ` FROM sessions`)
	if opts.Kind != "" {
		b.WriteString(` WHERE kind = ?`)
		args = append(args, string(opts.Kind))
	}
	b.WriteString(` ORDER BY started_at DESC, id ASC`)
	if opts.Limit > 0 {
		b.WriteString(` LIMIT ?`)
		args = append(args, opts.Limit)
	}

	rows, err := s.DB.QueryContext(ctx, s.rebind(b.String()), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var out []*storage.Record
	for rows.Next() {
		r := &storage.Record{}
		if err := scanSummary(rows, &r.Summary); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return out, nil
}

// Delete removes a record.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.DB.ExecContext(ctx, s.rebind(`DELETE FROM sessions WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to delete session %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete session %s: %w", id, err)
	}
	if n == 0 {
		return storage.NotFoundError{ID: id}
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.DB.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSummary(row scanner, sum *session.Summary, extra ...any) error {
	var (
		kind     string
		finished sql.NullTime
	)
	dest := []any{
		&sum.ID, &kind, &sum.Index, &sum.State, &sum.Title, &sum.Error,
		&sum.StartedAt, &finished, &sum.Records, &sum.DecodeErrors,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return err
	}

	sum.Kind = session.Kind(kind)
	sum.StartedAt = sum.StartedAt.UTC()
	if finished.Valid {
		sum.FinishedAt = finished.Time.UTC()
		sum.DurationMs = sum.FinishedAt.Sub(sum.StartedAt).Milliseconds()
	}
	return nil
}

// rebind rewrites ? placeholders as $n for dialects that need it.
func (s *Store) rebind(query string) string {
	if !s.dialect.Numbered {
		return query
	}

	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

