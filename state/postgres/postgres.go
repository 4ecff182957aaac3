// Package postgres persists document stage records in Postgres.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver

	"papervoice/state"
)

// Open connects to Postgres through the pgx stdlib driver and verifies the
// connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(1 * time.Hour)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// Store implements state.Store on a documents table keyed by document id.
type Store struct{ DB *sql.DB }

func New(db *sql.DB) *Store { return &Store{DB: db} }

// EnsureSchema creates the documents table when it does not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	const q = `
create table if not exists documents (
	doc_id     text primary key,
	stage      text not null,
	detail     text not null default '',
	updated_at timestamptz not null default now()
)`
	if _, err := s.DB.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("create documents table: %w", err)
	}
	return nil
}

func (s *Store) Transition(ctx context.Context, docID string, stage state.Stage, detail string) error {
	const q = `
insert into documents(doc_id, stage, detail, updated_at)
values ($1,$2,$3,now())
on conflict (doc_id)
do update set stage=excluded.stage, detail=excluded.detail, updated_at=now()`
	if _, err := s.DB.ExecContext(ctx, q, docID, string(stage), detail); err != nil {
		return fmt.Errorf("record stage %s for %s: %w", stage, docID, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, docID string) (state.Record, error) {
	const q = `select stage, detail, updated_at from documents where doc_id=$1`
	rec := state.Record{DocID: docID}
	var stage string
	err := s.DB.QueryRowContext(ctx, q, docID).Scan(&stage, &rec.Detail, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return state.Record{}, state.ErrNotFound
	}
	if err != nil {
		return state.Record{}, fmt.Errorf("load stage for %s: %w", docID, err)
	}
	rec.Stage = state.Stage(stage)
	return rec, nil
}

var _ state.Store = (*Store)(nil)
