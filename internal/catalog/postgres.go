package catalog

import (
	"context"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var _ Catalog = (*Postgres)(nil)

// Postgres persists entries in a recordings table behind a pgx pool.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	if err := runMigrations(databaseURL); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

func runMigrations(databaseURL string) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load migration source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, databaseURL)
	if err != nil {
		return fmt.Errorf("initialize migrations: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

func (p *Postgres) Close() {
	p.pool.Close()
}

func (p *Postgres) Append(ctx context.Context, e Entry) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return &PersistenceError{Op: "append", Err: err}
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO recordings (id, filename, content_ref, created_at, duration_seconds, session_id)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		e.ID, e.Filename, e.ContentRef, e.CreatedAt, e.DurationSeconds, e.SessionID,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return &PersistenceError{Op: "append", Err: ErrDuplicateID}
		}
		return &PersistenceError{Op: "append", Err: err}
	}

	if err := tx.Commit(ctx); err != nil {
		return &PersistenceError{Op: "append", Err: err}
	}
	return nil
}

func (p *Postgres) List(ctx context.Context) ([]Entry, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, filename, content_ref, created_at, duration_seconds, session_id
		FROM recordings`)
	if err != nil {
		return nil, fmt.Errorf("list recordings: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Filename, &e.ContentRef, &e.CreatedAt, &e.DurationSeconds, &e.SessionID); err != nil {
			return nil, fmt.Errorf("scan recording: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recordings: %w", err)
	}
	return out, nil
}

func (p *Postgres) Remove(ctx context.Context, id string) (Entry, bool, error) {
	var e Entry
	err := p.pool.QueryRow(ctx, `
		DELETE FROM recordings WHERE id = $1
		RETURNING id, filename, content_ref, created_at, duration_seconds, session_id`,
		id,
	).Scan(&e.ID, &e.Filename, &e.ContentRef, &e.CreatedAt, &e.DurationSeconds, &e.SessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entry{}, false, nil
		}
		return Entry{}, false, &PersistenceError{Op: "remove", Err: err}
	}
	return e, true, nil
}
