package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS insead_events (
	id             UUID PRIMARY KEY,
	unique_id      TEXT NOT NULL UNIQUE,
	title          TEXT NOT NULL,
	url            TEXT NOT NULL,
	date           DATE,
	location       TEXT NOT NULL DEFAULT '',
	region_related BOOLEAN NOT NULL DEFAULT FALSE,
	added_at       TIMESTAMPTZ,
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// Postgres implements Store on the insead_events table
type Postgres struct {
	pool *pgxpool.Pool
}

// ConnectPostgres opens a pool and verifies the connection
func ConnectPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Postgres{pool: pool}, nil
}

// EnsureSchema creates the events table if it does not exist
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// FindByUniqueID selects the row for uniqueID
func (p *Postgres) FindByUniqueID(ctx context.Context, uniqueID string) (*Record, error) {
	var rec Record
	var id uuid.UUID
	var addedAt *time.Time

	err := p.pool.QueryRow(ctx,
		`SELECT id, unique_id, title, url, COALESCE(to_char(date, 'YYYY-MM-DD'), ''),
		        location, region_related, added_at
		 FROM insead_events WHERE unique_id = $1`,
		uniqueID,
	).Scan(&id, &rec.UniqueID, &rec.Title, &rec.URL, &rec.Date, &rec.Location, &rec.RegionRelated, &addedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get event: %w", err)
	}

	rec.ID = id.String()
	if addedAt != nil {
		rec.AddedAt = addedAt.UTC()
	}
	return &rec, nil
}

// Create inserts a new row, failing with ErrExists if the unique id is taken
func (p *Postgres) Create(ctx context.Context, rec Record) (string, error) {
	var id uuid.UUID
	err := p.pool.QueryRow(ctx,
		`INSERT INTO insead_events (id, unique_id, title, url, date, location, region_related, added_at)
		 VALUES ($1, $2, $3, $4, NULLIF($5, '')::date, $6, $7, $8)
		 ON CONFLICT (unique_id) DO NOTHING
		 RETURNING id`,
		uuid.New(), rec.UniqueID, rec.Title, rec.URL, rec.Date, rec.Location, rec.RegionRelated, nullTime(rec),
	).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("failed to create event %s: %w", rec.UniqueID, ErrExists)
		}
		return "", fmt.Errorf("failed to create event: %w", err)
	}
	return id.String(), nil
}

// Update rewrites the row with the given id
func (p *Postgres) Update(ctx context.Context, id string, rec Record) error {
	rowID, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("invalid record id %q: %w", id, err)
	}

	tag, err := p.pool.Exec(ctx,
		`UPDATE insead_events
		 SET unique_id = $2, title = $3, url = $4, date = NULLIF($5, '')::date,
		     location = $6, region_related = $7, added_at = $8, updated_at = NOW()
		 WHERE id = $1`,
		rowID, rec.UniqueID, rec.Title, rec.URL, rec.Date, rec.Location, rec.RegionRelated, nullTime(rec),
	)
	if err != nil {
		return fmt.Errorf("failed to update event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Close closes the connection pool
func (p *Postgres) Close() error {
	if p.pool != nil {
		p.pool.Close()
	}
	return nil
}

// nullTime maps an unset AddedAt to SQL NULL
func nullTime(rec Record) any {
	if rec.AddedAt.IsZero() {
		return nil
	}
	return rec.AddedAt.UTC()
}
