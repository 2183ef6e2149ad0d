package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

// Bootstrap creates the schema. The uniqueness constraints here are load
// bearing: purchases are unique per (user_id, listing_id) so duplicate
// crediting is rejected by the database itself, and orders carry unique
// external and idempotency refs.
func (s *Store) Bootstrap(ctx context.Context) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS listings (
			id                TEXT PRIMARY KEY,
			seller_id         TEXT NOT NULL,
			kind              TEXT NOT NULL,
			title             TEXT NOT NULL DEFAULT '',
			price             BIGINT NOT NULL CHECK (price >= 0),
			currency          TEXT NOT NULL DEFAULT 'INR',
			moderation_status TEXT NOT NULL DEFAULT 'pending',
			visibility        TEXT NOT NULL DEFAULT 'public',
			created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS orders (
			id              TEXT PRIMARY KEY,
			user_id         TEXT NOT NULL,
			external_ref    TEXT NOT NULL UNIQUE,
			total_amount    BIGINT NOT NULL,
			currency        TEXT NOT NULL,
			status          TEXT NOT NULL DEFAULT 'PENDING',
			payment_ref     TEXT NOT NULL DEFAULT '',
			idempotency_key TEXT NOT NULL UNIQUE,
			created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			expires_at      TIMESTAMPTZ NOT NULL,
			updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS order_items (
			id         BIGSERIAL PRIMARY KEY,
			order_id   TEXT NOT NULL REFERENCES orders(id),
			listing_id TEXT NOT NULL REFERENCES listings(id),
			price      BIGINT NOT NULL,
			UNIQUE (order_id, listing_id)
		)`,
		`CREATE TABLE IF NOT EXISTS purchases (
			id                BIGSERIAL PRIMARY KEY,
			user_id           TEXT NOT NULL,
			listing_id        TEXT NOT NULL REFERENCES listings(id),
			price_at_purchase BIGINT NOT NULL,
			currency          TEXT NOT NULL,
			payment_ref       TEXT NOT NULL,
			source_order_id   TEXT REFERENCES orders(id),
			purchased_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (user_id, listing_id)
		)`,
		`CREATE TABLE IF NOT EXISTS fraud_reports (
			id            TEXT PRIMARY KEY,
			listing_id    TEXT NOT NULL REFERENCES listings(id),
			reporter_id   TEXT NOT NULL,
			reason        TEXT NOT NULL,
			description   TEXT NOT NULL DEFAULT '',
			severity      TEXT NOT NULL,
			status        TEXT NOT NULL DEFAULT 'pending',
			admin_comment TEXT,
			resolved_by   TEXT,
			resolved_at   TIMESTAMPTZ,
			created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
	}

	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to bootstrap schema: %w", err)
		}
	}
	return nil
}
