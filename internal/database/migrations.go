package database

import (
	"context"
	"fmt"
)

var migrations = []string{
	`CREATE EXTENSION IF NOT EXISTS "uuid-ossp"`,

	`CREATE TABLE IF NOT EXISTS rooms (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		boss_id VARCHAR(100) NOT NULL,
		start_time TIMESTAMP WITH TIME ZONE NOT NULL,
		max_members INTEGER NOT NULL CHECK (max_members BETWEEN 2 AND 20),
		current_members INTEGER NOT NULL DEFAULT 0,
		status VARCHAR(20) NOT NULL DEFAULT 'active',
		note VARCHAR(500),
		owner_id UUID NOT NULL,
		version INTEGER NOT NULL DEFAULT 1,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		CHECK (current_members >= 0 AND current_members <= max_members),
		CHECK (status IN ('active', 'invited', 'closed', 'canceled'))
	)`,

	`CREATE TABLE IF NOT EXISTS room_members (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		room_id UUID NOT NULL REFERENCES rooms(id) ON DELETE CASCADE,
		user_id UUID NOT NULL,
		role VARCHAR(20) NOT NULL DEFAULT 'member',
		friend_ready BOOLEAN NOT NULL DEFAULT FALSE,
		joined_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		UNIQUE(room_id, user_id)
	)`,

	`CREATE TABLE IF NOT EXISTS room_reviews (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		room_id UUID NOT NULL REFERENCES rooms(id) ON DELETE CASCADE,
		user_id UUID NOT NULL,
		rating INTEGER NOT NULL CHECK (rating BETWEEN 1 AND 5),
		comment TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		UNIQUE(room_id, user_id)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_rooms_status_start_time ON rooms(status, start_time)`,
	`CREATE INDEX IF NOT EXISTS idx_rooms_owner_id ON rooms(owner_id)`,
	`CREATE INDEX IF NOT EXISTS idx_room_members_room_id ON room_members(room_id)`,
	`CREATE INDEX IF NOT EXISTS idx_room_members_user_id ON room_members(user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_room_reviews_room_id ON room_reviews(room_id)`,

	// At most one owner membership per room
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_room_members_one_owner ON room_members(room_id) WHERE role = 'owner'`,

	// Lifecycle timestamps
	`ALTER TABLE rooms ADD COLUMN IF NOT EXISTS invited_at TIMESTAMP WITH TIME ZONE`,
	`ALTER TABLE rooms ADD COLUMN IF NOT EXISTS closed_at TIMESTAMP WITH TIME ZONE`,
	`ALTER TABLE rooms ADD COLUMN IF NOT EXISTS canceled_at TIMESTAMP WITH TIME ZONE`,

	// Structured review outcome; older rows used a "FAILED: <reason>" comment
	`ALTER TABLE room_reviews ADD COLUMN IF NOT EXISTS outcome VARCHAR(20) NOT NULL DEFAULT 'success'`,
	`ALTER TABLE room_reviews ADD COLUMN IF NOT EXISTS failure_reason TEXT`,
	`UPDATE room_reviews
		SET outcome = 'failed',
		    failure_reason = NULLIF(BTRIM(SUBSTRING(comment FROM 8)), ''),
		    comment = ''
		WHERE rating = 1 AND UPPER(comment) LIKE 'FAILED:%' AND outcome = 'success'`,
}

const createMigrationsTable = `CREATE TABLE IF NOT EXISTS schema_migrations (
	version INTEGER PRIMARY KEY,
	applied_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
)`

// Migrate applies every migration not yet recorded in schema_migrations. Each
// one runs in its own transaction together with its version row, so data
// rewrites such as the outcome backfill happen exactly once per database.
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.Pool.Exec(ctx, createMigrationsTable); err != nil {
		return fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	applied, err := db.appliedVersions(ctx)
	if err != nil {
		return err
	}

	for i, migration := range migrations {
		version := i + 1
		if applied[version] {
			continue
		}
		if err := db.apply(ctx, version, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", version, err)
		}
	}
	return nil
}

func (db *DB) appliedVersions(ctx context.Context) (map[int]bool, error) {
	rows, err := db.Pool.Query(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema_migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[v] = true
	}
	return applied, rows.Err()
}

func (db *DB) apply(ctx context.Context, version int, migration string) error {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	// Another instance may be migrating concurrently; the insert blocks on its
	// row and then reports zero rows once that instance commits.
	tag, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version) VALUES ($1) ON CONFLICT (version) DO NOTHING`, version)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return nil
	}

	if _, err := tx.Exec(ctx, migration); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
