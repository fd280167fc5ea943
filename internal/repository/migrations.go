package repository

import (
	"context"
	"fmt"
)

// Schema notes:
//   - links.code carries the global uniqueness constraint; it is the
//     atomicity boundary for code reservation.
//   - deleted_at is a tombstone. A hard-deleted row keeps its code so
//     the unique index retires it permanently; every read filters on
//     deleted_at IS NULL.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS links (
		id BIGSERIAL PRIMARY KEY,
		code TEXT NOT NULL UNIQUE,
		original_url TEXT NOT NULL,
		owner_id TEXT NOT NULL,
		title TEXT,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		click_count BIGINT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		expires_at TIMESTAMPTZ,
		deleted_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_links_owner_created
		ON links (owner_id, created_at DESC)
		WHERE deleted_at IS NULL`,
	`CREATE TABLE IF NOT EXISTS clicks (
		id BIGSERIAL PRIMARY KEY,
		link_id BIGINT NOT NULL REFERENCES links(id) ON DELETE CASCADE,
		code TEXT NOT NULL,
		ip_address TEXT NOT NULL DEFAULT '',
		user_agent TEXT NOT NULL DEFAULT '',
		referer TEXT NOT NULL DEFAULT '',
		clicked_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_clicks_link_clicked
		ON clicks (link_id, clicked_at DESC)`,
}

func (db *PostgresDB) migrate(ctx context.Context) error {
	for i, stmt := range migrations {
		if _, err := db.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d failed: %w", i, err)
		}
	}
	return nil
}
