package storage

import (
	"context"
	"fmt"
)

const (
	linksSchema = `CREATE TABLE IF NOT EXISTS links (
		id         BIGSERIAL PRIMARY KEY,
		slug       VARCHAR(50) NOT NULL UNIQUE,
		target_url VARCHAR(2048) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		expires_at TIMESTAMPTZ
	);`

	clicksSchema = `CREATE TABLE IF NOT EXISTS clicks (
		id          BIGSERIAL PRIMARY KEY,
		link_id     BIGINT NOT NULL REFERENCES links(id) ON DELETE CASCADE,
		clicked_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		referrer    TEXT,
		user_agent  TEXT,
		ip_address  TEXT,
		country     TEXT,
		city        TEXT,
		device_type TEXT,
		browser     TEXT,
		os          TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_clicks_link_id_clicked_at ON clicks(link_id, clicked_at);`
)

// Migrate creates the links and clicks tables when they do not exist yet.
func (s *PostgresStorage) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, linksSchema); err != nil {
		return fmt.Errorf("failed to create links table: %w", err)
	}
	if _, err := s.pool.Exec(ctx, clicksSchema); err != nil {
		return fmt.Errorf("failed to create clicks table: %w", err)
	}
	return nil
}
