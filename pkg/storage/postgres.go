package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

const linkColumns = `id, slug, target_url, created_at, expires_at`

const clickColumns = `id, link_id, clicked_at, referrer, user_agent, ip_address, country, city, device_type, browser, os`

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type PostgresStorage struct {
	pool *pgxpool.Pool
}

func NewPostgresStorage(pool *pgxpool.Pool) *PostgresStorage {
	return &PostgresStorage{pool: pool}
}

func (s *PostgresStorage) Close() {
	s.pool.Close()
}

func (s *PostgresStorage) WithTx(ctx context.Context, fn func(tx LinkTx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) // Rollback if not committed

	if err := fn(&postgresLinkTx{q: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *PostgresStorage) GetBySlug(ctx context.Context, slug string) (*ShortLink, error) {
	return getLinkBySlug(ctx, s.pool, slug)
}

func (s *PostgresStorage) Delete(ctx context.Context, slug string) (bool, error) {
	// clicks.link_id is ON DELETE CASCADE
	tag, err := s.pool.Exec(ctx, `DELETE FROM links WHERE slug = $1`, slug)
	if err != nil {
		return false, fmt.Errorf("failed to delete link: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStorage) Record(ctx context.Context, click *ClickEvent) error {
	query := `INSERT INTO clicks (link_id, clicked_at, referrer, user_agent, ip_address, country, city, device_type, browser, os)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	          RETURNING id`
	err := s.pool.QueryRow(ctx, query,
		click.LinkID, click.Timestamp, click.Referrer, click.UserAgent, click.IPAddress,
		click.Country, click.City, click.DeviceType, click.Browser, click.OS,
	).Scan(&click.ID)
	if err != nil {
		return fmt.Errorf("failed to record click: %w", err)
	}
	return nil
}

func (s *PostgresStorage) ListByLink(ctx context.Context, linkID int64) ([]ClickEvent, error) {
	query := `SELECT ` + clickColumns + ` FROM clicks WHERE link_id = $1 ORDER BY clicked_at, id`
	rows, err := s.pool.Query(ctx, query, linkID)
	if err != nil {
		return nil, fmt.Errorf("failed to list clicks: %w", err)
	}
	defer rows.Close()

	var clicks []ClickEvent
	for rows.Next() {
		var c ClickEvent
		err := rows.Scan(&c.ID, &c.LinkID, &c.Timestamp, &c.Referrer, &c.UserAgent, &c.IPAddress,
			&c.Country, &c.City, &c.DeviceType, &c.Browser, &c.OS)
		if err != nil {
			return nil, fmt.Errorf("failed to scan click: %w", err)
		}
		c.Timestamp = c.Timestamp.UTC()
		clicks = append(clicks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate clicks: %w", err)
	}
	return clicks, nil
}

func (s *PostgresStorage) CountByLink(ctx context.Context, linkID int64) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM clicks WHERE link_id = $1`, linkID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count clicks: %w", err)
	}
	return count, nil
}

type postgresLinkTx struct {
	q querier
}

func (t *postgresLinkTx) NextID(ctx context.Context) (int64, error) {
	var id int64
	err := t.q.QueryRow(ctx, `SELECT nextval(pg_get_serial_sequence('links', 'id'))`).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to reserve link id: %w", err)
	}
	return id, nil
}

func (t *postgresLinkTx) SlugExists(ctx context.Context, slug string) (bool, error) {
	var exists bool
	err := t.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM links WHERE slug = $1)`, slug).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check slug: %w", err)
	}
	return exists, nil
}

func (t *postgresLinkTx) Insert(ctx context.Context, link *ShortLink) error {
	var row pgx.Row
	if link.ID == 0 {
		query := `INSERT INTO links (slug, target_url, created_at, expires_at) VALUES ($1, $2, $3, $4) RETURNING id, created_at`
		row = t.q.QueryRow(ctx, query, link.Slug, link.TargetURL, link.CreatedAt, link.ExpiresAt)
	} else {
		query := `INSERT INTO links (id, slug, target_url, created_at, expires_at) VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at`
		row = t.q.QueryRow(ctx, query, link.ID, link.Slug, link.TargetURL, link.CreatedAt, link.ExpiresAt)
	}

	if err := row.Scan(&link.ID, &link.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateSlug
		}
		return fmt.Errorf("failed to insert link: %w", err)
	}
	link.CreatedAt = link.CreatedAt.UTC()
	return nil
}

func getLinkBySlug(ctx context.Context, q querier, slug string) (*ShortLink, error) {
	query := `SELECT ` + linkColumns + ` FROM links WHERE slug = $1`
	var link ShortLink
	err := q.QueryRow(ctx, query, slug).Scan(&link.ID, &link.Slug, &link.TargetURL, &link.CreatedAt, &link.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get link: %w", err)
	}
	link.CreatedAt = link.CreatedAt.UTC()
	if link.ExpiresAt != nil {
		expires := link.ExpiresAt.UTC()
		link.ExpiresAt = &expires
	}
	return &link, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
