package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Harishith4529/shortlink/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrLinkNotFound = errors.New("link not found")
	ErrCodeExists   = errors.New("short code already exists")
	ErrNotOwner     = errors.New("caller does not own the link")
)

const linkColumns = `id, code, original_url, owner_id, title, is_active, click_count, created_at, expires_at`

type LinkRepository interface {
	Create(ctx context.Context, link *models.Link) error
	GetByCode(ctx context.Context, code string) (*models.Link, error)
	ListByOwner(ctx context.Context, ownerID string) ([]models.Link, error)
	Update(ctx context.Context, code, ownerID string, patch *models.LinkPatch) (*models.Link, error)
	IncrementClicks(ctx context.Context, code string) error
	SoftDelete(ctx context.Context, code, ownerID string) error
	HardDelete(ctx context.Context, code, ownerID string) error
	GetLinkIDByCode(ctx context.Context, code string) (int64, error)
}

type linkRepository struct {
	db *PostgresDB
}

func NewLinkRepository(db *PostgresDB) LinkRepository {
	return &linkRepository{db: db}
}

// Create inserts the link, relying on the unique index on code as the
// single reservation point. Tombstoned rows keep their code, so a
// retired code also reports ErrCodeExists.
func (r *linkRepository) Create(ctx context.Context, link *models.Link) error {
	query := `
		INSERT INTO links (code, original_url, owner_id, title, is_active, click_count, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, 0, $6, $7)
		RETURNING id, created_at
	`

	err := r.db.Pool.QueryRow(
		ctx,
		query,
		link.Code,
		link.OriginalURL,
		link.OwnerID,
		link.Title,
		link.IsActive,
		link.CreatedAt,
		link.ExpiresAt,
	).Scan(&link.ID, &link.CreatedAt)

	if err != nil {
		if isUniqueViolation(err) {
			return ErrCodeExists
		}
		return fmt.Errorf("failed to create link: %w", err)
	}

	return nil
}

// GetByCode returns the live row for a code, including inactive and
// expired records. Interpreting those states is the service's job.
func (r *linkRepository) GetByCode(ctx context.Context, code string) (*models.Link, error) {
	query := `
		SELECT ` + linkColumns + `
		FROM links
		WHERE code = $1 AND deleted_at IS NULL
	`

	link := &models.Link{}
	err := r.db.Pool.QueryRow(ctx, query, code).Scan(
		&link.ID,
		&link.Code,
		&link.OriginalURL,
		&link.OwnerID,
		&link.Title,
		&link.IsActive,
		&link.ClickCount,
		&link.CreatedAt,
		&link.ExpiresAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLinkNotFound
		}
		return nil, fmt.Errorf("failed to get link: %w", err)
	}

	return link, nil
}

func (r *linkRepository) ListByOwner(ctx context.Context, ownerID string) ([]models.Link, error) {
	query := `
		SELECT ` + linkColumns + `
		FROM links
		WHERE owner_id = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC, id DESC
	`

	rows, err := r.db.Pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list links: %w", err)
	}
	defer rows.Close()

	links := []models.Link{}
	for rows.Next() {
		var link models.Link
		if err := rows.Scan(
			&link.ID,
			&link.Code,
			&link.OriginalURL,
			&link.OwnerID,
			&link.Title,
			&link.IsActive,
			&link.ClickCount,
			&link.CreatedAt,
			&link.ExpiresAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan link: %w", err)
		}
		links = append(links, link)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating links: %w", err)
	}

	return links, nil
}

// Update applies a partial edit with ownership enforced in the WHERE
// clause, so no lock is needed between the check and the write.
func (r *linkRepository) Update(ctx context.Context, code, ownerID string, patch *models.LinkPatch) (*models.Link, error) {
	query := `
		UPDATE links
		SET original_url = COALESCE($3, original_url),
		    title        = COALESCE($4, title),
		    is_active    = COALESCE($5, is_active)
		WHERE code = $1 AND owner_id = $2 AND deleted_at IS NULL
		RETURNING ` + linkColumns

	link := &models.Link{}
	err := r.db.Pool.QueryRow(ctx, query, code, ownerID, patch.OriginalURL, patch.Title, patch.IsActive).Scan(
		&link.ID,
		&link.Code,
		&link.OriginalURL,
		&link.OwnerID,
		&link.Title,
		&link.IsActive,
		&link.ClickCount,
		&link.CreatedAt,
		&link.ExpiresAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, r.notFoundOrNotOwner(ctx, code)
		}
		return nil, fmt.Errorf("failed to update link: %w", err)
	}

	return link, nil
}

// IncrementClicks is a single-statement atomic increment, deliberately
// owner-agnostic: resolution traffic must never consult ownership.
func (r *linkRepository) IncrementClicks(ctx context.Context, code string) error {
	query := `
		UPDATE links
		SET click_count = click_count + 1
		WHERE code = $1 AND deleted_at IS NULL
	`

	result, err := r.db.Pool.Exec(ctx, query, code)
	if err != nil {
		return fmt.Errorf("failed to increment clicks: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrLinkNotFound
	}

	return nil
}

func (r *linkRepository) SoftDelete(ctx context.Context, code, ownerID string) error {
	query := `
		UPDATE links
		SET is_active = FALSE
		WHERE code = $1 AND owner_id = $2 AND deleted_at IS NULL
	`

	result, err := r.db.Pool.Exec(ctx, query, code, ownerID)
	if err != nil {
		return fmt.Errorf("failed to soft delete link: %w", err)
	}
	if result.RowsAffected() == 0 {
		return r.notFoundOrNotOwner(ctx, code)
	}

	return nil
}

// HardDelete tombstones the row. The record disappears from every
// query but the code stays reserved forever: a previously shared short
// link must never start pointing at someone else's destination.
func (r *linkRepository) HardDelete(ctx context.Context, code, ownerID string) error {
	query := `
		UPDATE links
		SET deleted_at = NOW()
		WHERE code = $1 AND owner_id = $2 AND is_active = FALSE AND deleted_at IS NULL
	`

	result, err := r.db.Pool.Exec(ctx, query, code, ownerID)
	if err != nil {
		return fmt.Errorf("failed to hard delete link: %w", err)
	}
	if result.RowsAffected() == 0 {
		return r.notFoundOrNotOwner(ctx, code)
	}

	return nil
}

func (r *linkRepository) GetLinkIDByCode(ctx context.Context, code string) (int64, error) {
	query := `SELECT id FROM links WHERE code = $1 AND deleted_at IS NULL`

	var linkID int64
	err := r.db.Pool.QueryRow(ctx, query, code).Scan(&linkID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrLinkNotFound
		}
		return 0, fmt.Errorf("failed to get link ID: %w", err)
	}

	return linkID, nil
}

// notFoundOrNotOwner disambiguates a zero-row conditional write: the
// record either does not exist or belongs to someone else.
func (r *linkRepository) notFoundOrNotOwner(ctx context.Context, code string) error {
	var exists bool
	err := r.db.Pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM links WHERE code = $1 AND deleted_at IS NULL)`,
		code,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check link existence: %w", err)
	}
	if !exists {
		return ErrLinkNotFound
	}
	return ErrNotOwner
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
