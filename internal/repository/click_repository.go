package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Harishith4529/shortlink/internal/models"
	"github.com/jackc/pgx/v5"
)

type ClickRepository interface {
	RecordClick(ctx context.Context, click *models.Click) error
	GetStats(ctx context.Context, code string) (*models.ClickStats, error)
	GetDailyStats(ctx context.Context, code string, days int) ([]models.DailyClickStats, error)
}

type clickRepository struct {
	db *PostgresDB
}

func NewClickRepository(db *PostgresDB) ClickRepository {
	return &clickRepository{db: db}
}

func (r *clickRepository) RecordClick(ctx context.Context, click *models.Click) error {
	query := `
		INSERT INTO clicks (link_id, code, ip_address, user_agent, referer, clicked_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		click.LinkID,
		click.Code,
		click.IPAddress,
		click.UserAgent,
		click.Referer,
		click.ClickedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to record click: %w", err)
	}

	return nil
}

func (r *clickRepository) GetStats(ctx context.Context, code string) (*models.ClickStats, error) {
	query := `
		SELECT
			l.click_count,
			COUNT(c.id) AS total_clicks,
			COUNT(DISTINCT c.ip_address) AS unique_clicks
		FROM links l
		LEFT JOIN clicks c ON c.link_id = l.id
		WHERE l.code = $1 AND l.deleted_at IS NULL
		GROUP BY l.click_count
	`

	stats := &models.ClickStats{
		Code: code,
	}

	err := r.db.Pool.QueryRow(ctx, query, code).Scan(
		&stats.ClickCount,
		&stats.TotalClicks,
		&stats.UniqueClicks,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLinkNotFound
		}
		return nil, fmt.Errorf("failed to get click stats: %w", err)
	}

	return stats, nil
}

func (r *clickRepository) GetDailyStats(ctx context.Context, code string, days int) ([]models.DailyClickStats, error) {
	query := `
		SELECT
			DATE(c.clicked_at) AS date,
			COUNT(*) AS clicks
		FROM clicks c
		JOIN links l ON c.link_id = l.id
		WHERE l.code = $1
			AND l.deleted_at IS NULL
			AND c.clicked_at >= NOW() - INTERVAL '1 day' * $2
		GROUP BY DATE(c.clicked_at)
		ORDER BY date DESC
	`

	rows, err := r.db.Pool.Query(ctx, query, code, days)
	if err != nil {
		return nil, fmt.Errorf("failed to get daily stats: %w", err)
	}
	defer rows.Close()

	var stats []models.DailyClickStats
	for rows.Next() {
		var dailyStat models.DailyClickStats
		if err := rows.Scan(&dailyStat.Date, &dailyStat.Clicks); err != nil {
			return nil, fmt.Errorf("failed to scan daily stat: %w", err)
		}
		stats = append(stats, dailyStat)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating daily stats: %w", err)
	}

	return stats, nil
}
