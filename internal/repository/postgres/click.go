package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/ignite/leadfunnel/internal/domain"
)

// ClickRepo implements lead.ClickRepository and dashboard.ClickReader
// against PostgreSQL.
type ClickRepo struct{ db *sql.DB }

// NewClickRepo creates a Postgres-backed payment click repository.
func NewClickRepo(db *sql.DB) *ClickRepo { return &ClickRepo{db: db} }

func (r *ClickRepo) Insert(ctx context.Context, c *domain.PaymentClick) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.Email == "" {
		c.Email = domain.AnonymousEmail
	}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO payment_clicks (id, email, clicked_at)
		VALUES ($1, $2, NOW())
		RETURNING clicked_at
	`, c.ID, c.Email).Scan(&c.ClickedAt)
	if err != nil {
		return fmt.Errorf("insert payment click: %w", err)
	}
	return nil
}

func (r *ClickRepo) ListRecent(ctx context.Context, limit int) ([]domain.PaymentClick, error) {
	q := `SELECT id, email, clicked_at FROM payment_clicks ORDER BY clicked_at DESC`
	var args []interface{}
	if limit > 0 {
		q += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list payment clicks: %w", err)
	}
	defer rows.Close()

	out := []domain.PaymentClick{}
	for rows.Next() {
		var c domain.PaymentClick
		if err := rows.Scan(&c.ID, &c.Email, &c.ClickedAt); err != nil {
			return nil, fmt.Errorf("scan payment click: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
