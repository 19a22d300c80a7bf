package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/ignite/leadfunnel/internal/domain"
	"github.com/ignite/leadfunnel/internal/service/lead"
)

// SubscriberRepo implements lead.SubscriberRepository and
// dashboard.SubscriberReader against PostgreSQL.
type SubscriberRepo struct{ db *sql.DB }

// NewSubscriberRepo creates a Postgres-backed subscriber repository.
func NewSubscriberRepo(db *sql.DB) *SubscriberRepo { return &SubscriberRepo{db: db} }

func (r *SubscriberRepo) FindByEmail(ctx context.Context, email string) (*domain.Subscriber, error) {
	s := &domain.Subscriber{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, email, marketing_agreed, privacy_agreed, created_at
		FROM email_subscribers
		WHERE email = $1
	`, email).Scan(&s.ID, &s.Email, &s.MarketingAgreed, &s.PrivacyAgreed, &s.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find subscriber: %w", err)
	}
	return s, nil
}

// Insert adds the subscriber unless the email is already present, in which
// case lead.ErrDuplicate is returned.
func (r *SubscriberRepo) Insert(ctx context.Context, s *domain.Subscriber) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO email_subscribers (id, email, marketing_agreed, privacy_agreed, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (email) DO NOTHING
		RETURNING created_at
	`, s.ID, s.Email, s.MarketingAgreed, s.PrivacyAgreed).Scan(&s.CreatedAt)
	if err == sql.ErrNoRows {
		return lead.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert subscriber: %w", err)
	}
	return nil
}

func (r *SubscriberRepo) ListRecent(ctx context.Context, limit int) ([]domain.Subscriber, error) {
	q := `
		SELECT id, email, marketing_agreed, privacy_agreed, created_at
		FROM email_subscribers
		ORDER BY created_at DESC`
	var args []interface{}
	if limit > 0 {
		q += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list subscribers: %w", err)
	}
	defer rows.Close()

	out := []domain.Subscriber{}
	for rows.Next() {
		var s domain.Subscriber
		if err := rows.Scan(&s.ID, &s.Email, &s.MarketingAgreed, &s.PrivacyAgreed, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan subscriber: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
