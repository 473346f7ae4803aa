package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"model-gateway-service/internal/core/domain"
	output "model-gateway-service/internal/core/ports/output"
)

type subscriptionRepo struct {
	pool *pgxpool.Pool
}

func NewSubscriptionRepository(pool *pgxpool.Pool) output.SubscriptionRepository {
	return &subscriptionRepo{pool: pool}
}

func (r *subscriptionRepo) FindActive(ctx context.Context, apiKey string, modelID uuid.UUID) (*domain.Subscription, error) {
	query := `
		SELECT id, created_at, user_id, model_id, api_key, status, end_date
		FROM user_subscription
		WHERE api_key = $1 AND model_id = $2 AND status = $3
		ORDER BY end_date DESC NULLS FIRST
		LIMIT 1
	`

	s := &domain.Subscription{}
	var status string
	err := r.pool.QueryRow(ctx, query, apiKey, modelID, string(domain.SubscriptionActive)).Scan(
		&s.ID, &s.CreatedAt, &s.UserID, &s.ModelID, &s.APIKey, &status, &s.EndDate,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("find active subscription: %w", err)
	}
	s.Status = domain.SubscriptionStatus(status)
	return s, nil
}
