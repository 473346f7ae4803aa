package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"model-gateway-service/internal/core/domain"
	output "model-gateway-service/internal/core/ports/output"
)

type apiCallRepo struct {
	pool *pgxpool.Pool
}

func NewAPICallRepository(pool *pgxpool.Pool) output.APICallRepository {
	return &apiCallRepo{pool: pool}
}

func (r *apiCallRepo) Create(ctx context.Context, call *domain.APICall) error {
	query := `
		INSERT INTO model_api_call
			(id, created_at, model_id, identifier, latency_ms, status_code, error_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.pool.Exec(ctx, query,
		call.ID, call.CreatedAt, call.ModelID, call.Identifier,
		call.LatencyMS, call.StatusCode, call.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("create api call: %w", err)
	}
	return nil
}
