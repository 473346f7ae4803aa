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

const modelColumns = `
	m.id, m.created_at, m.updated_at, m.name, m.model_type,
	m.source_url, m.revision, m.parameters,
	s.id, s.content
`

type modelRepo struct {
	pool *pgxpool.Pool
}

// NewModelRepository creates a new ModelRepository
func NewModelRepository(pool *pgxpool.Pool) output.ModelRepository {
	return &modelRepo{pool: pool}
}

func (r *modelRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Model, error) {
	query := `SELECT ` + modelColumns + `
		FROM model m
		LEFT JOIN model_script s ON s.model_id = m.id
		WHERE m.id = $1
	`

	m, err := scanModel(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrModelNotFound
		}
		return nil, fmt.Errorf("get model by id: %w", err)
	}
	return m, nil
}

func (r *modelRepo) GetByName(ctx context.Context, name string) (*domain.Model, error) {
	query := `SELECT ` + modelColumns + `
		FROM model m
		LEFT JOIN model_script s ON s.model_id = m.id
		WHERE m.name = $1
	`

	m, err := scanModel(r.pool.QueryRow(ctx, query, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrModelNotFound
		}
		return nil, fmt.Errorf("get model by name: %w", err)
	}
	return m, nil
}

func scanModel(row pgx.Row) (*domain.Model, error) {
	m := &domain.Model{}
	var scriptID *uuid.UUID
	var scriptContent *string

	err := row.Scan(
		&m.ID, &m.CreatedAt, &m.UpdatedAt, &m.Name, &m.ModelType,
		&m.SourceURL, &m.Revision, &m.Parameters,
		&scriptID, &scriptContent,
	)
	if err != nil {
		return nil, err
	}

	if scriptID != nil && scriptContent != nil {
		m.Script = &domain.ModelScript{ID: *scriptID, Content: *scriptContent}
	}
	return m, nil
}
