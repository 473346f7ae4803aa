package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"model-gateway-service/internal/core/domain"
	output "model-gateway-service/internal/core/ports/output"
)

const deploymentColumns = `
	d.id, d.created_at, d.updated_at, d.model_id, d.status,
	d.url, d.api_key, d.gpu_type, d.last_error,
	m.name AS model_name
`

type deploymentRepo struct {
	pool *pgxpool.Pool
}

// NewDeploymentRepository creates a new DeploymentRepository
func NewDeploymentRepository(pool *pgxpool.Pool) output.DeploymentRepository {
	return &deploymentRepo{pool: pool}
}

func (r *deploymentRepo) GetByModel(ctx context.Context, modelID uuid.UUID) (*domain.Deployment, error) {
	query := `SELECT ` + deploymentColumns + `
		FROM deployment d
		JOIN model m ON m.id = d.model_id
		WHERE d.model_id = $1
	`

	d, err := scanDeployment(r.pool.QueryRow(ctx, query, modelID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDeploymentNotFound
		}
		return nil, fmt.Errorf("get deployment by model: %w", err)
	}
	return d, nil
}

func (r *deploymentRepo) GetByModelAndKey(ctx context.Context, modelID uuid.UUID, apiKey string) (*domain.Deployment, error) {
	query := `SELECT ` + deploymentColumns + `
		FROM deployment d
		JOIN model m ON m.id = d.model_id
		WHERE d.model_id = $1 AND d.api_key = $2
	`

	d, err := scanDeployment(r.pool.QueryRow(ctx, query, modelID, apiKey))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDeploymentNotFound
		}
		return nil, fmt.Errorf("get deployment by model and key: %w", err)
	}
	return d, nil
}

func (r *deploymentRepo) List(ctx context.Context) ([]*domain.Deployment, error) {
	query := `SELECT ` + deploymentColumns + `
		FROM deployment d
		JOIN model m ON m.id = d.model_id
		ORDER BY d.updated_at DESC
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list deployments: %w", err)
	}
	defer rows.Close()

	var deployments []*domain.Deployment
	for rows.Next() {
		d, err := scanDeployment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan deployment row: %w", err)
		}
		deployments = append(deployments, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate deployment rows: %w", err)
	}

	return deployments, nil
}

// Upsert runs in one transaction. The existing row is locked with FOR UPDATE;
// a missing row is inserted with ON CONFLICT DO NOTHING so that a concurrent
// insert from another replica is picked up instead of duplicated.
func (r *deploymentRepo) Upsert(ctx context.Context, modelID uuid.UUID, seed output.DeploymentSeed, mutate output.DeploymentMutation) (*domain.Deployment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin upsert deployment: %w", err)
	}
	defer tx.Rollback(ctx)

	d, err := r.lockExisting(ctx, tx, modelID)
	switch {
	case err == nil:
		mutate(d)
		if err := r.update(ctx, tx, d); err != nil {
			return nil, err
		}

	case errors.Is(err, pgx.ErrNoRows):
		d, err = seed()
		if err != nil {
			return nil, err
		}
		mutate(d)

		inserted, err := r.insert(ctx, tx, d)
		if err != nil {
			return nil, err
		}
		if !inserted {
			d, err = r.lockExisting(ctx, tx, modelID)
			if err != nil {
				return nil, fmt.Errorf("reload deployment after conflict: %w", err)
			}
			mutate(d)
			if err := r.update(ctx, tx, d); err != nil {
				return nil, err
			}
		}

	default:
		return nil, fmt.Errorf("lock deployment: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit upsert deployment: %w", err)
	}
	return d, nil
}

func (r *deploymentRepo) Update(ctx context.Context, d *domain.Deployment) error {
	return r.update(ctx, r.pool, d)
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func (r *deploymentRepo) update(ctx context.Context, db execer, d *domain.Deployment) error {
	query := `
		UPDATE deployment
		SET status = $1, url = $2, gpu_type = $3, last_error = $4, updated_at = NOW()
		WHERE id = $5
	`

	result, err := db.Exec(ctx, query,
		string(d.Status), d.URL, d.GPUType, d.LastError, d.ID,
	)
	if err != nil {
		return fmt.Errorf("update deployment: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrDeploymentNotFound
	}
	return nil
}

func (r *deploymentRepo) insert(ctx context.Context, tx pgx.Tx, d *domain.Deployment) (bool, error) {
	query := `
		INSERT INTO deployment
			(id, created_at, updated_at, model_id, status, url, api_key, gpu_type, last_error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (model_id) DO NOTHING
	`

	result, err := tx.Exec(ctx, query,
		d.ID, d.CreatedAt, d.UpdatedAt, d.ModelID,
		string(d.Status), d.URL, d.APIKey, d.GPUType, d.LastError,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
			return false, domain.ErrModelNotFound
		}
		return false, fmt.Errorf("create deployment: %w", err)
	}
	return result.RowsAffected() == 1, nil
}

func (r *deploymentRepo) lockExisting(ctx context.Context, tx pgx.Tx, modelID uuid.UUID) (*domain.Deployment, error) {
	query := `SELECT ` + deploymentColumns + `
		FROM deployment d
		JOIN model m ON m.id = d.model_id
		WHERE d.model_id = $1
		FOR UPDATE OF d
	`
	return scanDeployment(tx.QueryRow(ctx, query, modelID))
}

func scanDeployment(row pgx.Row) (*domain.Deployment, error) {
	d := &domain.Deployment{}
	var status string

	err := row.Scan(
		&d.ID, &d.CreatedAt, &d.UpdatedAt, &d.ModelID, &status,
		&d.URL, &d.APIKey, &d.GPUType, &d.LastError,
		&d.ModelName,
	)
	if err != nil {
		return nil, err
	}

	d.Status = domain.DeploymentStatus(status)
	return d, nil
}

// Ensure interface compliance
var _ output.DeploymentRepository = (*deploymentRepo)(nil)
