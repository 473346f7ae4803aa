package ports

import (
	"context"

	"github.com/google/uuid"

	"model-gateway-service/internal/core/domain"
)

// ModelRepository is read-only: models are owned by the upload flow.
type ModelRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Model, error)
	GetByName(ctx context.Context, name string) (*domain.Model, error)
}

// DeploymentSeed builds the row inserted when a model has no deployment yet.
type DeploymentSeed func() (*domain.Deployment, error)

// DeploymentMutation is applied to an existing or freshly seeded row.
type DeploymentMutation func(d *domain.Deployment)

type DeploymentRepository interface {
	// GetByModel returns the single deployment of a model.
	GetByModel(ctx context.Context, modelID uuid.UUID) (*domain.Deployment, error)

	// GetByModelAndKey matches a deployment by its owning model and API key.
	GetByModelAndKey(ctx context.Context, modelID uuid.UUID, apiKey string) (*domain.Deployment, error)

	// List returns the deployment of every model, most recently updated first.
	List(ctx context.Context) ([]*domain.Deployment, error)

	// Upsert finds the deployment of modelID or inserts the row produced by
	// seed, then applies mutate and persists the result. seed is only called
	// when no row exists. Implementations must never leave two rows for one
	// model.
	Upsert(ctx context.Context, modelID uuid.UUID, seed DeploymentSeed, mutate DeploymentMutation) (*domain.Deployment, error)

	// Update persists status, URL, compute class and last error. The API key
	// column is never written here.
	Update(ctx context.Context, d *domain.Deployment) error
}

type SubscriptionRepository interface {
	// FindActive returns the subscription with status active matching the key
	// and model. Expiry is checked by the caller.
	FindActive(ctx context.Context, apiKey string, modelID uuid.UUID) (*domain.Subscription, error)
}

type APICallRepository interface {
	Create(ctx context.Context, call *domain.APICall) error
}
