package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"model-gateway-service/internal/core/domain"
	output "model-gateway-service/internal/core/ports/output"
)

// DeploymentStore is the single write path for deployment rows. Every upsert
// runs under the model's lock so concurrent deploy requests can never create
// a second row for the same model.
type DeploymentStore struct {
	repo   output.DeploymentRepository
	locker output.ModelLocker
	keys   *KeyIssuer
}

func NewDeploymentStore(repo output.DeploymentRepository, locker output.ModelLocker, keys *KeyIssuer) *DeploymentStore {
	if locker == nil {
		locker = NewLocalLocker()
	}
	if keys == nil {
		keys = NewKeyIssuer()
	}
	return &DeploymentStore{repo: repo, locker: locker, keys: keys}
}

// FindForModel returns the deployment of a model or domain.ErrDeploymentNotFound.
func (s *DeploymentStore) FindForModel(ctx context.Context, modelID uuid.UUID) (*domain.Deployment, error) {
	d, err := s.repo.GetByModel(ctx, modelID)
	if err != nil {
		return nil, classifyStorageError("find deployment", err)
	}
	return d, nil
}

// List returns every model's deployment.
func (s *DeploymentStore) List(ctx context.Context) ([]*domain.Deployment, error) {
	ds, err := s.repo.List(ctx)
	if err != nil {
		return nil, classifyStorageError("list deployments", err)
	}
	return ds, nil
}

// Upsert applies mutate to the model's deployment, creating it in
// NOT_DEPLOYED with a freshly minted API key if none exists yet.
func (s *DeploymentStore) Upsert(ctx context.Context, model *domain.Model, mutate output.DeploymentMutation) (*domain.Deployment, error) {
	unlock, err := s.locker.Lock(ctx, model.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrLockNotAcquired, err)
	}
	defer unlock()

	seed := func() (*domain.Deployment, error) {
		log.WithField("model_id", model.ID).Info("creating deployment")
		return domain.NewDeployment(model.ID, s.keys.Generate(model.Name), "")
	}
	guarded := func(d *domain.Deployment) {
		// A key already set on the row is never replaced by a mutation.
		key := d.APIKey
		mutate(d)
		if key != "" {
			d.APIKey = key
		} else if d.APIKey == "" {
			d.APIKey = s.keys.Generate(model.Name)
		}
		d.ModelName = model.Name
	}

	d, err := s.repo.Upsert(ctx, model.ID, seed, guarded)
	if err != nil {
		return nil, classifyStorageError("upsert deployment", err)
	}
	return d, nil
}

// Save persists a status change on an existing deployment.
func (s *DeploymentStore) Save(ctx context.Context, d *domain.Deployment) error {
	if err := s.repo.Update(ctx, d); err != nil {
		return classifyStorageError("save deployment", err)
	}
	return nil
}

// classifyStorageError passes domain errors through and marks everything
// else as a transient storage failure.
func classifyStorageError(op string, err error) error {
	switch {
	case errors.Is(err, domain.ErrModelNotFound),
		errors.Is(err, domain.ErrDeploymentNotFound),
		errors.Is(err, domain.ErrInvalidModelID),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStorageUnavailable, err)
}
