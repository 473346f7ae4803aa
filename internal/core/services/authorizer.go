package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"model-gateway-service/internal/core/domain"
	output "model-gateway-service/internal/core/ports/output"
)

const (
	StrategyDirectKeyMatch    = "DirectKeyMatch"
	StrategySubscriptionMatch = "SubscriptionMatch"
)

// AuthorizationRequest is an inbound inference call's credential and target.
type AuthorizationRequest struct {
	// Identifier is the model id or model name taken from the request path.
	Identifier string
	APIKey     string
}

// Authorization is a granted request, resolved to the deployment to forward to.
type Authorization struct {
	Strategy   string
	ModelID    uuid.UUID
	Deployment *domain.Deployment
}

// AuthStrategy is one step of the ordered authorization algorithm. A strategy
// that does not apply returns (nil, nil) and the next one is tried. A non-nil
// error ends the search.
type AuthStrategy interface {
	Name() string
	Authorize(ctx context.Context, req AuthorizationRequest) (*Authorization, error)
}

// Authorizer runs its strategies in order; the first match wins.
type Authorizer struct {
	strategies []AuthStrategy
}

func NewAuthorizer(strategies ...AuthStrategy) *Authorizer {
	return &Authorizer{strategies: strategies}
}

// NewDefaultAuthorizer wires the owner key check ahead of the subscription check.
func NewDefaultAuthorizer(
	modelRepo output.ModelRepository,
	deploymentRepo output.DeploymentRepository,
	subscriptionRepo output.SubscriptionRepository,
) *Authorizer {
	return NewAuthorizer(
		NewDirectKeyMatch(deploymentRepo),
		NewSubscriptionMatch(modelRepo, subscriptionRepo, deploymentRepo),
	)
}

func (a *Authorizer) Authorize(ctx context.Context, req AuthorizationRequest) (*Authorization, error) {
	if req.APIKey == "" {
		return nil, domain.ErrMissingCredential
	}
	for _, s := range a.strategies {
		auth, err := s.Authorize(ctx, req)
		if err != nil {
			return nil, err
		}
		if auth != nil {
			auth.Strategy = s.Name()
			return auth, nil
		}
	}
	return nil, domain.ErrInvalidCredential
}

// ============================================================================
// DirectKeyMatch
// ============================================================================

// DirectKeyMatch lets a model owner call their own deployment with the
// deployment's API key, addressing the model by id.
type DirectKeyMatch struct {
	deploymentRepo output.DeploymentRepository
}

func NewDirectKeyMatch(deploymentRepo output.DeploymentRepository) *DirectKeyMatch {
	return &DirectKeyMatch{deploymentRepo: deploymentRepo}
}

func (s *DirectKeyMatch) Name() string { return StrategyDirectKeyMatch }

func (s *DirectKeyMatch) Authorize(ctx context.Context, req AuthorizationRequest) (*Authorization, error) {
	modelID, err := uuid.Parse(req.Identifier)
	if err != nil {
		return nil, nil
	}

	d, err := s.deploymentRepo.GetByModelAndKey(ctx, modelID, req.APIKey)
	if err != nil {
		if errors.Is(err, domain.ErrDeploymentNotFound) {
			return nil, nil
		}
		return nil, classifyStorageError("match deployment key", err)
	}
	return &Authorization{ModelID: d.ModelID, Deployment: d}, nil
}

// ============================================================================
// SubscriptionMatch
// ============================================================================

// SubscriptionMatch resolves the identifier as a model name and requires an
// active, unexpired subscription for the presented key.
type SubscriptionMatch struct {
	modelRepo        output.ModelRepository
	subscriptionRepo output.SubscriptionRepository
	deploymentRepo   output.DeploymentRepository
	now              func() time.Time
}

func NewSubscriptionMatch(
	modelRepo output.ModelRepository,
	subscriptionRepo output.SubscriptionRepository,
	deploymentRepo output.DeploymentRepository,
) *SubscriptionMatch {
	return &SubscriptionMatch{
		modelRepo:        modelRepo,
		subscriptionRepo: subscriptionRepo,
		deploymentRepo:   deploymentRepo,
		now:              time.Now,
	}
}

func (s *SubscriptionMatch) Name() string { return StrategySubscriptionMatch }

func (s *SubscriptionMatch) Authorize(ctx context.Context, req AuthorizationRequest) (*Authorization, error) {
	model, err := s.modelRepo.GetByName(ctx, req.Identifier)
	if err != nil {
		if errors.Is(err, domain.ErrModelNotFound) {
			return nil, err
		}
		return nil, classifyStorageError("get model by name", err)
	}

	sub, err := s.subscriptionRepo.FindActive(ctx, req.APIKey, model.ID)
	if err != nil {
		if errors.Is(err, domain.ErrSubscriptionNotFound) {
			return nil, domain.ErrInvalidCredential
		}
		return nil, classifyStorageError("find subscription", err)
	}
	if !sub.IsActiveAt(s.now()) {
		return nil, domain.ErrInvalidCredential
	}

	d, err := s.deploymentRepo.GetByModel(ctx, model.ID)
	if err != nil {
		if errors.Is(err, domain.ErrDeploymentNotFound) {
			return nil, domain.ErrModelNotDeployed
		}
		return nil, classifyStorageError("get deployment", err)
	}
	if _, ok := d.Endpoint(); !ok {
		return nil, domain.ErrModelNotDeployed
	}
	return &Authorization{ModelID: model.ID, Deployment: d}, nil
}
