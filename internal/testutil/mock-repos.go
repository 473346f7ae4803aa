package testutil

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"model-gateway-service/internal/core/domain"
	"model-gateway-service/internal/core/ports/output"
)

// MockModelRepo is a mock of ModelRepository.
type MockModelRepo struct {
	mock.Mock
}

func (m *MockModelRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Model, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Model), args.Error(1)
}

func (m *MockModelRepo) GetByName(ctx context.Context, name string) (*domain.Model, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Model), args.Error(1)
}

// MockDeploymentRepo is a mock of DeploymentRepository.
type MockDeploymentRepo struct {
	mock.Mock
}

func (m *MockDeploymentRepo) GetByModel(ctx context.Context, modelID uuid.UUID) (*domain.Deployment, error) {
	args := m.Called(ctx, modelID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Deployment), args.Error(1)
}

func (m *MockDeploymentRepo) GetByModelAndKey(ctx context.Context, modelID uuid.UUID, apiKey string) (*domain.Deployment, error) {
	args := m.Called(ctx, modelID, apiKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Deployment), args.Error(1)
}

func (m *MockDeploymentRepo) List(ctx context.Context) ([]*domain.Deployment, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Deployment), args.Error(1)
}

func (m *MockDeploymentRepo) Upsert(ctx context.Context, modelID uuid.UUID, seed ports.DeploymentSeed, mutate ports.DeploymentMutation) (*domain.Deployment, error) {
	args := m.Called(ctx, modelID, seed, mutate)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Deployment), args.Error(1)
}

func (m *MockDeploymentRepo) Update(ctx context.Context, d *domain.Deployment) error {
	args := m.Called(ctx, d)
	return args.Error(0)
}

// MockSubscriptionRepo is a mock of SubscriptionRepository.
type MockSubscriptionRepo struct {
	mock.Mock
}

func (m *MockSubscriptionRepo) FindActive(ctx context.Context, apiKey string, modelID uuid.UUID) (*domain.Subscription, error) {
	args := m.Called(ctx, apiKey, modelID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Subscription), args.Error(1)
}

// MockAPICallRepo is a mock of APICallRepository.
type MockAPICallRepo struct {
	mock.Mock
}

func (m *MockAPICallRepo) Create(ctx context.Context, call *domain.APICall) error {
	args := m.Called(ctx, call)
	return args.Error(0)
}

// MockProvisioner is a mock of Provisioner.
type MockProvisioner struct {
	mock.Mock
}

func (m *MockProvisioner) Provision(ctx context.Context, req ports.ProvisionRequest) (*ports.ProvisionResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ports.ProvisionResult), args.Error(1)
}
