package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"model-gateway-service/internal/core/domain"
	"model-gateway-service/internal/testutil"
)

type authFixture struct {
	models        *testutil.MockModelRepo
	deployments   *testutil.FakeDeploymentRepo
	subscriptions *testutil.MockSubscriptionRepo
	authorizer    *Authorizer
	now           time.Time

	model      *domain.Model
	deployment *domain.Deployment
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	f := &authFixture{
		models:        new(testutil.MockModelRepo),
		deployments:   testutil.NewFakeDeploymentRepo(),
		subscriptions: new(testutil.MockSubscriptionRepo),
		now:           time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		model:         newTestModel("tiny-llama"),
	}

	d, err := domain.NewDeployment(f.model.ID, "tiny-llama-owner", "")
	require.NoError(t, err)
	require.NoError(t, d.MarkRunning("http://serving/predict", ""))
	f.deployment = d
	f.deployments.Put(d)

	sub := NewSubscriptionMatch(f.models, f.subscriptions, f.deployments)
	sub.now = func() time.Time { return f.now }
	f.authorizer = NewAuthorizer(NewDirectKeyMatch(f.deployments), sub)
	return f
}

func (f *authFixture) subscription(status domain.SubscriptionStatus, end *time.Time) *domain.Subscription {
	return &domain.Subscription{
		ID:      uuid.New(),
		UserID:  "user-1",
		ModelID: f.model.ID,
		APIKey:  "sub-key",
		Status:  status,
		EndDate: end,
	}
}

func TestAuthorize_MissingKey(t *testing.T) {
	f := newAuthFixture(t)

	_, err := f.authorizer.Authorize(context.Background(), AuthorizationRequest{Identifier: f.model.Name})

	assert.ErrorIs(t, err, domain.ErrMissingCredential)
}

func TestAuthorize_DirectKeyMatch(t *testing.T) {
	f := newAuthFixture(t)

	auth, err := f.authorizer.Authorize(context.Background(), AuthorizationRequest{
		Identifier: f.model.ID.String(),
		APIKey:     "tiny-llama-owner",
	})
	require.NoError(t, err)

	assert.Equal(t, StrategyDirectKeyMatch, auth.Strategy)
	assert.Equal(t, f.model.ID, auth.ModelID)
	assert.Equal(t, f.deployment.ID, auth.Deployment.ID)
	f.models.AssertNotCalled(t, "GetByName", mock.Anything, mock.Anything)
}

func TestAuthorize_DirectKeyMismatchFallsThrough(t *testing.T) {
	f := newAuthFixture(t)
	id := f.model.ID.String()
	f.models.On("GetByName", mock.Anything, id).Return(nil, domain.ErrModelNotFound).Once()

	_, err := f.authorizer.Authorize(context.Background(), AuthorizationRequest{
		Identifier: id,
		APIKey:     "wrong",
	})

	assert.ErrorIs(t, err, domain.ErrModelNotFound)
	f.models.AssertExpectations(t)
}

func TestAuthorize_SubscriptionMatch(t *testing.T) {
	f := newAuthFixture(t)
	end := f.now.Add(time.Hour)
	f.models.On("GetByName", mock.Anything, "tiny-llama").Return(f.model, nil)
	f.subscriptions.On("FindActive", mock.Anything, "sub-key", f.model.ID).
		Return(f.subscription(domain.SubscriptionActive, &end), nil)

	auth, err := f.authorizer.Authorize(context.Background(), AuthorizationRequest{
		Identifier: "tiny-llama",
		APIKey:     "sub-key",
	})
	require.NoError(t, err)

	assert.Equal(t, StrategySubscriptionMatch, auth.Strategy)
	assert.Equal(t, f.model.ID, auth.ModelID)
	url, ok := auth.Deployment.Endpoint()
	assert.True(t, ok)
	assert.Equal(t, "http://serving/predict", url)
}

func TestAuthorize_SubscriptionFailures(t *testing.T) {
	past := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		setup   func(f *authFixture)
		wantErr error
	}{
		{
			name: "unknown model",
			setup: func(f *authFixture) {
				f.models.On("GetByName", mock.Anything, "tiny-llama").Return(nil, domain.ErrModelNotFound)
			},
			wantErr: domain.ErrModelNotFound,
		},
		{
			name: "no subscription",
			setup: func(f *authFixture) {
				f.models.On("GetByName", mock.Anything, "tiny-llama").Return(f.model, nil)
				f.subscriptions.On("FindActive", mock.Anything, "sub-key", f.model.ID).Return(nil, domain.ErrSubscriptionNotFound)
			},
			wantErr: domain.ErrInvalidCredential,
		},
		{
			name: "end date passed",
			setup: func(f *authFixture) {
				f.models.On("GetByName", mock.Anything, "tiny-llama").Return(f.model, nil)
				f.subscriptions.On("FindActive", mock.Anything, "sub-key", f.model.ID).
					Return(f.subscription(domain.SubscriptionActive, &past), nil)
			},
			wantErr: domain.ErrInvalidCredential,
		},
		{
			name: "status expired",
			setup: func(f *authFixture) {
				f.models.On("GetByName", mock.Anything, "tiny-llama").Return(f.model, nil)
				f.subscriptions.On("FindActive", mock.Anything, "sub-key", f.model.ID).
					Return(f.subscription(domain.SubscriptionExpired, nil), nil)
			},
			wantErr: domain.ErrInvalidCredential,
		},
		{
			name: "deployment failed",
			setup: func(f *authFixture) {
				f.models.On("GetByName", mock.Anything, "tiny-llama").Return(f.model, nil)
				f.subscriptions.On("FindActive", mock.Anything, "sub-key", f.model.ID).
					Return(f.subscription(domain.SubscriptionActive, nil), nil)
				f.deployment.Restart("")
				_ = f.deployment.MarkFailed("down")
				_ = f.deployments.Update(context.Background(), f.deployment)
			},
			wantErr: domain.ErrModelNotDeployed,
		},
		{
			name: "never deployed",
			setup: func(f *authFixture) {
				other := newTestModel("bert")
				other.Name = "tiny-llama"
				f.models.On("GetByName", mock.Anything, "tiny-llama").Return(other, nil)
				f.subscriptions.On("FindActive", mock.Anything, "sub-key", other.ID).
					Return(f.subscription(domain.SubscriptionActive, nil), nil)
			},
			wantErr: domain.ErrModelNotDeployed,
		},
		{
			name: "storage down",
			setup: func(f *authFixture) {
				f.models.On("GetByName", mock.Anything, "tiny-llama").Return(nil, errors.New("connection refused"))
			},
			wantErr: domain.ErrStorageUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAuthFixture(t)
			tt.setup(f)

			auth, err := f.authorizer.Authorize(context.Background(), AuthorizationRequest{
				Identifier: "tiny-llama",
				APIKey:     "sub-key",
			})

			assert.Nil(t, auth)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestAuthorize_NoStrategyMatches(t *testing.T) {
	a := NewAuthorizer()

	_, err := a.Authorize(context.Background(), AuthorizationRequest{Identifier: "x", APIKey: "k"})

	assert.ErrorIs(t, err, domain.ErrInvalidCredential)
}
