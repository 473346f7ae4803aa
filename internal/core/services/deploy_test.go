package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"model-gateway-service/internal/core/domain"
	output "model-gateway-service/internal/core/ports/output"
	"model-gateway-service/internal/testutil"
)

type deployFixture struct {
	models      *testutil.MockModelRepo
	repo        *testutil.FakeDeploymentRepo
	provisioner *testutil.MockProvisioner
	svc         *DeployService
	model       *domain.Model
}

func newDeployFixture(t *testing.T) *deployFixture {
	t.Helper()
	f := &deployFixture{
		models:      new(testutil.MockModelRepo),
		repo:        testutil.NewFakeDeploymentRepo(),
		provisioner: new(testutil.MockProvisioner),
		model:       newTestModel("tiny-llama"),
	}
	f.model.Revision = "v2"
	f.model.Script = &domain.ModelScript{ID: uuid.New(), Content: "print('hi')"}
	f.models.On("GetByID", mock.Anything, f.model.ID).Return(f.model, nil).Maybe()

	store := NewDeploymentStore(f.repo, NewLocalLocker(), NewKeyIssuer())
	f.svc = NewDeployService(f.models, store, f.provisioner)
	return f
}

func TestDeploy_Success(t *testing.T) {
	f := newDeployFixture(t)

	f.provisioner.On("Provision", mock.Anything, mock.MatchedBy(func(req output.ProvisionRequest) bool {
		return req.OrgName == "acme" &&
			req.ModelName == "tiny-llama" &&
			req.ModelRevision == "v2" &&
			req.ModelUniqueName == "tiny-llama" &&
			req.ParamCount == 1_100_000_000 &&
			req.CustomScript != nil && *req.CustomScript == "print('hi')" &&
			req.UserID == "user-1" &&
			req.GPUType == "a100" &&
			req.APIKey != ""
	})).Return(&output.ProvisionResult{
		URL: "http://serving/tiny-llama/predict",
		Raw: json.RawMessage(`{"deployment_url":"http://serving/tiny-llama/predict"}`),
	}, nil).Once()

	res, err := f.svc.Deploy(context.Background(), DeployRequest{
		ModelID: f.model.ID,
		GPUType: "a100",
		UserID:  "user-1",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.DeploymentRunning, res.Deployment.Status)
	assert.Equal(t, "http://serving/tiny-llama/predict", res.Deployment.URL)
	assert.Equal(t, "print('hi')", *res.Script)
	assert.JSONEq(t, `{"deployment_url":"http://serving/tiny-llama/predict"}`, string(res.Response))

	rows := f.repo.Rows()
	require.Len(t, rows, 1)
	assert.Equal(t, domain.DeploymentRunning, rows[0].Status)
	assert.Equal(t, res.Deployment.APIKey, rows[0].APIKey)
	f.provisioner.AssertExpectations(t)
}

func TestDeploy_BackendFailureMarksFailed(t *testing.T) {
	f := newDeployFixture(t)

	f.provisioner.On("Provision", mock.Anything, mock.Anything).Return(nil, &output.ProvisionError{
		Kind:       domain.ErrBackendUnavailable,
		StatusCode: 500,
		Message:    "Deployment service returned an HTML error page (status 500), the service might be down",
	}).Once()

	res, err := f.svc.Deploy(context.Background(), DeployRequest{ModelID: f.model.ID, UserID: "user-1"})

	assert.ErrorIs(t, err, domain.ErrBackendUnavailable)
	require.NotNil(t, res)
	assert.Equal(t, domain.DeploymentFailed, res.Deployment.Status)
	assert.Equal(t, "deployment backend unavailable: Deployment service returned an HTML error page (status 500), the service might be down", res.Deployment.LastError)

	rows := f.repo.Rows()
	require.Len(t, rows, 1)
	assert.Equal(t, domain.DeploymentFailed, rows[0].Status)
	assert.Empty(t, rows[0].URL)
}

func TestDeploy_RejectionKeepsBackendBody(t *testing.T) {
	f := newDeployFixture(t)

	raw := json.RawMessage(`{"detail":"model too large"}`)
	f.provisioner.On("Provision", mock.Anything, mock.Anything).Return(nil, &output.ProvisionError{
		Kind:       domain.ErrDeployRejected,
		StatusCode: 422,
		Message:    "model too large",
		Raw:        raw,
	}).Once()

	res, err := f.svc.Deploy(context.Background(), DeployRequest{ModelID: f.model.ID, UserID: "user-1"})

	assert.ErrorIs(t, err, domain.ErrDeployRejected)
	assert.JSONEq(t, string(raw), string(res.Response))
	assert.Equal(t, domain.DeploymentFailed, res.Deployment.Status)
}

func TestDeploy_UntypedProvisionerErrorIsUnavailable(t *testing.T) {
	f := newDeployFixture(t)

	f.provisioner.On("Provision", mock.Anything, mock.Anything).Return(nil, errors.New("boom")).Once()

	_, err := f.svc.Deploy(context.Background(), DeployRequest{ModelID: f.model.ID, UserID: "user-1"})

	assert.ErrorIs(t, err, domain.ErrBackendUnavailable)
	assert.Equal(t, domain.DeploymentFailed, f.repo.Rows()[0].Status)
	assert.Equal(t, "deployment backend unavailable: boom", f.repo.Rows()[0].LastError)
}

func TestDeploy_RedeployKeepsKeyAndRow(t *testing.T) {
	f := newDeployFixture(t)

	f.provisioner.On("Provision", mock.Anything, mock.Anything).Return(nil, &output.ProvisionError{
		Kind: domain.ErrBackendUnavailable, Message: "down",
	}).Once()
	first, _ := f.svc.Deploy(context.Background(), DeployRequest{ModelID: f.model.ID, UserID: "user-1"})

	f.provisioner.On("Provision", mock.Anything, mock.MatchedBy(func(req output.ProvisionRequest) bool {
		return req.APIKey == first.Deployment.APIKey
	})).Return(&output.ProvisionResult{URL: "http://serving/predict"}, nil).Once()
	second, err := f.svc.Deploy(context.Background(), DeployRequest{ModelID: f.model.ID, UserID: "user-2"})
	require.NoError(t, err)

	assert.Equal(t, first.Deployment.ID, second.Deployment.ID)
	assert.Equal(t, first.Deployment.APIKey, second.Deployment.APIKey)
	assert.Empty(t, second.Deployment.LastError)
	assert.Len(t, f.repo.Rows(), 1)
	f.provisioner.AssertExpectations(t)
}

func TestDeploy_ConcurrentRequestsCreateOneRow(t *testing.T) {
	f := newDeployFixture(t)

	f.provisioner.On("Provision", mock.Anything, mock.Anything).
		Return(&output.ProvisionResult{URL: "http://serving/predict"}, nil)

	const n = 16
	var wg sync.WaitGroup
	keys := make([]string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := f.svc.Deploy(context.Background(), DeployRequest{ModelID: f.model.ID, UserID: "user-1"})
			if assert.NoError(t, err) {
				keys[i] = res.Deployment.APIKey
			}
		}(i)
	}
	wg.Wait()

	rows := f.repo.Rows()
	require.Len(t, rows, 1)
	assert.Equal(t, 1, f.repo.Inserts)
	for _, k := range keys {
		assert.Equal(t, rows[0].APIKey, k)
	}
}

func TestDeploy_CallerCancelStillFinalizes(t *testing.T) {
	f := newDeployFixture(t)
	ctx, cancel := context.WithCancel(context.Background())

	f.provisioner.On("Provision", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { cancel() }).
		Return(nil, &output.ProvisionError{Kind: domain.ErrBackendUnavailable, Message: "context canceled"}).Once()

	_, err := f.svc.Deploy(ctx, DeployRequest{ModelID: f.model.ID, UserID: "user-1"})

	assert.ErrorIs(t, err, domain.ErrBackendUnavailable)
	assert.Equal(t, domain.DeploymentFailed, f.repo.Rows()[0].Status)
	assert.Equal(t, "deployment backend unavailable: context canceled", f.repo.Rows()[0].LastError)
}

func TestDeploy_FinalizeFailureIsReported(t *testing.T) {
	f := newDeployFixture(t)
	f.repo.UpdateErr = errors.New("connection reset")

	f.provisioner.On("Provision", mock.Anything, mock.Anything).
		Return(&output.ProvisionResult{URL: "http://serving/predict"}, nil).Once()

	res, err := f.svc.Deploy(context.Background(), DeployRequest{ModelID: f.model.ID, UserID: "user-1"})

	assert.ErrorIs(t, err, domain.ErrStorageUnavailable)
	require.NotNil(t, res)
}

func TestDeploy_Validation(t *testing.T) {
	f := newDeployFixture(t)

	_, err := f.svc.Deploy(context.Background(), DeployRequest{UserID: "user-1"})
	assert.ErrorIs(t, err, domain.ErrInvalidModelID)

	_, err = f.svc.Deploy(context.Background(), DeployRequest{ModelID: f.model.ID})
	assert.ErrorIs(t, err, domain.ErrMissingIdentity)

	missing := uuid.New()
	f.models.On("GetByID", mock.Anything, missing).Return(nil, domain.ErrModelNotFound).Once()
	_, err = f.svc.Deploy(context.Background(), DeployRequest{ModelID: missing, UserID: "user-1"})
	assert.ErrorIs(t, err, domain.ErrModelNotFound)

	assert.Empty(t, f.repo.Rows())
	f.provisioner.AssertNotCalled(t, "Provision", mock.Anything, mock.Anything)
}

func TestDeploy_GetAndList(t *testing.T) {
	f := newDeployFixture(t)

	_, err := f.svc.Get(context.Background(), f.model.ID)
	assert.ErrorIs(t, err, domain.ErrDeploymentNotFound)

	older, _ := domain.NewDeployment(uuid.New(), "a", "")
	older.UpdatedAt = time.Now().Add(-time.Hour)
	newer, _ := domain.NewDeployment(f.model.ID, "b", "")
	f.repo.Put(older)
	f.repo.Put(newer)

	got, err := f.svc.Get(context.Background(), f.model.ID)
	require.NoError(t, err)
	assert.Equal(t, newer.ID, got.ID)

	list, err := f.svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, newer.ID, list[0].ID)
}
