package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"model-gateway-service/internal/core/domain"
	output "model-gateway-service/internal/core/ports/output"
)

// finalizeTimeout bounds the write that resolves a deployment to a terminal
// status. It runs detached from the caller's context.
const finalizeTimeout = 10 * time.Second

// DeployService drives a model to a running inference endpoint on the
// external serving backend.
type DeployService struct {
	modelRepo   output.ModelRepository
	store       *DeploymentStore
	provisioner output.Provisioner
}

func NewDeployService(
	modelRepo output.ModelRepository,
	store *DeploymentStore,
	provisioner output.Provisioner,
) *DeployService {
	return &DeployService{
		modelRepo:   modelRepo,
		store:       store,
		provisioner: provisioner,
	}
}

type DeployRequest struct {
	ModelID uuid.UUID
	GPUType string
	UserID  string
}

type DeployResult struct {
	Deployment *domain.Deployment
	Script     *string
	Response   json.RawMessage
}

// Deploy provisions the model and returns the deployment in RUNNING. When the
// backend fails, the deployment is left in FAILED and the returned result is
// non-nil alongside the error so callers can surface the backend diagnostic.
// Retrying is up to the caller.
func (s *DeployService) Deploy(ctx context.Context, req DeployRequest) (*DeployResult, error) {
	if req.ModelID == uuid.Nil {
		return nil, domain.ErrInvalidModelID
	}
	if req.UserID == "" {
		return nil, domain.ErrMissingIdentity
	}

	// 1. Resolve model (with its custom script)
	model, err := s.modelRepo.GetByID(ctx, req.ModelID)
	if err != nil {
		if errors.Is(err, domain.ErrModelNotFound) {
			return nil, err
		}
		return nil, classifyStorageError("get model", err)
	}

	// 2. Find-or-create the deployment in NOT_DEPLOYED
	deployment, err := s.store.Upsert(ctx, model, func(d *domain.Deployment) {
		d.Restart(req.GPUType)
	})
	if err != nil {
		return nil, err
	}

	logger := log.WithFields(log.Fields{
		"model_id":      model.ID,
		"deployment_id": deployment.ID,
		"gpu_type":      deployment.GPUType,
	})
	logger.Info("provisioning deployment")

	// 3. Provision on the serving backend
	org, name := model.Source()
	result, provErr := s.provisioner.Provision(ctx, output.ProvisionRequest{
		DeploymentID:    deployment.ID,
		ModelID:         model.ID,
		OrgName:         org,
		ModelName:       name,
		ModelRevision:   model.RevisionOrDefault(),
		ModelUniqueName: model.Name,
		ParamCount:      model.Parameters,
		CustomScript:    model.ScriptContent(),
		UserID:          req.UserID,
		APIKey:          deployment.APIKey,
		GPUType:         deployment.GPUType,
	})

	out := &DeployResult{
		Deployment: deployment,
		Script:     model.ScriptContent(),
	}

	// 4. Failure: resolve to FAILED before returning
	if provErr != nil {
		var pe *output.ProvisionError
		if errors.As(provErr, &pe) {
			out.Response = pe.Raw
		} else {
			provErr = &output.ProvisionError{
				Kind:    domain.ErrBackendUnavailable,
				Message: provErr.Error(),
			}
		}

		_ = deployment.MarkFailed(provErr.Error())
		if err := s.finalize(ctx, deployment); err != nil {
			logger.WithError(err).Error("failed to record deployment failure")
			return out, fmt.Errorf("record deployment failure: %w", err)
		}

		logger.WithError(provErr).Warn("deployment failed")
		return out, provErr
	}

	// 5. Success: RUNNING with the backend URL
	_ = deployment.MarkRunning(result.URL, result.GPUType)
	out.Response = result.Raw
	if err := s.finalize(ctx, deployment); err != nil {
		logger.WithError(err).Error("failed to record running deployment")
		return out, fmt.Errorf("record running deployment: %w", err)
	}

	logger.WithField("deployment_url", deployment.URL).Info("deployment running")
	return out, nil
}

// Get returns the deployment of a model.
func (s *DeployService) Get(ctx context.Context, modelID uuid.UUID) (*domain.Deployment, error) {
	return s.store.FindForModel(ctx, modelID)
}

// List returns all deployments.
func (s *DeployService) List(ctx context.Context) ([]*domain.Deployment, error) {
	return s.store.List(ctx)
}

// finalize writes the terminal status even if the caller has gone away, so a
// deployment never stays in NOT_DEPLOYED after Deploy returns.
func (s *DeployService) finalize(ctx context.Context, d *domain.Deployment) error {
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
	defer cancel()
	return s.store.Save(wctx, d)
}
