package dto

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"model-gateway-service/internal/core/domain"
)

// ============================================================================
// Deployment DTOs
// ============================================================================

type DeployRequest struct {
	ModelID string `json:"modelId" binding:"required"`
	GPUType string `json:"gpuType"`
}

type DeploymentResponse struct {
	ID            uuid.UUID `json:"id"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
	ModelID       uuid.UUID `json:"modelId"`
	ModelName     string    `json:"modelName,omitempty"`
	Status        string    `json:"status"`
	DeploymentURL *string   `json:"deploymentUrl"`
	APIKey        string    `json:"apiKey"`
	GPUType       string    `json:"gpuType"`
	LastError     string    `json:"lastError,omitempty"`
}

// DeployResponse is returned by the deploy trigger on success and on a
// provisioning failure. Response carries the raw backend body when there is one.
type DeployResponse struct {
	Success    bool                `json:"success"`
	Error      string              `json:"error,omitempty"`
	Deployment *DeploymentResponse `json:"deployment,omitempty"`
	Script     *string             `json:"script"`
	Response   json.RawMessage     `json:"response,omitempty"`
}

type ListDeploymentsResponse struct {
	Items []DeploymentResponse `json:"items"`
	Total int                  `json:"total"`
}

func ToDeploymentResponse(d *domain.Deployment) DeploymentResponse {
	resp := DeploymentResponse{
		ID:        d.ID,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
		ModelID:   d.ModelID,
		ModelName: d.ModelName,
		Status:    string(d.Status),
		APIKey:    d.APIKey,
		GPUType:   d.GPUType,
		LastError: d.LastError,
	}
	if d.URL != "" {
		url := d.URL
		resp.DeploymentURL = &url
	}
	return resp
}

func ToListDeploymentsResponse(ds []*domain.Deployment) ListDeploymentsResponse {
	items := make([]DeploymentResponse, 0, len(ds))
	for _, d := range ds {
		items = append(items, ToDeploymentResponse(d))
	}
	return ListDeploymentsResponse{Items: items, Total: len(items)}
}
