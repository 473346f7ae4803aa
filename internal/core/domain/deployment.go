package domain

import (
	"time"

	"github.com/google/uuid"
)

// ============================================================================
// Value Objects
// ============================================================================

// DeploymentStatus is the lifecycle status of a Deployment.
type DeploymentStatus string

const (
	DeploymentNotDeployed DeploymentStatus = "NOT_DEPLOYED"
	DeploymentRunning     DeploymentStatus = "RUNNING"
	DeploymentFailed      DeploymentStatus = "FAILED"
)

// IsValid checks if the status is valid
func (s DeploymentStatus) IsValid() bool {
	return s == DeploymentNotDeployed || s == DeploymentRunning || s == DeploymentFailed
}

// IsTerminal reports whether a deploy attempt has resolved.
func (s DeploymentStatus) IsTerminal() bool {
	return s == DeploymentRunning || s == DeploymentFailed
}

const DefaultGPUType = "default"

// ============================================================================
// Entities
// ============================================================================

// Deployment is the runtime placement of exactly one Model.
type Deployment struct {
	ID        uuid.UUID        `json:"id"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
	ModelID   uuid.UUID        `json:"model_id"`
	Status    DeploymentStatus `json:"status"`
	URL       string           `json:"deployment_url"`
	APIKey    string           `json:"api_key"`
	GPUType   string           `json:"gpu_type"`
	LastError string           `json:"last_error"`

	// Joined
	ModelName string `json:"model_name,omitempty"`
}

// NewDeployment creates a Deployment in NOT_DEPLOYED status
func NewDeployment(modelID uuid.UUID, apiKey, gpuType string) (*Deployment, error) {
	if modelID == uuid.Nil {
		return nil, ErrInvalidModelID
	}
	if gpuType == "" {
		gpuType = DefaultGPUType
	}

	now := time.Now()
	return &Deployment{
		ID:        uuid.New(),
		CreatedAt: now,
		UpdatedAt: now,
		ModelID:   modelID,
		Status:    DeploymentNotDeployed,
		APIKey:    apiKey,
		GPUType:   gpuType,
	}, nil
}

// Restart puts the deployment back into NOT_DEPLOYED for a new provisioning
// attempt. The API key is left untouched.
func (d *Deployment) Restart(gpuType string) {
	if gpuType == "" {
		gpuType = DefaultGPUType
	}
	d.Status = DeploymentNotDeployed
	d.GPUType = gpuType
	d.URL = ""
	d.LastError = ""
	d.UpdatedAt = time.Now()
}

// MarkRunning records a successful provisioning. An empty gpuType keeps the
// requested compute class.
func (d *Deployment) MarkRunning(url, gpuType string) error {
	if d.Status != DeploymentNotDeployed {
		return ErrInvalidTransition
	}
	d.Status = DeploymentRunning
	d.URL = url
	if gpuType != "" {
		d.GPUType = gpuType
	}
	d.LastError = ""
	d.UpdatedAt = time.Now()
	return nil
}

// MarkFailed records a provisioning failure.
func (d *Deployment) MarkFailed(reason string) error {
	if d.Status != DeploymentNotDeployed {
		return ErrInvalidTransition
	}
	d.Status = DeploymentFailed
	d.URL = ""
	d.LastError = reason
	d.UpdatedAt = time.Now()
	return nil
}

// Endpoint returns the inference URL if the deployment can serve traffic.
func (d *Deployment) Endpoint() (string, bool) {
	if d.Status != DeploymentRunning || d.URL == "" {
		return "", false
	}
	return d.URL, true
}
