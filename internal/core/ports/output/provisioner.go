package ports

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// ProvisionRequest carries everything the serving backend needs to bring a
// model up.
type ProvisionRequest struct {
	DeploymentID    uuid.UUID
	ModelID         uuid.UUID
	OrgName         string
	ModelName       string
	ModelRevision   string
	ModelUniqueName string
	ParamCount      int64
	CustomScript    *string
	UserID          string
	APIKey          string
	GPUType         string
}

// ProvisionResult is a successful provisioning outcome.
type ProvisionResult struct {
	URL     string
	GPUType string
	Raw     json.RawMessage
}

// Provisioner provisions a model on an external serving backend. Failures are
// returned as *ProvisionError.
type Provisioner interface {
	Provision(ctx context.Context, req ProvisionRequest) (*ProvisionResult, error)
}

// ProvisionError describes a failed provisioning call. Kind is one of
// domain.ErrBackendUnavailable or domain.ErrDeployRejected.
type ProvisionError struct {
	Kind       error
	StatusCode int
	Message    string
	Raw        json.RawMessage
}

// Error prefixes the backend's message with its category so stored
// diagnostics say whether the backend was down or refused the model.
func (e *ProvisionError) Error() string {
	if e.Kind == nil {
		return e.Message
	}
	if e.Message == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%v: %s", e.Kind, e.Message)
}

func (e *ProvisionError) Unwrap() error {
	return e.Kind
}
