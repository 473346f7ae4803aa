package deployapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"model-gateway-service/internal/config"
	"model-gateway-service/internal/core/domain"
	ports "model-gateway-service/internal/core/ports/output"
)

const maxResponseBytes = 4 << 20

type client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a Provisioner backed by the deployment API's POST /deploy.
func NewClient(cfg *config.DeploymentAPIConfig) ports.Provisioner {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 5 * time.Minute
	}

	return &client{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// deployRequest is the wire body of POST /deploy.
type deployRequest struct {
	OrgName         string  `json:"org_name"`
	ModelName       string  `json:"model_name"`
	ModelRevision   string  `json:"model_revision"`
	ModelUniqueName string  `json:"model_unique_name"`
	ParamCount      int64   `json:"param_count"`
	CustomScript    *string `json:"custom_script"`
	UserID          string  `json:"user_id"`
	APIKey          string  `json:"api_key"`
}

type deployResponse struct {
	DeploymentURL string `json:"deployment_url"`
	GPUType       string `json:"gpu_type"`
}

func (c *client) Provision(ctx context.Context, req ports.ProvisionRequest) (*ports.ProvisionResult, error) {
	payload, err := json.Marshal(deployRequest{
		OrgName:         req.OrgName,
		ModelName:       req.ModelName,
		ModelRevision:   req.ModelRevision,
		ModelUniqueName: req.ModelUniqueName,
		ParamCount:      req.ParamCount,
		CustomScript:    req.CustomScript,
		UserID:          req.UserID,
		APIKey:          req.APIKey,
	})
	if err != nil {
		return nil, unavailable(0, nil, "encode deploy request: %v", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/deploy", bytes.NewReader(payload))
	if err != nil {
		return nil, unavailable(0, nil, "create deploy request: %v", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, unavailable(0, nil,
			"failed to connect to deployment API, check that the deployment service is running: %v", err)
	}
	defer resp.Body.Close()

	text, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, unavailable(resp.StatusCode, nil, "read deployment API response: %v", err)
	}

	log.WithFields(log.Fields{
		"status":       resp.StatusCode,
		"model":        req.ModelUniqueName,
		"content_type": resp.Header.Get("Content-Type"),
	}).Debug("deployment API responded")

	if isHTML(text) {
		return nil, unavailable(resp.StatusCode, nil,
			"deployment API returned an HTML error page (status %d), the service might be down", resp.StatusCode)
	}

	raw := json.RawMessage(`{}`)
	if len(bytes.TrimSpace(text)) > 0 {
		if !json.Valid(text) {
			return nil, unavailable(resp.StatusCode, nil,
				"failed to parse deployment API response (status %d)", resp.StatusCode)
		}
		raw = json.RawMessage(text)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &ports.ProvisionError{
			Kind:       domain.ErrDeployRejected,
			StatusCode: resp.StatusCode,
			Message:    rejectionMessage(raw, resp.StatusCode),
			Raw:        raw,
		}
	}

	var body deployResponse
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, unavailable(resp.StatusCode, raw, "decode deployment API response: %v", err)
	}
	if body.DeploymentURL == "" {
		return nil, unavailable(resp.StatusCode, raw, "deployment API response is missing deployment_url")
	}

	return &ports.ProvisionResult{
		URL:     body.DeploymentURL,
		GPUType: body.GPUType,
		Raw:     raw,
	}, nil
}

func unavailable(status int, raw json.RawMessage, format string, args ...interface{}) *ports.ProvisionError {
	return &ports.ProvisionError{
		Kind:       domain.ErrBackendUnavailable,
		StatusCode: status,
		Message:    fmt.Sprintf(format, args...),
		Raw:        raw,
	}
}

func isHTML(text []byte) bool {
	head := strings.ToLower(strings.TrimSpace(string(text)))
	return strings.HasPrefix(head, "<!doctype html") || strings.HasPrefix(head, "<html")
}

// rejectionMessage picks the backend's own explanation, checking error,
// detail and message in that order.
func rejectionMessage(raw json.RawMessage, status int) string {
	var body map[string]interface{}
	if err := json.Unmarshal(raw, &body); err == nil {
		for _, key := range []string{"error", "detail", "message"} {
			switch v := body[key].(type) {
			case string:
				if v != "" {
					return v
				}
			case nil:
			default:
				if b, err := json.Marshal(v); err == nil {
					return string(b)
				}
			}
		}
	}
	return fmt.Sprintf("Deployment failed with status %d", status)
}

// Ensure interface compliance
var _ ports.Provisioner = (*client)(nil)
