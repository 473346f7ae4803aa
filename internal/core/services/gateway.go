package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"model-gateway-service/internal/core/domain"
)

const (
	DefaultForwardTimeout = 30 * time.Second
	maxInferenceBodyBytes = 32 << 20
)

// CallRecorder accepts call-log entries without blocking the caller.
type CallRecorder interface {
	Record(call *domain.APICall)
}

// InferenceRequest is one inbound inference call.
type InferenceRequest struct {
	Identifier string
	APIKey     string
	Body       []byte
}

// InferenceResult is what the caller gets back. Response is set on a
// completed forward; Error is set otherwise. StatusCode is the backend's
// status or a synthetic one for gateway-side failures.
type InferenceResult struct {
	ModelID        *uuid.UUID
	StatusCode     int
	Response       json.RawMessage
	Error          string
	ResponseTimeMS int64
}

// InferenceGateway authorizes inference calls and proxies them to the
// deployment that serves the addressed model.
type InferenceGateway struct {
	authorizer *Authorizer
	client     *http.Client
	timeout    time.Duration
	recorder   CallRecorder
	now        func() time.Time
}

func NewInferenceGateway(authorizer *Authorizer, recorder CallRecorder, client *http.Client, timeout time.Duration) *InferenceGateway {
	if client == nil {
		client = &http.Client{}
	}
	if timeout <= 0 {
		timeout = DefaultForwardTimeout
	}
	return &InferenceGateway{
		authorizer: authorizer,
		client:     client,
		timeout:    timeout,
		recorder:   recorder,
		now:        time.Now,
	}
}

// Invoke handles one inference call end to end. It never returns an error:
// every outcome is described by the result, and exactly one call-log entry is
// recorded per invocation.
func (g *InferenceGateway) Invoke(ctx context.Context, req InferenceRequest) *InferenceResult {
	start := g.now()
	res := g.invoke(ctx, req)
	g.finish(req.Identifier, start, res)
	return res
}

// Reject answers a call that failed before it could be authorized or
// forwarded, such as an unreadable body. started is when the call arrived.
// The failure is recorded like any other invocation.
func (g *InferenceGateway) Reject(identifier string, statusCode int, msg string, started time.Time) *InferenceResult {
	res := &InferenceResult{StatusCode: statusCode, Error: msg}
	g.finish(identifier, started, res)
	return res
}

func (g *InferenceGateway) finish(identifier string, start time.Time, res *InferenceResult) {
	res.ResponseTimeMS = g.now().Sub(start).Milliseconds()
	if res.ResponseTimeMS < 0 {
		res.ResponseTimeMS = 0
	}

	errMsg := res.Error
	if errMsg == "" && res.StatusCode >= http.StatusBadRequest {
		errMsg = backendErrorMessage(res.Response)
	}
	g.recorder.Record(domain.NewAPICall(
		res.ModelID,
		identifier,
		time.Duration(res.ResponseTimeMS)*time.Millisecond,
		res.StatusCode,
		errMsg,
	))
}

func (g *InferenceGateway) invoke(ctx context.Context, req InferenceRequest) *InferenceResult {
	auth, err := g.authorizer.Authorize(ctx, AuthorizationRequest{
		Identifier: req.Identifier,
		APIKey:     req.APIKey,
	})
	if err != nil {
		return authorizationFailure(req.Identifier, err)
	}

	modelID := auth.ModelID
	target, ok := auth.Deployment.Endpoint()
	if !ok {
		return &InferenceResult{
			ModelID:    &modelID,
			StatusCode: http.StatusNotFound,
			Error:      domain.ErrModelNotDeployed.Error(),
		}
	}

	res := g.forward(ctx, target, req.Body)
	res.ModelID = &modelID

	log.WithFields(log.Fields{
		"model_id":    modelID,
		"strategy":    auth.Strategy,
		"status_code": res.StatusCode,
	}).Debug("inference forwarded")
	return res
}

// forward posts body to target under the gateway timeout. On expiry the
// outbound request is cancelled and a 504 is synthesized.
func (g *InferenceGateway) forward(ctx context.Context, target string, body []byte) *InferenceResult {
	fctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(fctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return &InferenceResult{StatusCode: http.StatusInternalServerError, Error: fmt.Sprintf("create upstream request: %v", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return forwardFailure(fctx, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxInferenceBodyBytes))
	if err != nil {
		return forwardFailure(fctx, err)
	}

	return &InferenceResult{
		StatusCode: resp.StatusCode,
		Response:   asJSON(data),
	}
}

func forwardFailure(fctx context.Context, err error) *InferenceResult {
	if errors.Is(fctx.Err(), context.DeadlineExceeded) {
		return &InferenceResult{
			StatusCode: http.StatusGatewayTimeout,
			Error:      "Request timeout",
		}
	}
	return &InferenceResult{
		StatusCode: http.StatusInternalServerError,
		Error:      err.Error(),
	}
}

func authorizationFailure(identifier string, err error) *InferenceResult {
	res := &InferenceResult{Error: err.Error()}
	switch {
	case errors.Is(err, domain.ErrMissingCredential):
		res.StatusCode = http.StatusUnauthorized
	case errors.Is(err, domain.ErrInvalidCredential):
		res.StatusCode = http.StatusForbidden
	case errors.Is(err, domain.ErrModelNotFound),
		errors.Is(err, domain.ErrModelNotDeployed):
		res.StatusCode = http.StatusNotFound
	default:
		log.WithError(err).WithField("identifier", identifier).Error("inference authorization failed")
		res.StatusCode = http.StatusInternalServerError
		res.Error = "internal server error"
	}
	return res
}

// asJSON returns data unchanged when it is valid JSON and as a JSON string
// otherwise, so plain-text backend bodies still reach the caller.
func asJSON(data []byte) json.RawMessage {
	if len(bytes.TrimSpace(data)) == 0 {
		return json.RawMessage("null")
	}
	if json.Valid(data) {
		return json.RawMessage(data)
	}
	quoted, _ := json.Marshal(string(data))
	return json.RawMessage(quoted)
}

func backendErrorMessage(body json.RawMessage) string {
	var payload struct {
		Error interface{} `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != nil {
		if s, ok := payload.Error.(string); ok && s != "" {
			return s
		}
		if b, err := json.Marshal(payload.Error); err == nil {
			return string(b)
		}
	}
	return "Unknown error"
}
