package dto

import (
	"encoding/json"

	"model-gateway-service/internal/core/services"
)

// InferenceResponse is the envelope every inference call gets back, including
// failures.
type InferenceResponse struct {
	Response       json.RawMessage `json:"response,omitempty"`
	Error          string          `json:"error,omitempty"`
	ResponseTimeMS int64           `json:"response_time_ms"`
	StatusCode     int             `json:"status_code"`
}

func ToInferenceResponse(res *services.InferenceResult) InferenceResponse {
	out := InferenceResponse{
		ResponseTimeMS: res.ResponseTimeMS,
		StatusCode:     res.StatusCode,
	}
	if res.Error != "" {
		out.Error = res.Error
		return out
	}
	out.Response = res.Response
	return out
}
