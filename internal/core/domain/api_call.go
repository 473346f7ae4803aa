package domain

import (
	"time"

	"github.com/google/uuid"
)

// APICall is the write-once record of one proxied inference attempt.
type APICall struct {
	ID        uuid.UUID `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	// ModelID is nil when the attempt failed before a model could be resolved.
	ModelID      *uuid.UUID `json:"model_id"`
	Identifier   string     `json:"identifier"`
	LatencyMS    int64      `json:"latency_ms"`
	StatusCode   int        `json:"status_code"`
	ErrorMessage *string    `json:"error_message"`
}

func NewAPICall(modelID *uuid.UUID, identifier string, latency time.Duration, statusCode int, errMsg string) *APICall {
	ms := latency.Milliseconds()
	if ms < 0 {
		ms = 0
	}

	call := &APICall{
		ID:         uuid.New(),
		CreatedAt:  time.Now(),
		ModelID:    modelID,
		Identifier: identifier,
		LatencyMS:  ms,
		StatusCode: statusCode,
	}
	if errMsg != "" {
		call.ErrorMessage = &errMsg
	}
	return call
}
