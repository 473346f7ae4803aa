package handlers

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"model-gateway-service/internal/adapters/primary/http/dto"
	"model-gateway-service/internal/adapters/primary/http/middleware"
	"model-gateway-service/internal/core/services"
)

const maxRequestBodyBytes = 32 << 20

// Invoke proxies an inference payload to the addressed model. The response
// envelope's status_code is also the HTTP status, except for statuses that
// forbid a body, which are answered with 200 so the envelope still arrives.
func (h *Handler) Invoke(c *gin.Context) {
	started := time.Now()
	identifier := c.Param("identifier")

	apiKey, ok := middleware.BearerToken(c.GetHeader("Authorization"))
	if !ok {
		// Rejected for the missing credential without reading the body.
		h.respondInference(c, h.gateway.Invoke(c.Request.Context(), services.InferenceRequest{
			Identifier: identifier,
		}))
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxRequestBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.respondInference(c, h.gateway.Reject(identifier, http.StatusRequestEntityTooLarge, "request body too large", started))
			return
		}
		h.respondInference(c, h.gateway.Reject(identifier, http.StatusBadRequest, err.Error(), started))
		return
	}

	h.respondInference(c, h.gateway.Invoke(c.Request.Context(), services.InferenceRequest{
		Identifier: identifier,
		APIKey:     apiKey,
		Body:       body,
	}))
}

func (h *Handler) respondInference(c *gin.Context, res *services.InferenceResult) {
	c.JSON(envelopeStatus(res.StatusCode), dto.ToInferenceResponse(res))
}

// envelopeStatus returns the HTTP status used to deliver an envelope that
// carries code.
func envelopeStatus(code int) int {
	switch {
	case code < http.StatusOK,
		code == http.StatusNoContent,
		code == http.StatusNotModified:
		return http.StatusOK
	}
	return code
}
