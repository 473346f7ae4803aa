package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"model-gateway-service/internal/core/domain"
)

// statusFor maps a domain error to an HTTP status and the message shown to
// the caller. Unclassified errors are hidden behind a generic message.
func statusFor(err error) (int, string) {
	switch {
	// Not found errors
	case errors.Is(err, domain.ErrModelNotFound),
		errors.Is(err, domain.ErrDeploymentNotFound),
		errors.Is(err, domain.ErrModelNotDeployed):
		return http.StatusNotFound, err.Error()

	// Credential errors
	case errors.Is(err, domain.ErrMissingCredential),
		errors.Is(err, domain.ErrMissingIdentity):
		return http.StatusUnauthorized, err.Error()
	case errors.Is(err, domain.ErrInvalidCredential):
		return http.StatusForbidden, err.Error()

	// Bad request / validation errors
	case errors.Is(err, domain.ErrInvalidModelID),
		errors.Is(err, domain.ErrInvalidStatus),
		errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusBadRequest, err.Error()

	// Concurrent deploys of one model
	case errors.Is(err, domain.ErrLockNotAcquired):
		return http.StatusConflict, domain.ErrLockNotAcquired.Error()

	// Serving backend errors
	case errors.Is(err, domain.ErrBackendUnavailable),
		errors.Is(err, domain.ErrDeployRejected):
		return http.StatusBadGateway, err.Error()
	case errors.Is(err, domain.ErrInferenceTimeout):
		return http.StatusGatewayTimeout, err.Error()

	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

func mapDomainError(c *gin.Context, err error) {
	status, msg := statusFor(err)
	c.JSON(status, gin.H{"error": msg})
}
