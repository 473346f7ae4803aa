package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"model-gateway-service/internal/adapters/primary/http/dto"
	"model-gateway-service/internal/adapters/primary/http/middleware"
	"model-gateway-service/internal/core/domain"
	"model-gateway-service/internal/core/services"
)

func (h *Handler) DeployModel(c *gin.Context) {
	var req dto.DeployRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.DeployResponse{Error: err.Error()})
		return
	}

	modelID, err := uuid.Parse(req.ModelID)
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.DeployResponse{Error: domain.ErrInvalidModelID.Error()})
		return
	}

	result, err := h.deploySvc.Deploy(c.Request.Context(), services.DeployRequest{
		ModelID: modelID,
		GPUType: req.GPUType,
		UserID:  middleware.UserID(c),
	})
	if err != nil {
		status, msg := statusFor(err)
		log.WithError(err).WithFields(log.Fields{
			"model_id": modelID,
			"status":   status,
		}).Error("deploy model failed")

		resp := dto.DeployResponse{Error: msg}
		if result != nil {
			d := dto.ToDeploymentResponse(result.Deployment)
			resp.Deployment = &d
			resp.Script = result.Script
			resp.Response = result.Response
		}
		c.JSON(status, resp)
		return
	}

	d := dto.ToDeploymentResponse(result.Deployment)
	c.JSON(http.StatusOK, dto.DeployResponse{
		Success:    true,
		Deployment: &d,
		Script:     result.Script,
		Response:   result.Response,
	})
}

func (h *Handler) GetDeployment(c *gin.Context) {
	modelID, err := uuid.Parse(c.Param("modelId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": domain.ErrInvalidModelID.Error()})
		return
	}

	d, err := h.deploySvc.Get(c.Request.Context(), modelID)
	if err != nil {
		mapDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToDeploymentResponse(d))
}

func (h *Handler) ListDeployments(c *gin.Context) {
	ds, err := h.deploySvc.List(c.Request.Context())
	if err != nil {
		log.WithError(err).Error("list deployments failed")
		mapDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToListDeploymentsResponse(ds))
}
