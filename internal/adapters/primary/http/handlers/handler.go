package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"model-gateway-service/internal/core/services"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	deploySvc *services.DeployService
	gateway   *services.InferenceGateway
	db        Pinger
}

func New(
	deploySvc *services.DeployService,
	gateway *services.InferenceGateway,
	db Pinger,
) *Handler {
	return &Handler{
		deploySvc: deploySvc,
		gateway:   gateway,
		db:        db,
	}
}

// RegisterRoutes mounts the API. identity guards the deployment endpoints;
// the inference route authenticates with model API keys instead.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup, identity gin.HandlerFunc) {
	// Health
	r.GET("/healthz", h.Health)

	// Inference Gateway
	r.POST("/model/:identifier", h.Invoke)

	// Deployments
	deployments := r.Group("/deployments", identity)
	deployments.POST("", h.DeployModel)
	deployments.GET("", h.ListDeployments)
	deployments.GET("/:modelId", h.GetDeployment)
}
