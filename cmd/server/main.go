package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"model-gateway-service/internal/adapters/primary/http/handlers"
	"model-gateway-service/internal/adapters/primary/http/middleware"
	"model-gateway-service/internal/adapters/secondary/deployapi"
	"model-gateway-service/internal/adapters/secondary/kserve"
	"model-gateway-service/internal/adapters/secondary/postgres"
	"model-gateway-service/internal/adapters/secondary/redislock"
	"model-gateway-service/internal/config"
	output "model-gateway-service/internal/core/ports/output"
	"model-gateway-service/internal/core/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	initLogger(cfg)

	// Create database pool
	poolCfg, err := pgxpool.ParseConfig(cfg.Database.DSN())
	if err != nil {
		log.Fatalf("parse db config: %v", err)
	}
	poolCfg.MaxConns = int32(cfg.Database.MaxOpenConns)
	poolCfg.MinConns = int32(cfg.Database.MaxIdleConns)
	poolCfg.MaxConnLifetime = cfg.Database.ConnMaxLifetime

	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		log.Fatalf("create db pool: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(context.Background()); err != nil {
		log.Fatalf("ping db: %v", err)
	}
	log.Info("database connection established")

	if err := postgres.Migrate(context.Background(), pool); err != nil {
		log.Fatalf("migrate db: %v", err)
	}

	// ============================================================================
	// Hexagonal Architecture Wiring
	// ============================================================================

	// Secondary Adapters (Output Ports - Repositories)
	modelRepo := postgres.NewModelRepository(pool)
	deploymentRepo := postgres.NewDeploymentRepository(pool)
	subscriptionRepo := postgres.NewSubscriptionRepository(pool)
	apiCallRepo := postgres.NewAPICallRepository(pool)

	// Per-model deploy lock: redis when several replicas share the database
	var locker output.ModelLocker = services.NewLocalLocker()
	if cfg.Redis.Enabled {
		client, err := redislock.NewClient(context.Background(), &cfg.Redis)
		if err != nil {
			log.Fatalf("connect redis: %v", err)
		}
		defer client.Close()
		locker = redislock.NewLocker(client, cfg.Redis.LockTTL)
		log.WithField("addr", cfg.Redis.Addr).Info("using redis deployment lock")
	} else {
		log.Info("using in-process deployment lock")
	}

	// Serving backend
	var provisioner output.Provisioner
	switch cfg.Provisioner {
	case config.ProvisionerKServe:
		provisioner, err = kserve.NewProvisioner(&cfg.Kubernetes)
		if err != nil {
			log.Fatalf("init kserve provisioner: %v", err)
		}
		log.WithField("namespace", cfg.Kubernetes.Namespace).Info("KServe provisioner initialized")
	default:
		provisioner = deployapi.NewClient(&cfg.DeploymentAPI)
		log.WithField("url", cfg.DeploymentAPI.URL).Info("deployment API provisioner initialized")
	}

	// Call log worker
	callLogger := services.NewCallLogger(apiCallRepo, cfg.CallLog.QueueSize, cfg.CallLog.WriteTimeout, cfg.CallLog.EnqueueWait)
	callLogger.Start()
	go func() {
		for err := range callLogger.Errors() {
			log.WithError(err).Debug("call log error")
		}
	}()

	// Core Services (Application Layer)
	store := services.NewDeploymentStore(deploymentRepo, locker, services.NewKeyIssuer())
	deploySvc := services.NewDeployService(modelRepo, store, provisioner)
	authorizer := services.NewDefaultAuthorizer(modelRepo, deploymentRepo, subscriptionRepo)
	gateway := services.NewInferenceGateway(authorizer, callLogger, &http.Client{}, cfg.Gateway.ForwardTimeout)

	// Primary Adapter (HTTP Handlers)
	h := handlers.New(deploySvc, gateway, pool)

	if cfg.Auth.JWTSecret == "" {
		log.Warn("AUTH_JWT_SECRET is not set, deployment endpoints will reject every request")
	}

	// Setup router
	router := gin.New()
	router.Use(middleware.RequestID(), middleware.Logging(), gin.Recovery())
	if len(cfg.CORS.AllowedOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.HeaderRequestID},
			ExposeHeaders:    []string{"Content-Length", middleware.HeaderRequestID},
			AllowCredentials: true,
			MaxAge:           5 * time.Minute,
		}))
	}

	h.RegisterRoutes(router.Group(""), middleware.Identity(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer))

	// Start server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Infof("starting server on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorf("server forced shutdown: %v", err)
	}

	// In-flight requests are done; flush pending call logs.
	if err := callLogger.Close(ctx); err != nil {
		log.WithError(err).Warn("call log queue not fully drained")
	}

	log.Info("server stopped")
}

func initLogger(cfg *config.Config) {
	level, err := log.ParseLevel(cfg.Logger.Level)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)

	if cfg.Logger.Format == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
}
