package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	ProvisionerDeployAPI = "deployapi"
	ProvisionerKServe    = "kserve"
)

type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	DeploymentAPI DeploymentAPIConfig
	Gateway       GatewayConfig
	CallLog       CallLogConfig
	Provisioner   string
	Kubernetes    KubernetesConfig
	Redis         RedisConfig
	Auth          AuthConfig
	CORS          CORSConfig
	Logger        LoggerConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// DeploymentAPIConfig points at the external model-serving backend.
type DeploymentAPIConfig struct {
	URL     string
	Timeout time.Duration
}

type GatewayConfig struct {
	ForwardTimeout time.Duration
}

type CallLogConfig struct {
	QueueSize    int
	WriteTimeout time.Duration
	EnqueueWait  time.Duration
}

type KubernetesConfig struct {
	InCluster      bool
	KubeConfigPath string
	Namespace      string
	ReadyTimeout   time.Duration
	PollInterval   time.Duration
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	LockTTL  time.Duration
}

type AuthConfig struct {
	JWTSecret string
	JWTIssuer string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LoggerConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	// A .env file is optional.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()

	// Defaults
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_PORT", 8080)
	v.SetDefault("DATABASE_HOST", "localhost")
	v.SetDefault("DATABASE_PORT", 5432)
	v.SetDefault("DATABASE_USER", "postgres")
	v.SetDefault("DATABASE_PASSWORD", "postgres")
	v.SetDefault("DATABASE_NAME", "model_gateway")
	v.SetDefault("DATABASE_SSLMODE", "disable")
	v.SetDefault("DATABASE_MAX_OPEN_CONNS", 20)
	v.SetDefault("DATABASE_MAX_IDLE_CONNS", 2)
	v.SetDefault("DATABASE_CONN_MAX_LIFETIME", "30m")
	v.SetDefault("DEPLOYMENT_API_URL", "http://localhost:8000")
	v.SetDefault("DEPLOYMENT_API_TIMEOUT", "5m")
	v.SetDefault("GATEWAY_FORWARD_TIMEOUT", "30s")
	v.SetDefault("CALL_LOG_QUEUE_SIZE", 1024)
	v.SetDefault("CALL_LOG_WRITE_TIMEOUT", "5s")
	v.SetDefault("CALL_LOG_ENQUEUE_WAIT", "50ms")
	v.SetDefault("PROVISIONER", ProvisionerDeployAPI)
	v.SetDefault("KUBERNETES_IN_CLUSTER", false)
	v.SetDefault("KUBERNETES_KUBECONFIG", "")
	v.SetDefault("KUBERNETES_NAMESPACE", "model-serving")
	v.SetDefault("KUBERNETES_READY_TIMEOUT", "5m")
	v.SetDefault("KUBERNETES_POLL_INTERVAL", "5s")
	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_LOCK_TTL", "10m")
	v.SetDefault("AUTH_JWT_SECRET", "")
	v.SetDefault("AUTH_JWT_ISSUER", "")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "")
	v.SetDefault("LOGGER_LEVEL", "info")
	v.SetDefault("LOGGER_FORMAT", "json")

	// Env
	v.AutomaticEnv()

	provisioner := strings.ToLower(v.GetString("PROVISIONER"))
	if provisioner != ProvisionerDeployAPI && provisioner != ProvisionerKServe {
		return nil, fmt.Errorf("unknown PROVISIONER %q", provisioner)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: v.GetString("SERVER_HOST"),
			Port: v.GetInt("SERVER_PORT"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("DATABASE_HOST"),
			Port:            v.GetInt("DATABASE_PORT"),
			User:            v.GetString("DATABASE_USER"),
			Password:        v.GetString("DATABASE_PASSWORD"),
			Name:            v.GetString("DATABASE_NAME"),
			SSLMode:         v.GetString("DATABASE_SSLMODE"),
			MaxOpenConns:    v.GetInt("DATABASE_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DATABASE_MAX_IDLE_CONNS"),
			ConnMaxLifetime: durationOr(v, "DATABASE_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		DeploymentAPI: DeploymentAPIConfig{
			URL:     strings.TrimRight(v.GetString("DEPLOYMENT_API_URL"), "/"),
			Timeout: durationOr(v, "DEPLOYMENT_API_TIMEOUT", 5*time.Minute),
		},
		Gateway: GatewayConfig{
			ForwardTimeout: durationOr(v, "GATEWAY_FORWARD_TIMEOUT", 30*time.Second),
		},
		CallLog: CallLogConfig{
			QueueSize:    v.GetInt("CALL_LOG_QUEUE_SIZE"),
			WriteTimeout: durationOr(v, "CALL_LOG_WRITE_TIMEOUT", 5*time.Second),
			EnqueueWait:  durationOr(v, "CALL_LOG_ENQUEUE_WAIT", 50*time.Millisecond),
		},
		Provisioner: provisioner,
		Kubernetes: KubernetesConfig{
			InCluster:      v.GetBool("KUBERNETES_IN_CLUSTER"),
			KubeConfigPath: v.GetString("KUBERNETES_KUBECONFIG"),
			Namespace:      v.GetString("KUBERNETES_NAMESPACE"),
			ReadyTimeout:   durationOr(v, "KUBERNETES_READY_TIMEOUT", 5*time.Minute),
			PollInterval:   durationOr(v, "KUBERNETES_POLL_INTERVAL", 5*time.Second),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("REDIS_ENABLED"),
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
			LockTTL:  durationOr(v, "REDIS_LOCK_TTL", 10*time.Minute),
		},
		Auth: AuthConfig{
			JWTSecret: v.GetString("AUTH_JWT_SECRET"),
			JWTIssuer: v.GetString("AUTH_JWT_ISSUER"),
		},
		CORS: CORSConfig{
			AllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		},
		Logger: LoggerConfig{
			Level:  v.GetString("LOGGER_LEVEL"),
			Format: v.GetString("LOGGER_FORMAT"),
		},
	}

	return cfg, nil
}

func durationOr(v *viper.Viper, key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(v.GetString(key))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
