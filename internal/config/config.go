package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/cassiama/LicenseGuard-API/internal/logger"
	"github.com/cassiama/LicenseGuard-API/internal/utils"
)

// Config is everything the process needs at startup. Values come from an
// optional YAML file first, then the environment (env wins so deployments can
// override a checked-in file).
type Config struct {
	Port         string        `yaml:"port"`
	LogMode      string        `yaml:"log_mode"`
	ServiceName  string        `yaml:"service_name"`
	Environment  string        `yaml:"environment"`
	Version      string        `yaml:"version"`
	AllowOrigins []string      `yaml:"allow_origins"`
	JWTSecretKey string        `yaml:"jwt_secret_key"`
	AccessTTL    time.Duration `yaml:"-"`
	InferTimeout time.Duration `yaml:"-"`

	// RecordStore selects where project records live: "postgres" (default)
	// or "redis".
	RecordStore string `yaml:"record_store"`
	RedisAddr   string `yaml:"redis_addr"`

	AccessTTLMinutes    int `yaml:"access_ttl_minutes"`
	InferTimeoutSeconds int `yaml:"infer_timeout_seconds"`
}

// Load reads .env (if present), the YAML file named by CONFIG_FILE (if
// present), then the environment.
func Load(log *logger.Logger) Config {
	if err := godotenv.Load(); err == nil {
		log.Info("loaded .env file")
	}

	cfg := Config{
		Port:                "8000",
		LogMode:             "development",
		ServiceName:         "licenseguard-api",
		Environment:         "development",
		RecordStore:         "postgres",
		AccessTTLMinutes:    30,
		InferTimeoutSeconds: 60,
	}

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			log.Warn("could not read config file", "path", path, "error", err)
		} else if err := yaml.Unmarshal(raw, &cfg); err != nil {
			log.Warn("could not parse config file", "path", path, "error", err)
		} else {
			log.Info("loaded config file", "path", path)
		}
	}

	cfg.Port = utils.GetEnv("PORT", cfg.Port, log)
	cfg.LogMode = utils.GetEnv("LOG_MODE", cfg.LogMode, log)
	cfg.ServiceName = utils.GetEnv("SERVICE_NAME", cfg.ServiceName, log)
	cfg.Environment = utils.GetEnv("ENVIRONMENT", cfg.Environment, log)
	cfg.Version = utils.GetEnv("SERVICE_VERSION", cfg.Version, log)
	cfg.JWTSecretKey = utils.GetEnv("JWT_SECRET_KEY", cfg.JWTSecretKey, log)
	cfg.RecordStore = strings.ToLower(utils.GetEnv("RECORD_STORE", cfg.RecordStore, log))
	cfg.RedisAddr = utils.GetEnv("REDIS_ADDR", cfg.RedisAddr, log)
	cfg.AccessTTLMinutes = utils.GetEnvAsInt("ACCESS_TOKEN_TTL_MINUTES", cfg.AccessTTLMinutes, log)
	cfg.InferTimeoutSeconds = utils.GetEnvAsInt("INFERENCE_TIMEOUT_SECONDS", cfg.InferTimeoutSeconds, log)

	if origins := strings.TrimSpace(os.Getenv("ALLOW_ORIGINS")); origins != "" {
		cfg.AllowOrigins = cfg.AllowOrigins[:0]
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.AllowOrigins = append(cfg.AllowOrigins, o)
			}
		}
	}

	if cfg.JWTSecretKey == "" {
		cfg.JWTSecretKey = "defaultsecret"
		log.Warn("JWT_SECRET_KEY not set, using an insecure default")
	}
	cfg.AccessTTL = time.Duration(cfg.AccessTTLMinutes) * time.Minute
	cfg.InferTimeout = time.Duration(cfg.InferTimeoutSeconds) * time.Second
	return cfg
}
