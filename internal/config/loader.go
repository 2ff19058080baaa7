package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Load builds the configuration in layers: defaults, then the YAML file
// (explicit path, AIBRIDGE_CONFIG, ./config.yaml), then AIBRIDGE_* env
// overrides, then validation.
func Load(configPath string) (*Config, error) {
	cfg := Defaults()

	if path := discoverConfigFile(configPath); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return &cfg, nil
}

func discoverConfigFile(configPath string) string {
	if configPath != "" {
		return configPath
	}
	if envPath := os.Getenv("AIBRIDGE_CONFIG"); envPath != "" {
		return envPath
	}
	if _, err := os.Stat("config.yaml"); err == nil {
		return "config.yaml"
	}
	return ""
}

func applyEnvOverrides(cfg *Config) error {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	str("AIBRIDGE_ADDR", &cfg.Server.Addr)
	str("AIBRIDGE_GRPC_ADDR", &cfg.Server.GRPCAddr)
	str("AIBRIDGE_PG_DSN", &cfg.Database.DSN)
	str("AIBRIDGE_REDIS_ADDR", &cfg.Redis.Addr)
	str("AIBRIDGE_REDIS_PASSWORD", &cfg.Redis.Password)
	str("AIBRIDGE_AUTH_SECRET", &cfg.Auth.TokenSecret)
	str("AIBRIDGE_RATELIMIT_BACKEND", &cfg.RateLimit.Backend)
	str("AIBRIDGE_ANNOTATION_URL", &cfg.Annotation.BaseURL)
	str("AIBRIDGE_ANNOTATION_TOKEN", &cfg.Annotation.ServiceToken)
	str("AIBRIDGE_AUDIT_SINK", &cfg.Audit.Sink)

	if v := os.Getenv("AIBRIDGE_CORS_ORIGINS"); v != "" {
		cfg.Server.CORSOrigins = splitList(v)
	}
	if v := os.Getenv("AIBRIDGE_TRUSTED_PROXIES"); v != "" {
		cfg.Server.TrustedProxies = splitList(v)
	}
	if v := os.Getenv("AIBRIDGE_RATELIMIT_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("AIBRIDGE_RATELIMIT_LIMIT: %w", err)
		}
		cfg.RateLimit.Limit = n
	}
	if v := os.Getenv("AIBRIDGE_RATELIMIT_WINDOW"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("AIBRIDGE_RATELIMIT_WINDOW: %w", err)
		}
		cfg.RateLimit.Window = d
	}
	if v := os.Getenv("AIBRIDGE_TOKEN_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("AIBRIDGE_TOKEN_TTL: %w", err)
		}
		cfg.Auth.TokenTTL = d
	}
	if v := os.Getenv("AIBRIDGE_MIGRATE_ON_START"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("AIBRIDGE_MIGRATE_ON_START: %w", err)
		}
		cfg.Database.MigrateOnStart = b
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
