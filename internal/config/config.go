package config

import (
	"fmt"
	"net/netip"
	"strings"
	"time"
)

// Config holds all gateway settings. Zero values are replaced by Defaults.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Auth       AuthConfig       `yaml:"auth"`
	RateLimit  RateLimitConfig  `yaml:"ratelimit"`
	Annotation AnnotationConfig `yaml:"annotation"`
	Bridge     BridgeConfig     `yaml:"bridge"`
	Audit      AuditConfig      `yaml:"audit"`
	Dashboard  DashboardConfig  `yaml:"dashboard"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	GRPCAddr        string        `yaml:"grpc_addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`
	CORSOrigins     []string      `yaml:"cors_origins"`
	// TrustedProxies lists the CIDRs or addresses allowed to set X-Forwarded-For.
	TrustedProxies  []string      `yaml:"trusted_proxies"`
}

// TrustedProxyPrefixes parses TrustedProxies; a bare address is a single-host prefix.
func (s ServerConfig) TrustedProxyPrefixes() ([]netip.Prefix, error) {
	out := make([]netip.Prefix, 0, len(s.TrustedProxies))
	for _, raw := range s.TrustedProxies {
		raw = strings.TrimSpace(raw)
		if strings.Contains(raw, "/") {
			p, err := netip.ParsePrefix(raw)
			if err != nil {
				return nil, fmt.Errorf("server.trusted_proxies: %w", err)
			}
			out = append(out, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(raw)
		if err != nil {
			return nil, fmt.Errorf("server.trusted_proxies: %w", err)
		}
		addr = addr.Unmap()
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}

type DatabaseConfig struct {
	// DSN selects the Postgres store; empty keeps everything in memory.
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	MigrateOnStart  bool          `yaml:"migrate_on_start"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type AuthConfig struct {
	TokenSecret string        `yaml:"token_secret"`
	Issuer      string        `yaml:"issuer"`
	TokenTTL    time.Duration `yaml:"token_ttl"`
}

type RateLimitConfig struct {
	Limit  int           `yaml:"limit"`
	Window time.Duration `yaml:"window"`
	// Backend is "memory" or "redis".
	Backend string `yaml:"backend"`
}

type AnnotationConfig struct {
	BaseURL      string        `yaml:"base_url"`
	ServiceToken string        `yaml:"service_token"`
	Timeout      time.Duration `yaml:"timeout"`
	RPS          float64       `yaml:"rps"`
	Burst        int           `yaml:"burst"`
}

type BridgeConfig struct {
	MaxTTL        time.Duration `yaml:"max_ttl"`
	MaxAttempts   int           `yaml:"max_attempts"`
	BaseBackoff   time.Duration `yaml:"base_backoff"`
	FlightTimeout time.Duration `yaml:"flight_timeout"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

type AuditConfig struct {
	QueueSize int `yaml:"queue_size"`
	// Sink is "log", "postgres" or "both".
	Sink string `yaml:"sink"`
}

type DashboardConfig struct {
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			GRPCAddr:        ":9090",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			MaxBodyBytes:    1 << 20,
			CORSOrigins:     []string{"http://localhost:3000"},
		},
		Database: DatabaseConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    10,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Auth: AuthConfig{
			Issuer:   "aibridge",
			TokenTTL: 24 * time.Hour,
		},
		RateLimit: RateLimitConfig{
			Limit:   1000,
			Window:  time.Hour,
			Backend: "memory",
		},
		Annotation: AnnotationConfig{
			BaseURL: "http://localhost:8081",
			Timeout: 5 * time.Second,
			RPS:     50,
			Burst:   10,
		},
		Bridge: BridgeConfig{
			MaxTTL:        time.Hour,
			MaxAttempts:   3,
			BaseBackoff:   100 * time.Millisecond,
			FlightTimeout: 15 * time.Second,
			SweepInterval: time.Minute,
		},
		Audit: AuditConfig{
			QueueSize: 1024,
			Sink:      "log",
		},
		Dashboard: DashboardConfig{
			CacheTTL: 5 * time.Minute,
		},
	}
}
