package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Validate reports every invalid field, joined.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if c.Server.MaxBodyBytes <= 0 {
		errs = append(errs, fmt.Errorf("server.max_body_bytes must be > 0, got %d", c.Server.MaxBodyBytes))
	}
	if _, err := c.Server.TrustedProxyPrefixes(); err != nil {
		errs = append(errs, err)
	}
	if len(c.Auth.TokenSecret) < 16 {
		errs = append(errs, errors.New("auth.token_secret must be at least 16 bytes"))
	}
	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, fmt.Errorf("auth.token_ttl must be > 0, got %s", c.Auth.TokenTTL))
	}
	if c.RateLimit.Limit <= 0 {
		errs = append(errs, fmt.Errorf("ratelimit.limit must be > 0, got %d", c.RateLimit.Limit))
	}
	if c.RateLimit.Window <= 0 {
		errs = append(errs, fmt.Errorf("ratelimit.window must be > 0, got %s", c.RateLimit.Window))
	}
	switch c.RateLimit.Backend {
	case "memory":
	case "redis":
		if c.Redis.Addr == "" {
			errs = append(errs, errors.New("redis.addr is required when ratelimit.backend is \"redis\""))
		}
	default:
		errs = append(errs, fmt.Errorf("ratelimit.backend must be \"memory\" or \"redis\", got %q", c.RateLimit.Backend))
	}
	if u, err := url.Parse(c.Annotation.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("annotation.base_url must be an absolute URL, got %q", c.Annotation.BaseURL))
	}
	if c.Annotation.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("annotation.timeout must be > 0, got %s", c.Annotation.Timeout))
	}
	if c.Bridge.MaxTTL <= 0 {
		errs = append(errs, fmt.Errorf("bridge.max_ttl must be > 0, got %s", c.Bridge.MaxTTL))
	}
	if c.Bridge.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("bridge.max_attempts must be >= 1, got %d", c.Bridge.MaxAttempts))
	}
	if c.Audit.QueueSize <= 0 {
		errs = append(errs, fmt.Errorf("audit.queue_size must be > 0, got %d", c.Audit.QueueSize))
	}
	switch c.Audit.Sink {
	case "log":
	case "postgres", "both":
		if c.Database.DSN == "" {
			errs = append(errs, fmt.Errorf("database.dsn is required when audit.sink is %q", c.Audit.Sink))
		}
	default:
		errs = append(errs, fmt.Errorf("audit.sink must be \"log\", \"postgres\" or \"both\", got %q", c.Audit.Sink))
	}

	return errors.Join(errs...)
}
