package http

import (
	"golang.org/x/time/rate"

	"github.com/gaborage/go-bricks-rest/auth"
	"github.com/gaborage/go-bricks-rest/config"
	"github.com/gaborage/go-bricks-rest/logger"
	"github.com/gaborage/go-bricks-rest/retry"
)

// NewFromConfig creates a client from loaded configuration.
func NewFromConfig(cfg *config.ClientConfig, log logger.Logger) (*Client, error) {
	if cfg == nil {
		return nil, NewValidationError("client config cannot be nil", "config")
	}

	opts := Options{
		BaseAddress:        cfg.BaseAddress,
		Timeout:            cfg.Timeout,
		DefaultHeaders:     cfg.DefaultHeaders,
		Retry:              RetryPolicyFromConfig(cfg.Retry),
		APIKeyHeader:       cfg.APIKeyHeader,
		Logger:             log,
		LogPayloads:        cfg.LogPayloads,
		MaxPayloadLogBytes: cfg.MaxPayloadLogBytes,
		RequestIDHeader:    cfg.RequestIDHeader,
		MaxErrorBodyBytes:  cfg.MaxErrorBodyBytes,
	}
	if cfg.RateLimit.Enabled() {
		burst := max(cfg.RateLimit.Burst, 1)
		opts.RateLimiter = rate.NewLimiter(rate.Limit(cfg.RateLimit.RequestsPerSecond), burst)
	}

	return New(opts)
}

// RetryPolicyFromConfig maps retry configuration onto a backoff policy.
func RetryPolicyFromConfig(cfg config.RetryConfig) *retry.Backoff {
	return &retry.Backoff{
		MaxAttempts:       cfg.MaxAttempts,
		BaseDelay:         cfg.BaseDelay,
		Multiplier:        cfg.Multiplier,
		MaxDelay:          cfg.MaxDelay,
		Jitter:            cfg.Jitter,
		Statuses:          retry.StatusesFor(retry.Strictness(cfg.Strictness)),
		RespectRetryAfter: cfg.RespectRetryAfter,
	}
}

// CredentialsFromConfig returns the configured credentials, ready for WithAuth.
func CredentialsFromConfig(cfg config.AuthConfig) (auth.Credentials, error) {
	scheme, err := auth.ParseScheme(cfg.Scheme)
	if err != nil {
		return auth.Credentials{}, wrapValidationError("invalid auth scheme", "auth.scheme", err)
	}
	return auth.Credentials{Scheme: scheme, Token: cfg.Token}, nil
}
