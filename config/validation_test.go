package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaborage/go-bricks-rest/observability"
)

func validConfig() *Config {
	return &Config{
		Client: ClientConfig{
			BaseAddress: "https://api.example.com",
			Timeout:     5 * time.Second,
			Retry: RetryConfig{
				MaxAttempts: 3,
				BaseDelay:   100 * time.Millisecond,
				Multiplier:  2,
				MaxDelay:    time.Second,
				Jitter:      0.1,
				Strictness:  "transient",
			},
		},
		Log: LogConfig{Level: "info"},
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	assert.NoError(t, Validate(validConfig()))
}

func TestValidate_Nil(t *testing.T) {
	assert.Error(t, Validate(nil))
}

func TestValidate_FieldErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{name: "relative_base_address", mutate: func(c *Config) { c.Client.BaseAddress = "api/v1" }, field: "client.baseaddress"},
		{name: "zero_timeout", mutate: func(c *Config) { c.Client.Timeout = 0 }, field: "client.timeout"},
		{name: "too_many_attempts", mutate: func(c *Config) { c.Client.Retry.MaxAttempts = 11 }, field: "client.retry.maxattempts"},
		{name: "multiplier_below_one", mutate: func(c *Config) { c.Client.Retry.Multiplier = 0.5 }, field: "client.retry.multiplier"},
		{name: "max_delay_below_base", mutate: func(c *Config) { c.Client.Retry.MaxDelay = time.Millisecond }, field: "client.retry.maxdelay"},
		{name: "jitter_above_one", mutate: func(c *Config) { c.Client.Retry.Jitter = 1.5 }, field: "client.retry.jitter"},
		{name: "unknown_auth_scheme", mutate: func(c *Config) { c.Client.Auth.Scheme = "digest" }, field: "client.auth.scheme"},
		{name: "negative_rate", mutate: func(c *Config) { c.Client.RateLimit.RequestsPerSecond = -1 }, field: "client.ratelimit.requestspersecond"},
		{name: "unknown_log_level", mutate: func(c *Config) { c.Log.Level = "verbose" }, field: "log.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			require.Error(t, err)
			assert.True(t, HasFieldError(err, tt.field), "expected %s in %v", tt.field, err)
		})
	}
}

func TestValidate_ReportsEveryField(t *testing.T) {
	cfg := validConfig()
	cfg.Client.Timeout = 0
	cfg.Log.Level = "loud"

	errs := FieldErrors(Validate(cfg))
	require.Len(t, errs, 2)
	for _, e := range errs {
		assert.Equal(t, "invalid", e.Category)
		assert.Contains(t, e.Error(), "config_invalid:")
	}
}

func TestValidate_Observability(t *testing.T) {
	cfg := validConfig()
	cfg.Observability = observability.Config{Enabled: true}

	err := Validate(cfg)
	require.Error(t, err)
	assert.True(t, HasFieldError(err, "observability"))
}

func TestConfigErrorFormat(t *testing.T) {
	err := NewInvalidFieldError("client.retry.strictness", "unsupported value", []string{"transient", "server_errors"})
	assert.Equal(t, "config_invalid: client.retry.strictness unsupported value must be one of: transient, server_errors", err.Error())
}
