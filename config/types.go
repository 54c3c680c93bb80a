package config

import (
	"time"

	"github.com/gaborage/go-bricks-rest/observability"
)

// Config represents the overall configuration of a REST client process:
// the client itself, logging, and OpenTelemetry export.
type Config struct {
	Client        ClientConfig         `koanf:"client" json:"client" yaml:"client" mapstructure:"client"`
	Log           LogConfig            `koanf:"log" json:"log" yaml:"log" mapstructure:"log"`
	Observability observability.Config `koanf:"observability" json:"observability" yaml:"observability" mapstructure:"observability"`
}

// ClientConfig holds dispatcher settings.
type ClientConfig struct {
	// BaseAddress resolves relative call targets. Optional.
	BaseAddress string `koanf:"baseaddress" json:"baseaddress" yaml:"baseaddress" mapstructure:"baseaddress" validate:"omitempty,url"`
	// Timeout bounds each attempt.
	Timeout        time.Duration     `koanf:"timeout" json:"timeout" yaml:"timeout" mapstructure:"timeout" validate:"gt=0"`
	DefaultHeaders map[string]string `koanf:"defaultheaders" json:"defaultheaders" yaml:"defaultheaders" mapstructure:"defaultheaders"`
	APIKeyHeader   string            `koanf:"apikeyheader" json:"apikeyheader" yaml:"apikeyheader" mapstructure:"apikeyheader"`

	Auth      AuthConfig      `koanf:"auth" json:"auth" yaml:"auth" mapstructure:"auth"`
	Retry     RetryConfig     `koanf:"retry" json:"retry" yaml:"retry" mapstructure:"retry"`
	RateLimit RateLimitConfig `koanf:"ratelimit" json:"ratelimit" yaml:"ratelimit" mapstructure:"ratelimit"`

	LogPayloads        bool   `koanf:"logpayloads" json:"logpayloads" yaml:"logpayloads" mapstructure:"logpayloads"`
	MaxPayloadLogBytes int    `koanf:"maxpayloadlogbytes" json:"maxpayloadlogbytes" yaml:"maxpayloadlogbytes" mapstructure:"maxpayloadlogbytes" validate:"gte=0"`
	RequestIDHeader    string `koanf:"requestidheader" json:"requestidheader" yaml:"requestidheader" mapstructure:"requestidheader"`
	MaxErrorBodyBytes  int64  `koanf:"maxerrorbodybytes" json:"maxerrorbodybytes" yaml:"maxerrorbodybytes" mapstructure:"maxerrorbodybytes" validate:"gte=0"`
}

// AuthConfig holds default credentials applied by callers that read them
// from configuration. Token is masked by the logger filter.
type AuthConfig struct {
	Scheme string `koanf:"scheme" json:"scheme" yaml:"scheme" mapstructure:"scheme" validate:"omitempty,oneof=none bearer basic apikey"`
	Token  string `koanf:"token" json:"-" yaml:"token" mapstructure:"token"`
}

// RetryConfig holds exponential backoff settings.
type RetryConfig struct {
	// MaxAttempts counts the first attempt.
	MaxAttempts       int           `koanf:"maxattempts" json:"maxattempts" yaml:"maxattempts" mapstructure:"maxattempts" validate:"gte=1,lte=10"`
	BaseDelay         time.Duration `koanf:"basedelay" json:"basedelay" yaml:"basedelay" mapstructure:"basedelay" validate:"gt=0"`
	Multiplier        float64       `koanf:"multiplier" json:"multiplier" yaml:"multiplier" mapstructure:"multiplier" validate:"gte=1"`
	MaxDelay          time.Duration `koanf:"maxdelay" json:"maxdelay" yaml:"maxdelay" mapstructure:"maxdelay" validate:"gtefield=BaseDelay"`
	Jitter            float64       `koanf:"jitter" json:"jitter" yaml:"jitter" mapstructure:"jitter" validate:"gte=0,lte=1"`
	Strictness        string        `koanf:"strictness" json:"strictness" yaml:"strictness" mapstructure:"strictness" validate:"oneof=transient server_errors"`
	RespectRetryAfter bool          `koanf:"respectretryafter" json:"respectretryafter" yaml:"respectretryafter" mapstructure:"respectretryafter"`
}

// RateLimitConfig holds client-side rate limiting settings. Zero
// RequestsPerSecond disables limiting.
type RateLimitConfig struct {
	RequestsPerSecond float64 `koanf:"requestspersecond" json:"requestspersecond" yaml:"requestspersecond" mapstructure:"requestspersecond" validate:"gte=0"`
	Burst             int     `koanf:"burst" json:"burst" yaml:"burst" mapstructure:"burst" validate:"gte=0"`
}

// Enabled reports whether a limiter should be installed.
func (r RateLimitConfig) Enabled() bool {
	return r.RequestsPerSecond > 0
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `koanf:"level" json:"level" yaml:"level" mapstructure:"level" validate:"oneof=trace debug info warn error"`
	Pretty bool   `koanf:"pretty" json:"pretty" yaml:"pretty" mapstructure:"pretty"`
}
