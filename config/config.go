package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix of environment variables read by Load.
// RESTCLIENT_CLIENT_TIMEOUT maps to client.timeout.
const EnvPrefix = "RESTCLIENT_"

// LoadOptions selects the sources read by Load in addition to defaults.
type LoadOptions struct {
	// File is an optional YAML file. A missing file is an error only when set.
	File string
	// Bytes is optional inline YAML applied after File.
	Bytes []byte
	// Environ replaces os.Environ, mainly for tests.
	Environ func() []string
}

// Load loads configuration from multiple sources with priority:
// 1. Environment variables (highest priority)
// 2. Inline YAML bytes
// 3. YAML configuration file
// 4. Default values (lowest priority)
func Load(opts LoadOptions) (*Config, error) {
	k := koanf.New(".")

	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if opts.File != "" {
		if err := k.Load(file.Provider(opts.File), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", opts.File, err)
		}
	}

	if len(opts.Bytes) > 0 {
		if err := k.Load(rawbytes.Provider(opts.Bytes), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to parse inline configuration: %w", err)
		}
	}

	environ := opts.Environ
	if environ == nil {
		environ = os.Environ
	}
	if err := k.Load(env.Provider(".", env.Opt{
		Prefix: EnvPrefix,
		TransformFunc: func(key, value string) (string, any) {
			// Convert PREFIX_UPPER_CASE to upper.case for koanf
			key = strings.TrimPrefix(key, EnvPrefix)
			return strings.ReplaceAll(strings.ToLower(key), "_", "."), value
		},
		EnvironFunc: environ,
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Observability.ApplyDefaults()

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func loadDefaults(k *koanf.Koanf) error {
	defaults := map[string]any{
		"client.timeout":            "30s",
		"client.apikeyheader":       "X-API-Key",
		"client.requestidheader":    "X-Request-ID",
		"client.maxpayloadlogbytes": 4096,
		"client.maxerrorbodybytes":  1 << 20,
		"client.auth.scheme":        "none",

		"client.retry.maxattempts":       3,
		"client.retry.basedelay":         "200ms",
		"client.retry.multiplier":        2.0,
		"client.retry.maxdelay":          "30s",
		"client.retry.jitter":            0.2,
		"client.retry.strictness":        "server_errors",
		"client.retry.respectretryafter": true,

		"log.level":  "info",
		"log.pretty": false,

		"observability.enabled":      false,
		"observability.service.name": "go-bricks-rest",
	}

	return k.Load(confmap.Provider(defaults, "."), nil)
}
