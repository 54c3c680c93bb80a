package logger

import (
	nethttp "net/http"
	"net/url"
	"strings"
)

// DefaultMaskValue replaces sensitive values in log output.
const DefaultMaskValue = "***"

// FilterConfig defines the configuration for sensitive data filtering
type FilterConfig struct {
	// SensitiveFields contains field or header names whose values are masked.
	// Matching is case-insensitive and by substring.
	SensitiveFields []string
	// MaskValue is the value used to replace sensitive data (default: "***")
	MaskValue string
}

// DefaultFilterConfig returns the names commonly carrying credentials in
// REST calls: auth headers, API keys, tokens, cookies.
func DefaultFilterConfig() *FilterConfig {
	return &FilterConfig{
		SensitiveFields: []string{
			"password", "passwd", "secret",
			"authorization", "proxy-authorization",
			"api_key", "apikey", "api-key",
			"token", "cookie",
			"credential",
		},
		MaskValue: DefaultMaskValue,
	}
}

var defaultFilter = NewSensitiveDataFilter(nil)

// MaskURL masks raw with DefaultFilterConfig. Telemetry attributes use it
// so URLs leave the process the same way they reach the logs.
func MaskURL(raw string) string {
	return defaultFilter.MaskURL(raw)
}

// SensitiveDataFilter masks credential material before it reaches a log sink.
type SensitiveDataFilter struct {
	config *FilterConfig
}

// NewSensitiveDataFilter creates a new filter with the given configuration
func NewSensitiveDataFilter(config *FilterConfig) *SensitiveDataFilter {
	if config == nil {
		config = DefaultFilterConfig()
	}
	if config.MaskValue == "" {
		config.MaskValue = DefaultMaskValue
	}
	return &SensitiveDataFilter{config: config}
}

// FilterString masks value when key is sensitive. URLs have their
// password and sensitive query parameters masked instead.
func (f *SensitiveDataFilter) FilterString(key, value string) string {
	if f.isSensitiveField(key) {
		if value == "" {
			return value
		}
		return f.config.MaskValue
	}
	if isURL(value) {
		return f.MaskURL(value)
	}
	return value
}

// FilterValue filters maps and headers; other values pass through unchanged.
func (f *SensitiveDataFilter) FilterValue(key string, value any) any {
	if f.isSensitiveField(key) {
		return f.config.MaskValue
	}
	switch v := value.(type) {
	case nethttp.Header:
		return f.FilterHeaders(v)
	case map[string]string:
		out := make(map[string]string, len(v))
		for k, s := range v {
			out[k] = f.FilterString(k, s)
		}
		return out
	case map[string]any:
		return f.FilterFields(v)
	case string:
		return f.FilterString(key, v)
	default:
		return value
	}
}

// FilterFields filters a map of fields for sensitive data
func (f *SensitiveDataFilter) FilterFields(fields map[string]any) map[string]any {
	filtered := make(map[string]any, len(fields))
	for key, value := range fields {
		filtered[key] = f.FilterValue(key, value)
	}
	return filtered
}

// FilterHeaders flattens h into a single-valued map with credentials masked.
func (f *SensitiveDataFilter) FilterHeaders(h nethttp.Header) map[string]string {
	out := make(map[string]string, len(h))
	for name, values := range h {
		out[name] = f.FilterString(name, strings.Join(values, ", "))
	}
	return out
}

func (f *SensitiveDataFilter) isSensitiveField(fieldName string) bool {
	lower := strings.ToLower(fieldName)
	for _, sensitive := range f.config.SensitiveFields {
		if strings.Contains(lower, strings.ToLower(sensitive)) {
			return true
		}
	}
	return false
}

func isURL(value string) bool {
	return strings.HasPrefix(value, "http://") || strings.HasPrefix(value, "https://")
}

// MaskURL masks the userinfo password and sensitive query parameters
// while keeping the rest of the URL readable.
func (f *SensitiveDataFilter) MaskURL(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return f.config.MaskValue
	}

	changed := false
	if parsed.User != nil {
		if _, ok := parsed.User.Password(); ok {
			parsed.User = url.UserPassword(parsed.User.Username(), f.config.MaskValue)
			changed = true
		}
	}

	if parsed.RawQuery != "" {
		q := parsed.Query()
		for name := range q {
			if f.isSensitiveField(name) {
				q.Set(name, f.config.MaskValue)
				changed = true
			}
		}
		if changed {
			parsed.RawQuery = q.Encode()
		}
	}

	if !changed {
		return raw
	}
	// url.String escapes the mask inside userinfo; undo that for readability.
	return strings.ReplaceAll(parsed.String(), url.QueryEscape(f.config.MaskValue), f.config.MaskValue)
}
