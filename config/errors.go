package config

import (
	"strings"
)

// ConfigError reports one rejected configuration value, with the field path
// as loaded by koanf and an optional hint on what is accepted.
type ConfigError struct {
	Category string // "invalid" or "missing"
	Field    string // dotted path, e.g. "client.retry.jitter"
	Message  string
	Action   string
}

func (e *ConfigError) Error() string {
	parts := make([]string, 0, 4)
	if e.Category != "" {
		parts = append(parts, "config_"+e.Category+":")
	}
	for _, p := range []string{e.Field, e.Message, e.Action} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// NewInvalidFieldError reports an invalid value for field. validOptions,
// when given, are listed in the error.
func NewInvalidFieldError(field, message string, validOptions []string) *ConfigError {
	e := &ConfigError{Category: "invalid", Field: field, Message: message}
	if len(validOptions) > 0 {
		e.Action = "must be one of: " + strings.Join(validOptions, ", ")
	}
	return e
}

// FieldErrors returns every ConfigError contained in err.
func FieldErrors(err error) []*ConfigError {
	if err == nil {
		return nil
	}

	var out []*ConfigError
	var walk func(error)
	walk = func(e error) {
		switch u := e.(type) {
		case *ConfigError:
			out = append(out, u)
		case interface{ Unwrap() []error }:
			for _, inner := range u.Unwrap() {
				walk(inner)
			}
		case interface{ Unwrap() error }:
			if inner := u.Unwrap(); inner != nil {
				walk(inner)
			}
		}
	}
	walk(err)
	return out
}

// HasFieldError reports whether err contains an error for field.
func HasFieldError(err error, field string) bool {
	for _, cfgErr := range FieldErrors(err) {
		if cfgErr.Field == field {
			return true
		}
	}
	return false
}
