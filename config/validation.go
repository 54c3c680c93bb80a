package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report koanf paths instead of Go field names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("koanf"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks cfg and returns one ConfigError per invalid field,
// joined with errors.Join.
func Validate(cfg *Config) error {
	if cfg == nil {
		return NewInvalidFieldError("config", "cannot be nil", nil)
	}

	var errs []error
	if err := validate.Struct(cfg.Client); err != nil {
		errs = append(errs, fieldErrors("client", err)...)
	}
	if err := validate.Struct(cfg.Log); err != nil {
		errs = append(errs, fieldErrors("log", err)...)
	}
	if cfg.Observability.Enabled {
		if err := cfg.Observability.Validate(); err != nil {
			errs = append(errs, NewInvalidFieldError("observability", err.Error(), nil))
		}
	}
	return errors.Join(errs...)
}

func fieldErrors(section string, err error) []error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return []error{fmt.Errorf("%s config: %w", section, err)}
	}

	out := make([]error, 0, len(validationErrors))
	for _, fe := range validationErrors {
		out = append(out, NewInvalidFieldError(fieldPath(section, fe), getErrorMessage(fe), nil))
	}
	return out
}

// fieldPath turns "ClientConfig.retry.maxattempts" into "client.retry.maxattempts".
func fieldPath(section string, fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		ns = ns[i+1:]
	}
	return section + "." + ns
}

func getErrorMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "url":
		return "must be a valid URL"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", strings.ReplaceAll(fe.Param(), " ", ", "))
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gtefield":
		return fmt.Sprintf("must not be less than %s", strings.ToLower(fe.Param()))
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
