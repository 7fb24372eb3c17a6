package config

import (
	"errors"
	"fmt"
	"math/bits"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks struct tags first, then rules spanning several fields.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			return fieldError(validationErrors[0])
		}
		return err
	}

	if err := validateCrossField(cfg); err != nil {
		return err
	}

	obs := cfg.Observability
	obs.ApplyDefaults()
	if err := obs.Validate(); err != nil {
		return fmt.Errorf("observability config: %w", err)
	}
	return nil
}

func validateCrossField(cfg *Config) error {
	if cfg.Catalog.Retry.MaxDelay < cfg.Catalog.Retry.Delay {
		return NewInvalidFieldError("catalog.retry.maxdelay", "must not be shorter than catalog.retry.delay", nil)
	}

	if cfg.App.Rate.Limit > 0 && cfg.App.Rate.Burst > 0 && cfg.App.Rate.Burst < cfg.App.Rate.Limit {
		return NewInvalidFieldError("app.rate.burst", "must be at least app.rate.limit", nil)
	}

	if cfg.Cache.Enabled && cfg.Cache.Shards > 0 && bits.OnesCount(uint(cfg.Cache.Shards)) != 1 {
		return NewInvalidFieldError("cache.shards", fmt.Sprintf("%d is not a power of two", cfg.Cache.Shards), nil)
	}

	if cfg.App.Env == EnvProduction && cfg.Proxy.Enabled && cfg.Proxy.Token == "" {
		return NewMissingFieldError("proxy.token", "TMDB_API_TOKEN", "proxy.token")
	}
	return nil
}

// fieldError turns a validator failure into a ConfigError naming the koanf path.
func fieldError(fe validator.FieldError) *ConfigError {
	path := koanfPath(fe.Namespace())
	switch fe.Tag() {
	case "required":
		return NewMissingFieldError(path, envVarFor(path), path)
	case "oneof":
		return NewInvalidFieldError(path, fmt.Sprintf("invalid value %v", fe.Value()), strings.Fields(fe.Param()))
	case "url":
		return NewInvalidFieldError(path, fmt.Sprintf("%v is not a valid url", fe.Value()), nil)
	default:
		return NewInvalidFieldError(path, fmt.Sprintf("failed %s=%s (got %v)", fe.Tag(), fe.Param(), fe.Value()), nil)
	}
}

// koanfPath converts "Config.Catalog.Retry.MaxDelay" to "catalog.retry.maxdelay".
func koanfPath(namespace string) string {
	_, rest, found := strings.Cut(namespace, ".")
	if !found {
		rest = namespace
	}
	return strings.ToLower(rest)
}
