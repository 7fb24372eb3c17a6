// Package config loads the application configuration from defaults, YAML files,
// a .env file and the process environment, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Environment constants
const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

// sections are the top-level keys accepted from the environment
var sections = map[string]bool{
	"app":           true,
	"server":        true,
	"catalog":       true,
	"cache":         true,
	"proxy":         true,
	"log":           true,
	"observability": true,
}

// envAliases maps the legacy front-end variable names, minus their TMDB_ or VITE_TMDB_ prefix, onto config keys.
var envAliases = map[string]string{
	"API_KEY":        "catalog.apikey",
	"API_TOKEN":      "proxy.token",
	"API_URL":        "catalog.baseurl",
	"IMAGE_BASE_URL": "catalog.imagebaseurl",
}

// listKeys are split on commas when read from the environment
var listKeys = map[string]bool{
	"server.cors.origins": true,
}

// LoadOptions controls where Load looks for its inputs.
type LoadOptions struct {
	// Dir holds config.yaml and config.<env>.yaml
	Dir string
	// DotEnv lists .env files applied to the process environment before it is read.
	// Existing variables are never overridden.
	DotEnv []string
}

// Load loads configuration from multiple sources with priority:
// 1. Environment variables (highest priority), including TMDB_* and VITE_TMDB_* aliases
// 2. YAML configuration files
// 3. Default values (lowest priority)
func Load() (*Config, error) {
	return LoadWithOptions(LoadOptions{Dir: ".", DotEnv: []string{".env"}})
}

// LoadWithOptions is Load with explicit file locations.
func LoadWithOptions(opts LoadOptions) (*Config, error) {
	if err := loadDotEnv(opts.DotEnv); err != nil {
		return nil, err
	}

	k := koanf.New(".")

	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if err := loadYAML(k, filepath.Join(opts.Dir, "config.yaml")); err != nil {
		return nil, err
	}

	// The environment can pick the env-specific file, so peek at APP_ENV first
	appEnv := k.String("app.env")
	if v := os.Getenv("APP_ENV"); v != "" {
		appEnv = v
	}
	if appEnv != "" {
		if err := loadYAML(k, filepath.Join(opts.Dir, fmt.Sprintf("config.%s.yaml", appEnv))); err != nil {
			return nil, err
		}
	}

	if err := loadEnvironment(k); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func loadDotEnv(files []string) error {
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// loadYAML merges path into k. A missing file is not an error.
func loadYAML(k *koanf.Koanf, path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

func loadEnvironment(k *koanf.Koanf) error {
	// Aliases first so the native variables win: VITE_TMDB_ < TMDB_ < CATALOG_/PROXY_
	for _, prefix := range []string{"VITE_TMDB_", "TMDB_"} {
		if err := k.Load(aliasProvider(prefix), nil); err != nil {
			return err
		}
	}

	return k.Load(env.Provider(".", env.Opt{
		TransformFunc: func(key, value string) (string, any) {
			// Convert UPPER_CASE to lower.case for koanf
			key = strings.ReplaceAll(strings.ToLower(key), "_", ".")
			section, _, _ := strings.Cut(key, ".")
			if !sections[section] || !strings.Contains(key, ".") {
				return "", nil
			}
			if listKeys[key] {
				return key, splitList(value)
			}
			return key, value
		},
	}), nil)
}

func aliasProvider(prefix string) *env.Env {
	return env.Provider(".", env.Opt{
		Prefix: prefix,
		TransformFunc: func(key, value string) (string, any) {
			target, ok := envAliases[strings.TrimPrefix(key, prefix)]
			if !ok || value == "" {
				return "", nil
			}
			return target, value
		},
	})
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func loadDefaults(k *koanf.Koanf) error {
	defaults := map[string]any{
		"app.name":       "cineflex",
		"app.version":    "1.0.0",
		"app.env":        EnvDevelopment,
		"app.debug":      false,
		"app.rate.limit": 20,
		"app.rate.burst": 40,

		"server.host":               "0.0.0.0",
		"server.port":               8080,
		"server.timeout.read":       "15s",
		"server.timeout.write":      "30s",
		"server.timeout.idle":       "60s",
		"server.timeout.middleware": "30s",
		"server.timeout.shutdown":   "10s",
		"server.path.base":          "",
		"server.path.health":        "/health",
		"server.path.ready":         "/ready",
		"server.path.metrics":       "/metrics",
		"server.cors.origins":       []string{"*"},

		"catalog.baseurl":        "https://api.themoviedb.org/3",
		"catalog.timeout":        "10s",
		"catalog.retry.max":      3,
		"catalog.retry.delay":    "1s",
		"catalog.retry.maxdelay": "30s",
		"catalog.retry.jitter":   0.1,
		"catalog.useragent":      "CineFlex/1.0.0",
		"catalog.healthpath":     "/configuration",
		"catalog.imagebaseurl":   "https://image.tmdb.org/t/p",
		"catalog.debug":          false,

		"cache.enabled":       true,
		"cache.ttl":           "5m",
		"cache.cleanwindow":   "1m",
		"cache.shards":        64,
		"cache.maxentrysize":  4096,
		"cache.hardmaxsizemb": 64,

		"proxy.enabled": true,
		"proxy.baseurl": "https://api.themoviedb.org/3",
		"proxy.retries": 0,
		"proxy.timeout": "10s",

		"log.level":  "info",
		"log.pretty": false,

		"observability.enabled":      false,
		"observability.service.name": "cineflex",
	}

	return k.Load(confmap.Provider(defaults, "."), nil)
}
