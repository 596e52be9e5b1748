// Package config builds the runtime Config from layered sources.
//
// Layers, lowest precedence first: Defaults, an optional YAML file, then
// environment variables prefixed SITEFORGE_ where "__" separates levels
// (SITEFORGE_LLM__API_KEY sets llm.api_key). A .env file is read into the
// environment first. String values of the form "vault:<path>#<key>" are
// replaced by the secret they name.
package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync/atomic"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	koanf "github.com/knadh/koanf/v2"
	"go.uber.org/zap"
)

const EnvPrefix = "SITEFORGE_"

var current atomic.Pointer[Config]

// Options control where Load looks. Zero values read SITEFORGE_CONFIG for
// the file and connect to Vault only when a value needs it.
type Options struct {
	File    string
	EnvFile string
	Secrets SecretSource
	// Offline skips validation of the server sections, for tools that
	// only need the model settings.
	Offline bool
}

// Load merges every layer, validates the result and caches it for Get.
func Load(ctx context.Context, opts Options) (*Config, error) {
	_ = godotenv.Load(firstNonEmpty(opts.EnvFile, ".env"))

	k := koanf.New(".")
	if err := seedLimits(k, Defaults()); err != nil {
		return nil, err
	}

	path := firstNonEmpty(opts.File, os.Getenv(EnvPrefix+"CONFIG"))
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		zap.S().Debugw("config yaml loaded", "file", path)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("config: env overlay: %w", err)
	}

	if err := resolveSecrets(ctx, k, opts.Secrets); err != nil {
		return nil, err
	}

	cfg := Defaults()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if !opts.Offline {
		if err := validateStruct(&cfg); err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
	}

	current.Store(&cfg)
	zap.S().Infow("config loaded",
		"port", cfg.Server.Port,
		"llm_provider", cfg.LLM.Provider,
		"storage", cfg.Storage.Endpoint != "",
	)
	return &cfg, nil
}

// seedLimits puts the default quota table into k so that a file or env
// value for one field of a tier leaves the others at their defaults.
func seedLimits(k *koanf.Koanf, d Config) error {
	for tier, l := range d.Limits {
		for field, n := range map[string]int{"requests": l.Requests, "images": l.Images, "edits": l.Edits} {
			if err := k.Set("limits."+tier+"."+field, n); err != nil {
				return fmt.Errorf("config: seed limits: %w", err)
			}
		}
	}
	return nil
}

// envKey maps SITEFORGE_LLM__API_KEY to llm.api_key.
func envKey(s string) string {
	s = strings.TrimPrefix(s, EnvPrefix)
	return strings.ToLower(strings.ReplaceAll(s, "__", "."))
}

func resolveSecrets(ctx context.Context, k *koanf.Koanf, src SecretSource) error {
	for key, val := range k.All() {
		s, ok := val.(string)
		if !ok {
			continue
		}
		path, name, ok := parseRef(s)
		if !ok {
			continue
		}
		if src == nil {
			vs, err := NewVaultSource()
			if err != nil {
				return fmt.Errorf("config: %s: %w", key, err)
			}
			src = vs
		}
		secret, err := src.Secret(ctx, path, name)
		if err != nil {
			return fmt.Errorf("config: %s: %w", key, err)
		}
		if err := k.Set(key, secret); err != nil {
			return fmt.Errorf("config: %s: %w", key, err)
		}
	}
	return nil
}

// Get returns the last loaded Config, or nil before Load succeeds.
func Get() *Config { return current.Load() }

// Reload loads again with opts and swaps the cached Config.
func Reload(ctx context.Context, opts Options) error {
	_, err := Load(ctx, opts)
	return err
}

func firstNonEmpty(s ...string) string {
	for _, v := range s {
		if v != "" {
			return v
		}
	}
	return ""
}
