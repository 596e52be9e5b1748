package config

import (
	"context"
	"fmt"
	"strings"

	vault "github.com/hashicorp/vault/api"
)

// SecretSource resolves one key of a stored secret.
type SecretSource interface {
	Secret(ctx context.Context, path, key string) (string, error)
}

const vaultPrefix = "vault:"

// parseRef splits "vault:<path>#<key>".
func parseRef(s string) (path, key string, ok bool) {
	rest, found := strings.CutPrefix(s, vaultPrefix)
	if !found {
		return "", "", false
	}
	path, key, found = strings.Cut(rest, "#")
	if !found || path == "" || key == "" {
		return "", "", false
	}
	return path, key, true
}

// VaultSource reads KV v2 secrets. Address and token come from the usual
// VAULT_ADDR and VAULT_TOKEN variables.
type VaultSource struct {
	api *vault.Client
}

func NewVaultSource() (*VaultSource, error) {
	cfg := vault.DefaultConfig()
	if err := cfg.ReadEnvironment(); err != nil {
		return nil, fmt.Errorf("vault env cfg: %w", err)
	}
	api, err := vault.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("vault api: %w", err)
	}
	return &VaultSource{api: api}, nil
}

func (s *VaultSource) Secret(ctx context.Context, path, key string) (string, error) {
	mount, rel := splitMount(path)
	sec, err := s.api.KVv2(mount).Get(ctx, rel)
	if err != nil {
		return "", fmt.Errorf("vault get %s: %w", path, err)
	}
	raw, ok := sec.Data[key]
	if !ok {
		return "", fmt.Errorf("key %q not found in secret %q", key, path)
	}
	val, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("value at %s#%s is not a string", path, key)
	}
	return val, nil
}

func splitMount(p string) (mount, rel string) {
	mount, rel, _ = strings.Cut(p, "/")
	return mount, rel
}
