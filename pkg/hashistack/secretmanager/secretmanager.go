package secretmanager

import (
	"context"
	"fmt"

	"github.com/nickh0112/jira-ticket-planner-sub001/pkg/config"

	vault "github.com/hashicorp/vault-client-go"
	"go.uber.org/zap"
)

// ProvideVault builds a client from VAULT_ADDR, VAULT_TOKEN and friends.
func ProvideVault() (*vault.Client, error) {
	client, err := vault.New(
		vault.WithEnvironment(),
	)
	if err != nil {
		return nil, err
	}

	return client, nil
}

// Overlay reads the KV v2 secret at cfg.Vault.Path and copies the
// credentials it holds into cfg. Keys missing from the secret leave the
// configured value alone.
func Overlay(ctx context.Context, client *vault.Client, cfg *config.Config) error {
	zap.L().Info("Starting Get Secrets", zap.String("path", cfg.Vault.Path))
	secret, err := client.Secrets.KvV2Read(ctx, cfg.Vault.Path, vault.WithMountPath(cfg.Vault.Mount))
	if err != nil {
		return fmt.Errorf("read vault secret %s: %w", cfg.Vault.Path, err)
	}
	zap.L().Info("Success Get Secret")

	apply(cfg, secret.Data.Data)
	return nil
}

func apply(cfg *config.Config, data map[string]interface{}) {
	set := func(key string, dst *string) {
		if val, ok := data[key].(string); ok && val != "" {
			*dst = val
		}
	}

	set("tracker_email", &cfg.Tracker.Email)
	set("tracker_api_token", &cfg.Tracker.APIToken)
	set("database_user", &cfg.Database.User)
	set("database_password", &cfg.Database.Password)
	set("redis_password", &cfg.Redis.Password)
}
