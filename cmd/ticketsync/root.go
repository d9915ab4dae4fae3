package main

import (
	"context"
	"encoding/json"
	"io"

	"github.com/nickh0112/jira-ticket-planner-sub001/pkg/config"
	"github.com/nickh0112/jira-ticket-planner-sub001/pkg/hashistack/secretmanager"
	"github.com/nickh0112/jira-ticket-planner-sub001/pkg/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type rootOptions struct {
	configPath string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "ticketsync",
		Short: "Sync completed tracker tickets into member progress",
		Long: `ticketsync polls the issue tracker for completed tickets, credits each
ticket's reward to the assignee exactly once, and streams the resulting
progress events to connected viewers.

Configuration is read from config.yaml in the working directory (or the
file named by --config) and overlaid by environment variables such as
TRACKER_API_TOKEN or SYNC_INTERVAL_MS.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to the config file")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log dependency injection events")

	cmd.AddCommand(
		newServeCmd(opts),
		newSyncCmd(opts),
		newReconcileCmd(opts),
		newStatusCmd(opts),
		newConfigureCmd(opts),
		newWatchCmd(opts),
	)
	return cmd
}

// load reads the config and installs the global logger before any fx
// graph is built, so constructors log through it. With VAULT.PATH set the
// credentials are then overlaid from Vault.
func (o *rootOptions) load(ctx context.Context) (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger.Build(cfg))

	if cfg.Vault.Path != "" {
		client, err := secretmanager.ProvideVault()
		if err != nil {
			return nil, err
		}
		if err := secretmanager.Overlay(ctx, client, cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
