package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/okian/area51/internal/config"
	"github.com/okian/area51/pkg/logger"
)

const appName = "area51"

// rootFlags are shared by every subcommand.
type rootFlags struct {
	configFile string
	driver     string
	storePath  string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	f := &rootFlags{}
	root := &cobra.Command{
		Use:   appName,
		Short: "Two ranked leaderboards backed by a pluggable row store",
		Long: `area51 keeps two boards, hist and today, of the ten best (lowest)
scores each. Run "serve" for the HTTP API or use "board" to inspect and
change the boards directly against the configured store.`,
		SilenceUsage: true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&f.configFile, "config", "", "YAML config file (overrides AREA51_CONFIG)")
	pf.StringVar(&f.driver, "driver", "", "store driver: memory, sqlite, bolt or rest")
	pf.StringVar(&f.storePath, "store-path", "", "database file for the sqlite and bolt drivers")
	pf.StringVar(&f.logLevel, "log-level", "", "log level: debug, info, warn, error")

	root.AddCommand(newServeCmd(f), newBoardCmd(f))
	return root
}

// load resolves configuration and initializes logging. Log output goes to
// the command's stderr so board output stays clean.
func (f *rootFlags) load(ctx context.Context, cmd *cobra.Command, defaultLevel string) (*config.Config, error) {
	if f.configFile != "" {
		if err := os.Setenv("AREA51_CONFIG", f.configFile); err != nil {
			return nil, fmt.Errorf("set config path: %w", err)
		}
	}
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, err
	}
	if f.driver != "" {
		cfg.StoreDriver = f.driver
	}
	if f.storePath != "" {
		cfg.StorePath = f.storePath
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := logger.Init(logger.WithWriter(cmd.ErrOrStderr()), logger.WithFormat(cfg.LogFormat)); err != nil {
		return nil, fmt.Errorf("init logging: %w", err)
	}
	level := cfg.LogLevel
	if defaultLevel != "" {
		level = defaultLevel
	}
	if f.logLevel != "" {
		level = f.logLevel
	}
	if err := logger.SetLevelString(level); err != nil {
		logger.Get().Warn(ctx, "invalid log level; falling back to info",
			logger.String("log_level", level), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	return cfg, nil
}
