// Command draftkeeper serves and manages autosaved form drafts.
//
// Usage:
//
//	draftkeeper serve --config draftkeeper.yaml     # HTTP draft store + sweeper
//	draftkeeper serve --db drafts.db --mcp stdio     # MCP tools on stdin/stdout
//	draftkeeper list --db drafts.db
//	draftkeeper show new-article-autosave --remote http://localhost:8086
//	draftkeeper purge --older-than 48h
//
// Environment: LOG_LEVEL, DRAFTKEEPER_DB, DRAFTKEEPER_ADDR, DRAFTKEEPER_REMOTE.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/draftkeeper/keeper"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// options are the persistent flags shared by every subcommand.
type options struct {
	configPath string
	dbPath     string
	logLevel   string
	remote     string
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "draftkeeper",
		Short:         "Store and inspect autosaved form drafts",
		SilenceUsage:  true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "path to draftkeeper.yaml")
	pf.StringVar(&opts.dbPath, "db", "", "path to the SQLite draft database (env DRAFTKEEPER_DB)")
	pf.StringVar(&opts.logLevel, "log-level", env("LOG_LEVEL", "info"), "log level: debug, info, warn, error")
	pf.StringVar(&opts.remote, "remote", env("DRAFTKEEPER_REMOTE", ""), "base URL of a running draftkeeper; list, show and rm use it instead of the database")

	root.AddCommand(
		newServeCmd(opts),
		newListCmd(opts),
		newShowCmd(opts),
		newRmCmd(opts),
		newPurgeCmd(opts),
	)
	return root
}

func (o *options) logger(w io.Writer) *slog.Logger {
	var lvl slog.Level
	switch o.logLevel {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl}))
}

// config resolves the keeper configuration: file, then environment, then
// flags.
func (o *options) config() (*keeper.Config, error) {
	cfg := &keeper.Config{}
	if o.configPath != "" {
		var err error
		if cfg, err = keeper.LoadConfigFile(o.configPath); err != nil {
			return nil, err
		}
	}
	if v := os.Getenv("DRAFTKEEPER_DB"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("DRAFTKEEPER_ADDR"); v != "" {
		cfg.Addr = v
	}
	if o.dbPath != "" {
		cfg.DBPath = o.dbPath
	}
	return cfg, nil
}

// open builds a local keeper. Callers close it.
func (o *options) open(cmd *cobra.Command) (*keeper.Keeper, error) {
	cfg, err := o.config()
	if err != nil {
		return nil, err
	}
	k, err := keeper.New(cfg, o.logger(cmd.ErrOrStderr()))
	if err != nil {
		return nil, fmt.Errorf("init: %w", err)
	}
	return k, nil
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
