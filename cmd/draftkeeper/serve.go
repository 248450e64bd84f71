package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/hazyhaar/draftkeeper/keeper"
)

const version = "0.1.0"

func newServeCmd(opts *options) *cobra.Command {
	var addr, mcpMode string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the draft HTTP routes and run the stale-draft sweeper",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			switch mcpMode {
			case "", "http", "stdio":
			default:
				return fmt.Errorf("--mcp: want http or stdio, got %q", mcpMode)
			}
			return serve(cmd, opts, addr, mcpMode)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, env DRAFTKEEPER_ADDR, or :8086)")
	cmd.Flags().StringVar(&mcpMode, "mcp", env("MCP_TRANSPORT", ""), "expose MCP tools: http (on /mcp) or stdio")
	return cmd
}

func serve(cmd *cobra.Command, opts *options, addr, mcpMode string) error {
	ctx := cmd.Context()
	logger := opts.logger(cmd.ErrOrStderr())
	slog.SetDefault(logger)

	cfg, err := opts.config()
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.Addr = addr
	}
	k, err := keeper.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}
	defer k.Close()

	var mcpSrv *mcp.Server
	if mcpMode != "" {
		mcpSrv = mcp.NewServer(&mcp.Implementation{Name: "draftkeeper", Version: version}, nil)
		k.RegisterMCP(mcpSrv)
	}

	k.Start(ctx)

	if mcpMode == "stdio" {
		// stdout carries the protocol; logs stay on stderr.
		logger.Info("draftkeeper: mcp on stdio", "db", k.Config().DBPath)
		if err := mcpSrv.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
			return fmt.Errorf("mcp stdio: %w", err)
		}
		return nil
	}

	var mounts []func(chi.Router)
	if mcpSrv != nil {
		mounts = append(mounts, func(r chi.Router) {
			r.Handle("/mcp", mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return mcpSrv }, nil))
		})
	}

	srv := &http.Server{
		Addr:              k.Config().Addr,
		Handler:           k.Handler(mounts...),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("draftkeeper: listening", "addr", srv.Addr, "db", k.Config().DBPath, "mcp", mcpMode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("draftkeeper: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("draftkeeper: shutdown", "error", err)
	}
	return nil
}
