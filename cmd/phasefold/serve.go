package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/rpggio/phasefold/internal/config"
	"github.com/rpggio/phasefold/internal/mcp"
	"github.com/rpggio/phasefold/internal/transport"
)

const shutdownTimeout = 5 * time.Second

func NewServeCommand(opts *rootOptions) *cobra.Command {
	var mode string
	cmd := &cobra.Command{
		Use:     "serve",
		GroupID: gServer,
		Short:   "Serve the pipeline as MCP tools over stdio or HTTP",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("transport") {
				cfg.Transport.Mode = mode
				if err := cfg.Validate(); err != nil {
					return err
				}
			}
			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			server := mcp.NewServer(mcp.Config{
				Services: mcp.Services{
					Pipeline: a.pipeline,
					Runs:     a.runs,
					Journal:  a.journal,
				},
				Logger: a.logger,
			})
			if cfg.Transport.Mode == config.ModeStdio {
				return runStdioMode(cmd.Context(), a.logger, server)
			}
			return runHTTPMode(cmd.Context(), a, server)
		},
	}
	cmd.Flags().StringVar(&mode, "transport", config.ModeStdio, "transport mode (stdio or http)")
	return cmd
}

func runStdioMode(ctx context.Context, logger *slog.Logger, server *sdkmcp.Server) error {
	logger.Info("starting stdio transport")
	// Run blocks until stdin closes or ctx is canceled.
	if err := server.Run(ctx, &sdkmcp.StdioTransport{}); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("stdio server: %w", err)
	}
	logger.Info("shutting down")
	return nil
}

func runHTTPMode(ctx context.Context, a *app, server *sdkmcp.Server) error {
	cfg := a.cfg
	if len(cfg.Auth.Tokens) == 0 {
		return errors.New("http transport needs at least one auth token (auth.tokens or PHASEFOLD_AUTH_TOKEN)")
	}
	router := transport.NewServer(transport.Options{
		MCP:            mcp.NewHTTPHandler(server),
		Runs:           a.runs,
		Auth:           transport.AuthMiddleware(transport.NewStaticTokens(cfg.Auth.Tokens)),
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Logger:         a.logger,
	})

	addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	return waitForShutdown(a.logger, httpServer)
}

func waitForShutdown(logger *slog.Logger, server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	logger.Info("shutting down")
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
