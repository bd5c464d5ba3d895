package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/kalambet/docstate/internal/api"
	"github.com/kalambet/docstate/internal/coalesce"
	"github.com/kalambet/docstate/internal/config"
	"github.com/kalambet/docstate/internal/configfile"
	"github.com/kalambet/docstate/internal/documents"
	"github.com/kalambet/docstate/internal/watch"
)

func newServeCmd(g *globalFlags) *cobra.Command {
	var (
		port   int
		useMCP bool
		token  string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the documents over HTTP and, optionally, MCP on stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(g)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runServer(cfg, useMCP, token)
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "HTTP port (default from server.port)")
	cmd.Flags().BoolVar(&useMCP, "mcp", false, "also serve MCP over stdin/stdout")
	cmd.Flags().StringVar(&token, "token", os.Getenv("DOCSTATE_API_TOKEN"), "require this bearer token on the HTTP API")
	return cmd
}

// newLogger builds the process logger. Logs go to stderr, or to a rotated
// file when log.file is set.
func newLogger(cfg config.LogConfig) (*slog.Logger, io.Closer) {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	var (
		w      io.Writer = os.Stderr
		closer io.Closer = io.NopCloser(nil)
	)
	if cfg.File != "" {
		lj := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
		}
		w, closer = lj, lj
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})), closer
}

func runServer(cfg config.Config, useMCP bool, token string) error {
	logger, logCloser := newLogger(cfg.Log)
	defer logCloser.Close()
	slog.SetDefault(logger)

	fmt.Fprintf(os.Stderr, "docstate version %s\n", version)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	watcher, err := watch.New(watch.WithLogger(logger))
	if err != nil {
		return err
	}
	defer watcher.Stop()

	set := openSet(cfg, documents.Options{
		Logger: logger,
		DocumentOptions: []configfile.Option{
			configfile.WithCoalesceOptions(
				coalesce.WithBeforeWrite(watcher.MarkWritten),
				coalesce.WithOnFailure(func(path string, _ error) { watcher.Unmute(path) }),
			),
		},
	})
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		if err := set.Close(closeCtx); err != nil {
			slog.Error("final flush failed", "error", err)
		}
	}()

	for name, path := range set.Paths() {
		if err := watcher.Add(name, path); err != nil {
			return err
		}
	}
	if err := watcher.Start(ctx); err != nil {
		return err
	}
	go logExternalChanges(watcher, logger)

	if useMCP {
		stdioSrv := server.NewStdioServer(api.NewMCPServer(set, version))
		go func() {
			if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("MCP stdio server error", "error", err)
			}
		}()
		slog.Info("MCP server started (stdio transport)")
	}

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.NewHandler(set, token),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("listening", "addr", addr, "auth", token != "")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// logExternalChanges reports edits made to document files by other
// processes. Staged values still win on the next flush.
func logExternalChanges(w *watch.Watcher, logger *slog.Logger) {
	for ev := range w.Events() {
		logger.Warn("document changed on disk", "document", ev.Name, "op", ev.Op.String(), "path", ev.Path)
	}
}
