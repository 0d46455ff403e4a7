package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/chatflow"
	"github.com/aretw0/chatflow/internal/config"
	"github.com/aretw0/chatflow/internal/presentation/tui"
	"github.com/aretw0/chatflow/pkg/adapters/console"
	httpAdapter "github.com/aretw0/chatflow/pkg/adapters/http"
	"github.com/aretw0/chatflow/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const shutdownTimeout = 5 * time.Second

// Serve runs the webhook server until ctx is cancelled.
func Serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	store, err := NewStore(cfg.Store)
	if err != nil {
		return err
	}
	if c, ok := store.(io.Closer); ok {
		defer c.Close()
	}
	dir, err := NewDirectory(cfg)
	if err != nil {
		return err
	}

	streams := httpAdapter.NewStreamManager()
	platform := httpAdapter.NewPlatform(dir, streams,
		httpAdapter.WithCallbackURL(cfg.HTTP.CallbackURL),
		httpAdapter.WithPlatformLogger(logger),
	)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(reg)

	bot, err := NewBot(cfg, platform, store, logger,
		chatflow.WithLifecycleHooks(observability.Combine(metrics.Hooks(), observability.LogHooks(logger))))
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr: cfg.HTTP.Addr,
		Handler: httpAdapter.NewHandler(bot,
			httpAdapter.WithLogger(logger),
			httpAdapter.WithMetrics(metrics.Handler()),
			httpAdapter.WithStreams(streams),
			httpAdapter.WithVersion(chatflow.Version),
		),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("Starting chatflow server", "addr", srv.Addr, "workflows", cfg.Workflows)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		logger.Info("Start shutdown")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Graceful shutdown did not complete", "timeout", shutdownTimeout, "err", err)
			return srv.Close()
		}
		logger.Info("Server stopped gracefully")
		return nil
	}
}

// RunConsole talks to the bot over in and out until the input ends or ctx
// is cancelled.
func RunConsole(ctx context.Context, cfg *config.Config, in io.Reader, out io.Writer, logger *slog.Logger) error {
	store, err := NewStore(cfg.Store)
	if err != nil {
		return err
	}
	if c, ok := store.(io.Closer); ok {
		defer c.Close()
	}

	var opts []console.Option
	if cfg.Directory != "" {
		dir, err := NewDirectory(cfg)
		if err != nil {
			return err
		}
		opts = append(opts, console.WithDirectory(dir))
	}
	if tui.IsTerminal(out) {
		tui.PrintBanner(out)
		render, err := tui.NewRenderer()
		if err != nil {
			return err
		}
		opts = append(opts, console.WithRenderer(render), console.WithPrompt(tui.Prompt(out)))
	}
	platform := console.NewPlatform(in, out, opts...)

	bot, err := NewBot(cfg, platform, store, logger, chatflow.WithLifecycleHooks(observability.LogHooks(logger)))
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Loaded %d workflow(s). Type /help for commands.\n", len(bot.Workflows()))

	if err := bot.Listen(ctx, platform); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
