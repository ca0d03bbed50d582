package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/osdev-lab/fscore/internal/config"
	"github.com/osdev-lab/fscore/internal/fs"
	"github.com/osdev-lab/fscore/internal/handler"
	"github.com/osdev-lab/fscore/internal/middleware"
	"github.com/osdev-lab/fscore/internal/store"
	"github.com/osdev-lab/fscore/internal/store/memstore"
	"github.com/osdev-lab/fscore/internal/store/pgstore"
	"github.com/osdev-lab/fscore/pkg/database/postgresql"
	"github.com/osdev-lab/fscore/pkg/logging"
	"github.com/osdev-lab/fscore/pkg/logging/slogext"
	"github.com/osdev-lab/fscore/pkg/logging/slogpretty"
)

const configPath = "configs/config.yaml"

func main() {
	cfg := config.MustLoad(configPath)

	logger := setupPrettySlog()

	// Root context carries the logger and ends on SIGINT/SIGTERM.
	ctx := logging.MakeContextWithLogger(context.Background(), logger)
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := buildStore(ctx, cfg)
	if err != nil {
		logger.Error("Failed to initialize store", slogext.Err(err))
		os.Exit(1)
	}

	filesystem, err := fs.New(ctx, st)
	if err != nil {
		logger.Error("Failed to mount filesystem", slogext.Err(err))
		os.Exit(1)
	}

	h := handler.NewHandler(filesystem)
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	server := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.App.Port),
		Handler:     middleware.RequestIDMiddleware(mux),
		ReadTimeout: cfg.App.DefaultTimeout,
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Server listening", slog.Int("port", cfg.App.Port))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.DefaultTimeout)
		defer cancel()
		h.ReleaseAll(logging.MakeContextWithLogger(shutdownCtx, logger))
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server stopped with error", slogext.Err(err))
		os.Exit(1)
	}
	logger.Info("Server stopped")
}

func buildStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.Store.Backend {
	case "memory":
		return memstore.New(), nil
	case "postgres":
		db := postgresql.MustNewClient(ctx, cfg.Database)
		st := pgstore.New(db)
		if err := st.Bootstrap(ctx); err != nil {
			return nil, err
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unknown store backend: %q", cfg.Store.Backend)
	}
}

func setupPrettySlog() *slog.Logger {
	opts := slogpretty.PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{
			Level: slog.LevelDebug,
		},
	}

	handler := opts.NewPrettyHandler(os.Stdout)

	return slog.New(handler)
}
