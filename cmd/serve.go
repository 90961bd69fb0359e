package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Jacob-Makopo/FileWhatwhat/config"
	"github.com/Jacob-Makopo/FileWhatwhat/extract"
	"github.com/Jacob-Makopo/FileWhatwhat/server"
	"github.com/Jacob-Makopo/FileWhatwhat/store"
	"github.com/Jacob-Makopo/FileWhatwhat/upload"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() (*cobra.Command, error) {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the extraction and upload API over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadServeConfig(cmd)
			if err != nil {
				return err
			}

			logger, cleanup, err := setupLogger(cfg.Logging, os.Stdout)
			if err != nil {
				return err
			}
			defer func() {
				_ = cleanup()
			}()

			slog.SetDefault(logger)
			return runServe(cmd.Context(), cfg, logger)
		},
	}

	if err := config.RegisterServeFlags(cmd); err != nil {
		return nil, err
	}
	return cmd, nil
}

func runServe(ctx context.Context, cfg config.Serve, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, cfg.Store.DatabaseURL, cfg.Store.Dir)
	if err != nil {
		return fmt.Errorf("store.Open: %w", err)
	}
	if fs, ok := st.(*store.FileStore); ok && fs.Corrupt() > 0 {
		logger.Warn("skipped unreadable upload store lines", "count", fs.Corrupt(), "dir", cfg.Store.Dir)
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Error("close upload store", "err", err)
		}
	}()

	extractor := extract.New(logger)
	srv := server.New(&server.Options{
		Address:       cfg.Address,
		MaxUploadSize: cfg.MaxUploadSize,
		Debug:         cfg.Debug,
		Uploads:       upload.NewService(st, upload.Options{Extractor: extractor}, logger),
		Extractor:     extractor,
		Logger:        logger,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}
