// Package cmd wires the filewhatwhat command line.
package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/Jacob-Makopo/FileWhatwhat/config"
)

const appName = "filewhatwhat"

func newRootCmd() (*cobra.Command, error) {
	rootCmd := &cobra.Command{
		Use:           appName,
		Short:         "Extract submission dates from .eml and .msg files and file them as uploads",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	config.RegisterPersistentFlags(rootCmd)

	scanCmd, err := newScanCmd()
	if err != nil {
		return nil, err
	}
	serveCmd, err := newServeCmd()
	if err != nil {
		return nil, err
	}
	rootCmd.AddCommand(newExtractCmd(), scanCmd, serveCmd)
	return rootCmd, nil
}

// Execute runs the command line and exits non-zero on failure.
func Execute() {
	rootCmd, err := newRootCmd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to register CLI flags: %v\n", err)
		os.Exit(1)
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// setupLogger builds the process logger. With a log directory the output is
// also written to a timestamped file there.
func setupLogger(cfg config.Logging, out io.Writer) (*slog.Logger, func() error, error) {
	level := new(slog.LevelVar)
	level.Set(slog.LevelInfo)

	switch cfg.Level {
	case "debug":
		level.Set(slog.LevelDebug)
	case "info":
		level.Set(slog.LevelInfo)
	case "warn":
		level.Set(slog.LevelWarn)
	case "error":
		level.Set(slog.LevelError)
	}

	opts := &slog.HandlerOptions{Level: level}
	cleanup := func() error { return nil }

	if cfg.Dir != "" {
		if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
			return nil, cleanup, err
		}

		logFilePath := filepath.Join(cfg.Dir, fmt.Sprintf("%s-%s.log", appName, time.Now().Format("20060102T150405")))
		file, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, cleanup, err
		}

		handler := slog.NewTextHandler(io.MultiWriter(out, file), opts)
		cleanup = func() error {
			return file.Close()
		}
		return slog.New(handler), cleanup, nil
	}

	return slog.New(slog.NewTextHandler(out, opts)), cleanup, nil
}
