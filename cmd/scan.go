package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/Jacob-Makopo/FileWhatwhat/config"
	"github.com/Jacob-Makopo/FileWhatwhat/extract"
	"github.com/Jacob-Makopo/FileWhatwhat/filter"
	"github.com/Jacob-Makopo/FileWhatwhat/imap"
	"github.com/Jacob-Makopo/FileWhatwhat/progress"
	"github.com/Jacob-Makopo/FileWhatwhat/runner"
	"github.com/Jacob-Makopo/FileWhatwhat/source"
	"github.com/Jacob-Makopo/FileWhatwhat/state"
	"github.com/Jacob-Makopo/FileWhatwhat/stats"
	"github.com/Jacob-Makopo/FileWhatwhat/store"
	"github.com/Jacob-Makopo/FileWhatwhat/upload"
)

func newScanCmd() (*cobra.Command, error) {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Extract dates from a directory, file or mbox archive and file or archive the results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadScanConfig(cmd)
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
			logger.Info("starting scan", "input", cfg.Input, "workers", cfg.Workers, "dryRun", cfg.DryRun,
				"imap", cfg.IMAP.Enabled(), "file", cfg.Files())

			return runScan(cmd, cfg, logger)
		},
	}

	if err := config.RegisterScanFlags(cmd); err != nil {
		return nil, err
	}
	return cmd, nil
}

func runScan(cmd *cobra.Command, cfg config.Scan, logger *slog.Logger) error {
	tracker, err := state.NewFileTracker(cfg.StateDir, !cfg.DryRun)
	if err != nil {
		return fmt.Errorf("state.NewFileTracker: %w", err)
	}
	if n := tracker.Corrupt(); n > 0 {
		logger.Warn("skipped unreadable extraction cache lines", "count", n, "dir", cfg.StateDir)
	}
	defer func() {
		if err := tracker.Close(); err != nil {
			logger.Error("close extraction cache", "err", err)
		}
	}()

	f, err := filter.New(filter.Options{
		Extensions:    cfg.Filter.Extensions,
		IncludeName:   cfg.Filter.IncludeName,
		IncludeHeader: cfg.Filter.IncludeHeader,
		IncludeBody:   cfg.Filter.IncludeBody,
		ExcludeName:   cfg.Filter.ExcludeName,
		ExcludeHeader: cfg.Filter.ExcludeHeader,
		ExcludeBody:   cfg.Filter.ExcludeBody,
	})
	if err != nil {
		return fmt.Errorf("filter.New: %w", err)
	}

	r, err := runner.New(runner.Options{
		Workers:   cfg.Workers,
		Filter:    f,
		Tracker:   tracker,
		Extractor: extract.New(logger),
	}, logger)
	if err != nil {
		return fmt.Errorf("runner.New: %w", err)
	}
	stats.NewReporter(r, logger)

	total, err := source.Total(cfg.Input)
	if err != nil {
		logger.Warn("could not count documents, progress bar disabled", "err", err)
		total = 0
	}
	progress.NewReporter(r, progress.New(total, tracker.Snapshot().Processed, cfg.Level), logger)

	if _, err := source.NewProducer(cfg.Input, r, logger); err != nil {
		return fmt.Errorf("source.NewProducer: %w", err)
	}

	if cfg.IMAP.Enabled() {
		archiver, err := imap.NewArchiver(imap.Options{
			Host:               cfg.IMAP.Host,
			Port:               cfg.IMAP.Port,
			Username:           cfg.IMAP.User,
			Password:           cfg.IMAP.Pass,
			UseTLS:             cfg.IMAP.UseTLS,
			InsecureSkipVerify: cfg.IMAP.InsecureSkipVerify,
			TargetFolder:       cfg.IMAP.TargetFolder,
			DryRun:             cfg.DryRun,
		}, r, logger)
		if err != nil {
			return fmt.Errorf("imap.NewArchiver: %w", err)
		}
		r.AddSink("imap", archiver)
	}

	var filer *upload.Filer
	if cfg.Files() {
		st, err := store.Open(cmd.Context(), cfg.Store.DatabaseURL, cfg.Store.Dir)
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

		svc := upload.NewService(st, upload.Options{}, logger)
		filer = upload.NewFiler(svc, cfg.CompanyIDs, cfg.MunicipalityID, cfg.DryRun, r)
		r.AddSink("upload", filer)
	}

	if cfg.ReportDir != "" {
		r.AddSink("report", newCSVReport(cfg.ReportDir))
	}

	if err := r.Start(); err != nil {
		return err
	}

	logFilterHits(logger, f.GetStats())
	if filer != nil {
		for _, u := range filer.Filed() {
			logger.Info("upload filed", "id", u.ID, "reference", u.Reference,
				"company", u.CompanyID, "municipality", u.MunicipalityID, "documents", len(u.OriginalFileNames))
		}
	}
	if cfg.ReportDir != "" {
		logger.Info("reports saved", "dir", cfg.ReportDir)
	}
	return nil
}

// logFilterHits reports every configured pattern, busiest first, so
// patterns that never matched stand out.
func logFilterHits(logger *slog.Logger, s filter.Stats) {
	for _, group := range []struct {
		name string
		hits map[string]int
	}{
		{"include", s.Include},
		{"exclude", s.Exclude},
	} {
		keys := make([]string, 0, len(group.hits))
		for k := range group.hits {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool {
			if group.hits[keys[i]] != group.hits[keys[j]] {
				return group.hits[keys[i]] > group.hits[keys[j]]
			}
			return keys[i] < keys[j]
		})
		for _, k := range keys {
			if group.hits[k] == 0 {
				logger.Warn("filter pattern never matched", "filter", group.name, "pattern", k)
				continue
			}
			logger.Info("filter pattern hits", "filter", group.name, "pattern", k, "hits", group.hits[k])
		}
	}
}
