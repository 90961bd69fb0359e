package cmd

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/Jacob-Makopo/FileWhatwhat/config"
	"github.com/Jacob-Makopo/FileWhatwhat/extract"
	"github.com/Jacob-Makopo/FileWhatwhat/model"
)

func newExtractCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract FILE...",
		Short: "Print the date extracted from each .eml or .msg file",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadExtractConfig(cmd)
			if err != nil {
				return err
			}

			// Logs go to stderr so json and csv output stay parseable.
			logger, cleanup, err := setupLogger(cfg.Logging, os.Stderr)
			if err != nil {
				return err
			}
			defer func() {
				_ = cleanup()
			}()

			rows, err := extractFiles(args, extract.New(logger))
			if err != nil {
				return err
			}
			return writeExtractions(cmd.OutOrStdout(), cfg.Format, rows)
		},
	}
	config.RegisterExtractFlags(cmd)
	return cmd
}

type extraction struct {
	Name          string  `json:"name"`
	Extension     string  `json:"extension"`
	ExtractedDate *string `json:"extracted_date"`
}

func extractFiles(paths []string, ex *extract.Extractor) ([]extraction, error) {
	rows := make([]extraction, 0, len(paths))
	for _, path := range paths {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		ext := extract.ExtensionOf(path)
		date, ok := ex.Extract(content, ext)
		rows = append(rows, extraction{
			Name:          filepath.Base(path),
			Extension:     ext,
			ExtractedDate: model.FormatDate(date, ok),
		})
	}
	return rows, nil
}

func writeExtractions(w io.Writer, format string, rows []extraction) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	case "csv":
		writer := csv.NewWriter(w)
		if err := writer.Write([]string{"name", "extension", "extracted_date"}); err != nil {
			return err
		}
		for _, r := range rows {
			if err := writer.Write([]string{r.Name, r.Extension, dateOrEmpty(r.ExtractedDate)}); err != nil {
				return err
			}
		}
		writer.Flush()
		return writer.Error()
	}

	data := pterm.TableData{{"File", "Extension", "Extracted date"}}
	for _, r := range rows {
		date := dateOrEmpty(r.ExtractedDate)
		if date == "" {
			date = "-"
		}
		data = append(data, []string{r.Name, r.Extension, date})
	}
	table, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, table)
	return err
}

func dateOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
