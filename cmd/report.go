package cmd

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/Jacob-Makopo/FileWhatwhat/model"
)

const undatedKey = "undated"

// csvReport is a pipeline sink that writes one row per document and a
// per-month tally when the pipeline finishes.
type csvReport struct {
	dir    string
	rows   [][]string
	months map[string]int
}

func newCSVReport(dir string) *csvReport {
	return &csvReport{dir: dir, months: make(map[string]int)}
}

func (r *csvReport) Handle(_ context.Context, res model.Result) error {
	month := undatedKey
	if res.Found {
		month = res.Date.Format("2006-01")
	}
	r.months[month]++
	r.rows = append(r.rows, []string{
		res.Document.Name,
		res.Document.Source,
		res.Document.Extension,
		dateOrEmpty(res.DateString()),
		strconv.FormatBool(res.Cached),
	})
	return nil
}

func (r *csvReport) Finish(context.Context) error {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return err
	}

	sort.Slice(r.rows, func(i, j int) bool {
		return r.rows[i][1] < r.rows[j][1]
	})
	header := []string{"Name", "Source", "Extension", "Extracted Date", "Cached"}
	if err := writeCSV(filepath.Join(r.dir, "report_documents.csv"), header, r.rows); err != nil {
		return err
	}

	type pair struct {
		Key   string
		Value int
	}
	var pairs []pair
	for k, v := range r.months {
		pairs = append(pairs, pair{k, v})
	}
	// Newest month first, undated last.
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].Key == undatedKey || pairs[j].Key == undatedKey {
			return pairs[j].Key == undatedKey && pairs[i].Key != undatedKey
		}
		return pairs[i].Key > pairs[j].Key
	})
	months := make([][]string, 0, len(pairs))
	for _, p := range pairs {
		months = append(months, []string{p.Key, strconv.Itoa(p.Value)})
	}
	return writeCSV(filepath.Join(r.dir, "report_months.csv"), []string{"Month", "Count"}, months)
}

func writeCSV(path string, header []string, rows [][]string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := writer.WriteAll(rows); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return file.Close()
}
