package config

import (
	"fmt"
	"path/filepath"
	"runtime"

	"github.com/spf13/cobra"
)

// IMAP configures the optional archive sink. The sink is enabled when Host
// is set.
type IMAP struct {
	Host               string `flag:"imap-host"`
	Port               int    `flag:"imap-port" validate:"min=1,max=65535"`
	User               string `flag:"imap-user" validate:"required_with=Host"`
	Pass               string `flag:"imap-pass" validate:"required_with=Host"`
	UseTLS             bool   `flag:"use-tls"`
	InsecureSkipVerify bool   `flag:"insecure-skip-verify"`
	TargetFolder       string `flag:"target-folder" validate:"required_with=Host"`
}

func (i IMAP) Enabled() bool {
	return i.Host != ""
}

type Filter struct {
	Extensions    []string `flag:"extensions"`
	IncludeName   []string `flag:"include-name"`
	IncludeHeader []string `flag:"include-header"`
	IncludeBody   []string `flag:"include-body"`
	ExcludeName   []string `flag:"exclude-name"`
	ExcludeHeader []string `flag:"exclude-header"`
	ExcludeBody   []string `flag:"exclude-body"`
}

func (f Filter) includeActive() bool {
	return len(f.IncludeName) > 0 || len(f.IncludeHeader) > 0 || len(f.IncludeBody) > 0
}

func (f Filter) excludeActive() bool {
	return len(f.ExcludeName) > 0 || len(f.ExcludeHeader) > 0 || len(f.ExcludeBody) > 0
}

// Scan captures the options of the batch extraction pipeline.
type Scan struct {
	Logging
	Input          string  `flag:"input" validate:"required"`
	StateDir       string  `flag:"state-dir" validate:"required"`
	ReportDir      string  `flag:"report-dir"`
	DryRun         bool    `flag:"dry-run"`
	Workers        int     `flag:"workers" validate:"min=1,max=64"`
	CompanyIDs     []int64 `flag:"company-ids" validate:"dive,gt=0"`
	MunicipalityID int64   `flag:"municipality-id" validate:"min=0"`
	Filter         Filter
	IMAP           IMAP
	Store          Store
}

// Files reports whether the scan ends by filing an upload.
func (s Scan) Files() bool {
	return len(s.CompanyIDs) > 0
}

// RegisterScanFlags attaches the scan flags to cmd.
func RegisterScanFlags(cmd *cobra.Command) error {
	stateDir, err := defaultDir("state")
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	flags.String("input", "", "Directory, .eml/.msg file or mbox archive to scan")
	flags.String("state-dir", stateDir, "Directory for the extraction cache")
	flags.String("report-dir", "", "Write CSV reports of the scan to this directory")
	flags.Bool("dry-run", false, "Extract and report without archiving, filing or persisting state")
	flags.Int("workers", runtime.NumCPU(), "Number of concurrent extraction workers")
	flags.StringSlice("company-ids", nil, "File the scanned documents as an upload for these companies")
	flags.Int64("municipality-id", 0, "Municipality the upload is submitted to (with --company-ids)")

	flags.StringSlice("extensions", nil, "Document extensions to extract (default eml,msg)")
	flags.StringArray("include-name", nil, "Regex allow-list applied to file names (mutually exclusive with exclude flags)")
	flags.StringArray("include-header", nil, "Regex allow-list applied to message headers (mutually exclusive with exclude flags)")
	flags.StringArray("include-body", nil, "Regex allow-list applied to message bodies (mutually exclusive with exclude flags)")
	flags.StringArray("exclude-name", nil, "Regex block-list applied to file names (mutually exclusive with include flags)")
	flags.StringArray("exclude-header", nil, "Regex block-list applied to message headers (mutually exclusive with include flags)")
	flags.StringArray("exclude-body", nil, "Regex block-list applied to message bodies (mutually exclusive with include flags)")

	flags.String("imap-host", "", "IMAP server to archive .eml documents to (disabled when empty)")
	flags.Int("imap-port", 993, "IMAP server port")
	flags.String("imap-user", "", "IMAP username")
	flags.String("imap-pass", "", "IMAP password (falls back to IMAP_PASS env var)")
	flags.Bool("use-tls", true, "Use TLS for the IMAP connection")
	flags.Bool("insecure-skip-verify", false, "Skip TLS certificate verification (not recommended)")
	flags.String("target-folder", "Archive/Dated", "IMAP folder for archived documents")

	if err := registerStoreFlags(flags); err != nil {
		return err
	}
	return cmd.MarkFlagRequired("input")
}

// LoadScanConfig converts the parsed flags into a validated Scan.
func LoadScanConfig(cmd *cobra.Command) (Scan, error) {
	v, err := newViper(cmd)
	if err != nil {
		return Scan{}, err
	}

	companyIDs, err := parseIDs(v.GetStringSlice("company-ids"))
	if err != nil {
		return Scan{}, fmt.Errorf("--company-ids: %w", err)
	}

	cfg := Scan{
		Logging:        loadLogging(v),
		Input:          v.GetString("input"),
		StateDir:       v.GetString("state-dir"),
		ReportDir:      v.GetString("report-dir"),
		DryRun:         v.GetBool("dry-run"),
		Workers:        v.GetInt("workers"),
		CompanyIDs:     companyIDs,
		MunicipalityID: v.GetInt64("municipality-id"),
		Filter: Filter{
			Extensions:    v.GetStringSlice("extensions"),
			IncludeName:   v.GetStringSlice("include-name"),
			IncludeHeader: v.GetStringSlice("include-header"),
			IncludeBody:   v.GetStringSlice("include-body"),
			ExcludeName:   v.GetStringSlice("exclude-name"),
			ExcludeHeader: v.GetStringSlice("exclude-header"),
			ExcludeBody:   v.GetStringSlice("exclude-body"),
		},
		IMAP: IMAP{
			Host:               v.GetString("imap-host"),
			Port:               v.GetInt("imap-port"),
			User:               v.GetString("imap-user"),
			Pass:               v.GetString("imap-pass"),
			UseTLS:             v.GetBool("use-tls"),
			InsecureSkipVerify: v.GetBool("insecure-skip-verify"),
			TargetFolder:       v.GetString("target-folder"),
		},
		Store: loadStore(v),
	}
	if cfg.StateDir != "" {
		cfg.StateDir = filepath.Clean(cfg.StateDir)
	}
	if cfg.ReportDir != "" {
		cfg.ReportDir = filepath.Clean(cfg.ReportDir)
	}

	if err := validateScan(cfg); err != nil {
		return Scan{}, err
	}
	return cfg, nil
}

func validateScan(cfg Scan) error {
	if err := validate(cfg); err != nil {
		return err
	}
	if cfg.Filter.includeActive() && cfg.Filter.excludeActive() {
		return fmt.Errorf("include and exclude flags are mutually exclusive")
	}
	if cfg.Files() && cfg.MunicipalityID <= 0 {
		return fmt.Errorf("--municipality-id is required with --company-ids")
	}
	return nil
}
