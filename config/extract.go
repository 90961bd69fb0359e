package config

import (
	"github.com/spf13/cobra"
)

// Extract captures the options of the one-shot extract command.
type Extract struct {
	Logging
	Format string `flag:"format" validate:"oneof=table json csv"`
}

func RegisterExtractFlags(cmd *cobra.Command) {
	cmd.Flags().String("format", "table", "Output format: table, json, csv")
}

func LoadExtractConfig(cmd *cobra.Command) (Extract, error) {
	v, err := newViper(cmd)
	if err != nil {
		return Extract{}, err
	}

	cfg := Extract{
		Logging: loadLogging(v),
		Format:  v.GetString("format"),
	}
	if err := validate(cfg); err != nil {
		return Extract{}, err
	}
	return cfg, nil
}
