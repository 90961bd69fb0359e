package config

import (
	"github.com/spf13/cobra"
)

const defaultMaxUploadSize = 10 << 20

// Serve captures the options of the HTTP API.
type Serve struct {
	Logging
	Address       string `flag:"address" validate:"required"`
	MaxUploadSize int64  `flag:"max-upload-size" validate:"min=1"`
	Debug         bool   `flag:"debug"`
	Store         Store
}

func RegisterServeFlags(cmd *cobra.Command) error {
	flags := cmd.Flags()
	flags.String("address", ":8080", "Address to listen on")
	flags.Int64("max-upload-size", defaultMaxUploadSize, "Maximum size of one uploaded file in bytes")
	flags.Bool("debug", false, "Return internal error details in responses")
	return registerStoreFlags(flags)
}

func LoadServeConfig(cmd *cobra.Command) (Serve, error) {
	v, err := newViper(cmd)
	if err != nil {
		return Serve{}, err
	}

	cfg := Serve{
		Logging:       loadLogging(v),
		Address:       v.GetString("address"),
		MaxUploadSize: v.GetInt64("max-upload-size"),
		Debug:         v.GetBool("debug"),
		Store:         loadStore(v),
	}
	if err := validate(cfg); err != nil {
		return Serve{}, err
	}
	return cfg, nil
}
