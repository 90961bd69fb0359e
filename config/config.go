// Package config turns command flags, environment variables, an optional
// config file and a .env file into validated settings.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	EnvPrefix = "FILEWHATWHAT"
	homeDir   = ".filewhatwhat"
)

var (
	Validate   *validator.Validate
	Translator ut.Translator
)

func init() {
	Validate = validator.New()

	english := en.New()
	Translator, _ = ut.New(english, english).GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(Validate, Translator)

	// Name fields after their flag in error messages.
	Validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		if name := fld.Tag.Get("flag"); name != "" {
			return "--" + name
		}
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// Logging is shared by every command.
type Logging struct {
	Level string `flag:"log-level" validate:"oneof=debug info warn error"`
	Dir   string `flag:"log-dir"`
}

// Store selects where upload records live: PostgreSQL when DatabaseURL is
// set, a JSONL file in Dir otherwise.
type Store struct {
	DatabaseURL string `flag:"database-url"`
	Dir         string `flag:"store-dir" validate:"required_without=DatabaseURL"`
}

// RegisterPersistentFlags attaches the flags every subcommand inherits.
func RegisterPersistentFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.String("config", "", "Config file (yaml, toml or json); keys are flag names")
	flags.String("log-level", "info", "Logging level: debug, info, warn, error")
	flags.String("log-dir", "", "Directory to write a log file to in addition to stdout")
}

func registerStoreFlags(flags *pflag.FlagSet) error {
	dir, err := defaultDir("uploads")
	if err != nil {
		return err
	}
	flags.String("database-url", "", "PostgreSQL URL for upload records (falls back to DATABASE_URL env var)")
	flags.String("store-dir", dir, "Directory for the JSONL upload store when no database is configured")
	return nil
}

// newViper layers flags over environment over config file over defaults.
func newViper(cmd *cobra.Command) (*viper.Viper, error) {
	// .env is optional; an unreadable one is an error.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, fmt.Errorf("bind flags: %w", err)
	}
	if err := v.BindEnv("database-url", EnvPrefix+"_DATABASE_URL", "DATABASE_URL"); err != nil {
		return nil, err
	}
	if err := v.BindEnv("imap-pass", EnvPrefix+"_IMAP_PASS", "IMAP_PASS"); err != nil {
		return nil, err
	}

	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	return v, nil
}

func loadLogging(v *viper.Viper) Logging {
	level := strings.ToLower(strings.TrimSpace(v.GetString("log-level")))
	if level == "warning" {
		level = "warn"
	}
	return Logging{Level: level, Dir: v.GetString("log-dir")}
}

func loadStore(v *viper.Viper) Store {
	s := Store{
		DatabaseURL: strings.TrimSpace(v.GetString("database-url")),
		Dir:         v.GetString("store-dir"),
	}
	if s.Dir != "" {
		s.Dir = filepath.Clean(s.Dir)
	}
	return s
}

// validate checks struct tags and flattens the result into one error.
func validate(cfg any) error {
	err := Validate.Struct(cfg)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fe.Translate(Translator))
	}
	return errors.New(strings.Join(msgs, "; "))
}

// parseIDs accepts repeated values and comma separated lists.
func parseIDs(values []string) ([]int64, error) {
	var ids []int64
	for _, v := range values {
		for _, field := range strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == ' ' }) {
			id, err := strconv.ParseInt(field, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid id %q: %w", field, err)
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func defaultDir(name string) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, homeDir, name), nil
}
