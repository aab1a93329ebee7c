package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// EnvPrefix is stripped from environment variables before they are mapped to keys,
// e.g. KNOLSTUDY_STUDY_TIMEZONE sets study.timezone.
const EnvPrefix = "KNOLSTUDY_"

type Config struct {
	Database DatabaseConfig `koanf:"database"`
	Server   ServerConfig   `koanf:"server"`
	Log      LogConfig      `koanf:"log"`
	Study    StudyConfig    `koanf:"study"`
	Sync     SyncConfig     `koanf:"sync"`
}

type DatabaseConfig struct {
	Path string `koanf:"path" validate:"required"`
}

type ServerConfig struct {
	Addr string `koanf:"addr" validate:"required"`
	// CORSOrigins lists browser origins allowed to call the API. Empty disables CORS.
	CORSOrigins []string `koanf:"cors_origins" validate:"dive,url"`
}

type LogConfig struct {
	Mode string `koanf:"mode" validate:"oneof=dev development prod production"`
}

type StudyConfig struct {
	// Timezone is the IANA zone that decides where calendar days begin.
	Timezone             string `koanf:"timezone" validate:"required"`
	GraduationThreshold  int    `koanf:"graduation_threshold" validate:"min=1"`
	DefaultNewCardsLimit int    `koanf:"default_new_cards_limit" validate:"min=1,ltefield=MaxNewCardsLimit"`
	MaxNewCardsLimit     int    `koanf:"max_new_cards_limit" validate:"min=1"`
	StartRetries         int    `koanf:"start_retries" validate:"min=1,max=10"`
}

type SyncConfig struct {
	ReposDir string `koanf:"repos_dir" validate:"required"`
}

// Location resolves Study.Timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Study.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid study.timezone %q: %w", c.Study.Timezone, err)
	}
	return loc, nil
}

var defaults = map[string]interface{}{
	"database.path":                 "knolstudy.db",
	"server.addr":                   ":8080",
	"server.cors_origins":           []string{"http://localhost:4321"},
	"log.mode":                      "dev",
	"study.timezone":                "UTC",
	"study.graduation_threshold":    3,
	"study.default_new_cards_limit": 20,
	"study.max_new_cards_limit":     100,
	"study.start_retries":           3,
	"sync.repos_dir":                "./.knolstudy_repos",
}

// flagKeys maps command-line flag names to config keys.
var flagKeys = map[string]string{
	"db":        "database.path",
	"addr":      "server.addr",
	"log-mode":  "log.mode",
	"timezone":  "study.timezone",
	"repos-dir": "sync.repos_dir",
}

// Load layers defaults, the YAML file at path (skipped when empty), KNOLSTUDY_* environment
// variables and finally any flags set on fs. fs may be nil.
func Load(path string, fs *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	for key, val := range defaults {
		if err := k.Set(key, val); err != nil {
			return nil, fmt.Errorf("failed to set default %s: %w", key, err)
		}
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	if fs != nil {
		if err := k.Load(posflag.ProviderWithFlag(fs, ".", k, flagKey(fs)), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field ranges and that the timezone exists.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// envKey turns KNOLSTUDY_STUDY_START_RETRIES into study.start_retries.
// Only the first underscore separates the section from the field.
func envKey(s string) string {
	return strings.Replace(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "_", ".", 1)
}

func flagKey(fs *pflag.FlagSet) func(*pflag.Flag) (string, interface{}) {
	return func(f *pflag.Flag) (string, interface{}) {
		key, ok := flagKeys[f.Name]
		if !ok {
			return "", nil
		}
		return key, posflag.FlagVal(fs, f)
	}
}
