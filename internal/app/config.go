package app

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/raysh454/hunter/internal/aggregator"
	"github.com/raysh454/hunter/internal/alert"
	"github.com/raysh454/hunter/internal/classifier"
	"github.com/raysh454/hunter/internal/discovery"
	"github.com/raysh454/hunter/internal/pipeline"
	"github.com/raysh454/hunter/internal/scanner"
	"github.com/raysh454/hunter/internal/submission"
	"github.com/raysh454/hunter/internal/webclient"
)

// EnvPrefix is the prefix of environment overrides, e.g.
// HUNTER_ALERT_DISCORD_WEBHOOK_URL.
const EnvPrefix = "HUNTER"

// Config holds global configuration for the hunter application.
type Config struct {
	StorageRoot string `mapstructure:"storage_root"`
	LogLevel    string `mapstructure:"log_level"`
	ServerAddr  string `mapstructure:"server_addr"`

	// ExportReports writes a YAML copy of every report under
	// <storage_root>/reports.
	ExportReports bool `mapstructure:"export_reports"`

	// Finished jobs older than this are dropped from the job list.
	JobRetentionTime time.Duration `mapstructure:"job_retention"`

	WebClient  webclient.Config  `mapstructure:"webclient"`
	Scanner    scanner.Config    `mapstructure:"scanner"`
	Classifier classifier.Config `mapstructure:"classifier"`
	Aggregator aggregator.Config `mapstructure:"aggregator"`
	Discovery  discovery.Config  `mapstructure:"discovery"`
	Submission submission.Config `mapstructure:"submission"`
	Alert      alert.Config      `mapstructure:"alert"`
	Pipeline   pipeline.Config   `mapstructure:"pipeline"`
}

func DefaultConfig() *Config {
	return &Config{
		StorageRoot:      "~/.config/hunter",
		LogLevel:         "info",
		ServerAddr:       "127.0.0.1:8080",
		ExportReports:    true,
		JobRetentionTime: time.Hour,
		WebClient:        webclient.DefaultConfig(),
		Scanner:          scanner.DefaultConfig(),
		Classifier:       classifier.DefaultConfig(),
		Aggregator:       aggregator.DefaultConfig(),
		Discovery:        discovery.DefaultConfig(),
		Submission:       submission.DefaultConfig(),
		Alert:            alert.DefaultConfig(),
		Pipeline:         pipeline.DefaultConfig(),
	}
}

// LoadConfig reads path (YAML; optional when empty) on top of the defaults
// and applies HUNTER_* environment overrides.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := DefaultConfig()
	setDefaults(v, "", reflect.ValueOf(cfg).Elem())

	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return nil, fmt.Errorf("expanding config path: %w", err)
		}
		v.SetConfigFile(expanded)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", expanded, err)
		}
	}

	clearReplacedLists(v, "", reflect.ValueOf(cfg).Elem())
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) normalize() error {
	root, err := expandPath(c.StorageRoot)
	if err != nil {
		return fmt.Errorf("expanding storage root path: %w", err)
	}
	c.StorageRoot = root
	if c.Pipeline.Workers <= 0 {
		return fmt.Errorf("pipeline.workers must be positive, got %d", c.Pipeline.Workers)
	}
	return nil
}

// setDefaults registers every leaf of the default config with viper so
// that env overrides resolve for keys absent from the file.
func setDefaults(v *viper.Viper, prefix string, rv reflect.Value) {
	rt := rv.Type()
	for i := range rt.NumField() {
		f := rt.Field(i)
		if !f.IsExported() {
			continue
		}
		name, opts, _ := strings.Cut(f.Tag.Get("mapstructure"), ",")
		fv := rv.Field(i)
		if opts == "squash" {
			setDefaults(v, prefix, fv)
			continue
		}
		if name == "" || name == "-" {
			continue
		}
		key := name
		if prefix != "" {
			key = prefix + "." + name
		}
		if fv.Kind() == reflect.Struct && fv.Type() != reflect.TypeOf(time.Time{}) {
			setDefaults(v, key, fv)
			continue
		}
		v.SetDefault(key, fv.Interface())
	}
}

// clearReplacedLists zeroes slice and map fields the file or environment
// sets, so they replace the defaults instead of merging by index.
func clearReplacedLists(v *viper.Viper, prefix string, rv reflect.Value) {
	rt := rv.Type()
	for i := range rt.NumField() {
		f := rt.Field(i)
		if !f.IsExported() {
			continue
		}
		name, opts, _ := strings.Cut(f.Tag.Get("mapstructure"), ",")
		fv := rv.Field(i)
		if opts == "squash" {
			clearReplacedLists(v, prefix, fv)
			continue
		}
		if name == "" || name == "-" {
			continue
		}
		key := name
		if prefix != "" {
			key = prefix + "." + name
		}
		switch fv.Kind() {
		case reflect.Struct:
			if fv.Type() != reflect.TypeOf(time.Time{}) {
				clearReplacedLists(v, key, fv)
			}
		case reflect.Slice, reflect.Map:
			if v.InConfig(key) || envSet(key) {
				fv.Set(reflect.Zero(fv.Type()))
			}
		}
	}
}

func envSet(key string) bool {
	_, ok := os.LookupEnv(EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_")))
	return ok
}

func expandPath(p string) (string, error) {
	if len(p) > 0 && p[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, p[1:]), nil
	}
	return p, nil
}
