// Package config loads the process configuration from a yaml file,
// STUDYFORGE_* environment variables and command-line flags, in that order
// of precedence. The result is validated once and held immutable for the
// process lifetime.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/studyforge/studyforge/internal/fsrs"
)

const envPrefix = "STUDYFORGE_"

// Config is the full process configuration.
type Config struct {
	HTTP      HTTPConfig      `koanf:"http"`
	DB        DBConfig        `koanf:"db"`
	Sources   SourcesConfig   `koanf:"sources"`
	Scheduler SchedulerConfig `koanf:"scheduler"`
}

// HTTPConfig configures the JSON API listener.
type HTTPConfig struct {
	Addr string `koanf:"addr" validate:"required,hostname_port"`
}

// DBConfig configures the sqlite record store.
type DBConfig struct {
	Path string `koanf:"path" validate:"required"`
}

// SourcesConfig configures deck-source syncing.
type SourcesConfig struct {
	Dir string `koanf:"dir" validate:"required"`
}

// SchedulerConfig holds the memory-model coefficients and scheduling limits.
// FirstRating names the candidate used for a freshly created card's initial
// due date.
type SchedulerConfig struct {
	Weights          []float64 `koanf:"weights" validate:"omitempty,len=19"`
	DesiredRetention float64   `koanf:"desired_retention" validate:"gte=0,lte=1"`
	MaximumInterval  int       `koanf:"maximum_interval" validate:"gte=0"`
	FirstRating      string    `koanf:"first_rating" validate:"required"`
}

// Default returns the configuration used when a key is set nowhere else.
func Default() Config {
	return Config{
		HTTP:    HTTPConfig{Addr: "127.0.0.1:8080"},
		DB:      DBConfig{Path: "studyforge.db"},
		Sources: SourcesConfig{Dir: "repos"},
		Scheduler: SchedulerConfig{
			DesiredRetention: fsrs.DefaultDesiredRetention,
			MaximumInterval:  fsrs.DefaultMaximumInterval,
			FirstRating:      "again",
		},
	}
}

// Load builds the configuration from the optional yaml file at path, the
// environment and the parsed flag set, then validates it.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return Config{}, fmt.Errorf("failed to load config file %s: %w", path, err)
			}
		}
	}

	// The config tree is two levels deep, so only the first underscore
	// separates section from key: STUDYFORGE_SCHEDULER_FIRST_RATING →
	// scheduler.first_rating.
	err := k.Load(env.Provider(".", env.Opt{
		Prefix: envPrefix,
		TransformFunc: func(key, value string) (string, any) {
			key = strings.ToLower(strings.TrimPrefix(key, envPrefix))
			return strings.Replace(key, "_", ".", 1), value
		},
	}), nil)
	if err != nil {
		return Config{}, fmt.Errorf("failed to load environment config: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return Config{}, fmt.Errorf("failed to load flag config: %w", err)
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	if _, err := cfg.FirstRating(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// SchedulerParams converts the scheduler section to fsrs.Params.
func (c Config) SchedulerParams() fsrs.Params {
	p := fsrs.Params{
		DesiredRetention: c.Scheduler.DesiredRetention,
		MaximumInterval:  c.Scheduler.MaximumInterval,
	}
	if len(c.Scheduler.Weights) == len(p.Weights) {
		copy(p.Weights[:], c.Scheduler.Weights)
	}
	return p
}

// FirstRating resolves the configured creation-time rating.
func (c Config) FirstRating() (fsrs.Rating, error) {
	return fsrs.ParseRating(c.Scheduler.FirstRating)
}
