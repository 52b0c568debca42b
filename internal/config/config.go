// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Switchyard Contributors

// Package config loads and validates the switchyard configuration from
// defaults, environment variables (prefix SWITCHYARD_), and an optional
// YAML file, in increasing order of precedence.
package config

import (
	"errors"
	"net"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/switchyard-dev/switchyard/internal/catalog"
	"github.com/switchyard-dev/switchyard/internal/routing"
	syerr "github.com/switchyard-dev/switchyard/pkg/errors"
)

// Config is the top-level switchyard configuration.
type Config struct {
	Server    ServerConfig             `mapstructure:"server"`
	Engine    EngineConfig             `mapstructure:"engine"`
	Storage   StorageConfig            `mapstructure:"storage"`
	DataDir   string                   `mapstructure:"data_dir"`
	Providers []ProviderConfig         `mapstructure:"providers"`
	Features  map[string]FeatureConfig `mapstructure:"features"`
}

// ServerConfig controls the HTTP API server.
type ServerConfig struct {
	Listen         string        `mapstructure:"listen"`
	CORSOrigins    []string      `mapstructure:"cors_origins"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	RateLimitRPS   float64       `mapstructure:"rate_limit_rps"`
	RateLimitBurst int           `mapstructure:"rate_limit_burst"`
}

// EngineConfig controls health tracking and recovery behavior.
type EngineConfig struct {
	FailureThreshold   int           `mapstructure:"failure_threshold"`
	ShortRecovery      time.Duration `mapstructure:"short_recovery"`
	LongRecovery       time.Duration `mapstructure:"long_recovery"`
	SweepInterval      time.Duration `mapstructure:"sweep_interval"`
	LatencyAlpha       float64       `mapstructure:"latency_alpha"`
	EmergencyDefault   string        `mapstructure:"emergency_default"`
	AllowFeatureCreate bool          `mapstructure:"allow_feature_create"`
}

// StorageConfig selects the operator-state backend.
type StorageConfig struct {
	Backend string `mapstructure:"backend"`
	Path    string `mapstructure:"path"`
}

// ProviderConfig declares one provider in the catalog.
type ProviderConfig struct {
	ID       string  `mapstructure:"id"`
	Category string  `mapstructure:"category"`
	UnitCost float64 `mapstructure:"unit_cost"`
	Capacity int     `mapstructure:"capacity"`
	Priority int     `mapstructure:"priority"`
	// Active defaults to true when omitted.
	Active *bool `mapstructure:"active"`
}

// FeatureConfig declares the routing chain for one product feature.
type FeatureConfig struct {
	Primary     string   `mapstructure:"primary"`
	Fallbacks   []string `mapstructure:"fallbacks"`
	MaxRetries  int      `mapstructure:"max_retries"`
	CostCeiling float64  `mapstructure:"cost_ceiling"`
}

// SetDefaults registers the default value for every setting on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.listen", "127.0.0.1:18650")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.rate_limit_rps", 0)
	v.SetDefault("server.rate_limit_burst", 0)
	v.SetDefault("storage.backend", "sqlite")
	v.SetDefault("engine.failure_threshold", routing.DefaultFailureThreshold)
	v.SetDefault("engine.short_recovery", routing.DefaultShortRecovery)
	v.SetDefault("engine.long_recovery", routing.DefaultLongRecovery)
	v.SetDefault("engine.sweep_interval", routing.DefaultSweepInterval)
	v.SetDefault("engine.latency_alpha", routing.DefaultLatencyAlpha)
	v.SetDefault("engine.allow_feature_create", false)
}

// SetupEnv configures v to read overrides from SWITCHYARD_* environment
// variables, with dots in keys replaced by underscores (e.g.
// SWITCHYARD_SERVER_LISTEN overrides server.listen).
func SetupEnv(v *viper.Viper) {
	v.SetEnvPrefix("SWITCHYARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load reads configuration from the given path (or defaults when path is
// empty) with environment variable overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	SetupEnv(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var parseErr viper.ConfigParseError
			if errors.As(err, &parseErr) {
				return nil, syerr.Errorf(syerr.CodeConfigParseInvalidFormat, "parsing config %s: %w", path, err)
			}
			return nil, syerr.Errorf(syerr.CodeConfigLoadReadFailure, "reading config %s: %w", path, err)
		}
	}

	return FromViper(v)
}

// FromViper unmarshals and validates a fully populated viper instance.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, syerr.Errorf(syerr.CodeConfigParseInvalidFormat, "unmarshalling config: %w", err)
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, syerr.Errorf(syerr.CodeConfigValidateInvalidValue, "validating config: %w", errors.Join(errs...))
	}

	return &cfg, nil
}

// Validate checks the configuration for logical errors.
// It returns a slice of all validation errors found, collecting all issues
// rather than stopping at the first one.
func (c *Config) Validate() []error {
	var errs []error

	errs = append(errs, c.validateServer()...)
	errs = append(errs, c.validateEngine()...)
	errs = append(errs, c.validateStorage()...)
	errs = append(errs, c.validateProviders()...)
	errs = append(errs, c.validateFeatures()...)

	return errs
}

func (c *Config) validateServer() []error {
	var errs []error

	if c.Server.Listen == "" {
		errs = append(errs, syerr.New(syerr.CodeConfigValidateInvalidValue, "config: server.listen must not be empty"))
	} else {
		host, portStr, err := net.SplitHostPort(c.Server.Listen)
		if err != nil {
			errs = append(errs, syerr.Errorf(syerr.CodeConfigValidateInvalidValue,
				"config: server.listen must be a valid host:port address, got %q: %w",
				c.Server.Listen, err,
			))
		} else {
			_ = host // host can be empty (e.g., ":8080"), which is valid
			port, err := strconv.Atoi(portStr)
			if err != nil {
				errs = append(errs, syerr.Errorf(syerr.CodeConfigValidateInvalidValue,
					"config: server.listen port must be a number, got %q",
					portStr,
				))
			} else if port < 1 || port > 65535 {
				errs = append(errs, syerr.Errorf(syerr.CodeConfigValidateInvalidValue,
					"config: server.listen port must be between 1 and 65535, got %d",
					port,
				))
			}
		}
	}

	if c.Server.ReadTimeout < 0 {
		errs = append(errs, syerr.Errorf(syerr.CodeConfigValidateInvalidValue,
			"config: server.read_timeout must not be negative, got %s", c.Server.ReadTimeout))
	}
	if c.Server.WriteTimeout < 0 {
		errs = append(errs, syerr.Errorf(syerr.CodeConfigValidateInvalidValue,
			"config: server.write_timeout must not be negative, got %s", c.Server.WriteTimeout))
	}

	if c.Server.RateLimitRPS < 0 {
		errs = append(errs, syerr.Errorf(syerr.CodeConfigValidateInvalidValue,
			"config: server.rate_limit_rps must not be negative, got %g", c.Server.RateLimitRPS))
	}
	if c.Server.RateLimitRPS > 0 && c.Server.RateLimitBurst <= 0 {
		errs = append(errs, syerr.Errorf(syerr.CodeConfigValidateInvalidValue,
			"config: server.rate_limit_burst must be positive when rate_limit_rps is set, got %d",
			c.Server.RateLimitBurst,
		))
	}

	return errs
}

func (c *Config) validateEngine() []error {
	var errs []error

	if c.Engine.FailureThreshold < 1 {
		errs = append(errs, syerr.Errorf(syerr.CodeConfigValidateInvalidValue,
			"config: engine.failure_threshold must be greater than 0, got %d",
			c.Engine.FailureThreshold,
		))
	}
	if c.Engine.ShortRecovery <= 0 {
		errs = append(errs, syerr.Errorf(syerr.CodeConfigValidateInvalidValue,
			"config: engine.short_recovery must be positive, got %s", c.Engine.ShortRecovery))
	}
	if c.Engine.LongRecovery <= 0 {
		errs = append(errs, syerr.Errorf(syerr.CodeConfigValidateInvalidValue,
			"config: engine.long_recovery must be positive, got %s", c.Engine.LongRecovery))
	}
	if c.Engine.ShortRecovery > 0 && c.Engine.LongRecovery > 0 && c.Engine.LongRecovery < c.Engine.ShortRecovery {
		errs = append(errs, syerr.Errorf(syerr.CodeConfigValidateInvalidValue,
			"config: engine.long_recovery must not be shorter than engine.short_recovery, got %s < %s",
			c.Engine.LongRecovery, c.Engine.ShortRecovery,
		))
	}
	if c.Engine.SweepInterval <= 0 {
		errs = append(errs, syerr.Errorf(syerr.CodeConfigValidateInvalidValue,
			"config: engine.sweep_interval must be positive, got %s", c.Engine.SweepInterval))
	}
	if c.Engine.LatencyAlpha <= 0 || c.Engine.LatencyAlpha > 1 {
		errs = append(errs, syerr.Errorf(syerr.CodeConfigValidateInvalidValue,
			"config: engine.latency_alpha must be in (0, 1], got %g", c.Engine.LatencyAlpha))
	}

	if c.Engine.EmergencyDefault != "" && !c.hasProvider(c.Engine.EmergencyDefault) {
		errs = append(errs, syerr.Errorf(syerr.CodeConfigValidateInvalidValue,
			"config: engine.emergency_default references provider %q which is not declared",
			c.Engine.EmergencyDefault,
		))
	}

	return errs
}

func (c *Config) validateStorage() []error {
	var errs []error

	validBackends := map[string]bool{"sqlite": true, "memory": true}
	if !validBackends[c.Storage.Backend] {
		errs = append(errs, syerr.Errorf(syerr.CodeConfigValidateInvalidValue,
			"config: storage.backend must be one of [sqlite, memory], got %q",
			c.Storage.Backend,
		))
	}

	return errs
}

func (c *Config) validateProviders() []error {
	var errs []error

	seen := make(map[string]bool, len(c.Providers))
	for i, p := range c.Providers {
		if strings.TrimSpace(p.ID) == "" {
			errs = append(errs, syerr.Errorf(syerr.CodeConfigValidateInvalidValue,
				"config: providers[%d].id must not be empty", i))
			continue
		}
		if seen[p.ID] {
			errs = append(errs, syerr.Errorf(syerr.CodeConfigValidateInvalidValue,
				"config: providers[%d] duplicates id %q", i, p.ID))
		}
		seen[p.ID] = true

		if !catalog.Category(p.Category).Valid() {
			errs = append(errs, syerr.Errorf(syerr.CodeConfigValidateInvalidValue,
				"config: providers[%d] (%s): category must be one of %v, got %q",
				i, p.ID, catalog.Categories(), p.Category,
			))
		}
		if p.UnitCost < 0 {
			errs = append(errs, syerr.Errorf(syerr.CodeConfigValidateInvalidValue,
				"config: providers[%d] (%s): unit_cost must be non-negative, got %g",
				i, p.ID, p.UnitCost,
			))
		}
		if p.Capacity < 1 {
			errs = append(errs, syerr.Errorf(syerr.CodeConfigValidateInvalidValue,
				"config: providers[%d] (%s): capacity must be positive, got %d",
				i, p.ID, p.Capacity,
			))
		}
		if p.Priority < 0 {
			errs = append(errs, syerr.Errorf(syerr.CodeConfigValidateInvalidValue,
				"config: providers[%d] (%s): priority must be non-negative, got %d",
				i, p.ID, p.Priority,
			))
		}
	}

	return errs
}

func (c *Config) validateFeatures() []error {
	var errs []error

	// Sorted iteration keeps error order stable across runs.
	names := make([]string, 0, len(c.Features))
	for name := range c.Features {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		f := c.Features[name]

		if strings.TrimSpace(name) == "" {
			errs = append(errs, syerr.New(syerr.CodeConfigValidateInvalidValue,
				"config: features keys must not be empty"))
			continue
		}
		if f.Primary == "" {
			errs = append(errs, syerr.Errorf(syerr.CodeConfigValidateInvalidValue,
				"config: features.%s.primary must not be empty", name))
		} else if !c.hasProvider(f.Primary) {
			errs = append(errs, syerr.Errorf(syerr.CodeConfigValidateInvalidValue,
				"config: features.%s.primary references provider %q which is not declared",
				name, f.Primary,
			))
		}

		inChain := map[string]bool{f.Primary: true}
		for i, fb := range f.Fallbacks {
			if !c.hasProvider(fb) {
				errs = append(errs, syerr.Errorf(syerr.CodeConfigValidateInvalidValue,
					"config: features.%s.fallbacks[%d] references provider %q which is not declared",
					name, i, fb,
				))
				continue
			}
			if inChain[fb] {
				errs = append(errs, syerr.Errorf(syerr.CodeConfigValidateInvalidValue,
					"config: features.%s.fallbacks[%d] repeats provider %q in the chain",
					name, i, fb,
				))
			}
			inChain[fb] = true
		}

		if f.MaxRetries < 0 {
			errs = append(errs, syerr.Errorf(syerr.CodeConfigValidateInvalidValue,
				"config: features.%s.max_retries must not be negative, got %d", name, f.MaxRetries))
		}
		if f.CostCeiling < 0 {
			errs = append(errs, syerr.Errorf(syerr.CodeConfigValidateInvalidValue,
				"config: features.%s.cost_ceiling must not be negative, got %g", name, f.CostCeiling))
		}
	}

	return errs
}

func (c *Config) hasProvider(id string) bool {
	for _, p := range c.Providers {
		if p.ID == id {
			return true
		}
	}
	return false
}

// CatalogProviders converts the providers section into catalog entries.
// A provider that omits active defaults to enabled.
func (c *Config) CatalogProviders() []catalog.Provider {
	out := make([]catalog.Provider, 0, len(c.Providers))
	for _, p := range c.Providers {
		active := true
		if p.Active != nil {
			active = *p.Active
		}
		out = append(out, catalog.Provider{
			ID:       p.ID,
			Category: catalog.Category(p.Category),
			UnitCost: p.UnitCost,
			Capacity: p.Capacity,
			Priority: p.Priority,
			Active:   active,
		})
	}
	return out
}

// FeatureRoutes converts the features section into routing table entries,
// sorted by feature name so construction order is deterministic.
func (c *Config) FeatureRoutes() []routing.FeatureConfig {
	names := make([]string, 0, len(c.Features))
	for name := range c.Features {
		names = append(names, name)
	}
	slices.Sort(names)

	out := make([]routing.FeatureConfig, 0, len(names))
	for _, name := range names {
		f := c.Features[name]
		out = append(out, routing.FeatureConfig{
			Feature:     name,
			Primary:     f.Primary,
			Fallbacks:   slices.Clone(f.Fallbacks),
			MaxRetries:  f.MaxRetries,
			CostCeiling: f.CostCeiling,
		})
	}
	return out
}

// RoutingConfig assembles the engine configuration from the engine section.
func (c *Config) RoutingConfig() routing.Config {
	return routing.Config{
		EmergencyDefault: c.Engine.EmergencyDefault,
		SweepInterval:    c.Engine.SweepInterval,
		Monitor: routing.MonitorConfig{
			FailureThreshold: c.Engine.FailureThreshold,
			ShortRecovery:    c.Engine.ShortRecovery,
			LongRecovery:     c.Engine.LongRecovery,
			LatencyAlpha:     c.Engine.LatencyAlpha,
		},
	}
}
