package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the plan compiler.
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Currency  CurrencyConfig  `mapstructure:"currency"`
	Region    RegionConfig    `mapstructure:"region"`
	Sync      SyncConfig      `mapstructure:"sync"`
	Render    RenderConfig    `mapstructure:"render"`
	Server    ServerConfig    `mapstructure:"server"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Search    SearchConfig    `mapstructure:"search"`
}

// GeneralConfig contains directory layout and logging settings.
type GeneralConfig struct {
	DataDir   string `mapstructure:"data_dir"`
	OutputDir string `mapstructure:"output_dir"`
	Debug     bool   `mapstructure:"debug"`
	LogLevel  string `mapstructure:"log_level"`
}

func (g GeneralConfig) Normalize() GeneralConfig {
	if strings.TrimSpace(g.DataDir) == "" {
		g.DataDir = "data"
	}
	if strings.TrimSpace(g.OutputDir) == "" {
		g.OutputDir = "output"
	}
	return g
}

// CurrencyConfig describes how costs are converted for display.
//
// ExchangeRate means "units of display currency per one unit of source
// currency". FallbackRate is expressed as CNY per EUR and is inverted when
// the configured pair runs the other way.
type CurrencyConfig struct {
	Source       string        `mapstructure:"source"`
	Display      string        `mapstructure:"display"`
	Symbol       string        `mapstructure:"symbol"`
	FallbackRate float64       `mapstructure:"fallback_rate"`
	FetchCommand []string      `mapstructure:"fetch_command"`
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
}

func (c CurrencyConfig) Normalize() CurrencyConfig {
	if c.Source == "" {
		c.Source = "CNY"
	}
	if c.Display == "" {
		c.Display = "EUR"
	}
	if c.Symbol == "" {
		c.Symbol = "€"
	}
	if c.FallbackRate <= 0 {
		c.FallbackRate = 7.8
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = 10 * time.Second
	}
	return c
}

// Validate checks the currency codes. Codes are handed to a subprocess rate
// source, so anything beyond three uppercase ASCII letters is rejected here
// rather than at invocation time.
func (c CurrencyConfig) Validate() error {
	for _, code := range []string{c.Source, c.Display} {
		if !IsCurrencyCode(code) {
			return fmt.Errorf("currency: invalid code %q (want three uppercase letters)", code)
		}
	}
	return nil
}

// IsCurrencyCode reports whether s looks like an ISO-4217 currency code.
func IsCurrencyCode(s string) bool {
	if len(s) != 3 {
		return false
	}
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

// RegionConfig controls coordinate-bounds validation.
type RegionConfig struct {
	MainlandChinaMode bool     `mapstructure:"mainland_china_mode"`
	LatMin            float64  `mapstructure:"lat_min"`
	LatMax            float64  `mapstructure:"lat_max"`
	LngMin            float64  `mapstructure:"lng_min"`
	LngMax            float64  `mapstructure:"lng_max"`
	ExemptLocations   []string `mapstructure:"exempt_locations"`
}

func (r RegionConfig) Normalize() RegionConfig {
	if r.LatMin == 0 && r.LatMax == 0 {
		r.LatMin, r.LatMax = 18, 54
	}
	if r.LngMin == 0 && r.LngMax == 0 {
		r.LngMin, r.LngMax = 73, 136
	}
	if len(r.ExemptLocations) == 0 {
		r.ExemptLocations = []string{"Hong Kong", "Macau", "Macao"}
	}
	return r
}

// MealWindow is a half-open hour range [Start, End) used to disambiguate
// timeline matches for meal slots.
type MealWindow struct {
	Start int `mapstructure:"start"`
	End   int `mapstructure:"end"`
}

// Contains reports whether hour falls inside the window.
func (w MealWindow) Contains(hour int) bool {
	return hour >= w.Start && hour < w.End
}

// SyncConfig carries the timeline synchronizer's matching knobs.
type SyncConfig struct {
	TransitPrefixes        []string              `mapstructure:"transit_prefixes"`
	MealHints              map[string]MealWindow `mapstructure:"meal_hints"`
	DefaultDurationMinutes map[string]int        `mapstructure:"default_duration_minutes"`
}

func (s SyncConfig) Normalize() SyncConfig {
	if len(s.TransitPrefixes) == 0 {
		s.TransitPrefixes = []string{
			"travel to", "walk to", "drive to", "taxi to", "bus to",
			"train to", "metro to", "subway to", "transfer to",
			"travel from", "travel back", "return to", "board train",
			"hotel check", "wake up", "arrive ", "return home",
			"free time", "settle in", "check luggage",
		}
	}
	if s.MealHints == nil {
		s.MealHints = map[string]MealWindow{
			"breakfast": {Start: 5, End: 10},
			"lunch":     {Start: 10, End: 15},
			"dinner":    {Start: 17, End: 23},
		}
	}
	if s.DefaultDurationMinutes == nil {
		s.DefaultDurationMinutes = map[string]int{
			"walk":   60,
			"museum": 120,
			"other":  90,
		}
	}
	return s
}

// RenderConfig controls HTML emission.
type RenderConfig struct {
	TemplatePath string        `mapstructure:"template_path"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

func (r RenderConfig) Normalize() RenderConfig {
	if r.Timeout <= 0 {
		r.Timeout = 60 * time.Second
	}
	return r
}

// ServerConfig contains preview server settings.
type ServerConfig struct {
	Address string `mapstructure:"address"`
}

func (s ServerConfig) Normalize() ServerConfig {
	if strings.TrimSpace(s.Address) == "" {
		s.Address = ":10011"
	}
	return s
}

// TelemetryConfig contains metrics settings.
type TelemetryConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// SearchConfig contains POI search index settings.
type SearchConfig struct {
	IndexDir string `mapstructure:"index_dir"`
}

func (s SearchConfig) Normalize() SearchConfig {
	if strings.TrimSpace(s.IndexDir) == "" {
		s.IndexDir = filepath.Join(".wanderplan", "search.bleve")
	}
	return s
}

// LoadConfig loads config from the given path. An empty path searches the
// usual locations; a missing file falls back to defaults.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("json")

	if path == "" {
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
		if exe, err := os.Executable(); err == nil {
			exeDir := filepath.Dir(exe)
			v.AddConfigPath(exeDir)
			v.AddConfigPath(filepath.Join(exeDir, ".."))
		}
	} else {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix("WANDERPLAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if path != "" {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.General = cfg.General.Normalize()
	cfg.Currency = cfg.Currency.Normalize()
	cfg.Region = cfg.Region.Normalize()
	cfg.Sync = cfg.Sync.Normalize()
	cfg.Render = cfg.Render.Normalize()
	cfg.Server = cfg.Server.Normalize()
	cfg.Search = cfg.Search.Normalize()

	if err := cfg.Currency.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a Config with every default applied, bypassing file and
// environment lookup. Useful for tests and for commands that take all their
// inputs as flags.
func Default() *Config {
	cfg := &Config{}
	cfg.General = cfg.General.Normalize()
	cfg.Currency = cfg.Currency.Normalize()
	cfg.Region = cfg.Region.Normalize()
	cfg.Sync = cfg.Sync.Normalize()
	cfg.Render = cfg.Render.Normalize()
	cfg.Server = cfg.Server.Normalize()
	cfg.Search = cfg.Search.Normalize()
	return cfg
}
