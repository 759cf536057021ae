// Package config loads ab-av1 settings from defaults, an optional YAML file
// and AB_AV1_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/five82/ab-av1/internal/ffmpeg"
	"github.com/five82/ab-av1/internal/logging"
	"github.com/five82/ab-av1/internal/sample"
	"github.com/five82/ab-av1/internal/tq"
	"github.com/five82/ab-av1/internal/vmaf"
)

const (
	// EnvPrefix prefixes every environment override, e.g. AB_AV1_SEARCH_MIN_CRF.
	EnvPrefix = "AB_AV1"

	// FileName is the config file looked up in the user config directory.
	FileName = "ab-av1.yaml"

	DefaultLogLevel  = "warn"
	DefaultLogFormat = "text"
	DefaultVMAFScale = "auto"
)

// Config holds all settings that may come from file or environment.
type Config struct {
	Encoder        string        `mapstructure:"encoder"`
	Preset         string        `mapstructure:"preset"`
	PixFormat      string        `mapstructure:"pix_format"`
	Samples        int           `mapstructure:"samples"`
	SampleDuration time.Duration `mapstructure:"sample_duration"`
	Keep           bool          `mapstructure:"keep"`
	Cache          bool          `mapstructure:"cache"`
	TempDir        string        `mapstructure:"temp_dir"`
	Search         SearchConfig  `mapstructure:"search"`
	VMAF           VMAFConfig    `mapstructure:"vmaf"`
	Binaries       BinaryConfig  `mapstructure:"binaries"`
	Logging        LoggingConfig `mapstructure:"logging"`
}

// SearchConfig holds crf-search targets and bounds.
type SearchConfig struct {
	MinVMAF           float64 `mapstructure:"min_vmaf"`
	MinXPSNR          float64 `mapstructure:"min_xpsnr"`
	MaxEncodedPercent float64 `mapstructure:"max_encoded_percent"`
	MinCRF            int     `mapstructure:"min_crf"`
	MaxCRF            int     `mapstructure:"max_crf"`
}

// VMAFConfig holds analyzer options.
type VMAFConfig struct {
	Args  []string `mapstructure:"args"`
	Scale string   `mapstructure:"scale"`
}

// BinaryConfig names the external tools, resolved through PATH when bare.
type BinaryConfig struct {
	FFmpeg  string `mapstructure:"ffmpeg"`
	FFprobe string `mapstructure:"ffprobe"`
	SvtAv1  string `mapstructure:"svtav1"`
}

// LoggingConfig configures the slog logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	// Dir, when set, receives a timestamped log file instead of stderr.
	Dir string `mapstructure:"dir"`
}

// DefaultPath returns <UserConfigDir>/ab-av1/ab-av1.yaml.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "ab-av1", FileName), nil
}

// Load reads configuration from file and environment variables.
// Environment variables take precedence over file configuration. An empty
// configPath looks for ab-av1.yaml in the user config directory and uses
// defaults when it is absent.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	if configPath != "" {
		if _, err := os.Stat(configPath); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName(strings.TrimSuffix(FileName, filepath.Ext(FileName)))
		v.SetConfigType("yaml")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "ab-av1"))
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

// SetDefaults configures default values for all configuration options.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("encoder", ffmpeg.DefaultEncoder.String())
	v.SetDefault("preset", "")
	v.SetDefault("pix_format", "")
	v.SetDefault("samples", sample.DefaultCount)
	v.SetDefault("sample_duration", sample.DefaultDuration)
	v.SetDefault("keep", false)
	v.SetDefault("cache", true)
	v.SetDefault("temp_dir", "")

	v.SetDefault("search.min_vmaf", tq.DefaultMinVMAF)
	v.SetDefault("search.min_xpsnr", tq.DefaultMinXPSNR)
	v.SetDefault("search.max_encoded_percent", tq.DefaultMaxEncodedPercent)
	v.SetDefault("search.min_crf", tq.DefaultMinCRF)
	v.SetDefault("search.max_crf", tq.DefaultMaxCRF)

	v.SetDefault("vmaf.args", []string{})
	v.SetDefault("vmaf.scale", DefaultVMAFScale)

	v.SetDefault("binaries.ffmpeg", ffmpeg.DefaultFFmpegBinary)
	v.SetDefault("binaries.ffprobe", ffmpeg.DefaultFFprobeBinary)
	v.SetDefault("binaries.svtav1", ffmpeg.DefaultSvtAv1Binary)

	v.SetDefault("logging.level", DefaultLogLevel)
	v.SetDefault("logging.format", DefaultLogFormat)
	v.SetDefault("logging.dir", "")
}

// Default returns the configuration Load produces with no file or environment.
func Default() *Config {
	v := viper.New()
	SetDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Search.MinCRF < 0 {
		return fmt.Errorf("%w: min_crf must not be negative, got %d", ErrInvalidCRFRange, c.Search.MinCRF)
	}
	if c.Search.MinCRF > c.Search.MaxCRF {
		return fmt.Errorf("%w: min_crf (%d) > max_crf (%d)", ErrInvalidCRFRange, c.Search.MinCRF, c.Search.MaxCRF)
	}
	if c.Search.MaxEncodedPercent <= 0 {
		return fmt.Errorf("%w: got %v", ErrInvalidEncodedPercent, c.Search.MaxEncodedPercent)
	}
	if c.Samples < 0 {
		return fmt.Errorf("%w: samples must not be negative, got %d", ErrInvalidSamples, c.Samples)
	}
	if c.SampleDuration <= 0 {
		return fmt.Errorf("%w: sample_duration must be positive, got %s", ErrInvalidSamples, c.SampleDuration)
	}
	if _, err := ffmpeg.ParseEncoder(c.Encoder); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEncoder, err)
	}
	if _, err := vmaf.ParseScale(c.VMAF.Scale); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidScale, c.VMAF.Scale)
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidLogging, err)
	}
	switch logging.Format(c.Logging.Format) {
	case logging.FormatText, logging.FormatJSON:
	default:
		return fmt.Errorf("%w: format must be text or json, got %q", ErrInvalidLogging, c.Logging.Format)
	}
	return nil
}

// TQConfig returns the search target for the chosen metric.
func (c *Config) TQConfig(xpsnr bool) tq.Config {
	minScore := c.Search.MinVMAF
	if xpsnr {
		minScore = c.Search.MinXPSNR
	}
	return tq.Config{
		MinScore:          minScore,
		MaxEncodedPercent: c.Search.MaxEncodedPercent,
		MinCRF:            c.Search.MinCRF,
		MaxCRF:            c.Search.MaxCRF,
	}
}

// LoggingSetup returns the logger config and, when Logging.Dir is set, the
// opened log file the caller must close.
func (c *Config) LoggingSetup() (logging.Config, *os.File, error) {
	lc := logging.DefaultConfig()
	level, err := logging.ParseLevel(c.Logging.Level)
	if err != nil {
		return lc, nil, err
	}
	lc.Level = level
	lc.Format = logging.Format(c.Logging.Format)
	if c.Logging.Dir == "" {
		return lc, nil, nil
	}
	f, err := logging.OpenFile(c.Logging.Dir)
	if err != nil {
		return lc, nil, err
	}
	lc.Output = f
	return lc, f, nil
}
