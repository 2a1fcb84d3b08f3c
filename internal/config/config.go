// Package config loads run settings from flags, AXEBENCH_* environment
// variables and an optional config file.
package config

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"codeberg.org/mutker/axebench/internal/device"
	"codeberg.org/mutker/axebench/internal/errors"
	"codeberg.org/mutker/axebench/internal/firmware"
	"codeberg.org/mutker/axebench/internal/history"
	"codeberg.org/mutker/axebench/internal/logger"
	"codeberg.org/mutker/axebench/internal/sampler"
	"codeberg.org/mutker/axebench/internal/sweep"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	AppName   = "axebench"
	EnvPrefix = "AXEBENCH"

	DefaultFreqRange           = "400,625"
	DefaultFreqStep            = 25
	DefaultVcoreRange          = "1000,1300"
	DefaultVcoreStep           = 25
	DefaultSampleInterval      = 10
	DefaultBenchmarkTime       = 600
	DefaultStabilizeTime       = 240
	DefaultMaxPollErrors       = 3
	DefaultMaxZeroHashRate     = 5
	DefaultLowHashRateFraction = 0.5
	DefaultStableFraction      = 0.94
	DefaultOutputDir           = "."
	DefaultLogLevel            = "info"
)

// Config keys, shared by flags, env and file
const (
	keyAxeIP               = "axe_ip"
	keyFreqRange           = "freq_range"
	keyFreqStep            = "freq_step"
	keyVcoreRange          = "vcore_range"
	keyVcoreStep           = "vcore_step"
	keySampleInterval      = "sample_interval"
	keyBenchmarkTime       = "benchmark_time"
	keyStabilizeTime       = "stabilize_time"
	keyMaxPollErrors       = "max_poll_errors"
	keyMaxZeroHashRate     = "max_zero_hashrate"
	keyLowHashRateFraction = "low_hashrate_fraction"
	keyStableFraction      = "stable_fraction"
	keyOutputDir           = "output_dir"
	keyHistory             = "history"
	keyHistoryDB           = "history_db"
	keyLogLevel            = "log_level"
	keyNoColor             = "no_color"
	keyConfig              = "config"
)

// Range is an inclusive min,max pair
type Range struct {
	Min int
	Max int
}

func (r Range) String() string {
	return fmt.Sprintf("%d,%d", r.Min, r.Max)
}

type Config struct {
	AxeIP               string  `mapstructure:"axe_ip"`
	FreqRange           string  `mapstructure:"freq_range"`
	FreqStep            int     `mapstructure:"freq_step"`
	VcoreRange          string  `mapstructure:"vcore_range"`
	VcoreStep           int     `mapstructure:"vcore_step"`
	SampleInterval      int     `mapstructure:"sample_interval"`
	BenchmarkTime       int     `mapstructure:"benchmark_time"`
	StabilizeTime       int     `mapstructure:"stabilize_time"`
	MaxPollErrors       int     `mapstructure:"max_poll_errors"`
	MaxZeroHashRate     int     `mapstructure:"max_zero_hashrate"`
	LowHashRateFraction float64 `mapstructure:"low_hashrate_fraction"`
	StableFraction      float64 `mapstructure:"stable_fraction"`
	OutputDir           string  `mapstructure:"output_dir"`
	History             bool    `mapstructure:"history"`
	HistoryDB           string  `mapstructure:"history_db"`
	LogLevel            string  `mapstructure:"log_level"`
	NoColor             bool    `mapstructure:"no_color"`
	ConfigFile          string  `mapstructure:"config"`

	Freq  Range `mapstructure:"-"`
	Vcore Range `mapstructure:"-"`
}

// NewFlagSet declares every command line flag with its default
func NewFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet(AppName, pflag.ContinueOnError)
	fs.SortFlags = false
	fs.SetOutput(io.Discard)

	fs.String(keyAxeIP, "", "IP address of the miner (required)")
	fs.String(keyFreqRange, DefaultFreqRange, "Frequency range to sweep in MHz as min,max")
	fs.Int(keyFreqStep, DefaultFreqStep, "Frequency step in MHz")
	fs.String(keyVcoreRange, DefaultVcoreRange, "Core voltage range to sweep in mV as min,max")
	fs.Int(keyVcoreStep, DefaultVcoreStep, "Core voltage step in mV")
	fs.Int(keySampleInterval, DefaultSampleInterval, "Seconds between telemetry samples")
	fs.Int(keyBenchmarkTime, DefaultBenchmarkTime, "Seconds of sampling per round")
	fs.Int(keyStabilizeTime, DefaultStabilizeTime, "Seconds to wait after a restart before sampling")
	fs.Int(keyMaxPollErrors, DefaultMaxPollErrors, "Consecutive failed polls that end a round")
	fs.Int(keyMaxZeroHashRate, DefaultMaxZeroHashRate, "Consecutive zero hashrate samples that end a round")
	fs.Float64(keyLowHashRateFraction, DefaultLowHashRateFraction, "Early abort when the average falls below this share of expected hashrate")
	fs.Float64(keyStableFraction, DefaultStableFraction, "Share of expected hashrate a round must reach to be stable")
	fs.String(keyOutputDir, DefaultOutputDir, "Directory for the benchmark report")
	fs.Bool(keyHistory, false, "Record every round in the history database")
	fs.String(keyHistoryDB, history.DefaultDBPath, "Path to the history database")
	fs.String(keyLogLevel, DefaultLogLevel, "Log level (debug, info, warn, error)")
	fs.Bool(keyNoColor, false, "Disable coloured output")
	fs.String(keyConfig, "", "Path to a config file (toml, yaml or json)")

	return fs
}

// PrintUsage writes the flag summary to w
func PrintUsage(w io.Writer) {
	fs := NewFlagSet()
	fmt.Fprintf(w, "Usage: %s --axe_ip <address> [flags]\n\nFlags:\n", AppName)
	fs.SetOutput(w)
	fs.PrintDefaults()
}

// Load parses args and merges them over environment variables, the config
// file and defaults, in that order of precedence. pflag.ErrHelp is returned
// unwrapped when help is requested.
func Load(args []string) (*Config, error) {
	errFactory := errors.New()

	fs := NewFlagSet()
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil, err
		}
		return nil, errFactory.Wrap(errors.ErrInvalidArgument, err)
	}
	if fs.NArg() > 0 {
		return nil, errFactory.WithMessage(errors.ErrInvalidArgument,
			fmt.Sprintf("unexpected arguments: %s", strings.Join(fs.Args(), " ")))
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	if err := v.BindPFlags(fs); err != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}

	if path := v.GetString(keyConfig); path != "" {
		if err := readConfigFile(v, path); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfigFile(v *viper.Viper, path string) error {
	errFactory := errors.New()

	expanded, err := homedir.Expand(path)
	if err != nil {
		return errFactory.Wrap(errors.ErrReadConfig, err)
	}
	if _, err := os.Stat(expanded); err != nil {
		return errFactory.Wrap(errors.ErrReadConfig, err)
	}

	v.SetConfigFile(expanded)
	if err := v.ReadInConfig(); err != nil {
		return errFactory.WithData(errors.ErrReadConfig, struct {
			Path  string
			Error string
		}{
			Path:  expanded,
			Error: err.Error(),
		})
	}

	return nil
}

// ParseRange reads "min,max". Exactly one comma, two integers and min < max.
func ParseRange(s string) (Range, error) {
	errFactory := errors.New()

	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return Range{}, errFactory.WithData(errors.ErrInvalidRange, s)
	}

	lo, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return Range{}, errFactory.WithData(errors.ErrInvalidRange, s)
	}
	hi, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return Range{}, errFactory.WithData(errors.ErrInvalidRange, s)
	}
	if lo >= hi {
		return Range{}, errFactory.WithData(errors.ErrInvalidRange, s)
	}

	return Range{Min: lo, Max: hi}, nil
}

// Validate checks every value and fills Freq and Vcore
func (c *Config) Validate() error {
	errFactory := errors.New()

	if strings.TrimSpace(c.AxeIP) == "" {
		return errFactory.WithMessage(errors.ErrInvalidArgument, "--axe_ip is required")
	}

	var err error
	if c.Freq, err = ParseRange(c.FreqRange); err != nil {
		return err
	}
	if c.Vcore, err = ParseRange(c.VcoreRange); err != nil {
		return err
	}

	if c.FreqStep <= 0 || c.VcoreStep <= 0 {
		return errFactory.WithMessage(errors.ErrInvalidArgument, "freq_step and vcore_step must be positive")
	}
	if c.StabilizeTime < 0 {
		return errFactory.WithData(errors.ErrInvalidInterval, c.StabilizeTime)
	}

	if err := c.Sampler().Validate(); err != nil {
		return err
	}

	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		return err
	}

	return nil
}

// IsUsage reports whether err came from bad user input
func IsUsage(err error) bool {
	switch errors.CodeOf(err) {
	case errors.ErrInvalidArgument,
		errors.ErrInvalidRange,
		errors.ErrInvalidInterval,
		errors.ErrInvalidConfig,
		errors.ErrReadConfig,
		errors.ErrInvalidLogLevel:
		return true
	default:
		return false
	}
}

func (c *Config) Device() device.Config {
	return device.DefaultConfig(c.AxeIP)
}

func (c *Config) Sampler() sampler.Config {
	return sampler.Config{
		Interval:            time.Duration(c.SampleInterval) * time.Second,
		Duration:            time.Duration(c.BenchmarkTime) * time.Second,
		MaxPollErrors:       c.MaxPollErrors,
		MaxZeroHashRate:     c.MaxZeroHashRate,
		LowHashRateFraction: c.LowHashRateFraction,
		StableFraction:      c.StableFraction,
	}
}

func (c *Config) Plan() sweep.Plan {
	return sweep.Plan{
		FreqMin:       c.Freq.Min,
		FreqMax:       c.Freq.Max,
		FreqStep:      c.FreqStep,
		VcoreMin:      c.Vcore.Min,
		VcoreMax:      c.Vcore.Max,
		VcoreStep:     c.VcoreStep,
		BenchmarkTime: time.Duration(c.BenchmarkTime) * time.Second,
		StabilizeTime: time.Duration(c.StabilizeTime) * time.Second,
	}
}

func (c *Config) HistoryConfig() history.Config {
	return history.Config{
		DBPath:  c.HistoryDB,
		Enabled: c.History,
	}
}

func (c *Config) Firmware() firmware.Policy {
	return firmware.DefaultPolicy()
}

func (c *Config) Logger() logger.Options {
	level, err := logger.ParseLevel(c.LogLevel)
	if err != nil {
		level = logger.InfoLevel
	}

	return logger.Options{
		Level:   level,
		NoColor: c.NoColor,
	}
}
