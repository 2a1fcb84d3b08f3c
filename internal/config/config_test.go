package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"codeberg.org/mutker/axebench/internal/config"
	"codeberg.org/mutker/axebench/internal/errors"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("AXEBENCH_CONFIG", "")

	cfg, err := config.Load([]string{"--axe_ip", "192.168.1.50"})
	require.NoError(t, err, "Failed to load config")

	assert.Equal(t, "192.168.1.50", cfg.AxeIP)
	assert.Equal(t, config.Range{Min: 400, Max: 625}, cfg.Freq)
	assert.Equal(t, 25, cfg.FreqStep)
	assert.Equal(t, config.Range{Min: 1000, Max: 1300}, cfg.Vcore)
	assert.Equal(t, 25, cfg.VcoreStep)
	assert.Equal(t, 10, cfg.SampleInterval)
	assert.Equal(t, 600, cfg.BenchmarkTime)
	assert.Equal(t, 240, cfg.StabilizeTime)
	assert.Equal(t, 3, cfg.MaxPollErrors)
	assert.Equal(t, 5, cfg.MaxZeroHashRate)
	assert.InDelta(t, 0.5, cfg.LowHashRateFraction, 1e-9)
	assert.InDelta(t, 0.94, cfg.StableFraction, 1e-9)
	assert.Equal(t, ".", cfg.OutputDir)
	assert.False(t, cfg.History)
	assert.Equal(t, config.DefaultLogLevel, cfg.LogLevel, "Expected default LogLevel info")
}

func TestLoadFlags(t *testing.T) {
	t.Setenv("AXEBENCH_CONFIG", "")

	cfg, err := config.Load([]string{
		"--axe_ip", "miner.local",
		"--freq_range", "450,500",
		"--freq_step", "50",
		"--vcore_range", "1100, 1200",
		"--benchmark_time", "60",
		"--sample_interval", "5",
		"--stable_fraction", "0.9",
		"--history",
		"--log_level", "debug",
	})
	require.NoError(t, err)

	assert.Equal(t, config.Range{Min: 450, Max: 500}, cfg.Freq)
	assert.Equal(t, config.Range{Min: 1100, Max: 1200}, cfg.Vcore)
	assert.True(t, cfg.History)
	assert.Equal(t, "debug", cfg.LogLevel, "Expected LogLevel to be set by flag")

	sc := cfg.Sampler()
	assert.Equal(t, 5*time.Second, sc.Interval)
	assert.Equal(t, 60*time.Second, sc.Duration)
	assert.Equal(t, 12, sc.TotalSamples())
	assert.InDelta(t, 0.9, sc.StableFraction, 1e-9)

	plan := cfg.Plan()
	assert.Equal(t, []int{450, 500}, plan.Frequencies())
	assert.Equal(t, 240*time.Second, plan.StabilizeTime)
}

func TestLoadConfigFile(t *testing.T) {
	path := writeConfig(t, "axebench.toml", `
axe_ip = "10.0.0.7"
freq_range = "500,600"
vcore_step = 10
history = true
history_db = "/path/to/history.db"
log_level = "warn"
`)
	t.Setenv("AXEBENCH_CONFIG", path)

	cfg, err := config.Load(nil)
	require.NoError(t, err)

	assert.Equal(t, "10.0.0.7", cfg.AxeIP)
	assert.Equal(t, config.Range{Min: 500, Max: 600}, cfg.Freq)
	assert.Equal(t, 10, cfg.VcoreStep)
	assert.True(t, cfg.History)
	assert.Equal(t, "/path/to/history.db", cfg.HistoryConfig().DBPath)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestLoadPrecedence(t *testing.T) {
	path := writeConfig(t, "axebench.yaml", "axe_ip: 10.0.0.7\nfreq_step: 10\nvcore_step: 10\n")
	t.Setenv("AXEBENCH_CONFIG", "")
	t.Setenv("AXEBENCH_FREQ_STEP", "20")
	t.Setenv("AXEBENCH_VCORE_STEP", "20")

	cfg, err := config.Load([]string{"--config", path, "--vcore_step", "30"})
	require.NoError(t, err)

	assert.Equal(t, "10.0.0.7", cfg.AxeIP, "file over default")
	assert.Equal(t, 20, cfg.FreqStep, "env over file")
	assert.Equal(t, 30, cfg.VcoreStep, "flag over env")
}

func TestLoadConfigFileInvalidFormat(t *testing.T) {
	path := writeConfig(t, "axebench.toml", "This is not a valid TOML file\n")
	t.Setenv("AXEBENCH_CONFIG", path)

	_, err := config.Load([]string{"--axe_ip", "10.0.0.7"})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrReadConfig))
	assert.True(t, config.IsUsage(err))
}

func TestLoadMissingConfigFile(t *testing.T) {
	t.Setenv("AXEBENCH_CONFIG", filepath.Join(t.TempDir(), "missing.toml"))

	_, err := config.Load([]string{"--axe_ip", "10.0.0.7"})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrReadConfig))
}

func TestLoadRequiresAddress(t *testing.T) {
	t.Setenv("AXEBENCH_CONFIG", "")
	t.Setenv("AXEBENCH_AXE_IP", "")

	_, err := config.Load(nil)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrInvalidArgument))
	assert.True(t, config.IsUsage(err))
}

func TestLoadHelp(t *testing.T) {
	_, err := config.Load([]string{"--help"})
	assert.ErrorIs(t, err, pflag.ErrHelp)
}

func TestLoadUsageErrors(t *testing.T) {
	t.Setenv("AXEBENCH_CONFIG", "")

	tests := []struct {
		name string
		args []string
		code errors.ErrorCode
	}{
		{"unknown flag", []string{"--bogus"}, errors.ErrInvalidArgument},
		{"positional argument", []string{"extra"}, errors.ErrInvalidArgument},
		{"range without comma", []string{"--freq_range", "400"}, errors.ErrInvalidRange},
		{"range with two commas", []string{"--freq_range", "400,500,600"}, errors.ErrInvalidRange},
		{"range not numeric", []string{"--vcore_range", "low,high"}, errors.ErrInvalidRange},
		{"range inverted", []string{"--vcore_range", "1300,1000"}, errors.ErrInvalidRange},
		{"range empty", []string{"--freq_range", "500,500"}, errors.ErrInvalidRange},
		{"zero step", []string{"--freq_step", "0"}, errors.ErrInvalidArgument},
		{"negative step", []string{"--vcore_step=-25"}, errors.ErrInvalidArgument},
		{"zero interval", []string{"--sample_interval", "0"}, errors.ErrInvalidInterval},
		{"round shorter than interval", []string{"--benchmark_time", "5"}, errors.ErrInvalidInterval},
		{"negative stabilize", []string{"--stabilize_time=-1"}, errors.ErrInvalidInterval},
		{"stable fraction above one", []string{"--stable_fraction", "1.5"}, errors.ErrInvalidConfig},
		{"invalid log level", []string{"--log_level", "invalid"}, errors.ErrInvalidLogLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"--axe_ip", "10.0.0.7"}, tt.args...)
			_, err := config.Load(args)
			require.Error(t, err)
			assert.Equal(t, tt.code, errors.CodeOf(err))
			assert.True(t, config.IsUsage(err))
		})
	}
}

func TestParseRange(t *testing.T) {
	r, err := config.ParseRange("400,625")
	require.NoError(t, err)
	assert.Equal(t, config.Range{Min: 400, Max: 625}, r)
	assert.Equal(t, "400,625", r.String())

	_, err = config.ParseRange("")
	assert.Error(t, err)
}

func TestIsUsage(t *testing.T) {
	assert.False(t, config.IsUsage(errors.New().New(errors.ErrProbeDevice)))
	assert.False(t, config.IsUsage(nil))
}
