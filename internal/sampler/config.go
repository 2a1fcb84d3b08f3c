package sampler

import (
	"time"

	"codeberg.org/mutker/axebench/internal/errors"
)

const (
	defaultInterval            = 10 * time.Second
	defaultDuration            = 600 * time.Second
	defaultMaxPollErrors       = 3
	defaultMaxZeroHashRate     = 5
	defaultLowHashRateFraction = 0.5
	defaultStableFraction      = 0.94
)

type Config struct {
	Interval            time.Duration
	Duration            time.Duration
	MaxPollErrors       int
	MaxZeroHashRate     int
	LowHashRateFraction float64
	StableFraction      float64
}

func DefaultConfig() Config {
	return Config{
		Interval:            defaultInterval,
		Duration:            defaultDuration,
		MaxPollErrors:       defaultMaxPollErrors,
		MaxZeroHashRate:     defaultMaxZeroHashRate,
		LowHashRateFraction: defaultLowHashRateFraction,
		StableFraction:      defaultStableFraction,
	}
}

// TotalSamples is the nominal number of samples in one round
func (c Config) TotalSamples() int {
	if c.Interval <= 0 {
		return 0
	}
	return int(c.Duration / c.Interval)
}

func (c Config) Validate() error {
	errFactory := errors.New()

	if c.Interval <= 0 {
		return errFactory.WithData(errors.ErrInvalidInterval, c.Interval)
	}
	if c.TotalSamples() < 1 {
		return errFactory.WithMessage(errors.ErrInvalidInterval, "benchmark time must be at least one sample interval")
	}
	if c.MaxPollErrors < 1 || c.MaxZeroHashRate < 1 {
		return errFactory.WithMessage(errors.ErrInvalidConfig, "error and zero hashrate limits must be positive")
	}
	if c.LowHashRateFraction < 0 || c.LowHashRateFraction > 1 {
		return errFactory.WithData(errors.ErrInvalidConfig, struct {
			Field string
			Value float64
		}{"low_hashrate_fraction", c.LowHashRateFraction})
	}
	if c.StableFraction <= 0 || c.StableFraction > 1 {
		return errFactory.WithData(errors.ErrInvalidConfig, struct {
			Field string
			Value float64
		}{"stable_fraction", c.StableFraction})
	}

	return nil
}
