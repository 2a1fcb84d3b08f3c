// Package sampler runs one benchmark round: it polls the miner on a fixed
// cadence, accumulates hashrate, power, efficiency and temperature, stops
// early on failure signals and produces a stability verdict.
package sampler

import (
	"context"
	"time"

	"codeberg.org/mutker/axebench/internal/clock"
	"codeberg.org/mutker/axebench/internal/device"
	"codeberg.org/mutker/axebench/internal/errors"
	"codeberg.org/mutker/axebench/internal/logger"
	"github.com/dustin/go-humanize"
)

type Sampler struct {
	client  device.Client
	sleeper clock.Sleeper
	cfg     Config
	logger  logger.Logger
	now     func() time.Time
}

func New(client device.Client, sleeper clock.Sleeper, cfg Config, log logger.Logger) (*Sampler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.New().Wrap(errors.ErrInvalidConfig, err)
	}

	return &Sampler{
		client:  client,
		sleeper: sleeper,
		cfg:     cfg,
		logger:  log,
		now:     time.Now,
	}, nil
}

func (s *Sampler) Config() Config {
	return s.cfg
}

// Run samples one round. It only returns an error when ctx is canceled;
// device failures end the round and show up in the outcome.
func (s *Sampler) Run(ctx context.Context) (*Outcome, error) {
	total := s.cfg.TotalSamples()
	outcome := &Outcome{
		Reason:       ReasonCompleted,
		TotalSamples: total,
		Samples:      make([]Sample, 0, total),
		StartedAt:    s.now(),
	}
	agg := &outcome.Aggregate

	s.logger.Info().
		Int("samples", total).
		Str("interval", s.cfg.Interval.String()).
		Msg("Benchmark start...")

	pollErrors, zeroHashRate := 0, 0

	for agg.Count < total {
		if err := s.sleeper.Sleep(ctx, s.cfg.Interval); err != nil {
			return nil, err
		}

		info, err := s.client.Info(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, errors.New().Wrap(errors.ErrCanceled, ctx.Err())
			}

			pollErrors++
			outcome.PollErrors++
			s.logger.Error().
				Int("consecutive_errors", pollErrors).
				Int("max_errors", s.cfg.MaxPollErrors).
				Msg("Failed to get system info")

			if pollErrors >= s.cfg.MaxPollErrors {
				outcome.Reason = ReasonPollErrors
				break
			}
			continue
		}
		pollErrors = 0

		if info.HashRate <= 0 {
			zeroHashRate++
			s.logger.Warn().
				Int("consecutive_zero", zeroHashRate).
				Int("max_zero", s.cfg.MaxZeroHashRate).
				Msg("Miner reports zero hashrate")

			if zeroHashRate >= s.cfg.MaxZeroHashRate {
				outcome.Reason = ReasonZeroHashRate
				break
			}
		} else {
			zeroHashRate = 0
		}

		agg.Add(info)
		outcome.Samples = append(outcome.Samples, newSample(s.now(), info))
		s.logSample(agg, total, info)

		if agg.Count >= total/2 && agg.AverageHashRate() < agg.ExpectedHashRate*s.cfg.LowHashRateFraction {
			s.logger.Warn().
				Float64("average_hashrate", agg.AverageHashRate()).
				Float64("expected_hashrate", agg.ExpectedHashRate).
				Msg("Hashrate far below expectation, ending round early")
			outcome.Reason = ReasonLowHashRate
			break
		}
	}

	outcome.FinishedAt = s.now()
	outcome.Stable = !outcome.Reason.Aborted() &&
		Stable(agg.HashRateSum, total, agg.ExpectedHashRate, s.cfg.StableFraction)

	s.logger.Info().
		Str("average_hashrate", humanize.SIWithDigits(agg.AverageHashRate()*1e9, 2, "H/s")).
		Str("expected_hashrate", humanize.SIWithDigits(agg.ExpectedHashRate*1e9, 2, "H/s")).
		Float64("hashrate_stddev", outcome.HashRateStdDev()).
		Float64("efficiency_jth", agg.AverageEfficiency()).
		Float64("power_w", agg.AveragePower()).
		Float64("asic_temp", agg.AverageTemperature()).
		Str("reason", string(outcome.Reason)).
		Bool("stable", outcome.Stable).
		Msg("Completed!")

	return outcome, nil
}

func (s *Sampler) logSample(agg *Aggregate, total int, info *device.Info) {
	s.logger.Info().
		Int("sample", agg.Count).
		Int("of", total).
		Float64("progress_pct", 100*float64(agg.Count)/float64(total)).
		Float64("hr", info.HashRate).
		Float64("exp_hr", agg.ExpectedHashRate).
		Float64("vr_temp", info.VRTemp).
		Float64("asic_temp", info.Temp).
		Float64("freq", info.Frequency).
		Int("vcore", info.CoreVoltageActual).
		Float64("vbus", info.Voltage).
		Float64("ibus", info.Current).
		Msg("Sample")
}
