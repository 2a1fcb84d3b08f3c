// Package sweep drives a benchmark run across the frequency and core
// voltage grid, looking for the lowest stable voltage at each frequency.
package sweep

import (
	"context"
	"time"

	"codeberg.org/mutker/axebench/internal/clock"
	"codeberg.org/mutker/axebench/internal/device"
	"codeberg.org/mutker/axebench/internal/errors"
	"codeberg.org/mutker/axebench/internal/history"
	"codeberg.org/mutker/axebench/internal/logger"
	"codeberg.org/mutker/axebench/internal/report"
	"codeberg.org/mutker/axebench/internal/sampler"
)

// finalApplyTimeout bounds restoring the best settings after an interrupt
const finalApplyTimeout = 30 * time.Second

// Sampler runs one sampling round on the miner's current settings
type Sampler interface {
	Run(ctx context.Context) (*sampler.Outcome, error)
}

// Waiter blocks while the miner settles after a restart
type Waiter interface {
	Wait(ctx context.Context, d time.Duration) error
}

// Reporter collects stable results
type Reporter interface {
	Add(r report.Result) error
	Results() []report.Result
	Path() string
}

type Driver struct {
	client   device.Client
	sampler  Sampler
	waiter   Waiter
	reporter Reporter
	history  history.Recorder
	plan     Plan
	logger   logger.Logger
}

type Options struct {
	Client   device.Client
	Sampler  Sampler
	Waiter   Waiter
	Reporter Reporter
	History  history.Recorder
	Plan     Plan
	Logger   logger.Logger
}

// Summary describes a finished or interrupted run
type Summary struct {
	Rounds  int
	Results []report.Result
	Best    *report.Result
	Applied bool
}

func New(opts Options) (*Driver, error) {
	errFactory := errors.New()

	if err := opts.Plan.Validate(); err != nil {
		return nil, err
	}
	if opts.Client == nil || opts.Sampler == nil || opts.Reporter == nil {
		return nil, errFactory.WithMessage(errors.ErrInvalidArgument, "client, sampler and reporter are required")
	}

	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	waiter := opts.Waiter
	if waiter == nil {
		waiter = &clock.Countdown{Sleeper: clock.Real()}
	}
	rec := opts.History
	if rec == nil {
		var err error
		if rec, err = history.NewService(history.DefaultConfig(), log); err != nil {
			return nil, err
		}
	}

	return &Driver{
		client:   opts.Client,
		sampler:  opts.Sampler,
		waiter:   waiter,
		reporter: opts.Reporter,
		history:  rec,
		plan:     opts.Plan,
		logger:   log,
	}, nil
}

// Run sweeps the grid, then applies the best stable settings. When ctx is
// canceled mid-run the best settings found so far are still applied.
func (d *Driver) Run(ctx context.Context) (*Summary, error) {
	summary := &Summary{}

	err := d.sweep(ctx, summary)
	if err != nil && !errors.HasCode(err, errors.ErrCanceled) {
		summary.Results = d.reporter.Results()
		return summary, err
	}

	finishCtx := ctx
	if err != nil {
		d.logger.Warn().Msg("Benchmark interrupted")
		var cancel context.CancelFunc
		finishCtx, cancel = context.WithTimeout(context.WithoutCancel(ctx), finalApplyTimeout)
		defer cancel()
	}

	if finishErr := d.finish(finishCtx, summary); finishErr != nil {
		return summary, finishErr
	}

	return summary, err
}

func (d *Driver) sweep(ctx context.Context, summary *Summary) error {
	frequencies := d.plan.Frequencies()
	voltages := d.plan.Voltages()
	total := len(frequencies) * len(voltages)

	for _, freq := range frequencies {
		stable := false

		for _, vcore := range voltages {
			summary.Rounds++
			d.logger.Plain().Msgf("%s %3d/%d %s", separator, summary.Rounds, total, separator)

			settings := device.Settings{CoreVoltage: vcore, Frequency: freq}
			outcome, err := d.round(ctx, settings)
			if err != nil {
				return err
			}

			if outcome.Stable {
				result := report.NewResult(settings, outcome)
				if err := d.reporter.Add(result); err != nil {
					return errors.New().Wrap(errors.ErrWriteReport, err)
				}
				d.logger.Info().
					Int("core_voltage", vcore).
					Int("frequency", freq).
					Msg("Benchmark passed!")
				stable = true
				break
			}

			d.logger.Error().
				Int("core_voltage", vcore).
				Int("frequency", freq).
				Str("reason", string(outcome.Reason)).
				Msg("Benchmark failed! Retrying...")
		}

		if !stable {
			d.logger.Warn().
				Int("frequency", freq).
				Msg("No stable core voltage found for frequency")
		}
	}

	return nil
}

func (d *Driver) round(ctx context.Context, settings device.Settings) (*sampler.Outcome, error) {
	errFactory := errors.New()

	if err := d.client.ApplySettings(ctx, settings); err != nil {
		if ctx.Err() != nil {
			return nil, errFactory.Wrap(errors.ErrCanceled, err)
		}
		return nil, errFactory.Wrap(errors.ErrApplySettings, err)
	}

	if err := d.client.Restart(ctx); err != nil {
		if ctx.Err() != nil {
			return nil, errFactory.Wrap(errors.ErrCanceled, err)
		}
		return nil, errFactory.Wrap(errors.ErrRestartDevice, err)
	}

	d.logger.Warn().
		Str("stabilize_time", d.plan.StabilizeTime.String()).
		Msg("Waiting for the system to stabilize...")
	if err := d.waiter.Wait(ctx, d.plan.StabilizeTime); err != nil {
		return nil, err
	}

	outcome, err := d.sampler.Run(ctx)
	if err != nil {
		return nil, err
	}

	if err := d.history.Record(ctx, &history.Round{
		Address:  d.client.Address(),
		Settings: settings,
		Outcome:  outcome,
	}); err != nil {
		d.logger.Warn().Err(err).Msg("Failed to record round history")
	}

	return outcome, nil
}

// finish applies the best result and restarts the miner with it
func (d *Driver) finish(ctx context.Context, summary *Summary) error {
	errFactory := errors.New()

	summary.Results = d.reporter.Results()
	best, ok := report.Best(summary.Results)
	if !ok {
		d.logger.Warn().Msg("No stable settings found, leaving the miner as is")
		return nil
	}
	summary.Best = &best

	d.logger.Info().
		Int("core_voltage", best.CoreVoltage).
		Int("frequency", best.Frequency).
		Float64("average_hashrate", best.AverageHashRate).
		Float64("efficiency_jth", best.Efficiency).
		Str("report", d.reporter.Path()).
		Msg("Applying best settings")

	if err := d.client.ApplySettings(ctx, best.Settings()); err != nil {
		return errFactory.Wrap(errors.ErrFinalApply, err)
	}
	if err := d.client.Restart(ctx); err != nil {
		return errFactory.Wrap(errors.ErrFinalApply, err)
	}
	summary.Applied = true

	return nil
}

const separator = "================================================="
