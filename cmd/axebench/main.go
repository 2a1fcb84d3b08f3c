package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"codeberg.org/mutker/axebench/internal/clock"
	"codeberg.org/mutker/axebench/internal/config"
	"codeberg.org/mutker/axebench/internal/device"
	"codeberg.org/mutker/axebench/internal/errors"
	"codeberg.org/mutker/axebench/internal/firmware"
	"codeberg.org/mutker/axebench/internal/history"
	"codeberg.org/mutker/axebench/internal/logger"
	"codeberg.org/mutker/axebench/internal/pid"
	"codeberg.org/mutker/axebench/internal/report"
	"codeberg.org/mutker/axebench/internal/sampler"
	"codeberg.org/mutker/axebench/internal/sweep"
	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

const disclaimer = `DISCLAIMER: This tool stresses the miner by running it at settings
outside the factory defaults. Overclocking and overvolting can damage the
hardware and void its warranty. Make sure the miner has adequate cooling
and a power supply with headroom before continuing. Use at your own risk.`

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg, err := config.Load(args)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			config.PrintUsage(os.Stdout)
			return exitOK
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n\n", err)
		config.PrintUsage(os.Stderr)
		if config.IsUsage(err) {
			return exitUsage
		}
		return exitError
	}

	log := logger.Init(cfg.Logger())
	log.Debug().Interface("config", cfg).Msg("Config loaded")

	log.Plain().Msg("axebench: core voltage and frequency benchmark for Bitaxe/NMAxe miners")
	log.Warn().Msg(disclaimer)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleSignals(ctx, cancel, log)

	lock := pid.New("", cfg.AxeIP)
	if err := lock.Write(); err != nil {
		logger.ErrorWithCode(err).Str("pid_file", lock.Path()).Msg("Failed to acquire lock")
		return exitError
	}
	defer func() {
		if err := lock.Remove(); err != nil {
			log.Warn().Err(err).Msg("Failed to remove pid file")
		}
	}()

	sleeper := clock.Real()

	client, err := device.New(cfg.Device(), sleeper, log)
	if err != nil {
		logger.ErrorWithCode(err).Msg("Failed to create device client")
		return exitUsage
	}

	info, err := client.Info(ctx)
	if err != nil {
		err = errors.New().Wrap(errors.ErrProbeDevice, err)
		logger.ErrorWithCode(err).Str("address", client.Address()).Msg(errors.Message(err))
		return exitError
	}
	log.Info().
		Str("hostname", info.Hostname).
		Str("board", info.BoardType).
		Str("asic", info.ASICModel).
		Str("version", info.Version).
		Int("core_voltage", info.CoreVoltage).
		Float64("frequency", info.Frequency).
		Msg("Connected to miner")

	if err := firmware.Check(info, cfg.Firmware()); err != nil {
		logger.ErrorWithCode(err).Msg("Firmware check failed, please update the miner firmware")
		return exitError
	}

	rec, err := history.NewService(cfg.HistoryConfig(), log)
	if err != nil {
		logger.ErrorWithCode(err).Msg("Failed to open history database")
		return exitError
	}
	defer func() {
		if err := rec.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close history database")
		}
	}()
	logPreviousBest(ctx, rec, client.Address(), log)

	smp, err := sampler.New(client, sleeper, cfg.Sampler(), log)
	if err != nil {
		logger.ErrorWithCode(err).Msg("Failed to create sampler")
		return exitUsage
	}

	writer, err := report.NewWriter(cfg.OutputDir, client.Address(), time.Now(), log)
	if err != nil {
		logger.ErrorWithCode(err).Msg("Failed to prepare report")
		return exitError
	}

	plan := cfg.Plan()
	logEstimate(plan, log)

	driver, err := sweep.New(sweep.Options{
		Client:  client,
		Sampler: smp,
		Waiter: &clock.Countdown{
			Sleeper: sleeper,
			Out:     os.Stdout,
			Inline:  logger.IsTerminal(),
		},
		Reporter: writer,
		History:  rec,
		Plan:     plan,
		Logger:   log,
	})
	if err != nil {
		logger.ErrorWithCode(err).Msg("Failed to create benchmark driver")
		return exitUsage
	}

	summary, err := driver.Run(ctx)
	logSummary(summary, writer.Path(), log)
	if err != nil {
		if errors.HasCode(err, errors.ErrCanceled) {
			log.Info().Msg("Exiting...")
			return exitOK
		}
		logger.ErrorWithCode(err).Msg(errors.Message(err))
		return exitError
	}

	log.Info().Msg("Benchmark completed")
	return exitOK
}

func handleSignals(ctx context.Context, cancel context.CancelFunc, log logger.Logger) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	select {
	case <-sigs:
		log.Info().Msg("Received termination signal.")
		cancel()
	case <-ctx.Done():
	}
}

func logEstimate(plan sweep.Plan, log logger.Logger) {
	est := plan.Estimate()
	now := time.Now()

	log.Info().
		Int("frequency_steps", est.FreqSteps).
		Int("voltage_steps", est.VcoreSteps).
		Int("combinations", est.Combinations).
		Msg("Benchmark plan")
	log.Info().
		Str("best_case", clock.FormatDuration(est.Best)).
		Str("finish", clock.FinishTime(now, est.Best)).
		Msg("Estimated time, best case")
	log.Info().
		Str("worst_case", clock.FormatDuration(est.Worst)).
		Str("finish", clock.FinishTime(now, est.Worst)).
		Msg("Estimated time, worst case")
}

func logPreviousBest(ctx context.Context, rec history.Recorder, address string, log logger.Logger) {
	prev, err := rec.BestStable(ctx, address)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to read history")
		return
	}
	if prev == nil {
		return
	}

	log.Info().
		Str("recorded", humanize.Time(prev.StartedAt)).
		Int("core_voltage", prev.Settings.CoreVoltage).
		Int("frequency", prev.Settings.Frequency).
		Str("hashrate", humanize.SIWithDigits(prev.AverageHashRate*1e9, 2, "H/s")).
		Msg("Previous best stable settings")
}

func logSummary(summary *sweep.Summary, path string, log logger.Logger) {
	if summary == nil {
		return
	}

	log.Info().
		Int("rounds", summary.Rounds).
		Int("stable", len(summary.Results)).
		Msg("Benchmark summary")

	for _, r := range summary.Results {
		log.Plain().Msgf("%5dMHz %5dmV %8.1fGH/s %6.1f°C %6.2fJ/TH %6.2fW",
			r.Frequency, r.CoreVoltage, r.AverageHashRate, r.AverageTemperature, r.Efficiency, r.AveragePower)
	}

	if summary.Best != nil {
		log.Info().
			Int("core_voltage", summary.Best.CoreVoltage).
			Int("frequency", summary.Best.Frequency).
			Bool("applied", summary.Applied).
			Str("report", path).
			Msg("Best settings")
	}
}
