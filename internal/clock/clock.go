// Package clock holds the timed waits of a benchmark run. All waits end
// early when the run context is canceled.
package clock

import (
	"context"
	"fmt"
	"io"
	"time"

	"codeberg.org/mutker/axebench/internal/errors"
	"github.com/dustin/go-humanize"
)

// Sleeper blocks for a duration or until the context is done.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

type realSleeper struct{}

// Real returns a Sleeper backed by timers.
func Real() Sleeper {
	return realSleeper{}
}

func (realSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		if err := ctx.Err(); err != nil {
			return errors.New().Wrap(errors.ErrCanceled, err)
		}
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return errors.New().Wrap(errors.ErrCanceled, ctx.Err())
	case <-timer.C:
		return nil
	}
}

// Countdown waits for a settle period. On a terminal it redraws a single
// line every second, otherwise it sleeps in one go.
type Countdown struct {
	Sleeper Sleeper
	Out     io.Writer
	Inline  bool
	Label   string
	Now     func() time.Time
}

func (c *Countdown) Wait(ctx context.Context, d time.Duration) error {
	if !c.Inline || c.Out == nil {
		return c.Sleeper.Sleep(ctx, d)
	}

	now := c.Now
	if now == nil {
		now = time.Now
	}

	label := c.Label
	if label == "" {
		label = "Benchmark will start after"
	}

	for remaining := int(d / time.Second); remaining > 0; remaining-- {
		fmt.Fprintf(c.Out, "\r[%s] %s %3ds...", now().Format("01-02 15:04:05"), label, remaining)
		if err := c.Sleeper.Sleep(ctx, time.Second); err != nil {
			fmt.Fprint(c.Out, "\n")
			return err
		}
	}
	fmt.Fprintf(c.Out, "\r%*s\r", 100, "")

	return nil
}

// FormatDuration renders a duration the way the run summary shows it,
// e.g. "2h 5m 0s".
func FormatDuration(d time.Duration) string {
	secs := int64(d / time.Second)
	return fmt.Sprintf("%dh %dm %ds", secs/3600, secs%3600/60, secs%60)
}

// FinishTime renders when a run of the given length started now will end.
func FinishTime(start time.Time, d time.Duration) string {
	return humanize.RelTime(start.Add(d), start, "ago", "from now")
}
