package history

import (
	"context"
	"time"

	"codeberg.org/mutker/axebench/internal/device"
	"codeberg.org/mutker/axebench/internal/sampler"
)

// Recorder keeps every benchmark round, stable or not
type Recorder interface {
	Record(ctx context.Context, round *Round) error
	// BestStable returns the stable round with the highest average hashrate
	// recorded for the address, if any.
	BestStable(ctx context.Context, address string) (*Summary, error)
	Close() error
}

// Repository defines the interface for round storage
type Repository interface {
	Store(ctx context.Context, round *Round) (int64, error)
	BestStable(ctx context.Context, address string) (*Summary, error)
	Close() error
}

// Round is one finished benchmark trial
type Round struct {
	Address  string
	Settings device.Settings
	Outcome  *sampler.Outcome
}

// Summary is a stored round without its samples
type Summary struct {
	ID               int64
	Address          string
	StartedAt        time.Time
	Settings         device.Settings
	Stable           bool
	Reason           string
	Samples          int
	ExpectedHashRate float64
	AverageHashRate  float64
	HashRateStdDev   float64
	Temperature      float64
	Efficiency       float64
	Power            float64
}
