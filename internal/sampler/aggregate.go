package sampler

import (
	"time"

	"codeberg.org/mutker/axebench/internal/device"
	"gonum.org/v1/gonum/stat"
)

// Reason tells why a round stopped sampling
type Reason string

const (
	ReasonCompleted    Reason = "completed"
	ReasonPollErrors   Reason = "poll_errors"
	ReasonZeroHashRate Reason = "zero_hashrate"
	ReasonLowHashRate  Reason = "low_hashrate"
)

// Aborted reports whether the round stopped before its nominal length
func (r Reason) Aborted() bool {
	return r != ReasonCompleted
}

// Sample is one accepted telemetry reading
type Sample struct {
	Timestamp         time.Time
	HashRate          float64
	VRTemp            float64
	ASICTemp          float64
	Frequency         float64
	CoreVoltageActual int
	Voltage           float64
	Current           float64
	Power             float64
	Efficiency        float64
}

func newSample(ts time.Time, info *device.Info) Sample {
	power := info.BusPower()
	return Sample{
		Timestamp:         ts,
		HashRate:          info.HashRate,
		VRTemp:            info.VRTemp,
		ASICTemp:          info.Temp,
		Frequency:         info.Frequency,
		CoreVoltageActual: info.CoreVoltageActual,
		Voltage:           info.Voltage,
		Current:           info.Current,
		Power:             power,
		Efficiency:        efficiency(power, info.HashRate),
	}
}

// efficiency returns J/TH for a power in W and hashrate in GH/s
func efficiency(power, hashRate float64) float64 {
	if hashRate <= 0 {
		return 0
	}
	return power / (hashRate / 1e3)
}

// Aggregate accumulates the running sums of one round
type Aggregate struct {
	Count            int
	HashRateSum      float64
	EfficiencySum    float64
	PowerSum         float64
	TemperatureSum   float64
	ExpectedHashRate float64
}

// Add folds a sample into the sums. The expected hashrate follows the
// latest reading's frequency and core layout.
func (a *Aggregate) Add(info *device.Info) {
	power := info.BusPower()

	a.Count++
	a.HashRateSum += info.HashRate
	a.EfficiencySum += efficiency(power, info.HashRate)
	a.PowerSum += power
	a.TemperatureSum += info.Temp
	a.ExpectedHashRate = info.ExpectedHashRate()
}

func (a *Aggregate) average(sum float64) float64 {
	if a.Count == 0 {
		return 0
	}
	return sum / float64(a.Count)
}

func (a *Aggregate) AverageHashRate() float64 {
	return a.average(a.HashRateSum)
}

func (a *Aggregate) AverageEfficiency() float64 {
	return a.average(a.EfficiencySum)
}

func (a *Aggregate) AveragePower() float64 {
	return a.average(a.PowerSum)
}

func (a *Aggregate) AverageTemperature() float64 {
	return a.average(a.TemperatureSum)
}

// Stable is the round verdict: the hashrate sum spread over the nominal
// sample count must reach the given fraction of the expected hashrate.
func Stable(hashRateSum float64, totalSamples int, expected, fraction float64) bool {
	if totalSamples <= 0 || expected <= 0 {
		return false
	}
	return hashRateSum/float64(totalSamples) >= expected*fraction
}

// Outcome is the result of one sampling round
type Outcome struct {
	Stable       bool
	Reason       Reason
	TotalSamples int
	PollErrors   int
	Aggregate    Aggregate
	Samples      []Sample
	StartedAt    time.Time
	FinishedAt   time.Time
}

// HashRateStdDev is the sample standard deviation of the accepted hashrate
// readings, zero with fewer than two samples.
func (o *Outcome) HashRateStdDev() float64 {
	if len(o.Samples) < 2 {
		return 0
	}

	hashRates := make([]float64, len(o.Samples))
	for i, s := range o.Samples {
		hashRates[i] = s.HashRate
	}

	return stat.StdDev(hashRates, nil)
}
