package sweep

import (
	"time"

	"codeberg.org/mutker/axebench/internal/errors"
)

// Plan is the parameter grid of a run and the time each round takes
type Plan struct {
	FreqMin, FreqMax, FreqStep    int
	VcoreMin, VcoreMax, VcoreStep int
	BenchmarkTime                 time.Duration
	StabilizeTime                 time.Duration
}

func (p Plan) Validate() error {
	errFactory := errors.New()

	if p.FreqStep <= 0 || p.VcoreStep <= 0 {
		return errFactory.WithMessage(errors.ErrInvalidArgument, "steps must be positive")
	}
	if p.FreqMin >= p.FreqMax {
		return errFactory.WithData(errors.ErrInvalidRange, struct{ Min, Max int }{p.FreqMin, p.FreqMax})
	}
	if p.VcoreMin >= p.VcoreMax {
		return errFactory.WithData(errors.ErrInvalidRange, struct{ Min, Max int }{p.VcoreMin, p.VcoreMax})
	}

	return nil
}

// Steps lists min, min+step, ... while the value is below max+step. When
// step does not divide max-min the last value lies above max.
func Steps(minValue, maxValue, step int) []int {
	if step <= 0 || minValue > maxValue {
		return nil
	}

	values := make([]int, 0, (maxValue-minValue)/step+2)
	for v := minValue; v < maxValue+step; v += step {
		values = append(values, v)
	}

	return values
}

func (p Plan) Frequencies() []int {
	return Steps(p.FreqMin, p.FreqMax, p.FreqStep)
}

func (p Plan) Voltages() []int {
	return Steps(p.VcoreMin, p.VcoreMax, p.VcoreStep)
}

// Estimate is the display-only run length forecast
type Estimate struct {
	FreqSteps    int
	VcoreSteps   int
	Combinations int
	// Best assumes the first voltage is stable at every frequency
	Best time.Duration
	// Worst assumes every combination is tried
	Worst time.Duration
}

func (p Plan) Estimate() Estimate {
	var est Estimate
	if p.FreqStep <= 0 || p.VcoreStep <= 0 {
		return est
	}

	est.FreqSteps = (p.FreqMax-p.FreqMin)/p.FreqStep + 1
	est.VcoreSteps = (p.VcoreMax-p.VcoreMin)/p.VcoreStep + 1
	est.Combinations = est.FreqSteps * est.VcoreSteps

	perRound := p.BenchmarkTime + p.StabilizeTime
	est.Best = time.Duration(est.FreqSteps) * perRound
	est.Worst = time.Duration(est.Combinations) * perRound

	return est
}
