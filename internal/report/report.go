// Package report keeps the stable benchmark results of a run and mirrors
// them to a JSON file after every addition.
package report

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"codeberg.org/mutker/axebench/internal/device"
	"codeberg.org/mutker/axebench/internal/errors"
	"codeberg.org/mutker/axebench/internal/logger"
	"codeberg.org/mutker/axebench/internal/sampler"
)

const (
	defaultDirPerm  = 0o755
	defaultFilePerm = 0o644
	dateLayout      = "2006-01-02"
)

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// Result is one stable configuration
type Result struct {
	CoreVoltage        int
	Frequency          int
	ExpectedHashRate   float64
	AverageHashRate    float64
	AverageTemperature float64
	Efficiency         float64
	AveragePower       float64
}

func NewResult(settings device.Settings, outcome *sampler.Outcome) Result {
	agg := outcome.Aggregate

	return Result{
		CoreVoltage:        settings.CoreVoltage,
		Frequency:          settings.Frequency,
		ExpectedHashRate:   round(agg.ExpectedHashRate, 1),
		AverageHashRate:    round(agg.AverageHashRate(), 1),
		AverageTemperature: round(agg.AverageTemperature(), 1),
		Efficiency:         round(agg.AverageEfficiency(), 2),
		AveragePower:       round(agg.AveragePower(), 2),
	}
}

func (r Result) Settings() device.Settings {
	return device.Settings{CoreVoltage: r.CoreVoltage, Frequency: r.Frequency}
}

type resultJSON struct {
	CoreVoltage        string `json:"coreVoltage"`
	Frequency          string `json:"frequency"`
	ExpectedHashRate   string `json:"expectedHashRate"`
	AverageHashRate    string `json:"averageHashRate"`
	AverageTemperature string `json:"averageTemperature"`
	Efficiency         string `json:"efficiencyJTH"`
	AveragePower       string `json:"averagePower"`
}

// MarshalJSON writes every field as a display string with its unit
func (r Result) MarshalJSON() ([]byte, error) {
	return json.Marshal(resultJSON{
		CoreVoltage:        fmt.Sprintf("%dmV", r.CoreVoltage),
		Frequency:          fmt.Sprintf("%dMHz", r.Frequency),
		ExpectedHashRate:   fmt.Sprintf("%.1fGH/s", r.ExpectedHashRate),
		AverageHashRate:    fmt.Sprintf("%.1fGH/s", r.AverageHashRate),
		AverageTemperature: fmt.Sprintf("%.1f°C", r.AverageTemperature),
		Efficiency:         fmt.Sprintf("%.2fJ/TH", r.Efficiency),
		AveragePower:       fmt.Sprintf("%.2fW", r.AveragePower),
	})
}

// Best returns the result with the highest average hashrate. The earliest
// wins a tie.
func Best(results []Result) (Result, bool) {
	if len(results) == 0 {
		return Result{}, false
	}

	best := results[0]
	for _, r := range results[1:] {
		if r.AverageHashRate > best.AverageHashRate {
			best = r
		}
	}

	return best, true
}

// FileName names the report of a run against address on the given day
func FileName(day time.Time, address string) string {
	return fmt.Sprintf("benchmark_%s_%s.json", day.Format(dateLayout), unsafeFileChars.ReplaceAllString(address, "_"))
}

// Writer owns the in-memory results of a run and its report file
type Writer struct {
	path    string
	results []Result
	logger  logger.Logger
}

func NewWriter(dir, address string, day time.Time, log logger.Logger) (*Writer, error) {
	if dir == "" {
		dir = "."
	}

	if err := os.MkdirAll(dir, defaultDirPerm); err != nil {
		return nil, errors.New().WithData(errors.ErrWriteReport, struct {
			Phase string
			Path  string
			Error string
		}{
			Phase: "create_directory",
			Path:  dir,
			Error: err.Error(),
		})
	}

	return &Writer{
		path:   filepath.Join(dir, FileName(day, address)),
		logger: log,
	}, nil
}

func (w *Writer) Path() string {
	return w.path
}

func (w *Writer) Results() []Result {
	results := make([]Result, len(w.results))
	copy(results, w.results)
	return results
}

// Add appends a result and rewrites the report with everything so far
func (w *Writer) Add(r Result) error {
	w.results = append(w.results, r)

	if err := w.flush(); err != nil {
		return err
	}

	w.logger.Info().
		Str("path", w.path).
		Int("results", len(w.results)).
		Msg("Benchmark report updated")

	return nil
}

func (w *Writer) flush() error {
	errFactory := errors.New()

	data, err := json.MarshalIndent(w.results, "", "    ")
	if err != nil {
		return errFactory.Wrap(errors.ErrWriteReport, err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(filepath.Dir(w.path), ".benchmark-*.json")
	if err != nil {
		return errFactory.Wrap(errors.ErrWriteReport, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errFactory.Wrap(errors.ErrWriteReport, err)
	}
	if err := tmp.Chmod(defaultFilePerm); err != nil {
		tmp.Close()
		return errFactory.Wrap(errors.ErrWriteReport, err)
	}
	if err := tmp.Close(); err != nil {
		return errFactory.Wrap(errors.ErrWriteReport, err)
	}

	if err := os.Rename(tmpPath, w.path); err != nil {
		return errFactory.Wrap(errors.ErrWriteReport, err)
	}

	return nil
}

func round(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}
