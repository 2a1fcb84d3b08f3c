package history_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"codeberg.org/mutker/axebench/internal/device"
	"codeberg.org/mutker/axebench/internal/errors"
	"codeberg.org/mutker/axebench/internal/history"
	"codeberg.org/mutker/axebench/internal/logger"
	"codeberg.org/mutker/axebench/internal/sampler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func outcome(stable bool, hashRate float64, samples int) *sampler.Outcome {
	start := time.Unix(1_700_000_000, 0)
	o := &sampler.Outcome{
		Stable:       stable,
		Reason:       sampler.ReasonCompleted,
		TotalSamples: samples,
		StartedAt:    start,
		FinishedAt:   start.Add(10 * time.Minute),
	}
	for i := 0; i < samples; i++ {
		o.Aggregate.Count++
		o.Aggregate.HashRateSum += hashRate
		o.Aggregate.PowerSum += 15
		o.Aggregate.TemperatureSum += 60
		o.Aggregate.ExpectedHashRate = 500
		o.Samples = append(o.Samples, sampler.Sample{
			Timestamp: start.Add(time.Duration(i) * 10 * time.Second),
			HashRate:  hashRate,
			ASICTemp:  60,
			Power:     15,
		})
	}
	return o
}

func newRecorder(t *testing.T, path string) history.Recorder {
	t.Helper()
	rec, err := history.NewService(history.Config{DBPath: path, Enabled: true}, logger.Nop())
	require.NoError(t, err)
	return rec
}

func TestRecordAndBestStable(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "history.db")
	rec := newRecorder(t, path)

	require.NoError(t, rec.Record(ctx, &history.Round{
		Address:  "10.0.0.2",
		Settings: device.Settings{CoreVoltage: 1000, Frequency: 400},
		Outcome:  outcome(true, 410, 3),
	}))
	require.NoError(t, rec.Record(ctx, &history.Round{
		Address:  "10.0.0.2",
		Settings: device.Settings{CoreVoltage: 1000, Frequency: 450},
		Outcome:  outcome(false, 520, 3),
	}))
	require.NoError(t, rec.Record(ctx, &history.Round{
		Address:  "10.0.0.2",
		Settings: device.Settings{CoreVoltage: 1025, Frequency: 450},
		Outcome:  outcome(true, 460, 3),
	}))
	require.NoError(t, rec.Record(ctx, &history.Round{
		Address:  "10.0.0.3",
		Settings: device.Settings{CoreVoltage: 1200, Frequency: 600},
		Outcome:  outcome(true, 900, 3),
	}))

	best, err := rec.BestStable(ctx, "10.0.0.2")
	require.NoError(t, err)
	require.NotNil(t, best)
	assert.Equal(t, device.Settings{CoreVoltage: 1025, Frequency: 450}, best.Settings)
	assert.InDelta(t, 460.0, best.AverageHashRate, 1e-9)
	assert.True(t, best.Stable)
	assert.Equal(t, 3, best.Samples)

	none, err := rec.BestStable(ctx, "10.0.0.9")
	require.NoError(t, err)
	assert.Nil(t, none)

	require.NoError(t, rec.Close())

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()

	var samples int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM samples").Scan(&samples))
	assert.Equal(t, 12, samples)
}

func TestReopenKeepsRounds(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "history.db")

	rec := newRecorder(t, path)
	require.NoError(t, rec.Record(ctx, &history.Round{
		Address:  "miner",
		Settings: device.Settings{CoreVoltage: 1100, Frequency: 500},
		Outcome:  outcome(true, 505, 2),
	}))
	require.NoError(t, rec.Close())

	rec = newRecorder(t, path)
	defer rec.Close()

	best, err := rec.BestStable(ctx, "miner")
	require.NoError(t, err)
	require.NotNil(t, best)
	assert.Equal(t, 500, best.Settings.Frequency)
}

func TestSchemaMismatchBacksUp(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "history.db")

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = db.Exec(`
        CREATE TABLE schema_versions (version INTEGER PRIMARY KEY, applied_at TEXT NOT NULL);
        INSERT INTO schema_versions VALUES (99, datetime('now'));
    `)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	rec := newRecorder(t, path)
	defer rec.Close()

	backups, err := filepath.Glob(filepath.Join(dir, "backups", "history_v99_*.db"))
	require.NoError(t, err)
	assert.Len(t, backups, 1)
}

func TestDisabledIsNoop(t *testing.T) {
	rec, err := history.NewService(history.DefaultConfig(), logger.Nop())
	require.NoError(t, err)

	require.NoError(t, rec.Record(context.Background(), &history.Round{Outcome: outcome(true, 1, 1)}))
	best, err := rec.BestStable(context.Background(), "any")
	require.NoError(t, err)
	assert.Nil(t, best)
	require.NoError(t, rec.Close())
}

func TestInvalidConfig(t *testing.T) {
	_, err := history.NewService(history.Config{Enabled: true}, logger.Nop())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, history.ErrInvalidDBPath))
}

func TestRecordRejectsEmptyRound(t *testing.T) {
	rec := newRecorder(t, filepath.Join(t.TempDir(), "history.db"))
	defer rec.Close()

	err := rec.Record(context.Background(), &history.Round{})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, history.ErrInvalidRound))
}
