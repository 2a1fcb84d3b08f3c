package history

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"codeberg.org/mutker/axebench/internal/errors"
	"codeberg.org/mutker/axebench/internal/logger"
	_ "github.com/mattn/go-sqlite3"
)

type repository struct {
	db     *sql.DB
	logger logger.Logger
}

func NewRepository(cfg Config, log logger.Logger) (Repository, error) {
	errFactory := errors.New()

	if cfg.DBPath == "" {
		return nil, errFactory.New(ErrInvalidDBPath)
	}

	dbPath, err := cfg.expandedPath()
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), defaultDirPerm); err != nil {
		return nil, errFactory.WithData(ErrStorageInit, struct {
			Phase string
			Path  string
			Error string
		}{
			Phase: "create_directory",
			Path:  dbPath,
			Error: err.Error(),
		})
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal=WAL&_foreign_keys=on")
	if err != nil {
		return nil, errFactory.WithData(ErrStorageInit, struct {
			Phase string
			Error string
		}{
			Phase: "open_database",
			Error: err.Error(),
		})
	}

	if err := ValidateAndUpdateSchema(db, dbPath, log); err != nil {
		db.Close()
		return nil, errFactory.WithData(ErrStorageInit, struct {
			Phase string
			Error string
		}{
			Phase: "schema_version",
			Error: err.Error(),
		})
	}

	log.Debug().
		Str("path", dbPath).
		Int("schema_version", SchemaVersion).
		Msg("History repository initialized")

	return &repository{
		db:     db,
		logger: log,
	}, nil
}

func (r *repository) Store(ctx context.Context, round *Round) (int64, error) {
	errFactory := errors.New()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errFactory.Wrap(ErrTransactionFailed, err)
	}

	committed := false
	defer func() {
		if !committed {
			if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
				r.logger.Error().Err(err).Msg("Failed to roll back transaction")
			}
		}
	}()

	outcome := round.Outcome
	agg := outcome.Aggregate

	res, err := tx.ExecContext(ctx, insertRoundSQL,
		round.Address,
		outcome.StartedAt.Unix(),
		outcome.FinishedAt.Unix(),
		int64(round.Settings.Frequency),
		int64(round.Settings.CoreVoltage),
		int64(boolToInt(outcome.Stable)),
		string(outcome.Reason),
		int64(outcome.TotalSamples),
		int64(agg.Count),
		int64(outcome.PollErrors),
		agg.ExpectedHashRate,
		agg.AverageHashRate(),
		outcome.HashRateStdDev(),
		agg.AverageTemperature(),
		agg.AverageEfficiency(),
		agg.AveragePower(),
	)
	if err != nil {
		return 0, errFactory.Wrap(ErrStorageAccess, err)
	}

	roundID, err := res.LastInsertId()
	if err != nil {
		return 0, errFactory.Wrap(ErrStorageAccess, err)
	}

	stmt, err := tx.PrepareContext(ctx, insertSampleSQL)
	if err != nil {
		return 0, errFactory.Wrap(ErrTransactionFailed, err)
	}
	defer stmt.Close()

	for _, s := range outcome.Samples {
		if _, err := stmt.ExecContext(ctx,
			roundID,
			s.Timestamp.Unix(),
			s.HashRate,
			s.VRTemp,
			s.ASICTemp,
			s.Frequency,
			int64(s.CoreVoltageActual),
			s.Voltage,
			s.Current,
			s.Power,
			s.Efficiency,
		); err != nil {
			return 0, errFactory.Wrap(ErrStorageAccess, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, errFactory.Wrap(ErrTransactionFailed, err)
	}
	committed = true

	r.logger.Debug().
		Int64("round_id", roundID).
		Int("samples", len(outcome.Samples)).
		Msg("Stored round in history")

	return roundID, nil
}

func (r *repository) BestStable(ctx context.Context, address string) (*Summary, error) {
	var (
		s         Summary
		startedAt int64
		stable    int
	)

	err := r.db.QueryRowContext(ctx, bestStableSQL, address).Scan(
		&s.ID,
		&s.Address,
		&startedAt,
		&s.Settings.Frequency,
		&s.Settings.CoreVoltage,
		&stable,
		&s.Reason,
		&s.Samples,
		&s.ExpectedHashRate,
		&s.AverageHashRate,
		&s.HashRateStdDev,
		&s.Temperature,
		&s.Efficiency,
		&s.Power,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.New().Wrap(ErrStorageAccess, err)
	}

	s.StartedAt = time.Unix(startedAt, 0)
	s.Stable = stable == 1

	return &s, nil
}

func (r *repository) Close() error {
	if _, err := r.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return errors.New().WithData(ErrStorageClose, struct {
			Phase string
			Error string
		}{
			Phase: "checkpoint_wal",
			Error: err.Error(),
		})
	}

	if err := r.db.Close(); err != nil {
		return errors.New().WithData(ErrStorageClose, struct {
			Phase string
			Error string
		}{
			Phase: "close_database",
			Error: err.Error(),
		})
	}

	r.logger.Debug().Msg("History repository closed")

	return nil
}
