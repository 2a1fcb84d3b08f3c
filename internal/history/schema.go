package history

import (
	"database/sql"

	"codeberg.org/mutker/axebench/internal/errors"
	"codeberg.org/mutker/axebench/internal/logger"
)

const (
	SchemaVersion = 1

	createTablesSQL = `
	   CREATE TABLE IF NOT EXISTS schema_versions (
	       version     INTEGER PRIMARY KEY,
	       applied_at  TEXT NOT NULL
	   );
	   CREATE TABLE IF NOT EXISTS rounds (
	       id                  INTEGER PRIMARY KEY AUTOINCREMENT,
	       address             TEXT NOT NULL,
	       started_at          INTEGER NOT NULL,
	       finished_at         INTEGER NOT NULL,
	       frequency           INTEGER NOT NULL CHECK (typeof(frequency) = 'integer'),
	       core_voltage        INTEGER NOT NULL CHECK (typeof(core_voltage) = 'integer'),
	       stable              INTEGER NOT NULL CHECK (stable IN (0, 1)),
	       reason              TEXT NOT NULL,
	       total_samples       INTEGER NOT NULL,
	       samples             INTEGER NOT NULL,
	       poll_errors         INTEGER NOT NULL,
	       expected_hashrate   REAL NOT NULL,
	       average_hashrate    REAL NOT NULL,
	       hashrate_stddev     REAL NOT NULL,
	       average_temperature REAL NOT NULL,
	       efficiency          REAL NOT NULL,
	       average_power       REAL NOT NULL
	   );
	   CREATE INDEX IF NOT EXISTS rounds_address ON rounds (address, stable);
	   CREATE TABLE IF NOT EXISTS samples (
	       round_id            INTEGER NOT NULL REFERENCES rounds (id) ON DELETE CASCADE,
	       timestamp           INTEGER NOT NULL,
	       hashrate            REAL NOT NULL,
	       vr_temp             REAL NOT NULL,
	       asic_temp           REAL NOT NULL,
	       frequency           REAL NOT NULL,
	       core_voltage_actual INTEGER NOT NULL,
	       bus_voltage         REAL NOT NULL,
	       bus_current         REAL NOT NULL,
	       power               REAL NOT NULL,
	       efficiency          REAL NOT NULL
	   );`

	insertRoundSQL = `
    INSERT INTO rounds (
        address, started_at, finished_at,
        frequency, core_voltage,
        stable, reason, total_samples, samples, poll_errors,
        expected_hashrate, average_hashrate, hashrate_stddev,
        average_temperature, efficiency, average_power
    ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	insertSampleSQL = `
    INSERT INTO samples (
        round_id, timestamp,
        hashrate, vr_temp, asic_temp, frequency, core_voltage_actual,
        bus_voltage, bus_current, power, efficiency
    ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	bestStableSQL = `
    SELECT id, address, started_at, frequency, core_voltage, stable, reason, samples,
           expected_hashrate, average_hashrate, hashrate_stddev,
           average_temperature, efficiency, average_power
    FROM rounds
    WHERE address = ? AND stable = 1
    ORDER BY average_hashrate DESC, id ASC
    LIMIT 1`
)

// InitSchema creates a new database schema with the current version
func InitSchema(db *sql.DB, log logger.Logger) error {
	errFactory := errors.New()

	log.Debug().Msg("Creating database...")

	tx, err := db.Begin()
	if err != nil {
		return errFactory.Wrap(ErrSchemaInitFailed, err)
	}

	// Track transaction state
	committed := false
	defer func() {
		if !committed {
			if err := tx.Rollback(); err != nil {
				if !errors.Is(err, sql.ErrTxDone) {
					log.Debug().Err(err).Msg("Failed to rollback transaction")
				}
			}
		}
	}()

	if _, err := tx.Exec(createTablesSQL); err != nil {
		return errFactory.WithData(ErrSchemaInitFailed, struct {
			Error string
			Phase string
		}{
			Error: err.Error(),
			Phase: "create_tables",
		})
	}

	if _, err := tx.Exec(`
        INSERT INTO schema_versions (version, applied_at)
        VALUES (?, datetime('now'))
    `, SchemaVersion); err != nil {
		return errFactory.WithData(ErrSchemaInitFailed, struct {
			Error string
			Phase string
		}{
			Error: err.Error(),
			Phase: "record_version",
		})
	}

	if err := tx.Commit(); err != nil {
		return errFactory.Wrap(ErrSchemaInitFailed, err)
	}
	committed = true

	log.Debug().
		Int("version", SchemaVersion).
		Msg("Schema initialized successfully")

	return nil
}

// GetSchemaVersion returns the current schema version
func GetSchemaVersion(db *sql.DB) (int, error) {
	errFactory := errors.New()

	exists, err := TableExists(db, "schema_versions")
	if err != nil {
		return 0, errFactory.Wrap(ErrSchemaValidationFailed, err)
	}
	if !exists {
		return 0, nil
	}

	var version int
	err = db.QueryRow(`
        SELECT version
        FROM schema_versions
        ORDER BY version DESC
        LIMIT 1
    `).Scan(&version)

	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, errFactory.WithData(ErrSchemaValidationFailed, struct {
			Phase string
			Error string
		}{
			Phase: "get_version",
			Error: err.Error(),
		})
	}

	return version, nil
}

// TableExists checks if a table exists
func TableExists(db *sql.DB, tableName string) (bool, error) {
	errFactory := errors.New()
	var exists bool
	err := db.QueryRow(`
        SELECT EXISTS (
            SELECT 1 FROM sqlite_master
            WHERE type='table' AND name=?
        )
    `, tableName).Scan(&exists)
	if err != nil {
		return false, errFactory.WithData(ErrSchemaValidationFailed, struct {
			Phase string
			Table string
			Error string
		}{
			Phase: "check_table_exists",
			Table: tableName,
			Error: err.Error(),
		})
	}
	return exists, nil
}
