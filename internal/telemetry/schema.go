package telemetry

import (
	"database/sql"

	"codeberg.org/mutker/airco2ctl/internal/errors"
)

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`
        CREATE TABLE IF NOT EXISTS readings (
            timestamp INTEGER PRIMARY KEY,
            co2_ppm INTEGER,
            temperature_celsius REAL,
            humidity_percent REAL
        )
    `)
	if err != nil {
		return errors.New().Wrap(ErrStorageInit, err)
	}

	return nil
}
