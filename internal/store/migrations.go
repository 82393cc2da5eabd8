package store

import (
	"database/sql"
	"fmt"
	"log"
	"time"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "Initial schema",
		SQL: `
CREATE TABLE IF NOT EXISTS sites (
    site_key TEXT PRIMARY KEY,
    reference TEXT NOT NULL,
    name TEXT NOT NULL,
    country TEXT NOT NULL,
    latitude REAL NOT NULL,
    longitude REAL NOT NULL,
    updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS stations (
    provider TEXT NOT NULL,
    station_id TEXT NOT NULL,
    name TEXT,
    country TEXT,
    latitude REAL,
    longitude REAL,
    elevation REAL,
    begin_date TEXT,
    end_date TEXT,
    valid BOOLEAN NOT NULL DEFAULT TRUE,
    PRIMARY KEY (provider, station_id)
);

CREATE TABLE IF NOT EXISTS site_stations (
    site_key TEXT NOT NULL,
    source TEXT NOT NULL,
    provider TEXT NOT NULL,
    station_id TEXT NOT NULL,
    distance_km REAL NOT NULL,
    resolved_at DATETIME NOT NULL,
    PRIMARY KEY (site_key, source)
);

CREATE TABLE IF NOT EXISTS daily_readings (
    site_key TEXT NOT NULL,
    source TEXT NOT NULL,
    provider TEXT NOT NULL,
    date TEXT NOT NULL,
    windspeed_mean REAL,
    windspeed_gust REAL,
    wind_direction REAL,
    updated_at DATETIME NOT NULL,
    PRIMARY KEY (site_key, source, date)
);

CREATE INDEX IF NOT EXISTS idx_daily_site_date ON daily_readings(site_key, date);
`,
	},
	{
		Version:     2,
		Description: "Add ingest auditing and raw payload storage",
		SQL: `
CREATE TABLE IF NOT EXISTS ingest_runs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    started_at DATETIME NOT NULL,
    finished_at DATETIME,
    source TEXT NOT NULL,
    endpoint TEXT NOT NULL,
    station_id TEXT,
    location_id TEXT,
    http_status INTEGER,
    response_size_bytes INTEGER,
    records_parsed INTEGER,
    records_stored INTEGER,
    parse_errors INTEGER,
    success BOOLEAN NOT NULL DEFAULT FALSE,
    error_message TEXT
);

CREATE INDEX IF NOT EXISTS idx_ingest_runs_started ON ingest_runs(started_at);

CREATE TABLE IF NOT EXISTS raw_payloads (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    ingest_run_id INTEGER,
    fetched_at DATETIME NOT NULL,
    source TEXT NOT NULL,
    endpoint TEXT NOT NULL,
    station_id TEXT,
    location_id TEXT,
    payload_compressed BLOB NOT NULL,
    payload_hash TEXT NOT NULL UNIQUE,
    schema_version INTEGER NOT NULL DEFAULT 1
);
`,
	},
	{
		Version:     3,
		Description: "Add comparison and descriptive statistics tables",
		SQL: `
CREATE TABLE IF NOT EXISTS comparisons (
    site_key TEXT NOT NULL,
    source_a TEXT NOT NULL,
    source_b TEXT NOT NULL,
    overlap INTEGER NOT NULL,
    computed_at DATETIME NOT NULL,
    PRIMARY KEY (site_key, source_a, source_b)
);

CREATE TABLE IF NOT EXISTS comparison_variables (
    site_key TEXT NOT NULL,
    source_a TEXT NOT NULL,
    source_b TEXT NOT NULL,
    variable TEXT NOT NULL,
    count INTEGER NOT NULL,
    a_mean REAL, a_median REAL, a_std REAL, a_min REAL, a_max REAL,
    b_mean REAL, b_median REAL, b_std REAL, b_min REAL, b_max REAL,
    mean_abs_diff REAL NOT NULL,
    PRIMARY KEY (site_key, source_a, source_b, variable)
);

CREATE TABLE IF NOT EXISTS descriptives (
    site_key TEXT NOT NULL,
    source TEXT NOT NULL,
    variable TEXT NOT NULL,
    count INTEGER NOT NULL,
    mean REAL, median REAL, std REAL, min REAL, max REAL,
    p90 REAL, p95 REAL, p99 REAL,
    weibull_shape REAL, weibull_scale REAL,
    gumbel_location REAL, gumbel_scale REAL,
    computed_at DATETIME NOT NULL,
    PRIMARY KEY (site_key, source, variable)
);
`,
	},
	{
		Version:     4,
		Description: "Add batch runs and link ingest runs to batches",
		SQL: `
CREATE TABLE IF NOT EXISTS batch_runs (
    id TEXT PRIMARY KEY,
    started_at DATETIME NOT NULL,
    finished_at DATETIME,
    start_date TEXT NOT NULL,
    end_date TEXT NOT NULL,
    sites_total INTEGER NOT NULL DEFAULT 0,
    sites_compared INTEGER NOT NULL DEFAULT 0,
    sites_skipped INTEGER NOT NULL DEFAULT 0,
    sites_failed INTEGER NOT NULL DEFAULT 0,
    status TEXT NOT NULL DEFAULT 'running'
);

ALTER TABLE ingest_runs ADD COLUMN batch_id TEXT;
ALTER TABLE comparisons ADD COLUMN batch_id TEXT;
`,
	},
	{
		Version:     5,
		Description: "Deduplicate raw payloads per site instead of globally",
		SQL: `
CREATE TABLE raw_payloads_new (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    ingest_run_id INTEGER,
    fetched_at DATETIME NOT NULL,
    source TEXT NOT NULL,
    endpoint TEXT NOT NULL,
    station_id TEXT,
    location_id TEXT,
    payload_compressed BLOB NOT NULL,
    payload_hash TEXT NOT NULL,
    schema_version INTEGER NOT NULL DEFAULT 1
);

INSERT INTO raw_payloads_new
SELECT id, ingest_run_id, fetched_at, source, endpoint, station_id, location_id,
       payload_compressed, payload_hash, schema_version
FROM raw_payloads;

DROP TABLE raw_payloads;
ALTER TABLE raw_payloads_new RENAME TO raw_payloads;

CREATE UNIQUE INDEX idx_raw_payloads_site_hash ON raw_payloads(payload_hash, COALESCE(location_id, ''));
CREATE INDEX idx_raw_payloads_source_location ON raw_payloads(source, location_id);
`,
	},
}

func (s *Store) Migrate() error {
	if err := s.ensureMigrationsTable(); err != nil {
		return fmt.Errorf("ensure migrations table: %w", err)
	}

	applied, err := s.getAppliedMigrations()
	if err != nil {
		return fmt.Errorf("get applied migrations: %w", err)
	}

	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}

		log.Printf("migrations: applying %d - %s", m.Version, m.Description)

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("begin tx for migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("execute migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_migrations (version, description, applied_at) VALUES (?, ?, ?)",
			m.Version, m.Description, time.Now().UTC(),
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

func (s *Store) ensureMigrationsTable() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			description TEXT,
			applied_at DATETIME
		)
	`)
	return err
}

func (s *Store) getAppliedMigrations() (map[int]bool, error) {
	rows, err := s.db.Query("SELECT version FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

func (s *Store) MigrationVersion() (int, error) {
	var version sql.NullInt64
	err := s.db.QueryRow("SELECT MAX(version) FROM schema_migrations").Scan(&version)
	if err != nil {
		return 0, err
	}
	if !version.Valid {
		return 0, nil
	}
	return int(version.Int64), nil
}
