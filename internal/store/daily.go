package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/AdrienSalicis/WindDatas/internal/models"
)

// UpsertDailyReadings writes a daily series for one site and source. Rows for
// dates already stored are replaced, so re-running a batch is idempotent.
func (s *Store) UpsertDailyReadings(siteKey string, series models.Series) (int, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO daily_readings (site_key, source, provider, date, windspeed_mean, windspeed_gust, wind_direction, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(site_key, source, date) DO UPDATE SET
			provider = excluded.provider,
			windspeed_mean = excluded.windspeed_mean,
			windspeed_gust = excluded.windspeed_gust,
			wind_direction = excluded.wind_direction,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return 0, fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, r := range series.Readings {
		if _, err := stmt.Exec(siteKey, series.Source, string(series.Provider), r.Date.Format(dateLayout),
			r.WindspeedMean, r.WindspeedGust, r.WindDirection, now); err != nil {
			return 0, fmt.Errorf("upsert %s %s: %w", series.Source, r.Date.Format(dateLayout), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return len(series.Readings), nil
}

// GetDailyReadings returns the stored series for one site and source within
// [start, end], sorted by date. Zero bounds are open.
func (s *Store) GetDailyReadings(siteKey, source string, start, end time.Time) (models.Series, error) {
	series := models.Series{Source: source}

	lo, hi := "0000-01-01", "9999-12-31"
	if !start.IsZero() {
		lo = start.Format(dateLayout)
	}
	if !end.IsZero() {
		hi = end.Format(dateLayout)
	}

	rows, err := s.db.Query(`
		SELECT provider, date, windspeed_mean, windspeed_gust, wind_direction
		FROM daily_readings
		WHERE site_key = ? AND source = ? AND date >= ? AND date <= ?
		ORDER BY date
	`, siteKey, source, lo, hi)
	if err != nil {
		return series, err
	}
	defer rows.Close()

	for rows.Next() {
		var provider, date string
		var r models.DailyReading
		if err := rows.Scan(&provider, &date, &r.WindspeedMean, &r.WindspeedGust, &r.WindDirection); err != nil {
			return series, err
		}
		r.Date, err = time.Parse(dateLayout, date)
		if err != nil {
			return series, fmt.Errorf("parse date %q: %w", date, err)
		}
		series.Provider = models.Provider(provider)
		series.Readings = append(series.Readings, r)
	}
	return series, rows.Err()
}

// ListSources returns the sources with stored readings for a site.
func (s *Store) ListSources(siteKey string) ([]string, error) {
	rows, err := s.db.Query(`
		SELECT DISTINCT source FROM daily_readings WHERE site_key = ? ORDER BY source
	`, siteKey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sources []string
	for rows.Next() {
		var source string
		if err := rows.Scan(&source); err != nil {
			return nil, err
		}
		sources = append(sources, source)
	}
	return sources, rows.Err()
}

// SourceCoverage summarizes one stored series.
type SourceCoverage struct {
	Source    string
	Provider  string
	Days      int
	FirstDate string
	LastDate  string
	Speed     int // days with a non-null mean speed
	Gust      int
	Direction int
}

func (s *Store) GetCoverage(siteKey string) ([]SourceCoverage, error) {
	rows, err := s.db.Query(`
		SELECT source, provider, COUNT(*), MIN(date), MAX(date),
			COUNT(windspeed_mean), COUNT(windspeed_gust), COUNT(wind_direction)
		FROM daily_readings
		WHERE site_key = ?
		GROUP BY source, provider
		ORDER BY source
	`, siteKey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []SourceCoverage
	for rows.Next() {
		var c SourceCoverage
		var first, last sql.NullString
		if err := rows.Scan(&c.Source, &c.Provider, &c.Days, &first, &last,
			&c.Speed, &c.Gust, &c.Direction); err != nil {
			return nil, err
		}
		c.FirstDate = first.String
		c.LastDate = last.String
		result = append(result, c)
	}
	return result, rows.Err()
}
