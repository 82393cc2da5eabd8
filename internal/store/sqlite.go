package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/AdrienSalicis/WindDatas/internal/models"
)

const dateLayout = "2006-01-02"

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) UpsertSite(site models.Site) error {
	_, err := s.db.Exec(`
		INSERT INTO sites (site_key, reference, name, country, latitude, longitude, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(site_key) DO UPDATE SET
			reference = excluded.reference,
			name = excluded.name,
			country = excluded.country,
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			updated_at = excluded.updated_at
	`, site.Key(), site.Reference, site.Name, site.Country, site.Latitude, site.Longitude, time.Now().UTC())
	return err
}

func (s *Store) ListSites() ([]models.Site, error) {
	rows, err := s.db.Query(`SELECT reference, name, country, latitude, longitude FROM sites ORDER BY site_key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sites []models.Site
	for rows.Next() {
		var site models.Site
		if err := rows.Scan(&site.Reference, &site.Name, &site.Country, &site.Latitude, &site.Longitude); err != nil {
			return nil, err
		}
		sites = append(sites, site)
	}
	return sites, rows.Err()
}

// GetSite returns nil when the site is unknown.
func (s *Store) GetSite(key string) (*models.Site, error) {
	var site models.Site
	err := s.db.QueryRow(`
		SELECT reference, name, country, latitude, longitude FROM sites WHERE site_key = ?
	`, key).Scan(&site.Reference, &site.Name, &site.Country, &site.Latitude, &site.Longitude)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &site, nil
}

func (s *Store) UpsertStation(st models.Station) error {
	_, err := s.db.Exec(`
		INSERT INTO stations (provider, station_id, name, country, latitude, longitude, elevation, begin_date, end_date, valid)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(provider, station_id) DO UPDATE SET
			name = excluded.name,
			country = excluded.country,
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			elevation = excluded.elevation,
			begin_date = excluded.begin_date,
			end_date = excluded.end_date,
			valid = excluded.valid
	`, string(st.Provider), st.ID, st.Name, st.Country, st.Latitude, st.Longitude, st.Elevation,
		nullDate(st.Begin), nullDate(st.End), st.Valid)
	return err
}

// SiteStation is a station resolved for one source slot of a site,
// e.g. "noaa_isd2" is the second-nearest ISD station.
type SiteStation struct {
	Source     string
	Station    models.Station
	DistanceKM float64
	ResolvedAt time.Time
}

// SaveSiteStation records the station resolved for a source slot and upserts
// the station itself.
func (s *Store) SaveSiteStation(siteKey, source string, st models.Station, distanceKM float64) error {
	if err := s.UpsertStation(st); err != nil {
		return fmt.Errorf("upsert station %s/%s: %w", st.Provider, st.ID, err)
	}
	_, err := s.db.Exec(`
		INSERT INTO site_stations (site_key, source, provider, station_id, distance_km, resolved_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(site_key, source) DO UPDATE SET
			provider = excluded.provider,
			station_id = excluded.station_id,
			distance_km = excluded.distance_km,
			resolved_at = excluded.resolved_at
	`, siteKey, source, string(st.Provider), st.ID, distanceKM, time.Now().UTC())
	return err
}

func (s *Store) GetSiteStations(siteKey string) ([]SiteStation, error) {
	rows, err := s.db.Query(`
		SELECT ss.source, ss.provider, ss.station_id, ss.distance_km, ss.resolved_at,
		       st.name, st.country, st.latitude, st.longitude, st.elevation,
		       st.begin_date, st.end_date, st.valid
		FROM site_stations ss
		JOIN stations st ON st.provider = ss.provider AND st.station_id = ss.station_id
		WHERE ss.site_key = ?
		ORDER BY ss.source
	`, siteKey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []SiteStation
	for rows.Next() {
		var ss SiteStation
		var provider string
		var name, country sql.NullString
		var lat, lon sql.NullFloat64
		var begin, end sql.NullString
		if err := rows.Scan(&ss.Source, &provider, &ss.Station.ID, &ss.DistanceKM, &ss.ResolvedAt,
			&name, &country, &lat, &lon, &ss.Station.Elevation, &begin, &end, &ss.Station.Valid); err != nil {
			return nil, err
		}
		ss.Station.Provider = models.Provider(provider)
		ss.Station.Name = name.String
		ss.Station.Country = country.String
		ss.Station.Latitude = lat.Float64
		ss.Station.Longitude = lon.Float64
		ss.Station.Begin = parseNullDate(begin)
		ss.Station.End = parseNullDate(end)
		result = append(result, ss)
	}
	return result, rows.Err()
}

func nullDate(t sql.NullTime) sql.NullString {
	if !t.Valid {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Time.Format(dateLayout), Valid: true}
}

func parseNullDate(s sql.NullString) sql.NullTime {
	if !s.Valid {
		return sql.NullTime{}
	}
	t, err := time.Parse(dateLayout, s.String)
	if err != nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}
