package catalog

import (
	"bufio"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/AdrienSalicis/WindDatas/internal/models"
)

// ParseGHCNDStations reads the fixed-width ghcnd-stations.txt listing.
func ParseGHCNDStations(r io.Reader) ([]models.Station, error) {
	var stations []models.Station
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Text()
		if len(strings.TrimSpace(line)) == 0 {
			continue
		}
		id := strings.TrimSpace(slice(line, 0, 11))
		if id == "" {
			continue
		}

		st := models.Station{
			Provider: models.ProviderGHCND,
			ID:       id,
			Name:     strings.TrimSpace(slice(line, 41, 71)),
		}
		if len(id) >= 2 {
			st.Country = id[:2]
		}
		if v, err := strconv.ParseFloat(strings.TrimSpace(slice(line, 31, 37)), 64); err == nil && v > -999 {
			st.Elevation = sql.NullFloat64{Float64: v, Valid: true}
		}

		lat, latErr := strconv.ParseFloat(strings.TrimSpace(slice(line, 12, 20)), 64)
		lon, lonErr := strconv.ParseFloat(strings.TrimSpace(slice(line, 21, 30)), 64)
		if latErr == nil && lonErr == nil && validCoordinate(lat, lon) {
			st.Latitude = lat
			st.Longitude = lon
			st.Valid = true
		}
		stations = append(stations, st)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	return stations, nil
}

func slice(s string, from, to int) string {
	if from >= len(s) {
		return ""
	}
	if to > len(s) {
		to = len(s)
	}
	return s[from:to]
}

type meteostatStation struct {
	ID      string `json:"id"`
	Country string `json:"country"`
	Name    struct {
		En string `json:"en"`
	} `json:"name"`
	Location struct {
		Latitude  *float64 `json:"latitude"`
		Longitude *float64 `json:"longitude"`
		Elevation *float64 `json:"elevation"`
	} `json:"location"`
	Inventory struct {
		Daily struct {
			Start *string `json:"start"`
			End   *string `json:"end"`
		} `json:"daily"`
	} `json:"inventory"`
}

// ParseMeteostatStations reads the Meteostat bulk station list (JSON array).
func ParseMeteostatStations(r io.Reader) ([]models.Station, error) {
	var raw []meteostatStation
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	stations := make([]models.Station, 0, len(raw))
	for _, m := range raw {
		st := models.Station{
			Provider: models.ProviderMeteostat,
			ID:       m.ID,
			Name:     m.Name.En,
			Country:  m.Country,
			Begin:    parseISODate(m.Inventory.Daily.Start),
			End:      parseISODate(m.Inventory.Daily.End),
		}
		if m.Location.Elevation != nil {
			st.Elevation = sql.NullFloat64{Float64: *m.Location.Elevation, Valid: true}
		}
		if m.Location.Latitude != nil && m.Location.Longitude != nil && validCoordinate(*m.Location.Latitude, *m.Location.Longitude) {
			st.Latitude = *m.Location.Latitude
			st.Longitude = *m.Location.Longitude
			st.Valid = m.ID != ""
		}
		stations = append(stations, st)
	}
	return stations, nil
}

type meteoFranceStation struct {
	ID          string   `json:"id"`
	Nom         string   `json:"nom"`
	PosteOuvert *bool    `json:"posteOuvert"`
	Lat         *float64 `json:"lat"`
	Lon         *float64 `json:"lon"`
	Alt         *float64 `json:"alt"`
}

// ParseMeteoFranceStations reads a DPClim "liste-stations" response (JSON array).
// Closed stations stay in the catalog but are not valid candidates.
func ParseMeteoFranceStations(r io.Reader) ([]models.Station, error) {
	var raw []meteoFranceStation
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	stations := make([]models.Station, 0, len(raw))
	for _, m := range raw {
		st := models.Station{
			Provider: models.ProviderMeteoFrance,
			ID:       m.ID,
			Name:     m.Nom,
			Country:  "FR",
		}
		if m.Alt != nil {
			st.Elevation = sql.NullFloat64{Float64: *m.Alt, Valid: true}
		}
		open := m.PosteOuvert == nil || *m.PosteOuvert
		if m.Lat != nil && m.Lon != nil && validCoordinate(*m.Lat, *m.Lon) {
			st.Latitude = *m.Lat
			st.Longitude = *m.Lon
			st.Valid = m.ID != "" && open
		}
		stations = append(stations, st)
	}
	return stations, nil
}

func parseISODate(s *string) sql.NullTime {
	if s == nil {
		return sql.NullTime{}
	}
	t, err := time.Parse("2006-01-02", *s)
	if err != nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}
