package catalog

import (
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/AdrienSalicis/WindDatas/internal/models"
)

const (
	isdUnknownUSAF = "999999"
	isdUnknownWBAN = "99999"
)

// ISDStationID joins USAF and WBAN codes the way the ISD file names do,
// zero-padded to 6 and 5 digits.
func ISDStationID(usaf, wban string) string {
	return padDigits(usaf, 6) + "-" + padDigits(wban, 5)
}

// SplitISDStationID is the inverse of ISDStationID.
func SplitISDStationID(id string) (usaf, wban string, err error) {
	parts := strings.Split(id, "-")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid ISD station id %q", id)
	}
	return parts[0], parts[1], nil
}

func padDigits(s string, width int) string {
	s = strings.TrimSpace(s)
	for len(s) < width {
		s = "0" + s
	}
	return s
}

// ParseISDHistory reads NOAA's isd-history.csv. Rows with missing or
// non-numeric coordinates and rows using the all-9s "unknown" codes are kept
// but flagged invalid.
func ParseISDHistory(r io.Reader) ([]models.Station, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := columnIndex(header)
	for _, required := range []string{"USAF", "WBAN", "LAT", "LON"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("missing column %s", required)
		}
	}

	var stations []models.Station
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				continue
			}
			return nil, err
		}

		usaf := padDigits(field(rec, cols, "USAF"), 6)
		wban := padDigits(field(rec, cols, "WBAN"), 5)
		st := models.Station{
			Provider: models.ProviderNOAAISD,
			ID:       usaf + "-" + wban,
			Name:     field(rec, cols, "STATION NAME"),
			Country:  field(rec, cols, "CTRY"),
			Begin:    parseCompactDate(field(rec, cols, "BEGIN")),
			End:      parseCompactDate(field(rec, cols, "END")),
		}
		if v, err := strconv.ParseFloat(field(rec, cols, "ELEV(M)"), 64); err == nil {
			st.Elevation = sql.NullFloat64{Float64: v, Valid: true}
		}

		lat, latErr := strconv.ParseFloat(field(rec, cols, "LAT"), 64)
		lon, lonErr := strconv.ParseFloat(field(rec, cols, "LON"), 64)
		coordsOK := latErr == nil && lonErr == nil && validCoordinate(lat, lon)
		if coordsOK {
			st.Latitude = lat
			st.Longitude = lon
		}
		st.Valid = coordsOK && usaf != isdUnknownUSAF && wban != isdUnknownWBAN && strings.Trim(usaf, "0") != ""

		stations = append(stations, st)
	}
	return stations, nil
}

func columnIndex(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToUpper(strings.TrimSpace(h))] = i
	}
	return cols
}

func field(rec []string, cols map[string]int, name string) string {
	i, ok := cols[name]
	if !ok || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

func parseCompactDate(s string) sql.NullTime {
	t, err := time.Parse("20060102", strings.TrimSpace(s))
	if err != nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}

func validCoordinate(lat, lon float64) bool {
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}
