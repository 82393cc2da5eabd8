package catalog

import (
	"errors"
	"sort"
	"time"

	"github.com/skypies/geo"

	"github.com/AdrienSalicis/WindDatas/internal/models"
)

var (
	ErrNoValidStation    = errors.New("no valid station")
	ErrInvalidCoordinate = errors.New("invalid coordinate")
)

// Match is a resolved station and its great-circle distance from the query point.
type Match struct {
	Station    models.Station
	DistanceKM float64
}

type ResolveOptions struct {
	// MaxDistanceKM drops candidates further than this. Zero means unlimited.
	MaxDistanceKM float64
	// CoverStart and CoverEnd, when both set, drop stations whose coverage
	// window does not overlap the range.
	CoverStart time.Time
	CoverEnd   time.Time
}

// ResolveNearest returns up to count valid stations closest to (lat, lon),
// ordered by ascending distance. Stations at the same distance are ordered by ID.
func ResolveNearest(lat, lon float64, stations []models.Station, count int) ([]Match, error) {
	return Resolve(lat, lon, stations, count, ResolveOptions{})
}

// Resolve is ResolveNearest with candidate filters.
func Resolve(lat, lon float64, stations []models.Station, count int, opts ResolveOptions) ([]Match, error) {
	if !validCoordinate(lat, lon) {
		return nil, ErrInvalidCoordinate
	}

	origin := geo.Latlong{Lat: lat, Long: lon}
	covering := !opts.CoverStart.IsZero() && !opts.CoverEnd.IsZero()

	var matches []Match
	for _, st := range stations {
		if !st.Valid {
			continue
		}
		if covering && !st.Covers(opts.CoverStart, opts.CoverEnd) {
			continue
		}
		d := origin.DistKM(geo.Latlong{Lat: st.Latitude, Long: st.Longitude})
		if opts.MaxDistanceKM > 0 && d > opts.MaxDistanceKM {
			continue
		}
		matches = append(matches, Match{Station: st, DistanceKM: d})
	}
	if len(matches) == 0 {
		return nil, ErrNoValidStation
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].DistanceKM != matches[j].DistanceKM {
			return matches[i].DistanceKM < matches[j].DistanceKM
		}
		return matches[i].Station.ID < matches[j].Station.ID
	})

	if count > 0 && len(matches) > count {
		matches = matches[:count]
	}
	return matches, nil
}
