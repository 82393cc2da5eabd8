package models

import (
	"database/sql"
	"time"
)

// Provider identifies an upstream wind data source.
type Provider string

const (
	ProviderNOAAISD     Provider = "noaa_isd"
	ProviderGHCND       Provider = "ghcnd"
	ProviderMeteostat   Provider = "meteostat"
	ProviderMeteoFrance Provider = "meteo_france"
	ProviderOpenMeteo   Provider = "openmeteo"
	ProviderNASAPower   Provider = "nasa_power"
	ProviderERA5        Provider = "era5"
)

// Providers lists every supported provider in a stable order.
var Providers = []Provider{
	ProviderNOAAISD,
	ProviderGHCND,
	ProviderMeteostat,
	ProviderMeteoFrance,
	ProviderOpenMeteo,
	ProviderNASAPower,
	ProviderERA5,
}

// StationBased reports whether the provider serves fixed observation stations
// (as opposed to gridded model or reanalysis output addressed by coordinates).
func (p Provider) StationBased() bool {
	switch p {
	case ProviderNOAAISD, ProviderGHCND, ProviderMeteostat, ProviderMeteoFrance:
		return true
	default:
		return false
	}
}

func (p Provider) Known() bool {
	for _, known := range Providers {
		if p == known {
			return true
		}
	}
	return false
}

type Station struct {
	Provider  Provider
	ID        string // composite ids are joined with "-", e.g. "071490-99999"
	Name      string
	Country   string
	Latitude  float64
	Longitude float64
	Elevation sql.NullFloat64
	Begin     sql.NullTime
	End       sql.NullTime
	Valid     bool
}

// Covers reports whether the station's coverage window overlaps [start, end].
// Missing bounds are treated as open.
func (s Station) Covers(start, end time.Time) bool {
	if s.Begin.Valid && s.Begin.Time.After(end) {
		return false
	}
	if s.End.Valid && s.End.Time.Before(start) {
		return false
	}
	return true
}

type Site struct {
	Reference string  `validate:"required"`
	Name      string  `validate:"required"`
	Country   string  `validate:"required"`
	Latitude  float64 `validate:"latitude"`
	Longitude float64 `validate:"longitude"`
}

// Key is the folder and database key for a site, e.g. "S01_Piolenc".
func (s Site) Key() string {
	return s.Reference + "_" + s.Name
}

// Reading is one normalized observation before daily aggregation.
// Time keeps the zone the payload encoded; no conversion is applied.
type Reading struct {
	Time      time.Time
	Speed     sql.NullFloat64 // m/s
	Gust      sql.NullFloat64 // m/s
	Direction sql.NullFloat64 // degrees, [0, 360)
	// GustDerived marks a reading from a payload without a native gust
	// field, so its day falls back to the maximum speed.
	GustDerived bool
}

// Table is the output of one provider binding: sub-daily or daily readings
// before aggregation.
type Table struct {
	Provider Provider
	Readings []Reading
	// GustDerived marks payloads without a native gust field; the aggregator
	// then substitutes the day's maximum speed.
	GustDerived bool
	// Dropped counts rows rejected as malformed.
	Dropped int
	// Rejected counts whole payloads that could not be decoded.
	Rejected int
}

// DailyReading is the canonical per-day record of one provider series.
type DailyReading struct {
	Date          time.Time // UTC midnight
	WindspeedMean sql.NullFloat64
	WindspeedGust sql.NullFloat64
	WindDirection sql.NullFloat64
}

// Series is a named daily series for one site, e.g. "noaa_isd1".
type Series struct {
	Source   string
	Provider Provider
	Station  *Station
	Readings []DailyReading
}

// Variable is one comparable quantity of the canonical schema.
type Variable string

const (
	VariableSpeed     Variable = "windspeed_mean"
	VariableGust      Variable = "windspeed_gust"
	VariableDirection Variable = "wind_direction"
)

var Variables = []Variable{VariableSpeed, VariableGust, VariableDirection}

// Circular reports whether differences must wrap at 360.
func (v Variable) Circular() bool {
	return v == VariableDirection
}

// Value returns the variable's value from a daily reading.
func (v Variable) Value(r DailyReading) sql.NullFloat64 {
	switch v {
	case VariableSpeed:
		return r.WindspeedMean
	case VariableGust:
		return r.WindspeedGust
	case VariableDirection:
		return r.WindDirection
	default:
		return sql.NullFloat64{}
	}
}

type SummaryStats struct {
	Mean   float64
	Median float64
	Std    sql.NullFloat64 // undefined for a single sample
	Min    float64
	Max    float64
}

type VariableComparison struct {
	Variable         Variable
	Count            int
	A                SummaryStats
	B                SummaryStats
	MeanAbsoluteDiff float64
}

// ComparisonResult summarizes two sources over their shared dates.
type ComparisonResult struct {
	SourceA   string
	SourceB   string
	Overlap   int
	Variables []VariableComparison
}

func (r ComparisonResult) Variable(v Variable) (VariableComparison, bool) {
	for _, vc := range r.Variables {
		if vc.Variable == v {
			return vc, true
		}
	}
	return VariableComparison{}, false
}

type DistributionFit struct {
	Shape    float64
	Scale    float64
	Location float64
}

// Descriptive holds single-source statistics for one variable.
type Descriptive struct {
	Source   string
	Variable Variable
	Count    int
	Mean     float64
	Median   float64
	Std      sql.NullFloat64
	Min      float64
	Max      float64
	P90      float64
	P95      float64
	P99      float64
	Weibull  *DistributionFit
	Gumbel   *DistributionFit
}
