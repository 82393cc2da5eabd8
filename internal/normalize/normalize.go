package normalize

import (
	"bytes"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/AdrienSalicis/WindDatas/internal/aggregate"
	"github.com/AdrienSalicis/WindDatas/internal/models"
)

var (
	// ErrMalformedRecord marks a single row that could not be parsed. Bindings
	// count it in Table.Dropped and never return it.
	ErrMalformedRecord = errors.New("malformed record")
	ErrUnknownProvider = errors.New("unknown provider")
)

// Unit conversion factors to m/s.
const (
	KnotsToMS = 0.514444
	KmhToMS   = 1 / 3.6
	MphToMS   = 0.44704
)

// Physical ceilings; anything above is treated as a sensor or encoding error.
const (
	MaxSpeed = 100.0
	MaxGust  = 150.0
)

// Binding turns one provider's raw payload into normalized readings.
// Parse returns an empty table and a nil error when the payload lacks the
// fields the binding needs. It returns an error only when the bytes are not
// in the provider's format at all.
type Binding interface {
	Provider() models.Provider
	Parse(raw []byte) (models.Table, error)
}

var bindings = map[models.Provider]Binding{
	models.ProviderNOAAISD:     isdBinding{},
	models.ProviderGHCND:       ghcndBinding{},
	models.ProviderMeteostat:   meteostatBinding{},
	models.ProviderMeteoFrance: meteoFranceBinding{},
	models.ProviderOpenMeteo:   openMeteoBinding{},
	models.ProviderNASAPower:   nasaPowerBinding{},
	models.ProviderERA5:        era5Binding{},
}

func BindingFor(provider models.Provider) (Binding, error) {
	b, ok := bindings[provider]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, provider)
	}
	return b, nil
}

// Collect parses every payload with the provider's binding and concatenates
// the readings into one table. A payload that cannot be decoded is logged,
// counted in Table.Rejected and skipped; Collect fails only when no payload
// decodes. Readings of a payload without native gust are marked GustDerived,
// and the table flag is set only when every decoded payload lacked gust.
func Collect(provider models.Provider, payloads ...[]byte) (models.Table, error) {
	b, err := BindingFor(provider)
	if err != nil {
		return models.Table{}, err
	}

	table := models.Table{Provider: provider}
	decoded := 0
	derived := 0
	var lastErr error
	for i, raw := range payloads {
		if len(bytes.TrimSpace(raw)) == 0 {
			continue
		}
		part, err := b.Parse(raw)
		if err != nil {
			log.Printf("normalize: %s payload %d: %v", provider, i, err)
			table.Rejected++
			lastErr = fmt.Errorf("parse %s payload %d: %w", provider, i, err)
			continue
		}
		decoded++
		if part.GustDerived {
			derived++
			for j := range part.Readings {
				part.Readings[j].GustDerived = true
			}
		}
		table.Readings = append(table.Readings, part.Readings...)
		table.Dropped += part.Dropped
	}
	if decoded == 0 && lastErr != nil {
		return models.Table{Provider: provider, Rejected: table.Rejected}, lastErr
	}
	table.GustDerived = decoded > 0 && derived == decoded
	return table, nil
}

// Decodable reports whether the provider's binding can decode raw at all.
// A payload that decodes but lacks the needed fields is still decodable.
func Decodable(provider models.Provider, raw []byte) error {
	b, err := BindingFor(provider)
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	_, err = b.Parse(raw)
	return err
}

// Normalize parses the payloads and aggregates them to one reading per day.
func Normalize(provider models.Provider, payloads ...[]byte) ([]models.DailyReading, error) {
	table, err := Collect(provider, payloads...)
	if err != nil {
		return nil, err
	}
	return aggregate.Daily(table), nil
}

func speedValue(v, ceiling float64) sql.NullFloat64 {
	if v < 0 || v > ceiling {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

func directionValue(v float64) sql.NullFloat64 {
	if v == 360 {
		v = 0
	}
	if v < 0 || v >= 360 {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

func columnIndex(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimPrefix(h, "\ufeff")
		cols[strings.ToUpper(strings.TrimSpace(h))] = i
	}
	return cols
}

func cell(rec []string, i int) string {
	if i < 0 || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

func lookup(cols map[string]int, names ...string) int {
	for _, n := range names {
		if i, ok := cols[n]; ok {
			return i
		}
	}
	return -1
}

func parseTime(s string, layouts ...string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: time %q", ErrMalformedRecord, s)
}
