package normalize

import (
	"bytes"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/AdrienSalicis/WindDatas/internal/models"
)

// meteoFranceBinding reads DPClim order files: ';'-separated CSV with
// decimal commas. Daily files carry FFM (mean wind), FXI (max instantaneous
// gust) and DXI (its direction); hourly files carry FF, FXI and DD.
type meteoFranceBinding struct{}

func (meteoFranceBinding) Provider() models.Provider { return models.ProviderMeteoFrance }

func (meteoFranceBinding) Parse(raw []byte) (models.Table, error) {
	table := models.Table{Provider: models.ProviderMeteoFrance}

	cr := csv.NewReader(bytes.NewReader(raw))
	cr.Comma = ';'
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return table, nil
		}
		return table, fmt.Errorf("read DPClim header: %w", err)
	}
	cols := columnIndex(header)
	dateCol := lookup(cols, "DATE")
	speedCol := lookup(cols, "FFM", "FF")
	gustCol := lookup(cols, "FXI", "FXY")
	dirCol := lookup(cols, "DXI", "DD", "DXY")
	if dateCol < 0 || (speedCol < 0 && gustCol < 0 && dirCol < 0) {
		return table, nil
	}
	table.GustDerived = gustCol < 0

	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			table.Dropped++
			continue
		}

		t, err := parseTime(cell(rec, dateCol), "20060102", "2006010215")
		if err != nil {
			table.Dropped++
			continue
		}
		r := models.Reading{Time: t}

		speed, sErr := frenchFloat(cell(rec, speedCol))
		gust, gErr := frenchFloat(cell(rec, gustCol))
		dir, dErr := frenchFloat(cell(rec, dirCol))
		if sErr != nil || gErr != nil || dErr != nil {
			table.Dropped++
			continue
		}
		if speed.Valid {
			r.Speed = speedValue(speed.Float64, MaxSpeed)
		}
		if gust.Valid {
			r.Gust = speedValue(gust.Float64, MaxGust)
		}
		if dir.Valid {
			r.Direction = directionValue(dir.Float64)
		}
		table.Readings = append(table.Readings, r)
	}
	return table, nil
}

// frenchFloat parses "3,2" or "3.2"; an empty cell is null.
func frenchFloat(s string) (sql.NullFloat64, error) {
	if s == "" {
		return sql.NullFloat64{}, nil
	}
	v, err := strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
	if err != nil {
		return sql.NullFloat64{}, fmt.Errorf("%w: number %q", ErrMalformedRecord, s)
	}
	return sql.NullFloat64{Float64: v, Valid: true}, nil
}
