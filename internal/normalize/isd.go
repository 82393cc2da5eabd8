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

// isdBinding reads NCEI global-hourly CSV files. Wind is packed in the WND
// column as "dir,dirQuality,type,speed,speedQuality" with speed in tenths of
// m/s. Gust comes from a GUST column, or from the OC1 additional-data column
// ("speed,quality", tenths of m/s); when neither exists the gust is derived.
type isdBinding struct{}

func (isdBinding) Provider() models.Provider { return models.ProviderNOAAISD }

func (isdBinding) Parse(raw []byte) (models.Table, error) {
	table := models.Table{Provider: models.ProviderNOAAISD}

	cr := csv.NewReader(bytes.NewReader(raw))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return table, nil
		}
		return table, fmt.Errorf("read ISD header: %w", err)
	}
	cols := columnIndex(header)
	dateCol := lookup(cols, "DATE")
	wndCol := lookup(cols, "WND")
	if dateCol < 0 || wndCol < 0 {
		return table, nil
	}
	gustCol := lookup(cols, "GUST")
	oc1Col := lookup(cols, "OC1")
	drctCol := lookup(cols, "DRCT")
	table.GustDerived = gustCol < 0 && oc1Col < 0

	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			table.Dropped++
			continue
		}
		r, err := parseISDRow(rec, dateCol, wndCol, gustCol, oc1Col, drctCol)
		if err != nil {
			table.Dropped++
			continue
		}
		table.Readings = append(table.Readings, r)
	}
	return table, nil
}

func parseISDRow(rec []string, dateCol, wndCol, gustCol, oc1Col, drctCol int) (models.Reading, error) {
	var r models.Reading

	t, err := parseTime(cell(rec, dateCol), "2006-01-02T15:04:05", "2006-01-02 15:04:05")
	if err != nil {
		return r, err
	}
	r.Time = t

	parts := strings.Split(cell(rec, wndCol), ",")
	if len(parts) != 5 {
		return r, fmt.Errorf("%w: WND %q", ErrMalformedRecord, cell(rec, wndCol))
	}
	speed, err := strconv.Atoi(parts[3])
	if err != nil {
		return r, fmt.Errorf("%w: WND speed %q", ErrMalformedRecord, parts[3])
	}
	if speed != 9999 {
		r.Speed = speedValue(float64(speed)/10, MaxSpeed)
	}
	dir, err := strconv.Atoi(parts[0])
	if err != nil {
		return r, fmt.Errorf("%w: WND direction %q", ErrMalformedRecord, parts[0])
	}
	if dir != 999 {
		r.Direction = directionValue(float64(dir))
	}

	if v := cell(rec, drctCol); v != "" {
		d, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return r, fmt.Errorf("%w: DRCT %q", ErrMalformedRecord, v)
		}
		if d != 999 {
			r.Direction = directionValue(d)
		} else {
			r.Direction = sql.NullFloat64{}
		}
	}

	if v := cell(rec, gustCol); v != "" {
		g, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return r, fmt.Errorf("%w: GUST %q", ErrMalformedRecord, v)
		}
		r.Gust = speedValue(g/10, MaxGust)
	} else if v := cell(rec, oc1Col); v != "" {
		g, err := strconv.Atoi(strings.Split(v, ",")[0])
		if err != nil {
			return r, fmt.Errorf("%w: OC1 %q", ErrMalformedRecord, v)
		}
		if g != 9999 {
			r.Gust = speedValue(float64(g)/10, MaxGust)
		}
	}
	return r, nil
}
