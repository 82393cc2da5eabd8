package normalize

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/AdrienSalicis/WindDatas/internal/models"
)

// era5Binding reads CDS single-levels CSV exports with 10 m wind components.
// Speed is the vector magnitude and direction is the meteorological
// "from" direction of the (u, v) vector.
type era5Binding struct{}

func (era5Binding) Provider() models.Provider { return models.ProviderERA5 }

func (era5Binding) Parse(raw []byte) (models.Table, error) {
	table := models.Table{Provider: models.ProviderERA5}

	cr := csv.NewReader(bytes.NewReader(raw))
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return table, nil
		}
		return table, fmt.Errorf("read ERA5 header: %w", err)
	}
	cols := columnIndex(header)
	timeCol := lookup(cols, "VALID_TIME", "TIME")
	uCol := lookup(cols, "U10")
	vCol := lookup(cols, "V10")
	gustCol := lookup(cols, "I10FG", "FG10", "10M_WIND_GUST_SINCE_PREVIOUS_POST_PROCESSING")
	if timeCol < 0 || uCol < 0 || vCol < 0 {
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

		t, err := parseTime(cell(rec, timeCol), "2006-01-02 15:04:05", "2006-01-02T15:04:05", "2006-01-02T15:04:05Z07:00", "2006-01-02")
		if err != nil {
			table.Dropped++
			continue
		}
		u, uErr := strconv.ParseFloat(cell(rec, uCol), 64)
		v, vErr := strconv.ParseFloat(cell(rec, vCol), 64)
		if uErr != nil || vErr != nil {
			table.Dropped++
			continue
		}

		r := models.Reading{
			Time:      t,
			Speed:     speedValue(math.Hypot(u, v), MaxSpeed),
			Direction: directionValue(windDirection(u, v)),
		}
		if g := cell(rec, gustCol); g != "" {
			gust, err := strconv.ParseFloat(g, 64)
			if err != nil {
				table.Dropped++
				continue
			}
			r.Gust = speedValue(gust, MaxGust)
		}
		table.Readings = append(table.Readings, r)
	}
	return table, nil
}

// windDirection returns the direction the wind blows from, in [0, 360].
func windDirection(u, v float64) float64 {
	return math.Atan2(u, v)*180/math.Pi + 180
}
