package normalize

import (
	"encoding/json"
	"fmt"

	"github.com/AdrienSalicis/WindDatas/internal/models"
)

// meteostatBinding reads the Meteostat JSON API (daily or hourly endpoint).
// Speeds are km/h.
type meteostatBinding struct{}

type meteostatPayload struct {
	Data []struct {
		Date *string  `json:"date"`
		Time *string  `json:"time"`
		Wdir *float64 `json:"wdir"`
		Wspd *float64 `json:"wspd"`
		Wpgt *float64 `json:"wpgt"`
	} `json:"data"`
}

func (meteostatBinding) Provider() models.Provider { return models.ProviderMeteostat }

func (meteostatBinding) Parse(raw []byte) (models.Table, error) {
	table := models.Table{Provider: models.ProviderMeteostat}

	var p meteostatPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return table, fmt.Errorf("decode meteostat payload: %w", err)
	}

	for _, row := range p.Data {
		stamp := row.Date
		if row.Time != nil {
			stamp = row.Time
		}
		if stamp == nil {
			table.Dropped++
			continue
		}
		t, err := parseTime(*stamp, "2006-01-02", "2006-01-02 15:04:05")
		if err != nil {
			table.Dropped++
			continue
		}

		r := models.Reading{Time: t}
		if row.Wspd != nil {
			r.Speed = speedValue(*row.Wspd*KmhToMS, MaxSpeed)
		}
		if row.Wpgt != nil {
			r.Gust = speedValue(*row.Wpgt*KmhToMS, MaxGust)
		}
		if row.Wdir != nil {
			r.Direction = directionValue(*row.Wdir)
		}
		table.Readings = append(table.Readings, r)
	}
	return table, nil
}
