package normalize

import (
	"encoding/json"
	"fmt"

	"github.com/AdrienSalicis/WindDatas/internal/models"
)

// openMeteoBinding reads the archive API response with daily speed and gust
// and hourly direction. Both the legacy (windspeed_10m) and current
// (wind_speed_10m) variable names are accepted. Units follow daily_units.
type openMeteoBinding struct{}

type openMeteoPayload struct {
	DailyUnits map[string]string `json:"daily_units"`
	Daily      struct {
		Time            []string   `json:"time"`
		WindspeedMean   []*float64 `json:"windspeed_10m_mean"`
		WindSpeedMean   []*float64 `json:"wind_speed_10m_mean"`
		WindspeedMax    []*float64 `json:"windspeed_10m_max"`
		WindSpeedMax    []*float64 `json:"wind_speed_10m_max"`
		WindgustsMax    []*float64 `json:"windgusts_10m_max"`
		WindGustsMax    []*float64 `json:"wind_gusts_10m_max"`
		DirDominant     []*float64 `json:"winddirection_10m_dominant"`
		DirDominantNext []*float64 `json:"wind_direction_10m_dominant"`
	} `json:"daily"`
	Hourly struct {
		Time          []string   `json:"time"`
		Winddirection []*float64 `json:"winddirection_10m"`
		WindDirection []*float64 `json:"wind_direction_10m"`
	} `json:"hourly"`
}

func (openMeteoBinding) Provider() models.Provider { return models.ProviderOpenMeteo }

func (openMeteoBinding) Parse(raw []byte) (models.Table, error) {
	table := models.Table{Provider: models.ProviderOpenMeteo}

	var p openMeteoPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return table, fmt.Errorf("decode open-meteo payload: %w", err)
	}

	mean, meanKey := pick(p.Daily.WindspeedMean, "windspeed_10m_mean", p.Daily.WindSpeedMean, "wind_speed_10m_mean")
	gust, gustKey := pick(p.Daily.WindgustsMax, "windgusts_10m_max", p.Daily.WindGustsMax, "wind_gusts_10m_max")
	if gust == nil {
		gust, gustKey = pick(p.Daily.WindspeedMax, "windspeed_10m_max", p.Daily.WindSpeedMax, "wind_speed_10m_max")
	}
	dominant, _ := pick(p.Daily.DirDominant, "", p.Daily.DirDominantNext, "")
	hourlyDir, _ := pick(p.Hourly.Winddirection, "", p.Hourly.WindDirection, "")

	if mean == nil && gust == nil && hourlyDir == nil {
		return table, nil
	}
	meanFactor := unitFactor(p.DailyUnits[meanKey])
	gustFactor := unitFactor(p.DailyUnits[gustKey])
	table.GustDerived = gust == nil

	for i, stamp := range p.Daily.Time {
		t, err := parseTime(stamp, "2006-01-02")
		if err != nil {
			table.Dropped++
			continue
		}
		r := models.Reading{Time: t}
		if v := at(mean, i); v != nil {
			r.Speed = speedValue(*v*meanFactor, MaxSpeed)
		}
		if v := at(gust, i); v != nil {
			r.Gust = speedValue(*v*gustFactor, MaxGust)
		}
		if hourlyDir == nil {
			if v := at(dominant, i); v != nil {
				r.Direction = directionValue(*v)
			}
		}
		table.Readings = append(table.Readings, r)
	}

	for i, stamp := range p.Hourly.Time {
		v := at(hourlyDir, i)
		if v == nil {
			continue
		}
		t, err := parseTime(stamp, "2006-01-02T15:04", "2006-01-02T15:04:05")
		if err != nil {
			table.Dropped++
			continue
		}
		table.Readings = append(table.Readings, models.Reading{Time: t, Direction: directionValue(*v)})
	}
	return table, nil
}

func pick(a []*float64, aKey string, b []*float64, bKey string) ([]*float64, string) {
	if a != nil {
		return a, aKey
	}
	if b != nil {
		return b, bKey
	}
	return nil, ""
}

func at(values []*float64, i int) *float64 {
	if i < 0 || i >= len(values) {
		return nil
	}
	return values[i]
}

// unitFactor converts an Open-Meteo unit label to a factor to m/s.
// The API default is km/h.
func unitFactor(unit string) float64 {
	switch unit {
	case "m/s":
		return 1
	case "kn":
		return KnotsToMS
	case "mp/h", "mph":
		return MphToMS
	default:
		return KmhToMS
	}
}
