package normalize

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/AdrienSalicis/WindDatas/internal/models"
)

// nasaPowerBinding reads POWER point API JSON. Values are keyed by
// YYYYMMDDHH (hourly) or YYYYMMDD (daily) and use a fill value for missing
// data. GWS10M is only published from 2001 on.
type nasaPowerBinding struct{}

const nasaPowerDefaultFill = -999.0

type nasaPowerPayload struct {
	Header struct {
		FillValue *float64 `json:"fill_value"`
	} `json:"header"`
	Properties struct {
		Parameter map[string]map[string]float64 `json:"parameter"`
	} `json:"properties"`
}

func (nasaPowerBinding) Provider() models.Provider { return models.ProviderNASAPower }

func (nasaPowerBinding) Parse(raw []byte) (models.Table, error) {
	table := models.Table{Provider: models.ProviderNASAPower}

	var p nasaPowerPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return table, fmt.Errorf("decode NASA POWER payload: %w", err)
	}
	params := p.Properties.Parameter
	speeds, hasSpeed := params["WS10M"]
	gusts, hasGust := params["GWS10M"]
	dirs := params["WD10M"]
	if !hasSpeed && !hasGust {
		return table, nil
	}
	table.GustDerived = !hasGust

	fill := nasaPowerDefaultFill
	if p.Header.FillValue != nil {
		fill = *p.Header.FillValue
	}
	valid := func(m map[string]float64, key string) (float64, bool) {
		v, ok := m[key]
		return v, ok && v != fill
	}

	keys := make(map[string]struct{})
	for _, m := range []map[string]float64{speeds, gusts, dirs} {
		for k := range m {
			keys[k] = struct{}{}
		}
	}
	sorted := make([]string, 0, len(keys))
	for k := range keys {
		sorted = append(sorted, k)
	}
	sort.Strings(sorted)

	for _, key := range sorted {
		t, err := parseTime(key, "2006010215", "20060102")
		if err != nil {
			table.Dropped++
			continue
		}
		r := models.Reading{Time: t}
		if v, ok := valid(speeds, key); ok {
			r.Speed = speedValue(v, MaxSpeed)
		}
		if v, ok := valid(gusts, key); ok {
			r.Gust = speedValue(v, MaxGust)
		}
		if v, ok := valid(dirs, key); ok {
			r.Direction = directionValue(v)
		}
		table.Readings = append(table.Readings, r)
	}
	return table, nil
}
