package normalize

import (
	"bufio"
	"bytes"
	"database/sql"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/AdrienSalicis/WindDatas/internal/models"
)

// ghcndBinding reads GHCN-Daily .dly files: one fixed-width line per
// station, month and element, 31 day slots of 8 characters each. Raw values
// are scaled by KnotsToMS. Speed prefers WSF2 over AWND and direction prefers
// WDF2 over WDFG, per day.
type ghcndBinding struct{}

// ghcndDay keeps the candidate elements of one day until the file is read.
type ghcndDay struct {
	wsf2, awnd, wsfg, wdf2, wdfg sql.NullFloat64
}

const ghcndMissing = -9999

func (ghcndBinding) Provider() models.Provider { return models.ProviderGHCND }

func (ghcndBinding) Parse(raw []byte) (models.Table, error) {
	table := models.Table{Provider: models.ProviderGHCND}
	days := make(map[time.Time]*ghcndDay)
	sawGust := false

	sc := bufio.NewScanner(bytes.NewReader(raw))
	sc.Buffer(make([]byte, 0, 512), 1<<20)
	for sc.Scan() {
		line := sc.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		if len(line) < 21 {
			table.Dropped++
			continue
		}
		element := line[17:21]
		switch element {
		case "WSF2", "AWND", "WSFG", "WDF2", "WDFG":
		default:
			continue
		}
		year, yErr := strconv.Atoi(line[11:15])
		month, mErr := strconv.Atoi(line[15:17])
		if yErr != nil || mErr != nil || month < 1 || month > 12 {
			table.Dropped++
			continue
		}
		if element == "WSFG" {
			sawGust = true
		}

		for day := 1; day <= 31; day++ {
			off := 21 + (day-1)*8
			if off+5 > len(line) {
				break
			}
			v := strings.TrimSpace(line[off : off+5])
			if v == "" {
				continue
			}
			n, err := strconv.Atoi(v)
			if err != nil {
				table.Dropped++
				continue
			}
			if n == ghcndMissing {
				continue
			}
			date := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
			if date.Month() != time.Month(month) {
				continue
			}

			d, ok := days[date]
			if !ok {
				d = &ghcndDay{}
				days[date] = d
			}
			switch element {
			case "WSF2":
				d.wsf2 = speedValue(float64(n)*KnotsToMS, MaxSpeed)
			case "AWND":
				d.awnd = speedValue(float64(n)*KnotsToMS, MaxSpeed)
			case "WSFG":
				d.wsfg = speedValue(float64(n)*KnotsToMS, MaxGust)
			case "WDF2":
				d.wdf2 = directionValue(float64(n))
			case "WDFG":
				d.wdfg = directionValue(float64(n))
			}
		}
	}
	if err := sc.Err(); err != nil {
		return table, fmt.Errorf("scan GHCN-Daily payload: %w", err)
	}
	if len(days) == 0 {
		return table, nil
	}

	table.GustDerived = !sawGust
	for date, d := range days {
		table.Readings = append(table.Readings, models.Reading{
			Time:      date,
			Speed:     firstValid(d.wsf2, d.awnd),
			Gust:      d.wsfg,
			Direction: firstValid(d.wdf2, d.wdfg),
		})
	}
	sort.Slice(table.Readings, func(i, j int) bool {
		return table.Readings[i].Time.Before(table.Readings[j].Time)
	})
	return table, nil
}

func firstValid(values ...sql.NullFloat64) sql.NullFloat64 {
	for _, v := range values {
		if v.Valid {
			return v
		}
	}
	return sql.NullFloat64{}
}
