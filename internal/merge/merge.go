package merge

import (
	"sort"
	"time"

	"github.com/AdrienSalicis/WindDatas/internal/models"
)

// Row is one shared date with both sources' readings.
type Row struct {
	Date time.Time
	A    models.DailyReading
	B    models.DailyReading
}

// Aligned is the inner join of two daily series.
type Aligned struct {
	SourceA string
	SourceB string
	Rows    []Row
}

func (a Aligned) Len() int { return len(a.Rows) }

// Columns returns the source-qualified column names, e.g.
// "windspeed_mean_meteostat1".
func (a Aligned) Columns() []string {
	cols := []string{"date"}
	for _, src := range []string{a.SourceA, a.SourceB} {
		for _, v := range models.Variables {
			cols = append(cols, string(v)+"_"+src)
		}
	}
	return cols
}

// Series joins a and b on date. Dates present on only one side are dropped;
// nothing is imputed. The result is sorted by date.
func Series(nameA string, a []models.DailyReading, nameB string, b []models.DailyReading) Aligned {
	out := Aligned{SourceA: nameA, SourceB: nameB}

	byDate := make(map[time.Time]models.DailyReading, len(b))
	for _, r := range b {
		byDate[dateKey(r.Date)] = r
	}
	for _, r := range a {
		other, ok := byDate[dateKey(r.Date)]
		if !ok {
			continue
		}
		out.Rows = append(out.Rows, Row{Date: dateKey(r.Date), A: r, B: other})
	}

	sort.Slice(out.Rows, func(i, j int) bool { return out.Rows[i].Date.Before(out.Rows[j].Date) })
	return out
}

func dateKey(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
