package aggregate

import (
	"database/sql"
	"math"
	"sort"
	"time"

	"github.com/AdrienSalicis/WindDatas/internal/models"
)

// Daily collapses a table to one reading per calendar day.
//
// Days are keyed by the timestamp's own calendar date; no zone conversion is
// applied. Speed and gust take the day's maximum. When the table has no
// native gust, or a day has readings marked GustDerived, a day without gust
// values gets its maximum speed instead.
// Direction is the most frequent whole-degree bucket; ties go to the lowest
// bucket and the reported value is the lowest reading in that bucket.
// Readings sharing a date are reduced together regardless of input order,
// so overlapping fetch windows merge rather than duplicate.
func Daily(table models.Table) []models.DailyReading {
	type accum struct {
		speed   sql.NullFloat64
		gust    sql.NullFloat64
		buckets map[int]int
		lowest  map[int]float64
		hasDir  bool
		derived bool
	}

	days := make(map[time.Time]*accum)
	for _, r := range table.Readings {
		y, m, d := r.Time.Date()
		key := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
		a, ok := days[key]
		if !ok {
			a = &accum{buckets: make(map[int]int), lowest: make(map[int]float64)}
			days[key] = a
		}
		a.speed = maxNull(a.speed, r.Speed)
		a.gust = maxNull(a.gust, r.Gust)
		a.derived = a.derived || r.GustDerived
		if r.Direction.Valid {
			b := bucket(r.Direction.Float64)
			a.buckets[b]++
			if low, seen := a.lowest[b]; !seen || r.Direction.Float64 < low {
				a.lowest[b] = r.Direction.Float64
			}
			a.hasDir = true
		}
	}

	out := make([]models.DailyReading, 0, len(days))
	for date, a := range days {
		dr := models.DailyReading{
			Date:          date,
			WindspeedMean: a.speed,
			WindspeedGust: a.gust,
		}
		if !dr.WindspeedGust.Valid && (table.GustDerived || a.derived) {
			dr.WindspeedGust = a.speed
		}
		if a.hasDir {
			b := modeBucket(a.buckets)
			dr.WindDirection = sql.NullFloat64{Float64: a.lowest[b], Valid: true}
		}
		out = append(out, dr)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

func maxNull(cur, v sql.NullFloat64) sql.NullFloat64 {
	if !v.Valid {
		return cur
	}
	if !cur.Valid || v.Float64 > cur.Float64 {
		return v
	}
	return cur
}

func bucket(dir float64) int {
	b := int(math.Round(dir)) % 360
	if b < 0 {
		b += 360
	}
	return b
}

func modeBucket(buckets map[int]int) int {
	best, bestCount := -1, 0
	for b, n := range buckets {
		if n > bestCount || (n == bestCount && b < best) {
			best, bestCount = b, n
		}
	}
	return best
}
