package merge

import (
	"database/sql"
	"testing"
	"time"

	"github.com/AdrienSalicis/WindDatas/internal/models"
)

func day(d int) time.Time {
	return time.Date(2024, 5, d, 0, 0, 0, 0, time.UTC)
}

func series(speed float64, days ...int) []models.DailyReading {
	var out []models.DailyReading
	for _, d := range days {
		out = append(out, models.DailyReading{
			Date:          day(d),
			WindspeedMean: sql.NullFloat64{Float64: speed, Valid: true},
		})
	}
	return out
}

func TestSeries_InnerJoin(t *testing.T) {
	aligned := Series("meteostat1", series(1, 1, 2, 3), "noaa_isd1", series(2, 2, 3, 4))

	if aligned.Len() != 2 {
		t.Fatalf("Len = %d, want 2", aligned.Len())
	}
	for i, want := range []int{2, 3} {
		row := aligned.Rows[i]
		if row.Date.Day() != want {
			t.Errorf("row %d date = %v, want day %d", i, row.Date, want)
		}
		if row.A.WindspeedMean.Float64 != 1 || row.B.WindspeedMean.Float64 != 2 {
			t.Errorf("row %d sides = %v/%v, want 1/2", i, row.A.WindspeedMean, row.B.WindspeedMean)
		}
	}
}

func TestSeries_NoOverlap(t *testing.T) {
	tests := []struct {
		name string
		a, b []models.DailyReading
	}{
		{"disjoint", series(1, 1, 2), series(1, 8, 9)},
		{"empty a", nil, series(1, 1)},
		{"both empty", nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			aligned := Series("a", tt.a, "b", tt.b)
			if aligned.Len() != 0 {
				t.Errorf("Len = %d, want 0", aligned.Len())
			}
		})
	}
}

func TestSeries_UnsortedInput(t *testing.T) {
	aligned := Series("a", series(1, 3, 1, 2), "b", series(1, 2, 1, 3))
	for i, want := range []int{1, 2, 3} {
		if aligned.Rows[i].Date.Day() != want {
			t.Errorf("row %d = day %d, want %d", i, aligned.Rows[i].Date.Day(), want)
		}
	}
}

func TestAligned_Columns(t *testing.T) {
	cols := Series("era5", nil, "openmeteo", nil).Columns()
	want := []string{
		"date",
		"windspeed_mean_era5", "windspeed_gust_era5", "wind_direction_era5",
		"windspeed_mean_openmeteo", "windspeed_gust_openmeteo", "wind_direction_openmeteo",
	}
	if len(cols) != len(want) {
		t.Fatalf("len = %d, want %d", len(cols), len(want))
	}
	for i := range want {
		if cols[i] != want[i] {
			t.Errorf("cols[%d] = %q, want %q", i, cols[i], want[i])
		}
	}
}
