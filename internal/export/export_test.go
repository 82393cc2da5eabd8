package export

import (
	"bytes"
	"database/sql"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/AdrienSalicis/WindDatas/internal/merge"
	"github.com/AdrienSalicis/WindDatas/internal/models"
)

func day(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

func nf(v float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: v, Valid: true}
}

func TestWriteDaily(t *testing.T) {
	readings := []models.DailyReading{
		{Date: day(1), WindspeedMean: nf(3.5), WindspeedGust: nf(9), WindDirection: nf(270)},
		{Date: day(2), WindspeedMean: nf(4.25)},
	}
	var buf bytes.Buffer
	if err := WriteDaily(&buf, readings); err != nil {
		t.Fatalf("WriteDaily: %v", err)
	}
	want := "date,windspeed_mean,windspeed_gust,wind_direction\n" +
		"2024-01-01,3.5,9,270\n" +
		"2024-01-02,4.25,,\n"
	if buf.String() != want {
		t.Errorf("output =\n%s\nwant\n%s", buf.String(), want)
	}

	back, err := ReadDaily(strings.NewReader(buf.String()))
	if err != nil {
		t.Fatalf("ReadDaily: %v", err)
	}
	if len(back) != 2 {
		t.Fatalf("len = %d, want 2", len(back))
	}
	if back[1].WindspeedGust.Valid || back[1].WindspeedMean.Float64 != 4.25 {
		t.Errorf("row 2 = %+v", back[1])
	}
	if !back[0].Date.Equal(day(1)) {
		t.Errorf("date = %v, want %v", back[0].Date, day(1))
	}
}

func TestReadDaily_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"wrong header", "day,speed,gust,dir\n"},
		{"bad date", "date,windspeed_mean,windspeed_gust,wind_direction\n01/02/2024,1,2,3\n"},
		{"bad number", "date,windspeed_mean,windspeed_gust,wind_direction\n2024-01-02,fast,2,3\n"},
		{"short row", "date,windspeed_mean,windspeed_gust,wind_direction\n2024-01-02,1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ReadDaily(strings.NewReader(tt.input)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestWriteAligned(t *testing.T) {
	a := merge.Aligned{
		SourceA: "era5",
		SourceB: "noaa_isd1",
		Rows: []merge.Row{{
			Date: day(2),
			A:    models.DailyReading{Date: day(2), WindspeedMean: nf(4)},
			B:    models.DailyReading{Date: day(2), WindspeedMean: nf(5), WindDirection: nf(90)},
		}},
	}
	var buf bytes.Buffer
	if err := WriteAligned(&buf, a); err != nil {
		t.Fatalf("WriteAligned: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %d, want 2", len(lines))
	}
	if !strings.HasPrefix(lines[0], "date,windspeed_mean_era5,") || !strings.HasSuffix(lines[0], "wind_direction_noaa_isd1") {
		t.Errorf("header = %q", lines[0])
	}
	if lines[1] != "2024-01-02,4,,,5,,90" {
		t.Errorf("row = %q", lines[1])
	}
}

func TestWriteComparisons(t *testing.T) {
	results := []models.ComparisonResult{{
		SourceA: "era5",
		SourceB: "openmeteo",
		Overlap: 1,
		Variables: []models.VariableComparison{{
			Variable:         models.VariableSpeed,
			Count:            1,
			A:                models.SummaryStats{Mean: 1.23456, Median: 1.23456, Min: 1.23456, Max: 1.23456},
			B:                models.SummaryStats{Mean: 2, Median: 2, Min: 2, Max: 2},
			MeanAbsoluteDiff: 0.76544,
		}},
	}}
	var buf bytes.Buffer
	if err := WriteComparisons(&buf, results); err != nil {
		t.Fatalf("WriteComparisons: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	want := "era5,openmeteo,1,windspeed_mean,1,1.235,1.235,,1.235,1.235,2.000,2.000,,2.000,2.000,0.765"
	if len(lines) != 2 || lines[1] != want {
		t.Errorf("rows = %q, want %q", lines, want)
	}
}

func TestWriteDescriptives(t *testing.T) {
	ds := []models.Descriptive{
		{Source: "era5", Variable: models.VariableSpeed, Count: 100, Mean: 4, Std: nf(1),
			Weibull: &models.DistributionFit{Shape: 2, Scale: 4.5}},
		{Source: "era5", Variable: models.VariableDirection, Count: 100, Mean: 180},
	}
	var buf bytes.Buffer
	if err := WriteDescriptives(&buf, ds); err != nil {
		t.Fatalf("WriteDescriptives: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("lines = %d, want 3", len(lines))
	}
	if !strings.HasSuffix(lines[1], ",2.000,4.500,,") {
		t.Errorf("speed row = %q", lines[1])
	}
	if !strings.HasSuffix(lines[2], ",,,,") {
		t.Errorf("direction row = %q", lines[2])
	}
}

func TestWriteFileAndPaths(t *testing.T) {
	root := t.TempDir()
	site := models.Site{Reference: "S01", Name: "Piolenc"}
	path := SeriesFile(root, site, "noaa_isd1")
	if path != filepath.Join(root, "S01_Piolenc", "noaa_isd1_Piolenc.csv") {
		t.Errorf("SeriesFile = %q", path)
	}

	err := WriteFile(path, func(w io.Writer) error {
		return WriteStations(w, []StationRow{{
			Source:     "noaa_isd1",
			Station:    models.Station{Provider: models.ProviderNOAAISD, ID: "075790-99999", Latitude: 44.14, Longitude: 4.86},
			DistanceKM: 11.234,
		}})
	})
	if err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(data), "noaa_isd1,noaa_isd,075790-99999,,,44.14,4.86,11.23") {
		t.Errorf("stations sheet = %q", data)
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("dir entries = %d, want 1 (no temp file left)", len(entries))
	}
}

func TestRemoveComparisonFiles(t *testing.T) {
	root := t.TempDir()
	site := models.Site{Reference: "S01", Name: "Piolenc"}
	keep := SeriesFile(root, site, "openmeteo")
	drop := []string{
		ComparisonFile(root, site),
		AlignedFile(root, site, "openmeteo", "nasa_power"),
		AlignedFile(root, site, "meteostat1", "noaa_isd1"),
	}
	for _, path := range append([]string{keep}, drop...) {
		if err := WriteFile(path, func(w io.Writer) error { _, err := io.WriteString(w, "x\n"); return err }); err != nil {
			t.Fatalf("WriteFile %s: %v", path, err)
		}
	}

	if err := RemoveComparisonFiles(root, site); err != nil {
		t.Fatalf("RemoveComparisonFiles: %v", err)
	}
	for _, path := range drop {
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Errorf("%s still present", filepath.Base(path))
		}
	}
	if _, err := os.Stat(keep); err != nil {
		t.Errorf("series file removed: %v", err)
	}

	if err := RemoveComparisonFiles(root, site); err != nil {
		t.Errorf("second RemoveComparisonFiles: %v", err)
	}
}

func TestReadSeriesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meteostat1_Piolenc.csv")
	readings := []models.DailyReading{{Date: day(1), WindspeedMean: nf(2)}, {Date: day(2), WindspeedMean: nf(3)}}
	if err := WriteFile(path, func(w io.Writer) error { return WriteDaily(w, readings) }); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	s, err := ReadSeriesFile(path)
	if err != nil {
		t.Fatalf("ReadSeriesFile: %v", err)
	}
	if s.Source != "meteostat1_Piolenc" {
		t.Errorf("Source = %q", s.Source)
	}
	if len(s.Readings) != 2 || s.Readings[1].WindspeedMean.Float64 != 3 {
		t.Errorf("Readings = %+v", s.Readings)
	}

	if _, err := ReadSeriesFile(filepath.Join(t.TempDir(), "missing.csv")); err == nil {
		t.Error("expected error for missing file")
	}
}
