package export

import (
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/AdrienSalicis/WindDatas/internal/merge"
	"github.com/AdrienSalicis/WindDatas/internal/models"
)

const dateLayout = "2006-01-02"

// DailyHeader is the canonical per provider-site CSV header.
var DailyHeader = []string{"date", "windspeed_mean", "windspeed_gust", "wind_direction"}

// SiteDir is the output folder of a site, e.g. "<root>/S01_Piolenc".
func SiteDir(root string, site models.Site) string {
	return filepath.Join(root, site.Key())
}

// SeriesFile is the canonical CSV path of one source of a site.
func SeriesFile(root string, site models.Site, source string) string {
	return filepath.Join(SiteDir(root, site), fmt.Sprintf("%s_%s.csv", source, site.Name))
}

func ComparisonFile(root string, site models.Site) string {
	return filepath.Join(SiteDir(root, site), fmt.Sprintf("statistics_comparison_%s.csv", site.Name))
}

func DescriptivesFile(root string, site models.Site) string {
	return filepath.Join(SiteDir(root, site), fmt.Sprintf("stats_descriptives_%s.csv", site.Name))
}

func StationsFile(root string, site models.Site) string {
	return filepath.Join(SiteDir(root, site), fmt.Sprintf("stations_%s.csv", site.Name))
}

// AlignedFile is the joined CSV of one compared source pair.
func AlignedFile(root string, site models.Site, sourceA, sourceB string) string {
	return filepath.Join(SiteDir(root, site), fmt.Sprintf("aligned_%s_%s_%s.csv", sourceA, sourceB, site.Name))
}

// RemoveComparisonFiles deletes the comparison sheet and every aligned pair
// file of a site. Missing files are ignored.
func RemoveComparisonFiles(root string, site models.Site) error {
	paths, err := filepath.Glob(filepath.Join(SiteDir(root, site), "aligned_*_"+site.Name+".csv"))
	if err != nil {
		return err
	}
	paths = append(paths, ComparisonFile(root, site))
	for _, path := range paths {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove %s: %w", path, err)
		}
	}
	return nil
}

// WriteFile writes through a temporary file and renames it into place.
func WriteFile(path string, write func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".export-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	return os.Rename(tmp.Name(), path)
}

// WriteDaily writes readings in the canonical schema. Null values are empty
// cells. Readings must already be sorted and unique by date.
func WriteDaily(w io.Writer, readings []models.DailyReading) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(DailyHeader); err != nil {
		return err
	}
	for _, r := range readings {
		if err := cw.Write([]string{
			r.Date.Format(dateLayout),
			exact(r.WindspeedMean),
			exact(r.WindspeedGust),
			exact(r.WindDirection),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadSeriesFile loads a canonical daily CSV as a series named after the
// file, without its extension.
func ReadSeriesFile(path string) (models.Series, error) {
	f, err := os.Open(path)
	if err != nil {
		return models.Series{}, fmt.Errorf("open series: %w", err)
	}
	defer f.Close()

	readings, err := ReadDaily(f)
	if err != nil {
		return models.Series{}, fmt.Errorf("read %s: %w", path, err)
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return models.Series{Source: name, Readings: readings}, nil
}

// ReadDaily parses a canonical daily CSV as written by WriteDaily.
func ReadDaily(r io.Reader) ([]models.DailyReading, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(DailyHeader)

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i, name := range DailyHeader {
		if header[i] != name {
			return nil, fmt.Errorf("unexpected column %q at %d, want %q", header[i], i, name)
		}
	}

	var out []models.DailyReading
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		date, err := time.Parse(dateLayout, rec[0])
		if err != nil {
			return nil, fmt.Errorf("parse date %q: %w", rec[0], err)
		}
		row := models.DailyReading{Date: date}
		for i, dst := range []*sql.NullFloat64{&row.WindspeedMean, &row.WindspeedGust, &row.WindDirection} {
			if *dst, err = parseNull(rec[i+1]); err != nil {
				return nil, fmt.Errorf("parse %s on %s: %w", DailyHeader[i+1], rec[0], err)
			}
		}
		out = append(out, row)
	}
	return out, nil
}

// WriteAligned writes the inner join of two sources with source-qualified
// columns.
func WriteAligned(w io.Writer, a merge.Aligned) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(a.Columns()); err != nil {
		return err
	}
	for _, row := range a.Rows {
		rec := []string{row.Date.Format(dateLayout)}
		for _, r := range []models.DailyReading{row.A, row.B} {
			for _, v := range models.Variables {
				rec = append(rec, exact(v.Value(r)))
			}
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

var comparisonHeader = []string{
	"source_a", "source_b", "overlap", "variable", "count",
	"mean_a", "median_a", "std_a", "min_a", "max_a",
	"mean_b", "median_b", "std_b", "min_b", "max_b",
	"mean_abs_diff",
}

// WriteComparisons writes one row per source pair and variable. Statistics
// are rounded to three decimals.
func WriteComparisons(w io.Writer, results []models.ComparisonResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(comparisonHeader); err != nil {
		return err
	}
	for _, r := range results {
		for _, v := range r.Variables {
			rec := []string{r.SourceA, r.SourceB, strconv.Itoa(r.Overlap), string(v.Variable), strconv.Itoa(v.Count)}
			rec = append(rec, summary(v.A)...)
			rec = append(rec, summary(v.B)...)
			rec = append(rec, round(v.MeanAbsoluteDiff))
			if err := cw.Write(rec); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

var descriptiveHeader = []string{
	"source", "variable", "count", "mean", "median", "std", "min", "max",
	"p90", "p95", "p99", "weibull_shape", "weibull_scale", "gumbel_location", "gumbel_scale",
}

func WriteDescriptives(w io.Writer, descriptives []models.Descriptive) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(descriptiveHeader); err != nil {
		return err
	}
	for _, d := range descriptives {
		rec := []string{
			d.Source, string(d.Variable), strconv.Itoa(d.Count),
			round(d.Mean), round(d.Median), roundNull(d.Std), round(d.Min), round(d.Max),
			round(d.P90), round(d.P95), round(d.P99),
		}
		if d.Weibull != nil {
			rec = append(rec, round(d.Weibull.Shape), round(d.Weibull.Scale))
		} else {
			rec = append(rec, "", "")
		}
		if d.Gumbel != nil {
			rec = append(rec, round(d.Gumbel.Location), round(d.Gumbel.Scale))
		} else {
			rec = append(rec, "", "")
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// StationRow is one resolved station of a site.
type StationRow struct {
	Source     string
	Station    models.Station
	DistanceKM float64
}

func WriteStations(w io.Writer, rows []StationRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"source", "provider", "station_id", "name", "country", "latitude", "longitude", "distance_km"}); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write([]string{
			r.Source,
			string(r.Station.Provider),
			r.Station.ID,
			r.Station.Name,
			r.Station.Country,
			strconv.FormatFloat(r.Station.Latitude, 'f', -1, 64),
			strconv.FormatFloat(r.Station.Longitude, 'f', -1, 64),
			strconv.FormatFloat(r.DistanceKM, 'f', 2, 64),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func summary(s models.SummaryStats) []string {
	return []string{round(s.Mean), round(s.Median), roundNull(s.Std), round(s.Min), round(s.Max)}
}

func exact(v sql.NullFloat64) string {
	if !v.Valid {
		return ""
	}
	return strconv.FormatFloat(v.Float64, 'f', -1, 64)
}

func round(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

func roundNull(v sql.NullFloat64) string {
	if !v.Valid {
		return ""
	}
	return round(v.Float64)
}

func parseNull(s string) (sql.NullFloat64, error) {
	if s == "" {
		return sql.NullFloat64{}, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return sql.NullFloat64{}, err
	}
	return sql.NullFloat64{Float64: v, Valid: true}, nil
}
