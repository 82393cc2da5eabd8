package api

import (
	"database/sql"
	"time"

	"github.com/AdrienSalicis/WindDatas/internal/models"
	"github.com/AdrienSalicis/WindDatas/internal/store"
)

// JSON views of the store types. Nullable values encode as null.

type SiteView struct {
	Key       string  `json:"key"`
	Reference string  `json:"reference"`
	Name      string  `json:"name"`
	Country   string  `json:"country"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type StationView struct {
	Source     string   `json:"source"`
	Provider   string   `json:"provider"`
	StationID  string   `json:"station_id"`
	Name       string   `json:"name"`
	Latitude   float64  `json:"latitude"`
	Longitude  float64  `json:"longitude"`
	Elevation  *float64 `json:"elevation"`
	Begin      string   `json:"begin,omitempty"`
	End        string   `json:"end,omitempty"`
	DistanceKM float64  `json:"distance_km"`
}

type DailyView struct {
	Date          string   `json:"date"`
	WindspeedMean *float64 `json:"windspeed_mean"`
	WindspeedGust *float64 `json:"windspeed_gust"`
	WindDirection *float64 `json:"wind_direction"`
}

type SeriesView struct {
	Source   string      `json:"source"`
	Provider string      `json:"provider"`
	Readings []DailyView `json:"readings"`
}

type StatsView struct {
	Mean   float64  `json:"mean"`
	Median float64  `json:"median"`
	Std    *float64 `json:"std"`
	Min    float64  `json:"min"`
	Max    float64  `json:"max"`
}

type VariableComparisonView struct {
	Variable         string    `json:"variable"`
	Count            int       `json:"count"`
	A                StatsView `json:"a"`
	B                StatsView `json:"b"`
	MeanAbsoluteDiff float64   `json:"mean_abs_diff"`
}

type ComparisonView struct {
	SourceA   string                   `json:"source_a"`
	SourceB   string                   `json:"source_b"`
	Overlap   int                      `json:"overlap"`
	Variables []VariableComparisonView `json:"variables"`
}

type FitView struct {
	Shape    float64 `json:"shape,omitempty"`
	Scale    float64 `json:"scale"`
	Location float64 `json:"location,omitempty"`
}

type DescriptiveView struct {
	Source   string   `json:"source"`
	Variable string   `json:"variable"`
	Count    int      `json:"count"`
	Mean     float64  `json:"mean"`
	Median   float64  `json:"median"`
	Std      *float64 `json:"std"`
	Min      float64  `json:"min"`
	Max      float64  `json:"max"`
	P90      float64  `json:"p90"`
	P95      float64  `json:"p95"`
	P99      float64  `json:"p99"`
	Weibull  *FitView `json:"weibull,omitempty"`
	Gumbel   *FitView `json:"gumbel,omitempty"`
}

type BatchView struct {
	ID            string     `json:"id"`
	StartedAt     time.Time  `json:"started_at"`
	FinishedAt    *time.Time `json:"finished_at"`
	StartDate     string     `json:"start_date"`
	EndDate       string     `json:"end_date"`
	SitesTotal    int        `json:"sites_total"`
	SitesCompared int        `json:"sites_compared"`
	SitesSkipped  int        `json:"sites_skipped"`
	SitesFailed   int        `json:"sites_failed"`
	Status        string     `json:"status"`
}

type IngestErrorView struct {
	ID         int64     `json:"id"`
	BatchID    string    `json:"batch_id,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	Source     string    `json:"source"`
	Endpoint   string    `json:"endpoint"`
	StationID  string    `json:"station_id,omitempty"`
	Site       string    `json:"site,omitempty"`
	HTTPStatus *int64    `json:"http_status"`
	Error      string    `json:"error"`
}

type HealthStatus struct {
	Status        string     `json:"status"`
	SchemaVersion int        `json:"schema_version"`
	LastBatch     *BatchView `json:"last_batch,omitempty"`
	Error         string     `json:"error,omitempty"`
}

func nullable(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func siteView(site models.Site) SiteView {
	return SiteView{
		Key:       site.Key(),
		Reference: site.Reference,
		Name:      site.Name,
		Country:   site.Country,
		Latitude:  site.Latitude,
		Longitude: site.Longitude,
	}
}

func stationView(ss store.SiteStation) StationView {
	v := StationView{
		Source:     ss.Source,
		Provider:   string(ss.Station.Provider),
		StationID:  ss.Station.ID,
		Name:       ss.Station.Name,
		Latitude:   ss.Station.Latitude,
		Longitude:  ss.Station.Longitude,
		Elevation:  nullable(ss.Station.Elevation),
		DistanceKM: ss.DistanceKM,
	}
	if ss.Station.Begin.Valid {
		v.Begin = ss.Station.Begin.Time.Format(dateLayout)
	}
	if ss.Station.End.Valid {
		v.End = ss.Station.End.Time.Format(dateLayout)
	}
	return v
}

func seriesView(s models.Series) SeriesView {
	v := SeriesView{
		Source:   s.Source,
		Provider: string(s.Provider),
		Readings: make([]DailyView, 0, len(s.Readings)),
	}
	for _, r := range s.Readings {
		v.Readings = append(v.Readings, DailyView{
			Date:          r.Date.Format(dateLayout),
			WindspeedMean: nullable(r.WindspeedMean),
			WindspeedGust: nullable(r.WindspeedGust),
			WindDirection: nullable(r.WindDirection),
		})
	}
	return v
}

func statsView(s models.SummaryStats) StatsView {
	return StatsView{Mean: s.Mean, Median: s.Median, Std: nullable(s.Std), Min: s.Min, Max: s.Max}
}

func comparisonView(r models.ComparisonResult) ComparisonView {
	v := ComparisonView{
		SourceA:   r.SourceA,
		SourceB:   r.SourceB,
		Overlap:   r.Overlap,
		Variables: make([]VariableComparisonView, 0, len(r.Variables)),
	}
	for _, vc := range r.Variables {
		v.Variables = append(v.Variables, VariableComparisonView{
			Variable:         string(vc.Variable),
			Count:            vc.Count,
			A:                statsView(vc.A),
			B:                statsView(vc.B),
			MeanAbsoluteDiff: vc.MeanAbsoluteDiff,
		})
	}
	return v
}

func fitView(f *models.DistributionFit) *FitView {
	if f == nil {
		return nil
	}
	return &FitView{Shape: f.Shape, Scale: f.Scale, Location: f.Location}
}

func descriptiveView(d models.Descriptive) DescriptiveView {
	return DescriptiveView{
		Source:   d.Source,
		Variable: string(d.Variable),
		Count:    d.Count,
		Mean:     d.Mean,
		Median:   d.Median,
		Std:      nullable(d.Std),
		Min:      d.Min,
		Max:      d.Max,
		P90:      d.P90,
		P95:      d.P95,
		P99:      d.P99,
		Weibull:  fitView(d.Weibull),
		Gumbel:   fitView(d.Gumbel),
	}
}

func batchView(b store.BatchRun) BatchView {
	v := BatchView{
		ID:            b.ID,
		StartedAt:     b.StartedAt,
		StartDate:     b.StartDate,
		EndDate:       b.EndDate,
		SitesTotal:    b.SitesTotal,
		SitesCompared: b.SitesCompared,
		SitesSkipped:  b.SitesSkipped,
		SitesFailed:   b.SitesFailed,
		Status:        b.Status,
	}
	if b.FinishedAt.Valid {
		t := b.FinishedAt.Time
		v.FinishedAt = &t
	}
	return v
}

func ingestErrorView(run store.IngestRun) IngestErrorView {
	v := IngestErrorView{
		ID:        run.ID,
		BatchID:   run.BatchID.String,
		StartedAt: run.StartedAt,
		Source:    run.Source,
		Endpoint:  run.Endpoint,
		StationID: run.StationID.String,
		Site:      run.LocationID.String,
		Error:     run.ErrorMessage.String,
	}
	if run.HTTPStatus.Valid {
		code := run.HTTPStatus.Int64
		v.HTTPStatus = &code
	}
	return v
}
