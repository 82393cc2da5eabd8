package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/AdrienSalicis/WindDatas/internal/catalog"
	"github.com/AdrienSalicis/WindDatas/internal/compare"
	"github.com/AdrienSalicis/WindDatas/internal/export"
	"github.com/AdrienSalicis/WindDatas/internal/ingest"
	"github.com/AdrienSalicis/WindDatas/internal/metrics"
	"github.com/AdrienSalicis/WindDatas/internal/models"
	"github.com/AdrienSalicis/WindDatas/internal/store"
)

type Outcome string

const (
	OutcomeCompared Outcome = "compared"
	OutcomeSkipped  Outcome = "skipped"
	OutcomeFailed   Outcome = "failed"
)

type Options struct {
	Start time.Time
	End   time.Time
	// DataDir receives the per-site CSV folders; empty disables CSV output.
	DataDir             string
	StationsPerProvider int
	MaxDistanceKM       float64
	// Concurrency bounds simultaneous provider fetches for one site.
	Concurrency int
}

// SiteReport summarizes one processed site.
type SiteReport struct {
	Site        models.Site
	Sources     []string
	Comparisons int
	Outcome     Outcome
}

// Runner processes sites one after another. Providers of a site are fetched
// concurrently; a provider failure only removes that source.
type Runner struct {
	catalog   *catalog.Catalog
	collector *ingest.Collector
	store     *store.Store
	opts      Options
}

func NewRunner(cat *catalog.Catalog, collector *ingest.Collector, st *store.Store, opts Options) *Runner {
	if opts.StationsPerProvider <= 0 {
		opts.StationsPerProvider = 2
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	return &Runner{catalog: cat, collector: collector, store: st, opts: opts}
}

// slot is one series to collect for a site, e.g. the second-nearest ISD
// station ("noaa_isd2") or the site's ERA5 grid cell ("era5").
type slot struct {
	source     string
	provider   models.Provider
	station    *models.Station
	distanceKM float64
}

// Run processes every site and records the batch. Only a cancelled context
// aborts the batch; site failures are counted and logged.
func (r *Runner) Run(ctx context.Context, sites []models.Site) (*store.BatchRun, []SiteReport, error) {
	batch, err := r.store.StartBatch(uuid.NewString(), r.opts.Start, r.opts.End, len(sites))
	if err != nil {
		return nil, nil, fmt.Errorf("start batch: %w", err)
	}
	log.Printf("pipeline: batch %s: %d sites, %s..%s", batch.ID, len(sites),
		r.opts.Start.Format("2006-01-02"), r.opts.End.Format("2006-01-02"))

	var reports []SiteReport
	for _, site := range sites {
		if err := ctx.Err(); err != nil {
			batch.Status = store.BatchFailed
			r.completeBatch(batch)
			return batch, reports, err
		}

		report := r.ProcessSite(ctx, batch.ID, site)
		reports = append(reports, report)
		metrics.SitesProcessed.WithLabelValues(string(report.Outcome)).Inc()

		switch report.Outcome {
		case OutcomeCompared:
			batch.SitesCompared++
		case OutcomeSkipped:
			batch.SitesSkipped++
		default:
			batch.SitesFailed++
		}
	}

	r.completeBatch(batch)
	log.Printf("pipeline: batch %s done: %d compared, %d skipped, %d failed",
		batch.ID, batch.SitesCompared, batch.SitesSkipped, batch.SitesFailed)
	return batch, reports, nil
}

func (r *Runner) completeBatch(b *store.BatchRun) {
	if err := r.store.CompleteBatch(b); err != nil {
		log.Printf("pipeline: complete batch %s: %v", b.ID, err)
	}
}

// ProcessSite resolves stations, collects every source, then compares them.
func (r *Runner) ProcessSite(ctx context.Context, batchID string, site models.Site) SiteReport {
	report := SiteReport{Site: site, Outcome: OutcomeFailed}
	key := site.Key()

	if err := r.store.UpsertSite(site); err != nil {
		log.Printf("pipeline: %s: save site: %v", key, err)
		return report
	}

	slots := r.plan(site)
	if err := r.writeStations(site, slots); err != nil {
		log.Printf("pipeline: %s: write stations sheet: %v", key, err)
	}

	results := make([]*models.Series, len(slots))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Concurrency)
	for i, s := range slots {
		g.Go(func() error {
			req := ingest.Request{Site: site, Station: s.station, Start: r.opts.Start, End: r.opts.End}
			series, err := r.collector.Collect(gctx, batchID, s.source, s.provider, req)
			if err != nil {
				if errors.Is(err, ingest.ErrNoData) {
					log.Printf("pipeline: %s: %s: no data", key, s.source)
				} else {
					log.Printf("pipeline: %s: %s: %v", key, s.source, err)
				}
				return nil
			}
			results[i] = &series
			return nil
		})
	}
	g.Wait()

	if ctx.Err() != nil {
		return report
	}

	var collected []models.Series
	for _, s := range results {
		if s == nil || len(s.Readings) == 0 {
			continue
		}
		collected = append(collected, *s)
		report.Sources = append(report.Sources, s.Source)
		if r.opts.DataDir != "" {
			path := export.SeriesFile(r.opts.DataDir, site, s.Source)
			readings := s.Readings
			if err := export.WriteFile(path, func(w io.Writer) error { return export.WriteDaily(w, readings) }); err != nil {
				log.Printf("pipeline: %s: write %s: %v", key, path, err)
			}
		}
	}

	outcome, comparisons := r.analyze(batchID, site, collected)
	report.Outcome = outcome
	report.Comparisons = comparisons
	return report
}

// CompareStored recomputes comparisons for a site from the series already in
// the store, without fetching.
func (r *Runner) CompareStored(site models.Site) (SiteReport, error) {
	report := SiteReport{Site: site, Outcome: OutcomeFailed}
	sources, err := r.store.ListSources(site.Key())
	if err != nil {
		return report, fmt.Errorf("list sources: %w", err)
	}

	var series []models.Series
	for _, source := range sources {
		s, err := r.store.GetDailyReadings(site.Key(), source, r.opts.Start, r.opts.End)
		if err != nil {
			return report, fmt.Errorf("load %s: %w", source, err)
		}
		if len(s.Readings) == 0 {
			continue
		}
		series = append(series, s)
		report.Sources = append(report.Sources, source)
	}

	report.Outcome, report.Comparisons = r.analyze("", site, series)
	return report, nil
}

func (r *Runner) analyze(batchID string, site models.Site, series []models.Series) (Outcome, int) {
	key := site.Key()

	var descriptives []models.Descriptive
	for _, s := range series {
		descriptives = append(descriptives, compare.DescribeSeries(s)...)
	}
	if err := r.store.SaveDescriptives(key, descriptives); err != nil {
		log.Printf("pipeline: %s: save descriptives: %v", key, err)
	}
	if r.opts.DataDir != "" && len(descriptives) > 0 {
		path := export.DescriptivesFile(r.opts.DataDir, site)
		if err := export.WriteFile(path, func(w io.Writer) error { return export.WriteDescriptives(w, descriptives) }); err != nil {
			log.Printf("pipeline: %s: write %s: %v", key, path, err)
		}
	}

	pairs, err := compare.Pairs(series)
	if errors.Is(err, compare.ErrInsufficientSources) {
		log.Printf("pipeline: %s: skipped, %d usable sources", key, len(series))
		r.clearComparisons(batchID, site)
		return OutcomeSkipped, 0
	}
	if err != nil {
		log.Printf("pipeline: %s: compare: %v", key, err)
		return OutcomeFailed, 0
	}
	if len(pairs) == 0 {
		log.Printf("pipeline: %s: skipped, no overlapping source pair", key)
		r.clearComparisons(batchID, site)
		return OutcomeSkipped, 0
	}

	results := make([]models.ComparisonResult, 0, len(pairs))
	for _, p := range pairs {
		results = append(results, p.Result)
	}
	metrics.ComparisonsComputed.Add(float64(len(results)))

	if err := r.store.SaveComparisons(batchID, key, results); err != nil {
		log.Printf("pipeline: %s: save comparisons: %v", key, err)
		return OutcomeFailed, len(results)
	}
	if r.opts.DataDir != "" {
		if err := export.RemoveComparisonFiles(r.opts.DataDir, site); err != nil {
			log.Printf("pipeline: %s: %v", key, err)
		}
		path := export.ComparisonFile(r.opts.DataDir, site)
		if err := export.WriteFile(path, func(w io.Writer) error { return export.WriteComparisons(w, results) }); err != nil {
			log.Printf("pipeline: %s: write %s: %v", key, path, err)
		}
		for _, p := range pairs {
			aligned := p.Aligned
			path := export.AlignedFile(r.opts.DataDir, site, aligned.SourceA, aligned.SourceB)
			if err := export.WriteFile(path, func(w io.Writer) error { return export.WriteAligned(w, aligned) }); err != nil {
				log.Printf("pipeline: %s: write %s: %v", key, path, err)
			}
		}
	}

	log.Printf("pipeline: %s: %d sources, %d comparisons", key, len(series), len(results))
	return OutcomeCompared, len(results)
}

// clearComparisons drops the results of an earlier run when a site no longer
// has anything to compare.
func (r *Runner) clearComparisons(batchID string, site models.Site) {
	if err := r.store.SaveComparisons(batchID, site.Key(), nil); err != nil {
		log.Printf("pipeline: %s: clear comparisons: %v", site.Key(), err)
	}
	if r.opts.DataDir != "" {
		if err := export.RemoveComparisonFiles(r.opts.DataDir, site); err != nil {
			log.Printf("pipeline: %s: %v", site.Key(), err)
		}
	}
}

// plan resolves the stations of every station-based provider and lists the
// series to collect.
func (r *Runner) plan(site models.Site) []slot {
	var slots []slot
	for _, p := range Sources(site.Country) {
		if !p.StationBased() {
			slots = append(slots, slot{source: string(p), provider: p})
			continue
		}

		stations := r.catalog.Stations(p)
		if len(stations) == 0 {
			log.Printf("pipeline: %s: no %s station table loaded", site.Key(), p)
			continue
		}
		matches, err := catalog.Resolve(site.Latitude, site.Longitude, stations, r.opts.StationsPerProvider,
			catalog.ResolveOptions{MaxDistanceKM: r.opts.MaxDistanceKM, CoverStart: r.opts.Start, CoverEnd: r.opts.End})
		if err != nil {
			log.Printf("pipeline: %s: resolve %s: %v", site.Key(), p, err)
			continue
		}
		for i, m := range matches {
			st := m.Station
			s := slot{source: fmt.Sprintf("%s%d", p, i+1), provider: p, station: &st, distanceKM: m.DistanceKM}
			if err := r.store.SaveSiteStation(site.Key(), s.source, st, m.DistanceKM); err != nil {
				log.Printf("pipeline: %s: save station %s: %v", site.Key(), s.source, err)
			}
			slots = append(slots, s)
		}
	}
	return slots
}

func (r *Runner) writeStations(site models.Site, slots []slot) error {
	if r.opts.DataDir == "" {
		return nil
	}
	var rows []export.StationRow
	for _, s := range slots {
		if s.station == nil {
			continue
		}
		rows = append(rows, export.StationRow{Source: s.source, Station: *s.station, DistanceKM: s.distanceKM})
	}
	if len(rows) == 0 {
		return nil
	}
	return export.WriteFile(export.StationsFile(r.opts.DataDir, site), func(w io.Writer) error {
		return export.WriteStations(w, rows)
	})
}
