package ingest

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/AdrienSalicis/WindDatas/internal/aggregate"
	"github.com/AdrienSalicis/WindDatas/internal/cache"
	"github.com/AdrienSalicis/WindDatas/internal/metrics"
	"github.com/AdrienSalicis/WindDatas/internal/models"
	"github.com/AdrienSalicis/WindDatas/internal/normalize"
	"github.com/AdrienSalicis/WindDatas/internal/store"
)

// Collector turns one provider request into a stored daily series: fetch,
// keep the raw payloads, normalize, aggregate, clip to the window, persist.
// Every collection is audited as an ingest run.
type Collector struct {
	store    *store.Store
	fetchers map[models.Provider]Fetcher
	cache    *cache.Cache
}

func NewCollector(st *store.Store, fetchers map[models.Provider]Fetcher, c *cache.Cache) *Collector {
	return &Collector{store: st, fetchers: fetchers, cache: c}
}

// Collect fetches and stores the series named source (e.g. "noaa_isd2") for
// the request's site. ErrNoData is returned when the provider had nothing.
func (c *Collector) Collect(ctx context.Context, batchID, source string, provider models.Provider, req Request) (models.Series, error) {
	series := models.Series{Source: source, Provider: provider, Station: req.Station}

	f, ok := c.fetchers[provider]
	if !ok {
		return series, fmt.Errorf("%w: %s", normalize.ErrUnknownProvider, provider)
	}

	siteKey := req.Site.Key()
	subject := req.Subject()
	endpoint := fmt.Sprintf("%s/%s..%s", provider, req.Start.Format(dateLayout), req.End.Format(dateLayout))

	run, err := c.store.StartIngestRun(batchID, string(provider), endpoint, &subject, &siteKey)
	if err != nil {
		log.Printf("collector: start ingest run %s/%s: %v", siteKey, source, err)
	}

	payloads, err := Fetch(ctx, f, req, c.cache)
	if err != nil {
		c.fail(run, err)
		return series, err
	}

	bodies := make([][]byte, 0, len(payloads))
	var size int64
	for _, p := range payloads {
		bodies = append(bodies, p.Body)
		size += int64(len(p.Body))
		if run != nil {
			run.HTTPStatus = sql.NullInt64{Int64: int64(p.Status), Valid: p.Status > 0}
		}
		if p.Cached {
			continue
		}
		var runID *int64
		if run != nil {
			runID = &run.ID
		}
		if _, err := c.store.StoreRawPayload(runID, string(provider), p.Endpoint, &subject, &siteKey, p.Body); err != nil {
			log.Printf("collector: store raw payload %s/%s: %v", siteKey, source, err)
		}
	}
	if run != nil {
		run.ResponseSizeBytes = sql.NullInt64{Int64: size, Valid: true}
	}

	table, err := normalize.Collect(provider, bodies...)
	if err != nil {
		c.fail(run, err)
		return series, fmt.Errorf("normalize %s: %w", source, err)
	}
	metrics.RowsDropped.WithLabelValues(string(provider)).Add(float64(table.Dropped))

	series.Readings = Clip(aggregate.Daily(table), req.Start, req.End)
	metrics.ReadingsNormalized.WithLabelValues(string(provider)).Add(float64(len(series.Readings)))

	stored, err := c.store.UpsertDailyReadings(siteKey, series)
	if err != nil {
		c.fail(run, err)
		return series, fmt.Errorf("store %s: %w", source, err)
	}

	if run != nil {
		run.Success = true
		run.RecordsParsed = sql.NullInt64{Int64: int64(len(table.Readings)), Valid: true}
		run.RecordsStored = sql.NullInt64{Int64: int64(stored), Valid: true}
		if n := table.Dropped + table.Rejected; n > 0 {
			run.ParseErrors = sql.NullInt64{Int64: int64(n), Valid: true}
		}
		if err := c.store.CompleteIngestRun(run); err != nil {
			log.Printf("collector: complete ingest run %s/%s: %v", siteKey, source, err)
		}
	}

	log.Printf("collector: %s %s: %d days from %d payloads (%d rows dropped, %d payloads rejected)",
		siteKey, source, len(series.Readings), len(payloads), table.Dropped, table.Rejected)
	return series, nil
}

func (c *Collector) fail(run *store.IngestRun, err error) {
	if run == nil {
		return
	}
	run.Success = false
	run.ErrorMessage = sql.NullString{String: err.Error(), Valid: true}
	if cerr := c.store.CompleteIngestRun(run); cerr != nil {
		log.Printf("collector: complete ingest run: %v", cerr)
	}
}

// Clip keeps the readings dated within [start, end].
func Clip(readings []models.DailyReading, start, end time.Time) []models.DailyReading {
	lo := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	hi := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)

	out := readings[:0:0]
	for _, r := range readings {
		if r.Date.Before(lo) || r.Date.After(hi) {
			continue
		}
		out = append(out, r)
	}
	return out
}
