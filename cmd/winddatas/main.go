package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	_ "modernc.org/sqlite"

	"github.com/AdrienSalicis/WindDatas/internal/api"
	"github.com/AdrienSalicis/WindDatas/internal/cache"
	"github.com/AdrienSalicis/WindDatas/internal/catalog"
	"github.com/AdrienSalicis/WindDatas/internal/compare"
	"github.com/AdrienSalicis/WindDatas/internal/config"
	"github.com/AdrienSalicis/WindDatas/internal/export"
	"github.com/AdrienSalicis/WindDatas/internal/ingest"
	"github.com/AdrienSalicis/WindDatas/internal/models"
	"github.com/AdrienSalicis/WindDatas/internal/normalize"
	"github.com/AdrienSalicis/WindDatas/internal/pipeline"
	"github.com/AdrienSalicis/WindDatas/internal/store"
)

type CLI struct {
	Globals config.Globals `embed:""`

	Run       RunCmd       `cmd:"" help:"Resolve stations, fetch every source and compare them for each site."`
	Stations  StationsCmd  `cmd:"" help:"List the nearest stations of a provider."`
	Normalize NormalizeCmd `cmd:"" help:"Normalize raw provider payloads to daily CSV on stdout."`
	Compare   CompareCmd   `cmd:"" help:"Recompute comparisons from stored series without fetching."`
	Diff      DiffCmd      `cmd:"" help:"Compare daily CSV files pairwise and print the comparison sheet."`
	Batches   BatchesCmd   `cmd:"" help:"Show recent batch runs."`
	Serve     ServeCmd     `cmd:"" help:"Serve stored results over HTTP."`
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("winddatas"),
		kong.Description("Multi-source wind data collection and comparison."),
		kong.UsageOnError(),
	)
	kctx.FatalIfErrorf(kctx.Run(&cli.Globals))
}

func openStore(path string) (*store.Store, func(), error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}

	db.Exec("PRAGMA journal_mode=WAL")
	db.Exec("PRAGMA busy_timeout=5000")

	st := store.New(db)
	if err := st.Migrate(); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	return st, func() { db.Close() }, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

type RunCmd struct {
	Sites string `arg:"" type:"existingfile" help:"Site list (reference, name, country, latitude, longitude)."`

	Window    config.Window    `embed:""`
	Providers config.Providers `embed:""`
	Catalogs  config.Catalogs  `embed:""`

	DataDir             string  `name:"data-dir" env:"WINDDATAS_DATA_DIR" default:"data/sites" type:"path" help:"Per-site CSV output root; empty disables CSV output."`
	StationsPerProvider int     `name:"stations-per-provider" default:"2" help:"Nearest stations fetched per station provider."`
	MaxDistanceKM       float64 `name:"max-distance-km" default:"0" help:"Ignore stations further than this; 0 is unlimited."`
	Concurrency         int     `default:"4" help:"Concurrent provider fetches per site."`
	RetentionDays       int     `name:"payload-retention-days" default:"0" help:"Delete stored raw payloads older than this after the run; 0 keeps them."`
}

func (c *RunCmd) Run(g *config.Globals) error {
	sites, err := config.LoadSites(c.Sites)
	if err != nil {
		return err
	}
	start, end, err := c.Window.Parse()
	if err != nil {
		return err
	}
	cat, err := c.Catalogs.Load()
	if err != nil {
		return err
	}
	for _, p := range cat.Providers() {
		log.Printf("catalog: %d %s stations", len(cat.Stations(p)), p)
	}

	st, closeDB, err := openStore(g.DB)
	if err != nil {
		return err
	}
	defer closeDB()

	var payloadCache *cache.Cache
	if c.Providers.CacheDir != "" {
		payloadCache = cache.New(c.Providers.CacheDir, c.Providers.CacheMaxAge)
	}
	collector := ingest.NewCollector(st, ingest.NewFetchers(c.Providers.Ingest()), payloadCache)
	runner := pipeline.NewRunner(cat, collector, st, pipeline.Options{
		Start:               start,
		End:                 end,
		DataDir:             c.DataDir,
		StationsPerProvider: c.StationsPerProvider,
		MaxDistanceKM:       c.MaxDistanceKM,
		Concurrency:         c.Concurrency,
	})

	ctx, cancel := signalContext()
	defer cancel()

	batch, reports, err := runner.Run(ctx, sites)
	for _, r := range reports {
		log.Printf("%s: %s, %d sources, %d comparisons", r.Site.Key(), r.Outcome, len(r.Sources), r.Comparisons)
	}
	if err != nil {
		return err
	}
	log.Printf("batch %s %s: %d compared, %d skipped, %d failed of %d sites",
		batch.ID, batch.Status, batch.SitesCompared, batch.SitesSkipped, batch.SitesFailed, batch.SitesTotal)

	if c.RetentionDays > 0 {
		n, err := st.CleanupOldRawPayloads(c.RetentionDays)
		if err != nil {
			return fmt.Errorf("cleanup raw payloads: %w", err)
		}
		log.Printf("deleted %d raw payloads older than %d days", n, c.RetentionDays)
	}
	return nil
}

type StationsCmd struct {
	Provider      string  `arg:"" enum:"noaa_isd,ghcnd,meteostat,meteo_france" help:"Station provider."`
	Latitude      float64 `name:"lat" required:"" help:"Site latitude."`
	Longitude     float64 `name:"lon" required:"" help:"Site longitude."`
	Count         int     `default:"5" help:"Number of stations to list."`
	MaxDistanceKM float64 `name:"max-distance-km" default:"0" help:"Ignore stations further than this; 0 is unlimited."`

	Catalogs config.Catalogs `embed:""`
}

func (c *StationsCmd) Run(g *config.Globals) error {
	cat, err := c.Catalogs.Load()
	if err != nil {
		return err
	}
	provider := models.Provider(c.Provider)
	stations := cat.Stations(provider)
	if len(stations) == 0 {
		return fmt.Errorf("no %s station table configured", provider)
	}

	matches, err := catalog.Resolve(c.Latitude, c.Longitude, stations, c.Count,
		catalog.ResolveOptions{MaxDistanceKM: c.MaxDistanceKM})
	if err != nil {
		return err
	}

	rows := make([]export.StationRow, 0, len(matches))
	for i, m := range matches {
		rows = append(rows, export.StationRow{
			Source:     fmt.Sprintf("%s%d", provider, i+1),
			Station:    m.Station,
			DistanceKM: m.DistanceKM,
		})
	}
	return export.WriteStations(os.Stdout, rows)
}

type NormalizeCmd struct {
	Provider string   `arg:"" help:"Provider whose binding parses the payloads."`
	Files    []string `arg:"" optional:"" type:"existingfile" help:"Payload files; combined in order."`

	FromStore bool   `name:"from-store" help:"Replay payloads kept in the database instead of reading files."`
	Site      string `help:"Site key of the stored payloads."`
	Station   string  `help:"Station id of the stored payloads; empty matches every station."`
	PayloadID []int64 `name:"payload-id" help:"Replay stored payloads by id, in the given order."`
}

func (c *NormalizeCmd) Run(g *config.Globals) error {
	provider := models.Provider(c.Provider)
	if !provider.Known() {
		return fmt.Errorf("%w: %s", normalize.ErrUnknownProvider, c.Provider)
	}

	var payloads [][]byte
	if len(c.PayloadID) > 0 {
		st, closeDB, err := openStore(g.DB)
		if err != nil {
			return err
		}
		defer closeDB()
		for _, id := range c.PayloadID {
			data, err := st.GetRawPayload(id)
			if err != nil {
				return fmt.Errorf("load payload %d: %w", id, err)
			}
			payloads = append(payloads, data)
		}
	} else if c.FromStore {
		if c.Site == "" {
			return fmt.Errorf("--from-store requires --site")
		}
		st, closeDB, err := openStore(g.DB)
		if err != nil {
			return err
		}
		defer closeDB()
		payloads, err = st.GetSitePayloads(string(provider), c.Site, c.Station)
		if err != nil {
			return fmt.Errorf("load stored payloads: %w", err)
		}
	} else {
		for _, path := range c.Files {
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read payload: %w", err)
			}
			payloads = append(payloads, data)
		}
	}
	if len(payloads) == 0 {
		return fmt.Errorf("no payloads to normalize")
	}

	readings, err := normalize.Normalize(provider, payloads...)
	if err != nil {
		return err
	}
	return export.WriteDaily(os.Stdout, readings)
}

type CompareCmd struct {
	Sites   []string `arg:"" optional:"" help:"Site keys; every stored site when omitted."`
	Start   string   `help:"First day, YYYY-MM-DD; open when empty."`
	End     string   `help:"Last day, YYYY-MM-DD; open when empty."`
	DataDir string   `name:"data-dir" env:"WINDDATAS_DATA_DIR" default:"data/sites" type:"path" help:"Per-site CSV output root; empty disables CSV output."`
}

func (c *CompareCmd) Run(g *config.Globals) error {
	start, err := optionalDate(c.Start)
	if err != nil {
		return err
	}
	end, err := optionalDate(c.End)
	if err != nil {
		return err
	}

	st, closeDB, err := openStore(g.DB)
	if err != nil {
		return err
	}
	defer closeDB()

	var sites []models.Site
	if len(c.Sites) == 0 {
		if sites, err = st.ListSites(); err != nil {
			return fmt.Errorf("list sites: %w", err)
		}
	}
	for _, key := range c.Sites {
		site, err := st.GetSite(key)
		if err != nil {
			return fmt.Errorf("get site %s: %w", key, err)
		}
		if site == nil {
			return fmt.Errorf("unknown site %s", key)
		}
		sites = append(sites, *site)
	}

	runner := pipeline.NewRunner(catalog.New(), nil, st, pipeline.Options{Start: start, End: end, DataDir: c.DataDir})
	for _, site := range sites {
		report, err := runner.CompareStored(site)
		if err != nil {
			log.Printf("%s: %v", site.Key(), err)
			continue
		}
		log.Printf("%s: %s, %d sources, %d comparisons", site.Key(), report.Outcome, len(report.Sources), report.Comparisons)
	}
	return nil
}

type DiffCmd struct {
	Files []string `arg:"" type:"existingfile" help:"Canonical daily CSV files; each file is one source named after it."`
}

func (c *DiffCmd) Run(g *config.Globals) error {
	var series []models.Series
	for _, path := range c.Files {
		s, err := export.ReadSeriesFile(path)
		if err != nil {
			return err
		}
		series = append(series, s)
	}

	results, err := compare.Pairwise(series)
	if err != nil {
		return err
	}
	return export.WriteComparisons(os.Stdout, results)
}

func optionalDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}

type BatchesCmd struct {
	Limit  int  `default:"10" help:"Number of batches to show."`
	Errors bool `help:"Also list the failed ingest runs of each batch."`
}

func (c *BatchesCmd) Run(g *config.Globals) error {
	st, closeDB, err := openStore(g.DB)
	if err != nil {
		return err
	}
	defer closeDB()

	batches, err := st.ListBatches(c.Limit)
	if err != nil {
		return err
	}
	for _, b := range batches {
		fmt.Printf("%s  %s  %s..%s  sites=%d compared=%d skipped=%d failed=%d  %s\n",
			b.StartedAt.Format(time.RFC3339), b.ID, b.StartDate, b.EndDate,
			b.SitesTotal, b.SitesCompared, b.SitesSkipped, b.SitesFailed, b.Status)
		if !c.Errors {
			continue
		}
		runs, err := st.GetBatchIngestRuns(b.ID)
		if err != nil {
			return err
		}
		for _, run := range runs {
			if run.Success {
				continue
			}
			fmt.Printf("    %s %s %s: %s\n", run.LocationID.String, run.Source, run.StationID.String, run.ErrorMessage.String)
		}
	}
	return nil
}

type ServeCmd struct {
	Port string `default:"8080" env:"PORT" help:"HTTP server port."`
}

func (c *ServeCmd) Run(g *config.Globals) error {
	st, closeDB, err := openStore(g.DB)
	if err != nil {
		return err
	}
	defer closeDB()

	ctx, cancel := signalContext()
	defer cancel()

	log.Printf("starting server on :%s", c.Port)
	return api.NewServer(st, c.Port).Run(ctx)
}
